package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	_ "modernc.org/sqlite"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
  collection  TEXT NOT NULL,
  id          TEXT NOT NULL,
  body        TEXT NOT NULL,
  created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
CREATE TABLE IF NOT EXISTS document_changes (
  id           INTEGER PRIMARY KEY,
  occurred_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  collection   TEXT NOT NULL,
  doc_id       TEXT NOT NULL,
  change_type  TEXT NOT NULL CHECK (change_type IN ('added','updated','removed'))
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON document_changes(occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Insert stores a new document. A missing id is replaced with a uuid and a
// missing createdAt with the current time. The stored body is returned.
func (d *DB) Insert(ctx context.Context, collection string, body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, catalog.Invalidf("%s document is not valid JSON", collection)
	}
	var err error
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		id = uuid.NewString()
		if body, err = sjson.SetBytes(body, "id", id); err != nil {
			return nil, err
		}
	}
	created := d.now().UTC()
	if ts := gjson.GetBytes(body, "createdAt"); ts.Exists() && ts.String() != "" {
		if parsed, perr := time.Parse(time.RFC3339Nano, ts.String()); perr == nil {
			created = parsed.UTC()
		}
	} else if body, err = sjson.SetBytes(body, "createdAt", created.Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO documents(collection, id, body, created_at, updated_at) VALUES(?,?,?,?,CURRENT_TIMESTAMP)`, collection, id, string(body), sortKey(created))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			err = fmt.Errorf("%w: %s %q already exists", catalog.ErrConflict, collection, id)
		}
		return nil, err
	}
	if err = logChange(ctx, tx, collection, id, "added"); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return body, nil
}

// Put inserts or replaces a document by id. A replaced document sorts as new.
func (d *DB) Put(ctx context.Context, collection, id string, body []byte) error {
	if id == "" {
		return catalog.Invalidf("%s document needs an id", collection)
	}
	body, err := sjson.SetBytes(body, "id", id)
	if err != nil {
		return err
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existed int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&existed); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO documents(collection, id, body, created_at, updated_at) VALUES(?,?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, created_at = excluded.created_at, updated_at = CURRENT_TIMESTAMP`, collection, id, string(body), sortKey(d.now()))
	if err != nil {
		return err
	}
	changeType := "added"
	if existed > 0 {
		changeType = "updated"
	}
	if err = logChange(ctx, tx, collection, id, changeType); err != nil {
		return err
	}
	return tx.Commit()
}

// Get returns one document or catalog.ErrNotFound.
func (d *DB) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var body string
	err := d.sql.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", catalog.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// Update applies fn to the stored document inside one transaction and saves
// its result. Errors returned by fn abort the update unchanged.
func (d *DB) Update(ctx context.Context, collection, id string, fn func(body []byte) ([]byte, error)) ([]byte, error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s %q", catalog.ErrNotFound, collection, id)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	var next []byte
	if next, err = fn([]byte(current)); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE documents SET body = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?`, string(next), collection, id); err != nil {
		return nil, err
	}
	if err = logChange(ctx, tx, collection, id, "updated"); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes a document.
func (d *DB) Delete(ctx context.Context, collection, id string) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s %q", catalog.ErrNotFound, collection, id)
		return err
	}
	if err = logChange(ctx, tx, collection, id, "removed"); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns the documents of a collection, newest first, that match every
// filter. Filter keys are gjson paths compared by string value.
func (d *DB) List(ctx context.Context, collection string, opts ListOptions) ([][]byte, error) {
	q := "SELECT body FROM documents WHERE collection = ? ORDER BY created_at DESC, rowid DESC"
	rows, err := d.sql.QueryContext(ctx, q, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	out := [][]byte{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		if !matchesFilters(body, opts.Filters) || !matchesSearch(body, opts.SearchPaths, search) {
			continue
		}
		out = append(out, []byte(body))
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecentChanges returns the most recent N changes across all collections.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, collection, doc_id, change_type FROM document_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAtStr string
		if err := rows.Scan(&occurredAtStr, &c.Collection, &c.DocID, &c.ChangeType); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTimestamp(occurredAtStr)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// GetStats counts documents per collection.
func (d *DB) GetStats(ctx context.Context) ([]CollectionStats, error) {
	query := `
		SELECT
			collection,
			COUNT(*),
			MAX(updated_at)
		FROM
			documents
		GROUP BY
			collection
		ORDER BY
			collection;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CollectionStats
	for rows.Next() {
		var s CollectionStats
		var last string
		if err := rows.Scan(&s.Collection, &s.Documents, &last); err != nil {
			return nil, err
		}
		s.LastUpdate = parseTimestamp(last)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func logChange(ctx context.Context, tx *sql.Tx, collection, id, changeType string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO document_changes(occurred_at, collection, doc_id, change_type) VALUES(CURRENT_TIMESTAMP, ?, ?, ?)`, collection, id, changeType)
	return err
}

func matchesFilters(body string, filters map[string]string) bool {
	for path, want := range filters {
		if gjson.Get(body, path).String() != want {
			return false
		}
	}
	return true
}

func matchesSearch(body string, paths []string, search string) bool {
	if search == "" {
		return true
	}
	for _, p := range paths {
		if strings.Contains(strings.ToLower(gjson.Get(body, p).String()), search) {
			return true
		}
	}
	return false
}

// sortKey is a fixed width timestamp so created_at orders lexically.
func sortKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// parseTimestamp reads SQLite CURRENT_TIMESTAMP values and RFC3339 strings.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
