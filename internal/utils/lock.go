package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a waiting writer polls the lock file.
const lockRetry = 250 * time.Millisecond

// LockWriter takes the exclusive writer lock of the SQLite file at dbPath,
// held next to it as <file>.lock. Seeding and local votes run under it so two
// processes never write the same file. It blocks until the lock is free or
// ctx ends and returns the function that releases it.
func LockWriter(ctx context.Context, dbPath string) (func() error, error) {
	path := dbPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		Log.WithField("lock", path).Warn("Another riderpoint process is writing to the database, waiting")
		if ok, err = fl.TryLockContext(ctx, lockRetry); err != nil || !ok {
			return nil, fmt.Errorf("waiting for %s: %w", path, errOr(err, ctx.Err()))
		}
	}

	return func() error {
		if err := fl.Unlock(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("unlocking %s: %w", path, err)
		}
		return nil
	}, nil
}

func errOr(err, fallback error) error {
	if err != nil {
		return err
	}
	if fallback != nil {
		return fallback
	}
	return context.Canceled
}

// GetAbsDBPath resolves the database path, defaulting to
// ~/.config/riderpoint/riderpoint.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "riderpoint", "riderpoint.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
