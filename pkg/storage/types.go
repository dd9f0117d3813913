package storage

import "time"

// Change captures a single document change for auditing or printing.
type Change struct {
	OccurredAt time.Time
	Collection string
	DocID      string
	ChangeType string // added | updated | removed
}

// ListOptions controls selection when listing documents.
type ListOptions struct {
	// Filters maps gjson paths to required values, e.g. {"topic": "BMW"}.
	Filters map[string]string
	// Search is matched case-insensitively against SearchPaths.
	Search      string
	SearchPaths []string
	Limit       int
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Collection string
	Documents  int
	LastUpdate time.Time
}
