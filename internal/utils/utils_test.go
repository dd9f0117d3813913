package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
	}
	defer Log.SetLevel(log.InfoLevel)
	for _, tt := range tests {
		if err := SetLogLevel(tt.in); err != nil {
			t.Fatalf("SetLogLevel(%q): unexpected error %v", tt.in, err)
		}
		if got := Log.GetLevel(); got != tt.want {
			t.Fatalf("SetLogLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestSetLogLevelRejectsUnknown(t *testing.T) {
	Log.SetLevel(log.InfoLevel)
	if err := SetLogLevel("verbose"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
	if got := Log.GetLevel(); got != log.InfoLevel {
		t.Fatalf("expected level to stay info, got %v", got)
	}
}

func TestEngineLoggerCarriesComponent(t *testing.T) {
	l := NewEngineLogger("forum").With("thread", "t1")
	if l.Data["component"] != "forum" || l.Data["thread"] != "t1" {
		t.Fatalf("expected component and thread fields, got %v", l.Data)
	}
}

func TestLockWriterCreatesDirectory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "riderpoint.sqlite")
	release, err := LockWriter(context.Background(), db)
	if err != nil {
		t.Fatalf("LockWriter: %v", err)
	}
	if _, err := os.Stat(db + ".lock"); err != nil {
		t.Fatalf("expected lock file next to the database, got %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestLockWriterWaitsForHolder(t *testing.T) {
	db := filepath.Join(t.TempDir(), "riderpoint.sqlite")
	release, err := LockWriter(context.Background(), db)
	if err != nil {
		t.Fatalf("LockWriter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := LockWriter(ctx, db); err == nil {
		t.Fatalf("expected a second writer to time out while the lock is held")
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := LockWriter(context.Background(), db)
	if err != nil {
		t.Fatalf("expected the lock to be free after release, got %v", err)
	}
	again()
}
