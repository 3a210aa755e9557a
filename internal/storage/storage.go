// Package storage defines the persistence boundary for scheduling data. The
// engine itself never touches storage; callers load a snapshot, run the
// engine, and persist the resulting batch atomically.
package storage

import (
	"context"
	"time"

	"github.com/clinrota/clinrota/internal/snapshot"
	"github.com/clinrota/clinrota/internal/storage/sqlite"
	"github.com/clinrota/clinrota/internal/types"
)

// Storage is the interface for scheduling data backends.
type Storage interface {
	// Import replaces the stored reference collections with the
	// snapshot's contents. Existing assignments are preserved.
	Import(ctx context.Context, snap *snapshot.Snapshot) error

	// LoadSnapshot prefetches every collection into an in-memory
	// snapshot for the engine.
	LoadSnapshot(ctx context.Context) (*snapshot.Snapshot, error)

	// UpsertAssignments writes a generated batch in one transaction.
	UpsertAssignments(ctx context.Context, assignments []types.ScheduleAssignment) error

	// DeleteAssignments removes the given assignments (by id) in one
	// transaction, for regeneration cutovers.
	DeleteAssignments(ctx context.Context, ids []string) error

	// ApplyResult persists a generation outcome atomically: the removed
	// assignments are deleted and the new batch written in one
	// transaction, so a failure leaves the stored schedule untouched.
	ApplyResult(ctx context.Context, removed []string, assignments []types.ScheduleAssignment) error

	// ListAssignments returns assignments in a date range, ordered by
	// date then student.
	ListAssignments(ctx context.Context, start, end time.Time) ([]types.ScheduleAssignment, error)

	// AddBlackout inserts a blackout date and returns the existing
	// assignments that conflict with it. Conflicts are reported, never
	// silently discarded.
	AddBlackout(ctx context.Context, b types.BlackoutDate) ([]types.ScheduleAssignment, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Default: ".clinrota/clinrota.db"
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".clinrota/clinrota.db",
	}
}

// NewStorage creates a new SQLite storage backend.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".clinrota/clinrota.db"
	}
	return sqlite.New(cfg.Path)
}
