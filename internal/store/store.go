// Package store defines the external sinks the ledger mirrors into.
// Implementations include PostgreSQL (append-only journal of the
// transaction log), Redis (latest snapshot plus change signal), and
// in-memory (for testing).
//
// Sinks are write-only. The in-memory ledger stays the source of truth and
// nothing is read back on start.
package store

import (
	"context"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// Journal is an append-only mirror of the transaction log.
type Journal interface {
	// Append records entries in log order. Appending an entry that is
	// already present is a no-op.
	Append(ctx context.Context, entries []model.LogEntry) error
}

// SnapshotPublisher makes the latest ledger view available to external
// readers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, view model.View) error
}
