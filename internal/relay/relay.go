// Package relay mirrors the ledger into the external sinks. It wakes on the
// mutation signal, forwards the log entries appended since the last
// successful delivery to the journal and publishes the current snapshot.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/koi-labs/koi-ledger/internal/metrics"
	"github.com/koi-labs/koi-ledger/internal/model"
	"github.com/koi-labs/koi-ledger/internal/store"
)

// Source is the part of the ledger the relay reads.
type Source interface {
	EntriesSince(n int) []model.LogEntry
	Snapshot() model.View
}

// Relay forwards ledger changes to a journal and a snapshot publisher.
// Either sink may be nil.
type Relay struct {
	src     Source
	journal store.Journal
	pub     store.SnapshotPublisher

	mu     sync.Mutex
	cursor int // log entries already journaled
}

// New creates a relay reading from src.
func New(src Source, journal store.Journal, pub store.SnapshotPublisher) *Relay {
	return &Relay{src: src, journal: journal, pub: pub}
}

// Run flushes once per signal until ctx is done or signals is closed.
// Failures are logged and retried on the next signal. Must be called in a
// goroutine.
func (r *Relay) Run(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if err := r.Flush(ctx); err != nil {
				slog.Warn("relay flush failed", "err", err)
			}
		}
	}
}

// Flush delivers everything pending. The journal cursor only advances on a
// successful append.
func (r *Relay) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.journal != nil {
		if entries := r.src.EntriesSince(r.cursor); len(entries) > 0 {
			if err := r.journal.Append(ctx, entries); err != nil {
				metrics.SinkErrors.WithLabelValues("journal").Inc()
				firstErr = errors.Wrapf(err, "journal %d entries from %d", len(entries), r.cursor)
			} else {
				r.cursor += len(entries)
			}
		}
	}
	if r.pub != nil {
		if err := r.pub.Publish(ctx, r.src.Snapshot()); err != nil {
			metrics.SinkErrors.WithLabelValues("publisher").Inc()
			if firstErr == nil {
				firstErr = errors.Wrap(err, "publish snapshot")
			}
		}
	}
	return firstErr
}

// Cursor returns the number of log entries journaled so far.
func (r *Relay) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}
