package store

import (
	"context"
	"sync"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// MemoryJournal implements Journal with an in-memory slice. Used for testing
// and development.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []model.LogEntry
	seen    map[string]struct{}
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{seen: make(map[string]struct{})}
}

func (j *MemoryJournal) Append(_ context.Context, entries []model.LogEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		if _, dup := j.seen[e.ID]; dup {
			continue
		}
		j.seen[e.ID] = struct{}{}
		j.entries = append(j.entries, e)
	}
	return nil
}

// Entries returns a copy of everything appended so far.
func (j *MemoryJournal) Entries() []model.LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]model.LogEntry(nil), j.entries...)
}
