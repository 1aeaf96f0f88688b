package memory

import (
	"context"
	"sync"

	"pump-agent/internal/storage"
)

// TradeJournal is an in-memory implementation of storage.TradeJournal.
type TradeJournal struct {
	mu      sync.Mutex
	entries []storage.JournalEntry
}

// NewTradeJournal creates an empty journal.
func NewTradeJournal() *TradeJournal {
	return &TradeJournal{}
}

var _ storage.TradeJournal = (*TradeJournal)(nil)

// Record appends e.
func (j *TradeJournal) Record(_ context.Context, e *storage.JournalEntry) error {
	if e == nil || e.TradeUUID == "" {
		return storage.ErrInvalidInput
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *e)
	return nil
}

// Entries returns a copy of all recorded entries in insertion order.
func (j *TradeJournal) Entries() []storage.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]storage.JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}
