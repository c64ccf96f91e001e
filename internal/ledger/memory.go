package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger used in tests and single-node development.
// It honors the same atomic check-and-insert contract as the Postgres
// implementation, scoped to one process.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// TryRecord implements Ledger.
func (l *Memory) TryRecord(_ context.Context, rec Record) (bool, error) {
	key := rec.NotificationID + "\x00" + rec.OccurrenceKey
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.records[key]; taken {
		return false, nil
	}
	l.records[key] = rec
	return true, nil
}

// Get returns the record for a composite key, if present.
func (l *Memory) Get(notificationID, occurrenceKey string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[notificationID+"\x00"+occurrenceKey]
	return rec, ok
}

// Len returns the number of recorded occurrences.
func (l *Memory) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
