package audit

import (
	"context"
	"sync"
)

// InMemoryLedger keeps the trail for the process lifetime. It intentionally
// favors clarity over performance: one mutex, one slice, append is the only
// mutator.
type InMemoryLedger struct {
	mu      sync.RWMutex
	records []Record
	last    string // last assigned timestamp, for the monotonicity invariant
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{}
}

// Append stores the record with a timestamp assigned under the lock. If the
// wall clock steps backwards the previous timestamp is reused, keeping
// timestamps non-decreasing in append order.
func (l *InMemoryLedger) Append(_ context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := Now()
	if ts < l.last {
		ts = l.last
	}
	l.last = ts
	record.Timestamp = ts
	l.records = append(l.records, record)
	return nil
}

// Query walks the trail newest-first applying the filter.
func (l *InMemoryLedger) Query(_ context.Context, filter Filter) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		if filter.Matches(l.records[i]) {
			out = append(out, l.records[i])
		}
	}
	return out, nil
}
