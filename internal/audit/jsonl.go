package audit

import (
	"context"
	"encoding/json"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink appends records to a rotating JSONL file. It is a write-only side
// channel for operators who want a greppable trail next to the queryable
// store; the store of record stays the Ledger.
type FileSink struct {
	mu sync.Mutex
	w  *lumberjack.Logger
}

func NewFileSink(path string) *FileSink {
	return &FileSink{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
		},
	}
}

func (s *FileSink) Write(record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

func (s *FileSink) Close() error { return s.w.Close() }

// teeLedger forwards appends to a sink after the primary store accepts them.
// Sink failures are ignored: the file is best-effort.
type teeLedger struct {
	Ledger
	sink *FileSink
}

// WithFileSink tees every appended record into the sink.
func WithFileSink(inner Ledger, sink *FileSink) Ledger {
	return &teeLedger{Ledger: inner, sink: sink}
}

func (t *teeLedger) Append(ctx context.Context, record Record) error {
	if err := t.Ledger.Append(ctx, record); err != nil {
		return err
	}
	if record.Timestamp == "" {
		record.Timestamp = Now()
	}
	_ = t.sink.Write(record)
	return nil
}
