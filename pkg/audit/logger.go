package audit

import (
	"context"
	"time"
)

// Logger is the append-only audit sink. Implementations must tolerate
// concurrent writers.
type Logger interface {
	// Log appends an audit event.
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink.
	Close() error
}

// Record is a convenience helper that fills in the timestamp and appends the
// event, dropping nil sinks silently so call sites stay unconditional.
func Record(ctx context.Context, l Logger, event *Event) error {
	if l == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return l.Log(ctx, event)
}

// NopLogger discards all events. Used in tests and when auditing is disabled.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }
