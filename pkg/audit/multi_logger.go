package audit

import (
	"context"
	"errors"
)

// MultiLogger fans out every event to multiple sinks. A failure in one sink
// does not stop delivery to the others; all failures are joined.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger creates a logger writing to all given sinks.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	return &MultiLogger{sinks: sinks}
}

// Log appends the event to every sink.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
