// events.go
package internal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventSink receives the controller's decision stream. Sinks are
// downstream consumers only; a failing sink never influences control
// decisions.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NewEvent stamps identity and time onto an event.
func NewEvent(kind, message string, state State) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		State:     state.String(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// multiSink fans one event out to every configured sink, logging and
// swallowing individual failures.
type multiSink struct {
	lg    *slog.Logger
	sinks []EventSink
}

// NewMultiSink combines sinks; nil entries are skipped.
func NewMultiSink(lg *slog.Logger, sinks ...EventSink) EventSink {
	out := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &multiSink{lg: lg, sinks: out}
}

func (m *multiSink) Publish(ctx context.Context, ev Event) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			m.lg.Warn("event sink publish failed", "kind", ev.Kind, "error", err)
		}
	}
	return nil
}

func (m *multiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
