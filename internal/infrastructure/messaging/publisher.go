// Package messaging delivers reservation events from the outbox to external
// brokers. Every sink implements Publisher; Fanout sends one event to all of them.
package messaging

import (
	"context"
	"errors"
	"fmt"
)

// Publisher delivers one event to a sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, aggregateID string, eventType string, data map[string]any) error
}

// Fanout publishes to every sink and reports which ones failed.
type Fanout struct {
	sinks []Publisher
}

// NewFanout creates a Fanout over the given sinks.
func NewFanout(sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks}
}

// Sinks returns the configured sinks.
func (f *Fanout) Sinks() []Publisher {
	return f.sinks
}

// Publish sends the event to every sink, even after a failure, and joins the errors.
func (f *Fanout) Publish(ctx context.Context, aggregateID string, eventType string, data map[string]any) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, aggregateID, eventType, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
