// Package events delivers committed registry events to downstream systems.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"idregistry/internal/registry/models"
)

// Sink is one downstream destination for registry events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []models.Event) error
}

// Fanout publishes every batch to all configured sinks concurrently. A sink
// failure does not stop delivery to the others.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

type Option func(*Fanout)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) {
		f.logger = logger
	}
}

func NewFanout(sinks []Sink, opts ...Option) *Fanout {
	f := &Fanout{sinks: sinks}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Sinks returns the configured sink names.
func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Publish returns the joined errors of every failing sink.
func (f *Fanout) Publish(ctx context.Context, events []models.Event) error {
	if len(events) == 0 || len(f.sinks) == 0 {
		return nil
	}
	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, sink := range f.sinks {
		g.Go(func() error {
			if err := sink.Publish(ctx, events); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
				if f.logger != nil {
					f.logger.WarnContext(ctx, "event sink publish failed",
						"sink", sink.Name(),
						"event_count", len(events),
						"error", err,
					)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close closes every sink that holds a connection.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Encode is the wire form shared by every sink and the outbox table.
func Encode(e models.Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return b, nil
}

func Decode(b []byte) (models.Event, error) {
	var e models.Event
	if err := json.Unmarshal(b, &e); err != nil {
		return models.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
