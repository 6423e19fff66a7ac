// Package outbox relays events persisted by the postgres store to the event
// sinks. Rows are marked published only after every sink accepted them, so
// delivery is at-least-once.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idregistry/internal/registry/models"
)

const (
	DefaultPollInterval = time.Second
	DefaultBatchSize    = 100
)

// Entry is one unpublished outbox row.
type Entry struct {
	Seq   int64
	Event models.Event
}

// Source reads and acknowledges outbox rows in commit order.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, seqs []int64) error
}

type Publisher interface {
	Publish(ctx context.Context, events []models.Event) error
}

// Worker polls Source and hands batches to Publisher.
type Worker struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Worker)

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(source Source, publisher Publisher, opts ...Option) (*Worker, error) {
	if source == nil {
		return nil, errors.New("outbox source is required")
	}
	if publisher == nil {
		return nil, errors.New("outbox publisher is required")
	}
	w := &Worker{
		source:    source,
		publisher: publisher,
		interval:  DefaultPollInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run relays until ctx is done. Relay failures are logged and retried on the
// next tick; Run only returns when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil && w.logger != nil {
			w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain relays batches until the outbox is empty or a batch fails, returning
// the number of events relayed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.relayBatch(ctx)
		total += n
		if err != nil || n < w.batchSize {
			return total, err
		}
	}
}

func (w *Worker) relayBatch(ctx context.Context) (int, error) {
	entries, err := w.source.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	batch := make([]models.Event, len(entries))
	seqs := make([]int64, len(entries))
	for i, e := range entries {
		batch[i] = e.Event
		seqs[i] = e.Seq
	}

	if err := w.publisher.Publish(ctx, batch); err != nil {
		w.metrics.IncRelayFailures()
		return 0, err
	}
	if err := w.source.MarkPublished(ctx, seqs); err != nil {
		w.metrics.IncRelayFailures()
		return 0, err
	}
	w.metrics.AddRelayed(len(entries))
	return len(entries), nil
}
