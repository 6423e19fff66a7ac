// Package redisstream appends registry events to a Redis stream.
package redisstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idregistry/internal/events"
	"idregistry/internal/registry/models"
)

const defaultMaxLen = 100_000

// Publisher is an events.Sink that XADDs each event to one stream.
type Publisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

type Option func(*Publisher)

// WithMaxLen caps the stream length (approximate trimming). Zero disables it.
func WithMaxLen(n int64) Option {
	return func(p *Publisher) {
		p.maxLen = n
	}
}

func New(client redis.Cmdable, stream string, opts ...Option) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if stream == "" {
		return nil, errors.New("redis stream name is required")
	}
	p := &Publisher{client: client, stream: stream, maxLen: defaultMaxLen}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Publisher) Name() string { return "redis" }

// Publish appends the batch in one MULTI/EXEC so a partial batch is never
// visible to stream readers.
func (p *Publisher) Publish(ctx context.Context, batch []models.Event) error {
	args := make([]*redis.XAddArgs, 0, len(batch))
	for _, e := range batch {
		a, err := p.xadd(e)
		if err != nil {
			return err
		}
		args = append(args, a)
	}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range args {
			pipe.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func (p *Publisher) xadd(e models.Event) (*redis.XAddArgs, error) {
	payload, err := events.Encode(e)
	if err != nil {
		return nil, err
	}
	return &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]any{
			"type":        string(e.Type),
			"identity_id": e.Key(),
			"payload":     payload,
		},
	}, nil
}
