// Package kafka publishes registry events to a Kafka topic keyed by identity
// id, so every event of one identity lands on the same partition in order.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"idregistry/internal/events"
	"idregistry/internal/registry/models"
)

const headerEventType = "event_type"

// Producer is an events.Sink backed by franz-go.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New connects to brokers. Extra kgo options are appended after the defaults.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

func (p *Producer) Name() string { return "kafka" }

// EnsureTopic creates the topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces the batch synchronously and returns the first record error.
func (p *Producer) Publish(ctx context.Context, batch []models.Event) error {
	records := make([]*kgo.Record, 0, len(batch))
	for _, e := range batch {
		r, err := record(p.topic, e)
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() error {
	p.client.Close()
	return nil
}

func record(topic string, e models.Event) (*kgo.Record, error) {
	value, err := events.Encode(e)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(e.Key()),
		Value:     value,
		Timestamp: e.OccurredAt,
		Headers:   []kgo.RecordHeader{{Key: headerEventType, Value: []byte(e.Type)}},
	}, nil
}
