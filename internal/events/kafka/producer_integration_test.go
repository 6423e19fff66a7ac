//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"idregistry/internal/events"
	"idregistry/internal/registry/models"
	"idregistry/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	brokers []string
}

func TestProducerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *ProducerIntegrationSuite) TestPublishedEventsAreConsumableInOrder() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "identity-events-order"
	p, err := New(s.brokers, topic)
	s.Require().NoError(err)
	defer p.Close()
	s.Require().NoError(p.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(p.EnsureTopic(ctx, 1, 1), "second create is a no-op")
	s.Require().NoError(p.Health(ctx))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []models.Event{
		models.PersonRegistered(1, at),
		models.ViewerAuthorized(1, "0xv", at),
		models.PersonTransferred(1, "0xa", "0xb", at.Add(time.Hour)),
	}
	s.Require().NoError(p.Publish(ctx, batch))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []models.Event
	for len(got) < len(batch) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			e, err := events.Decode(r.Value)
			s.Require().NoError(err)
			s.Equal("1", string(r.Key))
			got = append(got, e)
		})
	}
	s.Equal(batch, got)
}
