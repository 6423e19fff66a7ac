package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idregistry/internal/events"
	"idregistry/internal/registry/models"
)

type fakeSource struct {
	mu        sync.Mutex
	entries   []Entry
	published map[int64]bool
	markErr   error
}

func newFakeSource(n int) *fakeSource {
	src := &fakeSource{published: map[int64]bool{}}
	for i := 1; i <= n; i++ {
		src.entries = append(src.entries, Entry{
			Seq:   int64(i),
			Event: models.PersonRegistered(1, time.Unix(int64(i), 0).UTC()),
		})
	}
	return src
}

func (f *fakeSource) FetchUnpublished(_ context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if f.published[e.Seq] {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, seqs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, s := range seqs {
		f.published[s] = true
	}
	return nil
}

type flakyPublisher struct {
	fail bool
}

func (p *flakyPublisher) Publish(context.Context, []models.Event) error {
	if p.fail {
		return errors.New("sink down")
	}
	return nil
}

func TestNewWorker_RequiresCollaborators(t *testing.T) {
	_, err := NewWorker(nil, events.NewRecorder())
	assert.Error(t, err)
	_, err = NewWorker(newFakeSource(0), nil)
	assert.Error(t, err)
}

func TestDrain_RelaysInBatchesAndInOrder(t *testing.T) {
	src := newFakeSource(5)
	rec := events.NewRecorder()
	m := NewMetrics(prometheus.NewRegistry())
	w, err := NewWorker(src, rec, WithBatchSize(2), WithMetrics(m))
	require.NoError(t, err)

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got := rec.Events()
	require.Len(t, got, 5)
	for i, e := range got {
		assert.Equal(t, src.entries[i].Event, e)
	}
	assert.Equal(t, 5.0, promtestutil.ToFloat64(m.Relayed))

	n, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrain_FailedPublishLeavesRowsForRetry(t *testing.T) {
	src := newFakeSource(3)
	pub := &flakyPublisher{fail: true}
	m := NewMetrics(prometheus.NewRegistry())
	w, err := NewWorker(src, pub, WithMetrics(m))
	require.NoError(t, err)

	_, err = w.Drain(context.Background())
	require.Error(t, err)
	assert.Empty(t, src.published)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.RelayFailures))

	pub.fail = false
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDrain_AckFailureIsReported(t *testing.T) {
	src := newFakeSource(1)
	src.markErr = errors.New("db gone")
	w, err := NewWorker(src, events.NewRecorder())
	require.NoError(t, err)

	_, err = w.Drain(context.Background())
	assert.ErrorIs(t, err, src.markErr)
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := newFakeSource(2)
	rec := events.NewRecorder()
	w, err := NewWorker(src, rec, WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
