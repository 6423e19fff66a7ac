package events

import (
	"context"
	"slices"
	"sync"

	"idregistry/internal/registry/models"
)

// Recorder is a sink that keeps every published event in memory, for tests
// that assert on delivered events.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string { return "memory" }

func (r *Recorder) Publish(_ context.Context, events []models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
