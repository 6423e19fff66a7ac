// Package memory is the in-process registry backend. A single mutex serializes
// transactions and an undo journal rolls back writes of a failed transaction.
package memory

import (
	"context"
	"slices"
	"time"

	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
)

// defaultTxTimeout is the maximum time a transaction may wait for the lock.
const defaultTxTimeout = 5 * time.Second

type pairKey struct {
	owner     domain.Principal
	signatory domain.Principal
}

type state struct {
	lastID     domain.IdentityID
	payloads   map[domain.IdentityID]models.Payload
	owners     map[domain.Principal]domain.IdentityID
	viewers    map[domain.IdentityID]map[domain.Principal]struct{}
	signers    map[domain.IdentityID]map[domain.Principal]struct{}
	approvals  map[domain.Principal][]models.ApprovalRecord
	lastApprov map[pairKey]time.Time
	events     []models.Event
}

// Store is the in-memory implementation of store.Tx.
type Store struct {
	sem      chan struct{} // capacity 1; holding the token is holding the lock
	st       *state
	timeout  time.Duration
	eventLog bool
}

type Option func(*Store)

// WithTxTimeout bounds how long RunInTx waits when ctx carries no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithEventLog keeps committed events readable through Events. Without it
// AppendEvents discards them; delivery happens through the publisher.
func WithEventLog() Option {
	return func(s *Store) {
		s.eventLog = true
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		st: &state{
			payloads:   make(map[domain.IdentityID]models.Payload),
			owners:     make(map[domain.Principal]domain.IdentityID),
			viewers:    make(map[domain.IdentityID]map[domain.Principal]struct{}),
			signers:    make(map[domain.IdentityID]map[domain.Principal]struct{}),
			approvals:  make(map[domain.Principal][]models.ApprovalRecord),
			lastApprov: make(map[pairKey]time.Time),
		},
		sem:     make(chan struct{}, 1),
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn under the global lock. Writes are journaled and undone in
// reverse order if fn fails or panics.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: lock wait exceeded")
	}
	defer func() { <-s.sem }()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := &memTx{st: s.st, eventLog: s.eventLog}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// Events returns a copy of the committed event log. It is empty unless the
// store was built WithEventLog.
func (s *Store) Events() []models.Event {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	return slices.Clone(s.st.events)
}

// Count returns the number of registered identities.
func (s *Store) Count() int {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	return len(s.st.payloads)
}

type memTx struct {
	st       *state
	eventLog bool
	undo     []func()
}

func (t *memTx) journal(fn func()) { t.undo = append(t.undo, fn) }

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

var _ store.Store = (*memTx)(nil)
