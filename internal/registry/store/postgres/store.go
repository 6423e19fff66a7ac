// Package postgres is the PostgreSQL registry backend. Every RunInTx is one
// SERIALIZABLE transaction; serialization failures are retried transparently.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"idregistry/internal/registry/store"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/sentinel"
	txcontext "idregistry/pkg/platform/tx"
)

const (
	defaultTxTimeout  = 5 * time.Second
	defaultMaxRetries = 5
	retryBackoff      = 10 * time.Millisecond
)

// PostgreSQL SQLSTATEs that mean "run the transaction again".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Store implements store.Tx over a database/sql pool opened with the pgx driver.
type Store struct {
	db         *sql.DB
	timeout    time.Duration
	maxRetries int
}

type Option func(*Store)

func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: defaultTxTimeout, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Tx = (*Store)(nil)

// RunInTx runs fn in a serializable transaction. fn may run more than once
// when PostgreSQL aborts the transaction with a serialization failure, so it
// must not have side effects outside the store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= s.maxRetries {
			return fmt.Errorf("%w: serialization retries exhausted: %w", sentinel.ErrUnavailable, err)
		}
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted while retrying")
		case <-time.After(retryBackoff * time.Duration(attempt+1)):
		}
	}
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
