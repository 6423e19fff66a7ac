package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/sentinel"
)

var errAbort = errors.New("abort")

func TestInMemoryStore_RollbackUndoesEveryWrite(t *testing.T) {
	s := New(WithEventLog())
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		id, err := tx.NextIdentityID(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.CreateIdentity(ctx, "p1", models.Identity{ID: id, Payload: models.Payload(`{}`)}))
		require.NoError(t, tx.AddSignatory(ctx, id, "p2"))
		require.NoError(t, tx.AppendApproval(ctx, "p1", models.ApprovalRecord{Signatory: "p2", ApprovedAt: now}))
		return tx.SetLastApproval(ctx, "p1", "p2", now)
	}))

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		id, err := tx.NextIdentityID(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.CreateIdentity(ctx, "p9", models.Identity{ID: id}))
		require.NoError(t, tx.RebindOwner(ctx, 1, "p1", "p4"))
		require.NoError(t, tx.AddViewer(ctx, 1, "p5"))
		require.NoError(t, tx.DeleteLastApprovals(ctx, "p1", []domain.Principal{"p2"}))
		require.NoError(t, tx.ClearApprovals(ctx, "p1"))
		require.NoError(t, tx.AppendEvents(ctx, []models.Event{models.PersonRegistered(id, now)}))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	probe := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		id, err := tx.FindIdentityIDByOwner(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.IdentityID(1), id)

		_, err = tx.FindIdentityIDByOwner(ctx, "p4")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = tx.FindIdentityIDByOwner(ctx, "p9")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		viewer, err := tx.IsViewer(ctx, 1, "p5")
		require.NoError(t, err)
		assert.False(t, viewer)

		approvals, err := tx.ListApprovals(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, approvals, 1)

		last, err := tx.LastApproval(ctx, "p1", "p2")
		require.NoError(t, err)
		assert.Equal(t, now, last)

		next, err := tx.NextIdentityID(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.IdentityID(2), next, "id counter rolled back, no gaps")
		return errAbort
	})
	require.ErrorIs(t, probe, errAbort)
	assert.Empty(t, s.Events())
}

func TestInMemoryStore_OwnerLookups(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		require.NoError(t, tx.CreateIdentity(ctx, "p1", models.Identity{ID: 7, Payload: models.Payload("x")}))

		owner, err := tx.FindOwnerByIdentityID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, domain.Principal("p1"), owner)

		_, err = tx.FindOwnerByIdentityID(ctx, 8)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		assert.ErrorIs(t, tx.CreateIdentity(ctx, "p1", models.Identity{ID: 9}), sentinel.ErrConflict)
		assert.ErrorIs(t, tx.RebindOwner(ctx, 7, "p2", "p3"), sentinel.ErrNotFound)

		payload, err := tx.FindPayload(ctx, 7)
		require.NoError(t, err)
		payload[0] = 'y'
		again, err := tx.FindPayload(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, models.Payload("x"), again, "payload copies are isolated")
		return nil
	}))
	assert.Equal(t, 1, s.Count())
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTx(ctx, func(context.Context, store.Store) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestInMemoryStore_LockWaitTimesOut(t *testing.T) {
	s := New(WithTxTimeout(20 * time.Millisecond))
	hold := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = s.RunInTx(context.Background(), func(context.Context, store.Store) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	defer close(hold)

	err := s.RunInTx(context.Background(), func(context.Context, store.Store) error { return nil })
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestInMemoryStore_ConcurrentIDsAreSequential(t *testing.T) {
	s := New()
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	ids := make(chan domain.IdentityID, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
				id, err := tx.NextIdentityID(ctx)
				if err != nil {
					return err
				}
				ids <- id
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.IdentityID]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %s handed out twice", id)
		seen[id] = true
	}
	for i := 1; i <= goroutines; i++ {
		assert.True(t, seen[domain.IdentityID(i)], "missing id %d", i)
	}
}

func TestInMemoryStore_EventLogIsOptIn(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	appendGrants := func(s *Store) {
		for i := 0; i < 100; i++ {
			require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
				return tx.AppendEvents(ctx, []models.Event{models.ViewerAuthorized(1, "v", now)})
			}))
		}
	}

	t.Run("default store retains nothing", func(t *testing.T) {
		s := New()
		appendGrants(s)
		assert.Empty(t, s.Events())
	})

	t.Run("event log keeps committed events in order", func(t *testing.T) {
		s := New(WithEventLog())
		appendGrants(s)
		assert.Len(t, s.Events(), 100)
	})
}

func TestInMemoryStore_PanicRollsBackAndReleasesLock(t *testing.T) {
	s := New(WithEventLog())
	ctx := context.Background()

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			id, err := tx.NextIdentityID(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.CreateIdentity(ctx, "p1", models.Identity{ID: id, Payload: models.Payload(`{}`)}))
			require.NoError(t, tx.AppendEvents(ctx, []models.Event{models.PersonRegistered(id, time.Unix(0, 0).UTC())}))
			panic("boom")
		})
	})

	assert.Zero(t, s.Count())
	assert.Empty(t, s.Events())
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		_, err := tx.FindIdentityIDByOwner(ctx, "p1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		id, err := tx.NextIdentityID(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.IdentityID(1), id, "panicked transaction burned no id")
		return nil
	}))
}
