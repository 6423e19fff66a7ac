//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idregistry/internal/events"
	"idregistry/internal/events/outbox"
	"idregistry/internal/registry/models"
	"idregistry/internal/registry/service"
	"idregistry/internal/registry/store"
	"idregistry/internal/registry/store/postgres"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/clock"
	"idregistry/pkg/platform/sentinel"
	"idregistry/pkg/testutil/containers"
)

var allTables = []string{
	"identity_viewers", "identity_signatories", "identity_owners", "identities",
	"transfer_approvals", "last_approvals", "outbox",
}

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
	clock *clock.Manual
	svc   *service.Service
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, allTables...))
	_, err := s.pg.DB.ExecContext(ctx, `UPDATE identity_counter SET last_id = 0`)
	s.Require().NoError(err)

	s.store = postgres.New(s.pg.DB, postgres.WithMaxRetries(50))
	s.clock = clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.svc, err = service.New(s.store, service.WithClock(s.clock))
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRollbackLeavesNoTrace() {
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := s.store.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		id, err := st.NextIdentityID(ctx)
		s.Require().NoError(err)
		s.Require().NoError(st.CreateIdentity(ctx, "0xa", models.Identity{ID: id}))
		return errAbort
	})
	s.Require().ErrorIs(err, errAbort)

	err = s.store.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		_, err := st.FindIdentityIDByOwner(ctx, "0xa")
		s.ErrorIs(err, sentinel.ErrNotFound)
		id, err := st.NextIdentityID(ctx)
		s.Require().NoError(err)
		s.Equal(domain.IdentityID(1), id, "aborted allocation must not leave a gap")
		return errAbort
	})
	s.Require().ErrorIs(err, errAbort)
}

func (s *PostgresStoreSuite) TestConcurrentRegistrationsGetDistinctSequentialIDs() {
	ctx := context.Background()
	const n = 8

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[domain.IdentityID]bool{}
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := domain.Principal("0xconc" + string(rune('a'+i)))
			id, err := s.svc.Register(ctx, p, nil)
			s.NoError(err)
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(ids, n)
	for i := 1; i <= n; i++ {
		s.True(ids[domain.IdentityID(i)], "missing id %d", i)
	}
}

func (s *PostgresStoreSuite) TestTransferFlowAndOutbox() {
	ctx := context.Background()
	id, err := s.svc.Register(ctx, "0xowner", models.Payload(`{"first_name":"Super"}`))
	s.Require().NoError(err)
	s.Require().NoError(s.svc.GrantViewer(ctx, "0xowner", "0xviewer"))
	s.Require().NoError(s.svc.AddSignatory(ctx, "0xowner", "0xs1"))
	s.Require().NoError(s.svc.AddSignatory(ctx, "0xowner", "0xs2"))
	s.Require().NoError(s.svc.ApproveTransfer(ctx, "0xs1", "0xowner"))

	err = s.svc.ApproveTransfer(ctx, "0xs1", "0xowner")
	s.True(dErrors.HasCode(err, dErrors.CodeCooldownActive))

	err = s.svc.Transfer(ctx, "0xowner", "0xnew")
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientApprovals))

	s.Require().NoError(s.svc.ApproveTransfer(ctx, "0xs2", "0xowner"))
	s.Require().NoError(s.svc.Transfer(ctx, "0xowner", "0xnew"))

	owner, err := s.svc.ResolveOwner(ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.Principal("0xnew"), owner)

	_, err = s.svc.View(ctx, "0xviewer", id)
	s.NoError(err)
	_, err = s.svc.View(ctx, "0xowner", id)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	var remaining int
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM transfer_approvals WHERE owner = '0xowner')
		      + (SELECT count(*) FROM last_approvals WHERE owner = '0xowner')`,
	).Scan(&remaining))
	s.Zero(remaining)

	s.Run("outbox relays every event once in order", func() {
		rec := events.NewRecorder()
		w, err := outbox.NewWorker(s.store, rec, outbox.WithBatchSize(2))
		s.Require().NoError(err)

		n, err := w.Drain(ctx)
		s.Require().NoError(err)
		s.Equal(3, n)

		got := rec.Events()
		s.Require().Len(got, 3)
		s.Equal(models.EventPersonRegistered, got[0].Type)
		s.Equal(models.EventViewerAuthorized, got[1].Type)
		s.Equal(models.PersonTransferred(id, "0xowner", "0xnew", s.clock.Now()), got[2])

		n, err = w.Drain(ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *PostgresStoreSuite) TestApprovalTimestampsRoundTrip() {
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 8, 30, 0, 123000, time.UTC)

	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		s.Require().NoError(st.AppendApproval(ctx, "0xo", models.ApprovalRecord{Signatory: "0xs", ApprovedAt: at}))
		return st.SetLastApproval(ctx, "0xo", "0xs", at)
	}))

	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		list, err := st.ListApprovals(ctx, "0xo")
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.True(at.Equal(list[0].ApprovedAt))

		last, err := st.LastApproval(ctx, "0xo", "0xs")
		s.Require().NoError(err)
		s.True(at.Equal(last))

		s.Require().NoError(st.DeleteLastApprovals(ctx, "0xo", []domain.Principal{"0xs", "0xother"}))
		last, err = st.LastApproval(ctx, "0xo", "0xs")
		s.Require().NoError(err)
		s.True(last.IsZero())
		return nil
	}))
}
