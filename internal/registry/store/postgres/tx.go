package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"idregistry/internal/events"
	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	"idregistry/pkg/platform/sentinel"
)

// pgTx is the store.Store view of one open transaction.
type pgTx struct {
	tx *sql.Tx
}

var _ store.Store = (*pgTx)(nil)

func (t *pgTx) NextIdentityID(ctx context.Context) (domain.IdentityID, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`UPDATE identity_counter SET last_id = last_id + 1 RETURNING last_id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("allocate identity id: %w", err)
	}
	return domain.IdentityID(id), nil
}

func (t *pgTx) CreateIdentity(ctx context.Context, owner domain.Principal, identity models.Identity) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO identities (id, payload) VALUES ($1, $2)`,
		int64(identity.ID), []byte(identity.Payload),
	); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO identity_owners (principal, identity_id) VALUES ($1, $2)`,
		string(owner), int64(identity.ID),
	); err != nil {
		return fmt.Errorf("insert identity owner: %w", err)
	}
	return nil
}

func (t *pgTx) FindIdentityIDByOwner(ctx context.Context, owner domain.Principal) (domain.IdentityID, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT identity_id FROM identity_owners WHERE principal = $1`, string(owner),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find identity by owner: %w", err)
	}
	return domain.IdentityID(id), nil
}

func (t *pgTx) FindOwnerByIdentityID(ctx context.Context, id domain.IdentityID) (domain.Principal, error) {
	var owner string
	err := t.tx.QueryRowContext(ctx,
		`SELECT principal FROM identity_owners WHERE identity_id = $1`, int64(id),
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find owner by identity: %w", err)
	}
	return domain.Principal(owner), nil
}

func (t *pgTx) FindPayload(ctx context.Context, id domain.IdentityID) (models.Payload, error) {
	var payload []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT payload FROM identities WHERE id = $1`, int64(id),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payload: %w", err)
	}
	return models.Payload(payload), nil
}

func (t *pgTx) RebindOwner(ctx context.Context, id domain.IdentityID, from, to domain.Principal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE identity_owners SET principal = $1 WHERE principal = $2 AND identity_id = $3`,
		string(to), string(from), int64(id),
	)
	if err != nil {
		return fmt.Errorf("rebind owner: %w", err)
	}
	return expectOne(res, "rebind owner")
}

func (t *pgTx) AddViewer(ctx context.Context, id domain.IdentityID, viewer domain.Principal) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO identity_viewers (identity_id, viewer) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		int64(id), string(viewer),
	); err != nil {
		return fmt.Errorf("add viewer: %w", err)
	}
	return nil
}

func (t *pgTx) IsViewer(ctx context.Context, id domain.IdentityID, p domain.Principal) (bool, error) {
	return t.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM identity_viewers WHERE identity_id = $1 AND viewer = $2)`,
		int64(id), string(p))
}

func (t *pgTx) AddSignatory(ctx context.Context, id domain.IdentityID, signatory domain.Principal) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO identity_signatories (identity_id, signatory) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		int64(id), string(signatory),
	); err != nil {
		return fmt.Errorf("add signatory: %w", err)
	}
	return nil
}

func (t *pgTx) IsSignatory(ctx context.Context, id domain.IdentityID, p domain.Principal) (bool, error) {
	return t.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM identity_signatories WHERE identity_id = $1 AND signatory = $2)`,
		int64(id), string(p))
}

func (t *pgTx) AppendApproval(ctx context.Context, owner domain.Principal, approval models.ApprovalRecord) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO transfer_approvals (owner, signatory, approved_at) VALUES ($1, $2, $3)`,
		string(owner), string(approval.Signatory), approval.ApprovedAt,
	); err != nil {
		return fmt.Errorf("append approval: %w", err)
	}
	return nil
}

func (t *pgTx) ListApprovals(ctx context.Context, owner domain.Principal) ([]models.ApprovalRecord, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT signatory, approved_at FROM transfer_approvals WHERE owner = $1 ORDER BY seq`,
		string(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []models.ApprovalRecord
	for rows.Next() {
		var (
			signatory string
			at        time.Time
		)
		if err := rows.Scan(&signatory, &at); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, models.ApprovalRecord{Signatory: domain.Principal(signatory), ApprovedAt: at.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return out, nil
}

func (t *pgTx) LastApproval(ctx context.Context, owner, signatory domain.Principal) (time.Time, error) {
	var at time.Time
	err := t.tx.QueryRowContext(ctx,
		`SELECT approved_at FROM last_approvals WHERE owner = $1 AND signatory = $2`,
		string(owner), string(signatory),
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last approval: %w", err)
	}
	return at.UTC(), nil
}

func (t *pgTx) SetLastApproval(ctx context.Context, owner, signatory domain.Principal, at time.Time) error {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO last_approvals (owner, signatory, approved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, signatory) DO UPDATE SET
			approved_at = EXCLUDED.approved_at
	`, string(owner), string(signatory), at); err != nil {
		return fmt.Errorf("set last approval: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteLastApprovals(ctx context.Context, owner domain.Principal, signatories []domain.Principal) error {
	if len(signatories) == 0 {
		return nil
	}
	names := make([]string, len(signatories))
	for i, s := range signatories {
		names[i] = string(s)
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM last_approvals WHERE owner = $1 AND signatory = ANY($2::text[])`,
		string(owner), pq.Array(names),
	); err != nil {
		return fmt.Errorf("delete last approvals: %w", err)
	}
	return nil
}

func (t *pgTx) ClearApprovals(ctx context.Context, owner domain.Principal) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM transfer_approvals WHERE owner = $1`, string(owner),
	); err != nil {
		return fmt.Errorf("clear approvals: %w", err)
	}
	return nil
}

// AppendEvents writes the events to the outbox in the caller's transaction.
func (t *pgTx) AppendEvents(ctx context.Context, batch []models.Event) error {
	for _, e := range batch {
		payload, err := events.Encode(e)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO outbox (id, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), e.Key(), string(e.Type), payload, e.OccurredAt); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

func (t *pgTx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return ok, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrInvalidState)
	}
	return nil
}
