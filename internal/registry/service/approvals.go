package service

import (
	"context"
	"time"

	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
)

// ApproveTransfer records caller's attestation that forOwner may transfer its
// identity. The caller must be a signatory of that identity and may approve the
// same owner at most once per approval TTL.
func (s *Service) ApproveTransfer(ctx context.Context, caller, forOwner domain.Principal) error {
	ctx, end := s.begin(ctx, "approve_transfer",
		principalAttr("registry.caller", caller),
		principalAttr("registry.owner", forOwner),
	)
	var (
		id domain.IdentityID
		at time.Time
	)
	err := requireCaller(caller)
	if err == nil {
		err = requirePrincipal(forOwner, "owner")
	}
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			var err error
			id, err = identityOf(ctx, st, forOwner, "owner has no identity")
			if err != nil {
				return err
			}

			signs, err := st.IsSignatory(ctx, id, caller)
			if err != nil {
				return internal(err, "failed to check signatory set")
			}
			if !signs {
				return dErrors.New(dErrors.CodeUnauthorized, "caller is not a signatory for this identity")
			}

			now := s.clock.Now()
			last, err := st.LastApproval(ctx, forOwner, caller)
			if err != nil {
				return internal(err, "failed to load last approval")
			}
			if !s.policy.CooldownElapsed(last, now) {
				return dErrors.New(dErrors.CodeCooldownActive, "signatory approved this owner within the approval window")
			}

			if err := st.AppendApproval(ctx, forOwner, models.ApprovalRecord{Signatory: caller, ApprovedAt: now}); err != nil {
				return internal(err, "failed to append approval")
			}
			if err := st.SetLastApproval(ctx, forOwner, caller, now); err != nil {
				return internal(err, "failed to record last approval")
			}
			at = now
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to approve transfer")
	}
	end(err)
	if err != nil {
		return err
	}

	s.logAudit(ctx, "transfer_approved",
		"identity_id", id.String(),
		"owner", forOwner.String(),
		"signatory", caller.String(),
		"approved_at", at,
	)
	return nil
}
