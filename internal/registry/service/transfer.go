package service

import (
	"context"

	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	platformstrings "idregistry/pkg/platform/strings"
)

// IsApprovedForTransfer reports whether owner currently holds a quorum of
// unexpired approvals. It never modifies state; expired approvals stay in the
// list until the next successful transfer.
func (s *Service) IsApprovedForTransfer(ctx context.Context, owner domain.Principal) (bool, error) {
	ctx, end := s.begin(ctx, "is_approved_for_transfer", principalAttr("registry.owner", owner))
	var approved bool
	err := requirePrincipal(owner, "owner")
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			approvals, err := st.ListApprovals(ctx, owner)
			if err != nil {
				return internal(err, "failed to list approvals")
			}
			approved = s.policy.QuorumReached(approvals, s.clock.Now())
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to evaluate quorum")
	}
	end(err)
	return approved, err
}

// TransferStatus reports how many approvals for owner are still valid and
// whether a transfer would pass the quorum check right now.
func (s *Service) TransferStatus(ctx context.Context, owner domain.Principal) (models.TransferStatus, error) {
	ctx, end := s.begin(ctx, "transfer_status", principalAttr("registry.owner", owner))
	var status models.TransferStatus
	err := requirePrincipal(owner, "owner")
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			id, err := identityOf(ctx, st, owner, "owner has no identity")
			if err != nil {
				return err
			}
			approvals, err := st.ListApprovals(ctx, owner)
			if err != nil {
				return internal(err, "failed to list approvals")
			}
			now := s.clock.Now()
			valid := s.policy.CountValid(approvals, now, 0)
			status = models.TransferStatus{
				Owner:          owner,
				IdentityID:     id,
				ValidApprovals: valid,
				Required:       s.policy.MinApprovals,
				Approved:       valid >= s.policy.MinApprovals,
				EvaluatedAt:    now,
			}
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to load transfer status")
	}
	end(err)
	return status, err
}

// Transfer moves the caller's identity to to once quorum is reached. The
// owner rebinding, approval cleanup and event append commit together.
func (s *Service) Transfer(ctx context.Context, caller, to domain.Principal) error {
	ctx, end := s.begin(ctx, "transfer",
		principalAttr("registry.caller", caller),
		principalAttr("registry.to", to),
	)
	var (
		id     domain.IdentityID
		events []models.Event
		valid  int
	)
	err := requireCaller(caller)
	if err == nil {
		err = requirePrincipal(to, "to")
	}
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			var err error
			id, err = identityOf(ctx, st, caller, "caller has no identity")
			if err != nil {
				return err
			}

			taken, err := ownsIdentity(ctx, st, to)
			if err != nil {
				return err
			}
			if taken {
				return dErrors.New(dErrors.CodeTargetAlreadyRegistered, "destination already owns an identity")
			}

			approvals, err := st.ListApprovals(ctx, caller)
			if err != nil {
				return internal(err, "failed to list approvals")
			}
			now := s.clock.Now()
			if !s.policy.QuorumReached(approvals, now) {
				return dErrors.New(dErrors.CodeInsufficientApprovals, "not enough valid approvals to transfer")
			}
			valid = s.policy.CountValid(approvals, now, 0)

			if err := st.RebindOwner(ctx, id, caller, to); err != nil {
				return internal(err, "failed to rebind owner")
			}
			if err := st.DeleteLastApprovals(ctx, caller, signatoriesOf(approvals)); err != nil {
				return internal(err, "failed to purge last approvals")
			}
			if err := st.ClearApprovals(ctx, caller); err != nil {
				return internal(err, "failed to clear approvals")
			}

			events = []models.Event{models.PersonTransferred(id, caller, to, now)}
			if err := st.AppendEvents(ctx, events); err != nil {
				return internal(err, "failed to record transfer event")
			}
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to transfer identity")
	}
	end(err)
	if err != nil {
		return err
	}

	s.metrics.ObserveApprovalsAtTransfer(valid)
	s.publish(ctx, events)
	s.logAudit(ctx, string(models.EventPersonTransferred),
		"identity_id", id.String(),
		"from", caller.String(),
		"to", to.String(),
		"valid_approvals", valid,
	)
	return nil
}

// signatoriesOf returns the distinct signatories in approvals, in first-seen order.
func signatoriesOf(approvals []models.ApprovalRecord) []domain.Principal {
	signatories := make([]domain.Principal, len(approvals))
	for i, a := range approvals {
		signatories[i] = a.Signatory
	}
	return platformstrings.Dedupe(signatories)
}
