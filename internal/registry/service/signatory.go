package service

import (
	"context"

	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
)

// AddSignatory entitles signatory to approve transfers of the caller's
// identity. A principal can never sign for itself.
func (s *Service) AddSignatory(ctx context.Context, caller, signatory domain.Principal) error {
	ctx, end := s.begin(ctx, "add_signatory",
		principalAttr("registry.caller", caller),
		principalAttr("registry.signatory", signatory),
	)
	var id domain.IdentityID
	err := requireCaller(caller)
	if err == nil {
		err = requirePrincipal(signatory, "signatory")
	}
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			var err error
			id, err = identityOf(ctx, st, caller, "caller has no identity")
			if err != nil {
				return err
			}
			if signatory == caller {
				return dErrors.New(dErrors.CodeSelfSignatoryNotAllowed, "caller cannot be its own signatory")
			}
			if err := st.AddSignatory(ctx, id, signatory); err != nil {
				return internal(err, "failed to add signatory")
			}
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to add signatory")
	}
	end(err)
	if err != nil {
		return err
	}

	s.logAudit(ctx, "signatory_added",
		"identity_id", id.String(),
		"signatory", signatory.String(),
	)
	return nil
}
