package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/sentinel"
)

// GrantViewer authorizes viewer to read the caller's identity. Granting twice is
// a no-op on state but still emits ViewerAuthorized.
func (s *Service) GrantViewer(ctx context.Context, caller, viewer domain.Principal) error {
	ctx, end := s.begin(ctx, "grant_viewer",
		principalAttr("registry.caller", caller),
		principalAttr("registry.viewer", viewer),
	)
	var (
		id     domain.IdentityID
		events []models.Event
	)
	err := requireCaller(caller)
	if err == nil {
		err = requirePrincipal(viewer, "viewer")
	}
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			var err error
			id, err = identityOf(ctx, st, caller, "caller has no identity")
			if err != nil {
				return err
			}
			if err := st.AddViewer(ctx, id, viewer); err != nil {
				return internal(err, "failed to add viewer")
			}
			events = []models.Event{models.ViewerAuthorized(id, viewer, s.clock.Now())}
			if err := st.AppendEvents(ctx, events); err != nil {
				return internal(err, "failed to record viewer event")
			}
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to grant viewer")
	}
	end(err)
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	s.logAudit(ctx, string(models.EventViewerAuthorized),
		"identity_id", id.String(),
		"viewer", viewer.String(),
	)
	return nil
}

// View returns the payload of identity id if caller is its current owner or an
// authorized viewer.
func (s *Service) View(ctx context.Context, caller domain.Principal, id domain.IdentityID) (models.Payload, error) {
	ctx, end := s.begin(ctx, "view",
		principalAttr("registry.caller", caller),
		attribute.String("registry.identity_id", id.String()),
	)
	var payload models.Payload
	err := requireCaller(caller)
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			p, err := st.FindPayload(ctx, id)
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotRegistered, "identity is not registered")
			}
			if err != nil {
				return internal(err, "failed to load identity")
			}

			allowed, err := canView(ctx, st, id, caller)
			if err != nil {
				return err
			}
			if !allowed {
				return dErrors.New(dErrors.CodeUnauthorized, "caller may not view this identity")
			}
			payload = p
			return nil
		})
	}
	if err != nil {
		err = internal(err, "failed to view identity")
	}
	end(err)
	return payload, err
}

// canView is true for the current owner and for explicitly granted viewers.
func canView(ctx context.Context, st store.Store, id domain.IdentityID, caller domain.Principal) (bool, error) {
	owned, err := st.FindIdentityIDByOwner(ctx, caller)
	switch {
	case err == nil && owned == id:
		return true, nil
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return false, internal(err, "failed to look up caller identity")
	}

	ok, err := st.IsViewer(ctx, id, caller)
	if err != nil {
		return false, internal(err, "failed to check viewer set")
	}
	return ok, nil
}
