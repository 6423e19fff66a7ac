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

// Register creates the caller's identity record and returns its new id.
// A principal may own at most one identity.
func (s *Service) Register(ctx context.Context, caller domain.Principal, payload models.Payload) (domain.IdentityID, error) {
	ctx, end := s.begin(ctx, "register", principalAttr("registry.caller", caller))
	id, events, err := s.register(ctx, caller, payload)
	end(err)
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events)
	s.logAudit(ctx, string(models.EventPersonRegistered),
		"identity_id", id.String(),
		"owner", caller.String(),
	)
	return id, nil
}

func (s *Service) register(ctx context.Context, caller domain.Principal, payload models.Payload) (domain.IdentityID, []models.Event, error) {
	if err := requireCaller(caller); err != nil {
		return 0, nil, err
	}

	var (
		id     domain.IdentityID
		events []models.Event
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		registered, err := ownsIdentity(ctx, st, caller)
		if err != nil {
			return err
		}
		if registered {
			return dErrors.New(dErrors.CodeAlreadyRegistered, "caller already owns an identity")
		}

		id, err = st.NextIdentityID(ctx)
		if err != nil {
			return internal(err, "failed to allocate identity id")
		}
		if err := st.CreateIdentity(ctx, caller, models.Identity{ID: id, Payload: payload.Clone()}); err != nil {
			return internal(err, "failed to store identity")
		}

		events = []models.Event{models.PersonRegistered(id, s.clock.Now())}
		if err := st.AppendEvents(ctx, events); err != nil {
			return internal(err, "failed to record registration event")
		}
		return nil
	})
	if err != nil {
		return 0, nil, internal(err, "failed to register identity")
	}
	return id, events, nil
}

// ResolveOwner returns the principal currently owning id.
func (s *Service) ResolveOwner(ctx context.Context, id domain.IdentityID) (domain.Principal, error) {
	ctx, end := s.begin(ctx, "resolve_owner", attribute.String("registry.identity_id", id.String()))
	var owner domain.Principal
	err := s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		var err error
		owner, err = st.FindOwnerByIdentityID(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotRegistered, "identity is not registered")
		}
		if err != nil {
			return internal(err, "failed to resolve identity owner")
		}
		return nil
	})
	if err != nil {
		err = internal(err, "failed to resolve identity owner")
	}
	end(err)
	return owner, err
}

// ResolveID returns the identity id owned by principal.
func (s *Service) ResolveID(ctx context.Context, principal domain.Principal) (domain.IdentityID, error) {
	ctx, end := s.begin(ctx, "resolve_id", principalAttr("registry.principal", principal))
	var id domain.IdentityID
	err := requirePrincipal(principal, "principal")
	if err == nil {
		err = s.tx.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
			var err error
			id, err = identityOf(ctx, st, principal, "principal is not registered")
			return err
		})
	}
	if err != nil {
		err = internal(err, "failed to resolve identity id")
	}
	end(err)
	return id, err
}

// identityOf looks up the id owned by p, mapping a miss to NotRegistered.
func identityOf(ctx context.Context, st store.Store, p domain.Principal, missing string) (domain.IdentityID, error) {
	id, err := st.FindIdentityIDByOwner(ctx, p)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, dErrors.New(dErrors.CodeNotRegistered, missing)
	}
	if err != nil {
		return 0, internal(err, "failed to look up identity")
	}
	return id, nil
}

func ownsIdentity(ctx context.Context, st store.Store, p domain.Principal) (bool, error) {
	_, err := st.FindIdentityIDByOwner(ctx, p)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, internal(err, "failed to look up identity")
	}
	return true, nil
}
