// Package store defines the transactional state shared by every registry
// component. Implementations live in the memory and postgres subpackages.
package store

//go:generate mockgen -destination=mocks/mocks.go -package=mocks idregistry/internal/registry/store Tx

import (
	"context"
	"time"

	"idregistry/internal/registry/models"
	"idregistry/pkg/domain"
)

// Store is the view of registry state available inside a transaction.
// Lookups that miss return sentinel.ErrNotFound.
type Store interface {
	// Identity Directory
	NextIdentityID(ctx context.Context) (domain.IdentityID, error)
	CreateIdentity(ctx context.Context, owner domain.Principal, identity models.Identity) error
	FindIdentityIDByOwner(ctx context.Context, owner domain.Principal) (domain.IdentityID, error)
	FindOwnerByIdentityID(ctx context.Context, id domain.IdentityID) (domain.Principal, error)
	FindPayload(ctx context.Context, id domain.IdentityID) (models.Payload, error)
	RebindOwner(ctx context.Context, id domain.IdentityID, from, to domain.Principal) error

	// Access Control Ledger
	AddViewer(ctx context.Context, id domain.IdentityID, viewer domain.Principal) error
	IsViewer(ctx context.Context, id domain.IdentityID, p domain.Principal) (bool, error)

	// Signatory Registry
	AddSignatory(ctx context.Context, id domain.IdentityID, signatory domain.Principal) error
	IsSignatory(ctx context.Context, id domain.IdentityID, p domain.Principal) (bool, error)

	// Approval Tracker
	AppendApproval(ctx context.Context, owner domain.Principal, approval models.ApprovalRecord) error
	ListApprovals(ctx context.Context, owner domain.Principal) ([]models.ApprovalRecord, error)
	// LastApproval returns the zero time when the pair has never approved.
	LastApproval(ctx context.Context, owner, signatory domain.Principal) (time.Time, error)
	SetLastApproval(ctx context.Context, owner, signatory domain.Principal, at time.Time) error
	DeleteLastApprovals(ctx context.Context, owner domain.Principal, signatories []domain.Principal) error
	ClearApprovals(ctx context.Context, owner domain.Principal) error

	// Event log, written in the same transaction as the state change.
	AppendEvents(ctx context.Context, events []models.Event) error
}

// Tx provides the transactional boundary. fn runs with exclusive, serialized
// access to state; if it returns an error no write it made is visible.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
