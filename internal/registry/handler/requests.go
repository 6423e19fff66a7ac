package handler

import (
	"encoding/json"
	"strings"
	"time"

	"idregistry/internal/registry/models"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
)

const maxNameLength = 256

// RegisterRequest is the person record submitted at registration. The
// registry stores it opaquely once validated.
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Birthdate int64  `json:"birthdate"`
}

func (r *RegisterRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *RegisterRequest) Validate() error {
	switch {
	case r.FirstName == "":
		return dErrors.New(dErrors.CodeValidation, "first_name is required")
	case r.LastName == "":
		return dErrors.New(dErrors.CodeValidation, "last_name is required")
	case len(r.FirstName) > maxNameLength || len(r.LastName) > maxNameLength:
		return dErrors.New(dErrors.CodeValidation, "names must be at most 256 bytes")
	}
	return nil
}

// Payload encodes the normalized person record.
func (r *RegisterRequest) Payload() (models.Payload, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode person")
	}
	return models.Payload(b), nil
}

type GrantViewerRequest struct {
	Viewer string `json:"viewer"`
}

type AddSignatoryRequest struct {
	Signatory string `json:"signatory"`
}

type ApproveTransferRequest struct {
	Owner string `json:"owner"`
}

type TransferRequest struct {
	To string `json:"to"`
}

// principalField validates a principal supplied in a request body.
func principalField(raw, field string) (domain.Principal, error) {
	p, err := domain.ParsePrincipal(strings.TrimSpace(raw))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, field+" must be a valid principal")
	}
	return p, nil
}

type RegisterResponse struct {
	ID domain.IdentityID `json:"id"`
}

type IdentityResponse struct {
	ID     domain.IdentityID `json:"id"`
	Person json.RawMessage   `json:"person,omitempty"`
}

type OwnerResponse struct {
	ID    domain.IdentityID `json:"id"`
	Owner domain.Principal  `json:"owner"`
}

type TransferStatusResponse struct {
	Owner          domain.Principal  `json:"owner"`
	IdentityID     domain.IdentityID `json:"identity_id"`
	ValidApprovals int               `json:"valid_approvals"`
	Required       int               `json:"required"`
	Approved       bool              `json:"approved"`
	EvaluatedAt    time.Time         `json:"evaluated_at"`
}

func toTransferStatusResponse(s models.TransferStatus) TransferStatusResponse {
	return TransferStatusResponse{
		Owner:          s.Owner,
		IdentityID:     s.IdentityID,
		ValidApprovals: s.ValidApprovals,
		Required:       s.Required,
		Approved:       s.Approved,
		EvaluatedAt:    s.EvaluatedAt,
	}
}

func toIdentityResponse(id domain.IdentityID, p models.Payload) IdentityResponse {
	resp := IdentityResponse{ID: id}
	if json.Valid(p) {
		resp.Person = json.RawMessage(p)
	}
	return resp
}
