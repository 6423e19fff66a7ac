// Package handler exposes the registry over HTTP. Every route requires a
// bearer token whose subject is the calling principal.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idregistry/internal/platform/middleware"
	"idregistry/internal/registry/models"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/httputil"
	"idregistry/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Service defines the registry operations used by the handler.
type Service interface {
	Register(ctx context.Context, caller domain.Principal, payload models.Payload) (domain.IdentityID, error)
	ResolveOwner(ctx context.Context, id domain.IdentityID) (domain.Principal, error)
	ResolveID(ctx context.Context, principal domain.Principal) (domain.IdentityID, error)
	GrantViewer(ctx context.Context, caller, viewer domain.Principal) error
	View(ctx context.Context, caller domain.Principal, id domain.IdentityID) (models.Payload, error)
	AddSignatory(ctx context.Context, caller, signatory domain.Principal) error
	ApproveTransfer(ctx context.Context, caller, forOwner domain.Principal) error
	TransferStatus(ctx context.Context, owner domain.Principal) (models.TransferStatus, error)
	Transfer(ctx context.Context, caller, to domain.Principal) error
}

// Handler handles registry endpoints.
type Handler struct {
	registry     Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(registry Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		registry:     registry,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePrincipal(h.jwtValidator, h.logger))

		r.Post("/identities", h.handleRegister)
		r.Get("/identities/{id}", h.handleView)
		r.Get("/identities/{id}/owner", h.handleResolveOwner)
		r.Get("/principals/{principal}/identity", h.handleResolveID)

		r.Post("/viewers", h.handleGrantViewer)
		r.Post("/signatories", h.handleAddSignatory)
		r.Post("/approvals", h.handleApproveTransfer)
		r.Get("/approvals/{owner}", h.handleTransferStatus)
		r.Post("/transfers", h.handleTransfer)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.fail(ctx, w, "register", err)
		return
	}
	payload, err := req.Payload()
	if err != nil {
		h.fail(ctx, w, "register", err)
		return
	}

	id, err := h.registry.Register(ctx, requestcontext.Principal(ctx), payload)
	if err != nil {
		h.fail(ctx, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RegisterResponse{ID: id})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.identityParam(w, r)
	if !ok {
		return
	}
	payload, err := h.registry.View(ctx, requestcontext.Principal(ctx), id)
	if err != nil {
		h.fail(ctx, w, "view", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(id, payload))
}

func (h *Handler) handleResolveOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.identityParam(w, r)
	if !ok {
		return
	}
	owner, err := h.registry.ResolveOwner(ctx, id)
	if err != nil {
		h.fail(ctx, w, "resolve_owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{ID: id, Owner: owner})
}

func (h *Handler) handleResolveID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := principalField(chi.URLParam(r, "principal"), "principal")
	if err != nil {
		h.fail(ctx, w, "resolve_id", err)
		return
	}
	id, err := h.registry.ResolveID(ctx, principal)
	if err != nil {
		h.fail(ctx, w, "resolve_id", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{ID: id, Owner: principal})
}

func (h *Handler) handleGrantViewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req GrantViewerRequest
	if !h.decode(w, r, &req) {
		return
	}
	viewer, err := principalField(req.Viewer, "viewer")
	if err == nil {
		err = h.registry.GrantViewer(ctx, requestcontext.Principal(ctx), viewer)
	}
	if err != nil {
		h.fail(ctx, w, "grant_viewer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddSignatory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AddSignatoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	signatory, err := principalField(req.Signatory, "signatory")
	if err == nil {
		err = h.registry.AddSignatory(ctx, requestcontext.Principal(ctx), signatory)
	}
	if err != nil {
		h.fail(ctx, w, "add_signatory", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ApproveTransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	owner, err := principalField(req.Owner, "owner")
	if err == nil {
		err = h.registry.ApproveTransfer(ctx, requestcontext.Principal(ctx), owner)
	}
	if err != nil {
		h.fail(ctx, w, "approve_transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransferStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := principalField(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		h.fail(ctx, w, "transfer_status", err)
		return
	}
	status, err := h.registry.TransferStatus(ctx, owner)
	if err != nil {
		h.fail(ctx, w, "transfer_status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferStatusResponse(status))
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	to, err := principalField(req.To, "to")
	if err == nil {
		err = h.registry.Transfer(ctx, requestcontext.Principal(ctx), to)
	}
	if err != nil {
		h.fail(ctx, w, "transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, "invalid request body",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) identityParam(w http.ResponseWriter, r *http.Request) (domain.IdentityID, bool) {
	id, err := domain.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "registry request failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "registry request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
