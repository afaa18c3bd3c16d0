// Package handler exposes the company roster endpoints, tenant scoped.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearshift/internal/company/models"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
	"clearshift/pkg/requestcontext"
)

// Service is the company service surface the handler needs.
type Service interface {
	Create(ctx context.Context, domain string, req models.CreateRequest, now time.Time) (*models.User, error)
	Get(ctx context.Context, domain string, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, filter models.Filter) ([]*models.User, error)
	Remove(ctx context.Context, domain string, id uuid.UUID) error
	MarkEmailVerified(ctx context.Context, domain string, id uuid.UUID, now time.Time) (*models.User, error)
}

// Handler handles company user endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a company Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the company user routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleRemove)
			r.Post("/verify-email", h.handleVerifyEmail)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	u, err := h.service.Create(ctx, requestcontext.Domain(ctx), req, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "create user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := models.Filter{
		Domain: requestcontext.Domain(ctx),
		Q:      r.URL.Query().Get("q"),
		Role:   models.Role(r.URL.Query().Get("role")),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown role %q", filter.Role))
		return
	}
	users, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(ctx, requestcontext.Domain(ctx), id)
	if err != nil {
		h.writeServiceError(ctx, w, "get user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(ctx, requestcontext.Domain(ctx), id); err != nil {
		h.writeServiceError(ctx, w, "remove user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	u, err := h.service.MarkEmailVerified(ctx, requestcontext.Domain(ctx), id, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "verify user email", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "company operation failed", "op", op, "error", err)
	}
	httputil.WriteError(w, err)
}
