// Package handler exposes the support endpoints. All routes are tenant
// scoped: the tenant guard has already resolved the domain into the request
// context before these handlers run.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearshift/internal/support/models"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
	"clearshift/pkg/requestcontext"
)

// Service is the support service surface the handler needs.
type Service interface {
	Submit(ctx context.Context, domain string, req models.SubmitRequest, now time.Time) (*models.Request, error)
	UpdateStatus(ctx context.Context, domain string, id uuid.UUID, status models.Status, now time.Time) (*models.Request, error)
	Get(ctx context.Context, domain string, id uuid.UUID) (*models.Request, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Request, error)
	PublishContent(ctx context.Context, domain string, c models.Content, now time.Time) (*models.Content, error)
	GetContent(ctx context.Context, domain string) (*models.Content, error)
}

// Handler handles support endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a support Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the support routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/support", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleList)
		r.Get("/content", h.handleGetContent)
		r.Put("/content", h.handlePublishContent)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/status", h.handleUpdateStatus)
		})
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	out, err := h.service.Submit(ctx, domain, req, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "submit support request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := models.Filter{
		Domain:      requestcontext.Domain(ctx),
		Status:      models.Status(r.URL.Query().Get("status")),
		SupportType: models.SupportType(r.URL.Query().Get("type")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", filter.Status))
		return
	}
	if filter.SupportType != "" && !filter.SupportType.Valid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown support type %q", filter.SupportType))
		return
	}
	out, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list support requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	out, err := h.service.Get(ctx, requestcontext.Domain(ctx), id)
	if err != nil {
		h.writeServiceError(ctx, w, "get support request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	out, err := h.service.UpdateStatus(ctx, requestcontext.Domain(ctx), id, body.Status, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "update support status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.service.GetContent(ctx, requestcontext.Domain(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "get support content", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handlePublishContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var content models.Content
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	out, err := h.service.PublishContent(ctx, requestcontext.Domain(ctx), content, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "publish support content", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid support request id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "support operation failed", "op", op, "error", err)
	}
	httputil.WriteError(w, err)
}
