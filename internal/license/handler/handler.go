// Package handler exposes the license registry endpoints for the admin API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearshift/internal/license/models"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
)

// Service is the license service surface the handler needs.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (*models.License, error)
	Rotate(ctx context.Context, id uuid.UUID) (*models.License, error)
	Revoke(ctx context.Context, id uuid.UUID) (*models.License, error)
	Update(ctx context.Context, id uuid.UUID, patch models.Patch) (*models.License, error)
	Get(ctx context.Context, id uuid.UUID) (*models.License, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.License, error)
	SeatUsage(ctx context.Context, domain string) (*models.SeatUsage, error)
}

// Handler handles license endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a license Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the license routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/licenses", func(r chi.Router) {
		r.Post("/", h.handleIssue)
		r.Get("/", h.handleList)
		r.Get("/seats", h.handleSeatUsage)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Post("/rotate", h.handleRotate)
			r.Post("/revoke", h.handleRevoke)
		})
	})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	l, err := h.service.Issue(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "issue license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	filter := models.ListFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		Domain: strings.TrimSpace(q.Get("domain")),
	}
	if status := q.Get("status"); status != "" {
		filter.Status = models.LicenseStatus(status)
		if !models.ValidStatus(filter.Status) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown license status"))
			return
		}
	}
	var ok bool
	if filter.Page, ok = h.queryInt(w, q.Get("page"), "page"); !ok {
		return
	}
	if filter.PerPage, ok = h.queryInt(w, q.Get("per_page"), "per_page"); !ok {
		return
	}

	licenses, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list licenses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"licenses": licenses})
}

func (h *Handler) handleSeatUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domain := r.URL.Query().Get("domain")
	if domain == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "domain query parameter is required"))
		return
	}
	usage, err := h.service.SeatUsage(ctx, domain)
	if err != nil {
		h.writeServiceError(ctx, w, "seat usage", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usage)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	l, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	l, err := h.service.Update(ctx, id, patch)
	if err != nil {
		h.writeServiceError(ctx, w, "update license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	l, err := h.service.Rotate(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "rotate license key", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	l, err := h.service.Revoke(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "revoke license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "%s must be a positive number", name))
		return 0, false
	}
	return parsed, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid license id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "license operation failed", "op", op, "error", err)
	}
	httputil.WriteError(w, err)
}
