// Package handler exposes the domain verification endpoints. All routes are
// admin-scoped; the tenant guard is not applied here because verification is
// how a tenant becomes guardable in the first place.
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

	"clearshift/internal/verification/models"
	"clearshift/internal/verification/service"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
)

// Service is the verification service surface the handler needs.
type Service interface {
	Initiate(ctx context.Context, domain string, ttlSeconds int) (*models.Verification, error)
	Preview(ctx context.Context, domain string, ttlSeconds int) (*models.Instruction, error)
	Check(ctx context.Context, id uuid.UUID) (*service.CheckResult, error)
	Rotate(ctx context.Context, id uuid.UUID) (*models.Verification, error)
	Update(ctx context.Context, id uuid.UUID, patch models.Patch) (*models.Verification, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Verification, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Verification, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler handles verification endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a verification Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/verifications", func(r chi.Router) {
		r.Post("/", h.handleInitiate)
		r.Post("/preview", h.handlePreview)
		r.Get("/", h.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Post("/check", h.handleCheck)
			r.Post("/rotate", h.handleRotate)
		})
	})
}

type initiateRequest struct {
	Domain     string `json:"domain"`
	TTLSeconds int    `json:"ttl,omitempty"`
}

type verificationResponse struct {
	Verification *models.Verification `json:"verification"`
	Instruction  models.Instruction   `json:"instruction"`
}

type updateRequest struct {
	Domain     *string `json:"domain,omitempty"`
	Host       *string `json:"host,omitempty"`
	TTLSeconds *int    `json:"ttl,omitempty"`
}

type updateResponse struct {
	Verification     *models.Verification `json:"verification"`
	Instruction      models.Instruction   `json:"instruction"`
	RequiresReverify bool                 `json:"requires_reverification"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	v, err := h.service.Initiate(ctx, req.Domain, req.TTLSeconds)
	if err != nil {
		h.writeServiceError(ctx, w, "initiate verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, verificationResponse{
		Verification: v,
		Instruction:  v.Instruction(),
	})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	inst, err := h.service.Preview(ctx, req.Domain, req.TTLSeconds)
	if err != nil {
		h.writeServiceError(ctx, w, "preview verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Check(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "check verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Rotate(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "rotate verification token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verificationResponse{
		Verification: v,
		Instruction:  v.Instruction(),
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	v, requiresReverify, err := h.service.Update(ctx, id, models.Patch{
		Domain:     req.Domain,
		Host:       req.Host,
		TTLSeconds: req.TTLSeconds,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "update verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updateResponse{
		Verification:     v,
		Instruction:      v.Instruction(),
		RequiresReverify: requiresReverify,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verificationResponse{
		Verification: v,
		Instruction:  v.Instruction(),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	filter := models.ListFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		Domain: models.NormalizeDomain(q.Get("domain")),
	}
	if status := q.Get("status"); status != "" {
		filter.Status = models.Status(status)
		switch filter.Status {
		case models.StatusPending, models.StatusVerified, models.StatusFailed:
		default:
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown verification status"))
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

	all, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list verifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"verifications": all})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		h.writeServiceError(ctx, w, "delete verification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid verification id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "verification operation failed", "op", op, "error", err)
	}
	httputil.WriteError(w, err)
}
