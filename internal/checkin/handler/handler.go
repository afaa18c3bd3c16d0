// Package handler exposes the check-in endpoints. All routes are tenant
// scoped: the tenant guard has already resolved the domain into the request
// context before these handlers run.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearshift/internal/checkin/models"
	"clearshift/internal/checkin/service"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
	"clearshift/pkg/requestcontext"
)

// Service is the check-in service surface the handler needs.
type Service interface {
	CreateQuestion(ctx context.Context, domain string, input service.QuestionInput, now time.Time) (*models.Question, error)
	UpdateQuestion(ctx context.Context, domain string, id uuid.UUID, input service.QuestionInput, now time.Time) (*models.Question, error)
	DeleteQuestion(ctx context.Context, domain string, id uuid.UUID) error
	GetQuestion(ctx context.Context, domain string, id uuid.UUID) (*models.Question, error)
	ListQuestions(ctx context.Context, domain string, activeOnly bool) ([]*models.Question, error)
	Submit(ctx context.Context, domain string, req service.SubmitRequest, now time.Time) (*models.Response, error)
	ListResponses(ctx context.Context, domain string, f models.ResponseFilter) ([]*models.Response, error)
	Ack(ctx context.Context, domain string, id uuid.UUID, now time.Time) (*models.Response, error)
}

// Handler handles check-in endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a check-in Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the check-in routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/questions", func(r chi.Router) {
		r.Post("/", h.handleCreateQuestion)
		r.Get("/", h.handleListQuestions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetQuestion)
			r.Put("/", h.handleUpdateQuestion)
			r.Delete("/", h.handleDeleteQuestion)
		})
	})
	r.Route("/checkins", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleListResponses)
		r.Post("/{id}/ack", h.handleAck)
	})
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	var input service.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	q, err := h.service.CreateQuestion(ctx, domain, input, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "create question", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	activeOnly := r.URL.Query().Get("active") == "true"
	questions, err := h.service.ListQuestions(ctx, domain, activeOnly)
	if err != nil {
		h.writeServiceError(ctx, w, "list questions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	q, err := h.service.GetQuestion(ctx, domain, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get question", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var input service.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	q, err := h.service.UpdateQuestion(ctx, domain, id, input, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "update question", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteQuestion(ctx, domain, id); err != nil {
		h.writeServiceError(ctx, w, "delete question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	var req service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	resp, err := h.service.Submit(ctx, domain, req, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "submit check-in", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleListResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	q := r.URL.Query()
	filter := models.ResponseFilter{EmployeeID: strings.TrimSpace(q.Get("employee_id"))}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative number"))
			return
		}
		filter.Limit = parsed
	}
	var ok bool
	if filter.Start, ok = h.queryTime(w, q.Get("start"), "start"); !ok {
		return
	}
	if filter.End, ok = h.queryTime(w, q.Get("end"), "end"); !ok {
		return
	}

	responses, err := h.service.ListResponses(ctx, domain, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list check-ins", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Ack(ctx, domain, id, requestcontext.Now(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "ack check-in", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// queryTime parses an optional time bound, accepting RFC 3339 or a bare
// date.
func (h *Handler) queryTime(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name))
	return time.Time{}, false
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "check-in operation failed", "op", op, "error", err)
	}
	httputil.WriteError(w, err)
}
