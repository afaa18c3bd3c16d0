// Package handler exposes the admin endpoints for the weekly dispatcher:
// an on-demand run trigger and the per-domain receipt history.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clearshift/internal/dispatch/models"
	"clearshift/internal/dispatch/service"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
	"clearshift/pkg/requestcontext"
)

// Service is the dispatch surface the handler needs.
type Service interface {
	RunOnce(ctx context.Context, now time.Time) (*service.RunResult, error)
	History(ctx context.Context, domain string) ([]*models.Receipt, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the dispatch routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/dispatch", func(r chi.Router) {
		r.Post("/run", h.handleRun)
		r.Get("/receipts", h.handleReceipts)
	})
}

// handleRun triggers a dispatch run outside the scheduled window. Receipt
// idempotency makes manual and scheduled runs safe to overlap.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.RunOnce(ctx, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "manual dispatch run failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "domain query parameter is required"))
		return
	}
	receipts, err := h.service.History(ctx, domain)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipts)
}
