// Package handler exposes the weekly summary endpoint for tenant dashboards.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clearshift/internal/report"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
	"clearshift/pkg/requestcontext"
)

// Service is the report service surface the handler needs.
type Service interface {
	BuildSummary(ctx context.Context, domain string, window report.Window, now time.Time) (*report.Summary, error)
}

// Handler handles report endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a report Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the report routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/summary", h.handleSummary)
}

// handleSummary builds the weekly summary for the tenant domain. Optional
// start and end query parameters (RFC 3339) override the default window of
// the most recent ISO week.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := requestcontext.Domain(ctx)

	var window report.Window
	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "start must be an RFC 3339 timestamp"))
			return
		}
		window.Start = start
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "end must be an RFC 3339 timestamp"))
			return
		}
		window.End = end
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "end must not be before start"))
		return
	}

	summary, err := h.service.BuildSummary(ctx, domain, window, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "summary build failed", "domain", domain, "error", err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
