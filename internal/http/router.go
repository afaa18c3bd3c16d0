// Package http assembles the API surface. Admin routes (verification,
// licensing, dispatch) sit behind JWT auth; tenant routes (questions,
// check-ins, reports, support, users) sit behind the tenant guard, which
// requires a verified domain with an active license.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clearshift/internal/platform/middleware"
)

// Handlers collects the per-feature route registrars.
type Handlers struct {
	Verification Registrar
	License      Registrar
	Dispatch     Registrar
	Checkin      Registrar
	Report       Registrar
	Support      Registrar
	Company      Registrar
}

// Registrar mounts a feature's routes on a router group.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the cross-cutting pieces the router wires around the handlers.
type Deps struct {
	Logger         *slog.Logger
	AdminValidator *middleware.AdminValidator
	Verifier       middleware.DomainVerifier
	Licenses       middleware.LicenseChecker
}

// NewRouter builds the full HTTP handler.
func NewRouter(h Handlers, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(deps.AdminValidator, deps.Logger))
			h.Verification.Register(r)
			h.License.Register(r)
			h.Dispatch.Register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.TenantGuard(deps.Verifier, deps.Licenses))
			h.Checkin.Register(r)
			h.Report.Register(r)
			h.Support.Register(r)
			h.Company.Register(r)
		})
	})

	return otelhttp.NewHandler(r, "clearshift")
}
