package middleware

import (
	"context"
	"net/http"
	"strings"

	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
	"clearshift/pkg/requestcontext"
)

// DomainVerifier reports whether a domain has a verified ownership proof.
type DomainVerifier interface {
	IsVerified(ctx context.Context, domain string) (bool, error)
}

// LicenseChecker reports whether a domain holds at least one active license.
type LicenseChecker interface {
	HasActiveLicense(ctx context.Context, domain string) (bool, error)
}

// TenantGuard derives the tenant domain from the X-Tenant-Domain header (or
// Host), requires a verified domain with an active license, and injects the
// domain into the request context for downstream scoping.
func TenantGuard(verifier DomainVerifier, licenses LicenseChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			domain := tenantDomain(r)
			if domain == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant domain is required"))
				return
			}

			verified, err := verifier.IsVerified(ctx, domain)
			if err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tenant"))
				return
			}
			if !verified {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "domain not verified"))
				return
			}

			active, err := licenses.HasActiveLicense(ctx, domain)
			if err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve license"))
				return
			}
			if !active {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "no active license for this domain"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithDomain(ctx, domain)))
		})
	}
}

// tenantDomain strips scheme, port and path from the header or Host value so
// the guard compares bare domains.
func tenantDomain(r *http.Request) string {
	host := r.Header.Get("X-Tenant-Domain")
	if host == "" {
		host = r.Host
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	return host
}
