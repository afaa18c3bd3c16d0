package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/httputil"
)

// AdminClaims are the claims expected on an admin console token. Token
// issuance lives outside this service; we only validate.
type AdminClaims struct {
	Subject string `json:"sub_id"`
	jwt.RegisteredClaims
}

// AdminValidator validates bearer tokens for the admin surface.
type AdminValidator struct {
	signingKey []byte
}

func NewAdminValidator(signingKey string) *AdminValidator {
	return &AdminValidator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and validates an HS256 admin token.
func (v *AdminValidator) ValidateToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid admin token")
	}
	return claims, nil
}

// RequireAdmin gates admin-only routes behind a valid bearer token.
func RequireAdmin(validator *AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			if _, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
				logger.WarnContext(r.Context(), "admin token rejected", "path", r.URL.Path)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
