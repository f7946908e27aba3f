package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/logger"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	AccountID int64
	Email     string
	Role      string
}

// TokenValidator resolves a bearer token into the calling principal. Returned
// errors are written to the client as-is, so AppErrors keep their detail.
type TokenValidator func(ctx context.Context, token string) (*Principal, error)

// RoleChecker decides whether a role may access a protected route.
type RoleChecker interface {
	Allow(role string) error
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Auth middleware validates bearer tokens and injects the principal into context.
// The account is recorded on the request fields so log lines carry it.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("Not authenticated"), nil)
				return
			}

			principal, err := validate(r.Context(), token)
			if err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			ctx = logger.WithAccount(ctx, principal.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects principals whose role the checker does not allow.
// It must be mounted after Auth.
func RequireRole(checker RoleChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("Not authenticated"), nil)
				return
			}
			if err := checker.Allow(principal.Role); err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal stores a principal in ctx. Used by tests and internal callers
// that authenticate outside the HTTP middleware chain.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
