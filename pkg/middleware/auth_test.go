package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/logger"
)

type roleFunc func(role string) error

func (f roleFunc) Allow(role string) error { return f(role) }

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Detail
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"valid", "Bearer abc.def", "abc.def", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"missing", "", "", false},
		{"wrong scheme", "Basic abc", "", false},
		{"empty token", "Bearer   ", "", false},
		{"no separator", "Bearerabc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestAuth_MissingToken(t *testing.T) {
	called := false
	validate := func(ctx context.Context, token string) (*Principal, error) {
		called = true
		return nil, nil
	}

	rr := httptest.NewRecorder()
	Auth(validate)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Not authenticated", decodeDetail(t, rr))
	assert.False(t, called)
}

func TestAuth_InvalidToken(t *testing.T) {
	validate := func(ctx context.Context, token string) (*Principal, error) {
		return nil, apperrors.Unauthorized("Could not validate credentials")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rr := httptest.NewRecorder()
	Auth(validate)(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Could not validate credentials", decodeDetail(t, rr))
}

func TestAuth_InjectsPrincipal(t *testing.T) {
	validate := func(ctx context.Context, token string) (*Principal, error) {
		assert.Equal(t, "good", token)
		return &Principal{AccountID: 3, Email: "owner@example.com", Role: "user"}, nil
	}

	var got *Principal
	var account string
	handler := Auth(validate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		account = logger.AccountFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.AccountID)
	assert.Equal(t, "owner@example.com", account)
}

func TestRequireRole(t *testing.T) {
	checker := roleFunc(func(role string) error {
		if role == "admin" {
			return nil
		}
		return apperrors.Forbidden("FORBIDDEN")
	})

	tests := []struct {
		name      string
		principal *Principal
		status    int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"denied role", &Principal{Role: "user"}, http.StatusForbidden},
		{"allowed role", &Principal{Role: "admin"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rr := httptest.NewRecorder()
			RequireRole(checker)(okHandler()).ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	assert.Nil(t, PrincipalFromContext(context.Background()))
}
