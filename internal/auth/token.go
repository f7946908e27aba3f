package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope distinguishes the purpose a token was issued for.
type Scope string

// Token scopes. A token is only accepted where its exact scope is expected.
const (
	ScopeAccess  Scope = "access_token"
	ScopeRefresh Scope = "refresh_token"
	ScopeEmail   Scope = "email_token"
	ScopeReset   Scope = "reset_token"
)

var (
	// ErrInvalidCredentials is returned for tokens that are malformed, signed
	// with another key or algorithm, or expired.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidScope is returned for valid tokens presented for another purpose.
	ErrInvalidScope = errors.New("invalid scope for token")
)

// Claims are the JWT claims carried by every token. Password is only set on
// reset tokens and holds the requested new password.
type Claims struct {
	Scope    Scope  `json:"scope"`
	Password string `json:"password,omitempty"`
	jwt.RegisteredClaims
}

// Email returns the account email the token was issued to.
func (c *Claims) Email() string {
	return c.Subject
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret        string
	Algorithm     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	EmailExpiry   time.Duration
}

// TokenManager issues and verifies scoped, HMAC-signed JWTs.
type TokenManager struct {
	secret  []byte
	method  *jwt.SigningMethodHMAC
	expiry  map[Scope]time.Duration
	issuer  string
	nowFunc func() time.Time
}

// NewTokenManager creates a token manager. Only HS256 and HS512 are accepted.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	var method *jwt.SigningMethodHMAC
	switch cfg.Algorithm {
	case jwt.SigningMethodHS256.Alg():
		method = jwt.SigningMethodHS256
	case jwt.SigningMethodHS512.Alg():
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is empty")
	}

	return &TokenManager{
		secret: []byte(cfg.Secret),
		method: method,
		expiry: map[Scope]time.Duration{
			ScopeAccess:  cfg.AccessExpiry,
			ScopeRefresh: cfg.RefreshExpiry,
			ScopeEmail:   cfg.EmailExpiry,
			ScopeReset:   cfg.EmailExpiry,
		},
		issuer:  "contactbook",
		nowFunc: time.Now,
	}, nil
}

// IssueAccessToken creates a short-lived token authenticating API calls.
func (m *TokenManager) IssueAccessToken(email string) (string, error) {
	return m.issue(email, ScopeAccess, "")
}

// IssueRefreshToken creates a long-lived token exchanged for new token pairs.
func (m *TokenManager) IssueRefreshToken(email string) (string, error) {
	return m.issue(email, ScopeRefresh, "")
}

// IssueEmailToken creates a token confirming ownership of email.
func (m *TokenManager) IssueEmailToken(email string) (string, error) {
	return m.issue(email, ScopeEmail, "")
}

// IssueResetToken creates a token that applies password to the account of
// email once followed.
func (m *TokenManager) IssueResetToken(email, password string) (string, error) {
	return m.issue(email, ScopeReset, password)
}

func (m *TokenManager) issue(email string, scope Scope, password string) (string, error) {
	now := m.nowFunc().UTC()
	claims := &Claims{
		Scope:    scope,
		Password: password,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry[scope])),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", scope, err)
	}
	return signed, nil
}

// Verify checks the signature, then the expiry, then that the token carries
// the expected scope.
func (m *TokenManager) Verify(tokenString string, expected Scope) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}
	if claims.Scope != expected {
		return nil, ErrInvalidScope
	}
	return claims, nil
}
