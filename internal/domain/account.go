package domain

import (
	"time"
)

// Account is a credential holder. Accounts own contacts and authenticate with
// their email address.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Confirmed    bool      `json:"confirmed"`
	RefreshToken *string   `json:"-"`
	Avatar       *string   `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRefreshToken reports whether token is the refresh token currently stored
// for the account.
func (a *Account) HasRefreshToken(token string) bool {
	return a.RefreshToken != nil && *a.RefreshToken == token
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenTypeBearer is the token type reported alongside issued token pairs.
const TokenTypeBearer = "bearer"
