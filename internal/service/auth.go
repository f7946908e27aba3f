package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/contactbook/internal/auth"
	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/repository"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

// Client-facing details of authentication failures.
const (
	msgAccountExists       = "Account already exists"
	msgInvalidEmail        = "Invalid email"
	msgEmailNotConfirmed   = "Email not confirmed"
	msgInvalidPassword     = "Invalid password"
	msgInvalidRefreshToken = "Invalid refresh token"
	msgInvalidCredentials  = "Could not validate credentials"
	msgInvalidScope        = "Invalid scope for token"
	msgVerificationError   = "Verification error"
	msgInvalidEmailToken   = "Invalid token for email verification"
	msgInvalidResetToken   = "Invalid token for password verification"
	msgPasswordsMismatch   = "Passwords do not match!"
)

// AuthService implements signup, login, token refresh, email confirmation and
// password reset on top of the account store.
type AuthService struct {
	accounts repository.AccountRepository
	cache    repository.AccountCache
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	mail     MailDispatcher
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	accounts repository.AccountRepository,
	cache repository.AccountCache,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	mail MailDispatcher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		cache:    cache,
		tokens:   tokens,
		hasher:   hasher,
		mail:     mail,
		logger:   logger,
	}
}

// SignupInput holds the parameters for creating an account. Host is the base
// URL the confirmation link points at.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Host     string
}

// PasswordResetInput holds a password reset request.
type PasswordResetInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	Host            string
}

// Signup creates an unconfirmed account and sends it a confirmation email.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.Account, error) {
	_, err := s.accounts.GetByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict(msgAccountExists)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	avatar := GravatarURL(input.Email)
	account := &domain.Account{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Avatar:       &avatar,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.Conflict(msgAccountExists)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.sendConfirmation(ctx, account, input.Host)

	s.logger.InfoContext(ctx, "account signed up",
		slog.Int64("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return account, nil
}

// Login checks the credentials of a confirmed account and issues a new token
// pair, replacing any refresh token issued before.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidEmail)
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if !account.Confirmed {
		return nil, apperrors.Unauthorized(msgEmailNotConfirmed)
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, apperrors.Unauthorized(msgInvalidPassword)
	}

	pair, err := s.issuePair(account.Email)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetRefreshToken(ctx, account.ID, &pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.Int64("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return pair, nil
}

// Refresh exchanges the stored refresh token for a new token pair. A token
// that does not match the stored one is treated as stolen: the stored token is
// cleared, so the whole chain has to log in again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.ScopeRefresh)
	if err != nil {
		return nil, tokenError(err)
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidRefreshToken)
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !account.HasRefreshToken(refreshToken) {
		s.revokeRefreshToken(ctx, account)
		return nil, apperrors.Unauthorized(msgInvalidRefreshToken)
	}

	pair, err := s.issuePair(account.Email)
	if err != nil {
		return nil, err
	}

	rotated, err := s.accounts.RotateRefreshToken(ctx, account.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// Another request spent the same token first.
		s.revokeRefreshToken(ctx, account)
		return nil, apperrors.Unauthorized(msgInvalidRefreshToken)
	}

	s.logger.InfoContext(ctx, "refresh token rotated", slog.Int64("account_id", account.ID))

	return pair, nil
}

// Authenticate resolves an access token to its account. Accounts are served
// from the cache when possible; cache failures fall back to the database.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Account, error) {
	claims, err := s.tokens.Verify(accessToken, auth.ScopeAccess)
	if err != nil {
		return nil, tokenError(err)
	}
	email := claims.Email()

	cached, err := s.cache.Get(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "account cache read failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		return cached, nil
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if err := s.cache.Set(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "account cache write failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	return account, nil
}

// ConfirmEmail marks the token's account as confirmed. Confirming twice is not
// an error; alreadyConfirmed reports whether the account was confirmed before.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	claims, err := s.tokens.Verify(token, auth.ScopeEmail)
	if err != nil {
		return false, apperrors.Unprocessable(msgInvalidEmailToken)
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, apperrors.InvalidInput(msgVerificationError)
		}
		return false, fmt.Errorf("lookup account: %w", err)
	}
	if account.Confirmed {
		return true, nil
	}

	if err := s.accounts.Confirm(ctx, account.Email); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, apperrors.InvalidInput(msgVerificationError)
		}
		return false, fmt.Errorf("confirm account: %w", err)
	}
	s.evict(ctx, account.Email)

	s.logger.InfoContext(ctx, "email confirmed",
		slog.Int64("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return false, nil
}

// RequestEmail resends the confirmation email to an unconfirmed account.
// Unknown addresses are not reported, so callers cannot probe for accounts.
func (s *AuthService) RequestEmail(ctx context.Context, email, host string) (alreadyConfirmed bool, err error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "confirmation requested for unknown email", slog.String("email", email))
			return false, nil
		}
		return false, fmt.Errorf("lookup account: %w", err)
	}
	if account.Confirmed {
		return true, nil
	}

	s.sendConfirmation(ctx, account, host)
	return false, nil
}

// RequestPasswordReset mails a reset link carrying the new password. Unknown
// addresses get the same outcome as known ones.
func (s *AuthService) RequestPasswordReset(ctx context.Context, input PasswordResetInput) error {
	if input.Password != input.PasswordConfirm {
		return apperrors.Unprocessable(msgPasswordsMismatch)
	}

	account, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email", slog.String("email", input.Email))
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	token, err := s.tokens.IssueResetToken(account.Email, input.Password)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.dispatch(ctx, domain.MailRequest{
		Kind:     domain.MailResetPassword,
		Email:    account.Email,
		Username: account.Username,
		Host:     input.Host,
		Token:    token,
	})

	s.logger.InfoContext(ctx, "password reset requested", slog.Int64("account_id", account.ID))
	return nil
}

// ApplyPasswordReset stores the password carried by a reset token. Existing
// sessions are ended by clearing the refresh token.
func (s *AuthService) ApplyPasswordReset(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token, auth.ScopeReset)
	if err != nil || claims.Password == "" {
		return apperrors.Unprocessable(msgInvalidResetToken)
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput(msgVerificationError)
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(claims.Password)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, account.Email, hash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput(msgVerificationError)
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.revokeRefreshToken(ctx, account)
	s.evict(ctx, account.Email)

	s.logger.InfoContext(ctx, "password reset applied", slog.Int64("account_id", account.ID))
	return nil
}

func (s *AuthService) issuePair(email string) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(email)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
	}, nil
}

func (s *AuthService) sendConfirmation(ctx context.Context, account *domain.Account, host string) {
	token, err := s.tokens.IssueEmailToken(account.Email)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue email token",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.dispatch(ctx, domain.MailRequest{
		Kind:     domain.MailConfirmEmail,
		Email:    account.Email,
		Username: account.Username,
		Host:     host,
		Token:    token,
	})
}

// dispatch queues a mail request. Failures are logged and never surface to
// the caller.
func (s *AuthService) dispatch(ctx context.Context, req domain.MailRequest) {
	if err := s.mail.Dispatch(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to dispatch mail",
			slog.String("kind", string(req.Kind)),
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuthService) revokeRefreshToken(ctx context.Context, account *domain.Account) {
	if err := s.accounts.SetRefreshToken(ctx, account.ID, nil); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh token",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.WarnContext(ctx, "refresh token revoked", slog.Int64("account_id", account.ID))
}

func (s *AuthService) evict(ctx context.Context, email string) {
	if err := s.cache.Delete(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "account cache eviction failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}

// tokenError maps token verification failures to 401 responses.
func tokenError(err error) error {
	if errors.Is(err, auth.ErrInvalidScope) {
		return apperrors.Unauthorized(msgInvalidScope)
	}
	return apperrors.Unauthorized(msgInvalidCredentials)
}
