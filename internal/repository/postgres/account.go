package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/pkg/database"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

const accountColumns = `id, username, email, password_hash, role, confirmed, refresh_token, avatar, created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account into the database.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (username, email, password_hash, role, confirmed, avatar)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateAccount", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.Role,
		a.Confirmed,
		a.Avatar,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByEmail retrieves an account by its email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.queryAccount(ctx, "GetAccountByEmail", query, email)
}

// SetRefreshToken overwrites the stored refresh token.
func (r *AccountRepository) SetRefreshToken(ctx context.Context, id int64, token *string) (err error) {
	query := `UPDATE accounts SET refresh_token = $1, updated_at = now() WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, "SetRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, token, id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// RotateRefreshToken swaps current for next in a single conditional update, so
// of two concurrent refreshes presenting the same token only one succeeds.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, id int64, current, next string) (_ bool, err error) {
	query := `UPDATE accounts SET refresh_token = $1, updated_at = now() WHERE id = $2 AND refresh_token = $3`

	ctx, end := database.TraceQuery(ctx, "RotateRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, next, id, current)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Confirm marks the account's email as confirmed.
func (r *AccountRepository) Confirm(ctx context.Context, email string) (err error) {
	query := `UPDATE accounts SET confirmed = TRUE, updated_at = now() WHERE email = $1`

	ctx, end := database.TraceQuery(ctx, "ConfirmAccount", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("confirm account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, email, passwordHash string) (err error) {
	query := `UPDATE accounts SET password_hash = $1, updated_at = now() WHERE email = $2`

	ctx, end := database.TraceQuery(ctx, "UpdatePassword", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, passwordHash, email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateAvatar stores a new avatar URL and returns the updated account.
func (r *AccountRepository) UpdateAvatar(ctx context.Context, email, url string) (*domain.Account, error) {
	query := `UPDATE accounts SET avatar = $1, updated_at = now() WHERE email = $2 RETURNING ` + accountColumns
	return r.queryAccount(ctx, "UpdateAvatar", query, url, email)
}

// queryAccount executes a query expected to return a single account row.
func (r *AccountRepository) queryAccount(ctx context.Context, op, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var a domain.Account
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Confirmed,
		&a.RefreshToken,
		&a.Avatar,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &a, nil
}
