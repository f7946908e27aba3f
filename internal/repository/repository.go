package repository

import (
	"context"

	"github.com/utafrali/contactbook/internal/domain"
)

// AccountRepository defines the interface for account persistence operations.
type AccountRepository interface {
	// Create inserts a new account and fills in its generated ID and timestamps.
	Create(ctx context.Context, account *domain.Account) error

	// GetByEmail retrieves an account by its email address.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// SetRefreshToken overwrites the stored refresh token. A nil token clears it.
	SetRefreshToken(ctx context.Context, id int64, token *string) error

	// RotateRefreshToken replaces the stored refresh token only if it still
	// equals current. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error)

	// Confirm marks the account's email as confirmed.
	Confirm(ctx context.Context, email string) error

	// UpdatePassword stores a new password hash for the account.
	UpdatePassword(ctx context.Context, email, passwordHash string) error

	// UpdateAvatar stores a new avatar URL and returns the updated account.
	UpdateAvatar(ctx context.Context, email, url string) (*domain.Account, error)
}

// AccountCache caches accounts resolved from access tokens, keyed by email.
type AccountCache interface {
	// Get returns the cached account, or nil without error on a miss.
	Get(ctx context.Context, email string) (*domain.Account, error)

	// Set stores the account for the cache's TTL.
	Set(ctx context.Context, account *domain.Account) error

	// Delete evicts the account.
	Delete(ctx context.Context, email string) error
}

// ContactRepository defines the interface for contact persistence operations.
// Every operation taking an account ID is scoped to contacts that account owns.
type ContactRepository interface {
	// List returns a page of the account's contacts.
	List(ctx context.Context, accountID int64, limit, offset int) ([]domain.Contact, error)

	// ListAll returns a page of contacts across all accounts.
	ListAll(ctx context.Context, limit, offset int) ([]domain.Contact, error)

	// Search returns the account's contacts matching every non-empty filter field.
	Search(ctx context.Context, accountID int64, filter domain.ContactFilter) ([]domain.Contact, error)

	// ListByBirthday returns the account's contacts whose birth date falls on
	// any of the given "MM-DD" days.
	ListByBirthday(ctx context.Context, accountID int64, days []string) ([]domain.Contact, error)

	// GetByID retrieves one of the account's contacts.
	GetByID(ctx context.Context, accountID, id int64) (*domain.Contact, error)

	// Create inserts a contact owned by contact.ConsumerID.
	Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)

	// Update replaces the mutable fields of one of the account's contacts.
	Update(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)

	// Delete removes one of the account's contacts and returns it.
	Delete(ctx context.Context, accountID, id int64) (*domain.Contact, error)
}
