package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/pkg/database"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

// contactReturning lists the contact columns returned by writes.
const contactReturning = `id, consumer_id, first_name, second_name, email_add, phone_num, birth_date, created_at, updated_at`

// contactSelect lists the contact columns followed by the owning account's
// public columns. Every read joins accounts as "a" onto contacts as "c".
const contactSelect = `
	c.id, c.consumer_id, c.first_name, c.second_name, c.email_add, c.phone_num, c.birth_date, c.created_at, c.updated_at,
	a.id, a.username, a.email, a.role, a.avatar`

const contactJoin = ` FROM c JOIN accounts a ON a.id = c.consumer_id`

// ContactRepository implements repository.ContactRepository using PostgreSQL.
type ContactRepository struct {
	db database.DBTX
}

// NewContactRepository creates a new PostgreSQL-backed contact repository.
func NewContactRepository(db database.DBTX) *ContactRepository {
	return &ContactRepository{db: db}
}

// List returns a page of the account's contacts ordered by ID.
func (r *ContactRepository) List(ctx context.Context, accountID int64, limit, offset int) ([]domain.Contact, error) {
	query := `SELECT` + contactSelect + `
		FROM contacts c JOIN accounts a ON a.id = c.consumer_id
		WHERE c.consumer_id = $1
		ORDER BY c.id
		LIMIT $2 OFFSET $3`

	return r.queryContacts(ctx, "ListContacts", query, accountID, limit, offset)
}

// ListAll returns a page of contacts across all accounts ordered by ID.
func (r *ContactRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Contact, error) {
	query := `SELECT` + contactSelect + `
		FROM contacts c JOIN accounts a ON a.id = c.consumer_id
		ORDER BY c.id
		LIMIT $1 OFFSET $2`

	return r.queryContacts(ctx, "ListAllContacts", query, limit, offset)
}

// Search returns the account's contacts matching every non-empty filter field.
func (r *ContactRepository) Search(ctx context.Context, accountID int64, filter domain.ContactFilter) ([]domain.Contact, error) {
	var b strings.Builder
	b.WriteString(`SELECT` + contactSelect + `
		FROM contacts c JOIN accounts a ON a.id = c.consumer_id
		WHERE c.consumer_id = $1`)

	args := []any{accountID}
	for _, f := range []struct {
		column string
		value  string
	}{
		{"c.first_name", filter.FirstName},
		{"c.second_name", filter.SecondName},
		{"c.email_add", filter.EmailAdd},
	} {
		if f.value == "" {
			continue
		}
		args = append(args, f.value)
		fmt.Fprintf(&b, " AND %s = $%d", f.column, len(args))
	}
	b.WriteString(" ORDER BY c.id")

	return r.queryContacts(ctx, "SearchContacts", b.String(), args...)
}

// ListByBirthday returns the account's contacts born on any of days, nearest
// day first.
func (r *ContactRepository) ListByBirthday(ctx context.Context, accountID int64, days []string) ([]domain.Contact, error) {
	query := `SELECT` + contactSelect + `
		FROM contacts c JOIN accounts a ON a.id = c.consumer_id
		WHERE c.consumer_id = $1 AND to_char(c.birth_date, 'MM-DD') = ANY($2::text[])
		ORDER BY array_position($2::text[], to_char(c.birth_date, 'MM-DD')), c.id`

	return r.queryContacts(ctx, "ListContactsByBirthday", query, accountID, days)
}

// GetByID retrieves one of the account's contacts.
func (r *ContactRepository) GetByID(ctx context.Context, accountID, id int64) (*domain.Contact, error) {
	query := `SELECT` + contactSelect + `
		FROM contacts c JOIN accounts a ON a.id = c.consumer_id
		WHERE c.id = $1 AND c.consumer_id = $2`

	return r.queryContact(ctx, "GetContact", query, id, accountID)
}

// Create inserts a contact and returns it with its owner.
func (r *ContactRepository) Create(ctx context.Context, ct *domain.Contact) (*domain.Contact, error) {
	query := `
		WITH c AS (
			INSERT INTO contacts (consumer_id, first_name, second_name, email_add, phone_num, birth_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + contactReturning + `
		)
		SELECT` + contactSelect + contactJoin

	return r.queryContact(ctx, "CreateContact", query,
		ct.ConsumerID,
		ct.FirstName,
		ct.SecondName,
		ct.EmailAdd,
		ct.PhoneNum,
		ct.BirthDate,
	)
}

// Update replaces the mutable fields of one of the account's contacts.
func (r *ContactRepository) Update(ctx context.Context, ct *domain.Contact) (*domain.Contact, error) {
	query := `
		WITH c AS (
			UPDATE contacts
			SET first_name = $1, second_name = $2, email_add = $3, phone_num = $4, birth_date = $5, updated_at = now()
			WHERE id = $6 AND consumer_id = $7
			RETURNING ` + contactReturning + `
		)
		SELECT` + contactSelect + contactJoin

	return r.queryContact(ctx, "UpdateContact", query,
		ct.FirstName,
		ct.SecondName,
		ct.EmailAdd,
		ct.PhoneNum,
		ct.BirthDate,
		ct.ID,
		ct.ConsumerID,
	)
}

// Delete removes one of the account's contacts and returns it.
func (r *ContactRepository) Delete(ctx context.Context, accountID, id int64) (*domain.Contact, error) {
	query := `
		WITH c AS (
			DELETE FROM contacts
			WHERE id = $1 AND consumer_id = $2
			RETURNING ` + contactReturning + `
		)
		SELECT` + contactSelect + contactJoin

	return r.queryContact(ctx, "DeleteContact", query, id, accountID)
}

func (r *ContactRepository) queryContact(ctx context.Context, op, query string, args ...any) (_ *domain.Contact, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	c, err := scanContact(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		if constraint, ok := uniqueViolation(err); ok {
			return nil, duplicateContact(constraint)
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepository) queryContacts(ctx context.Context, op, query string, args ...any) (_ []domain.Contact, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return contacts, nil
}

// scanContact scans a row laid out as contactSelect.
func scanContact(row pgx.Row) (*domain.Contact, error) {
	var (
		c     domain.Contact
		owner domain.Account
	)
	err := row.Scan(
		&c.ID,
		&c.ConsumerID,
		&c.FirstName,
		&c.SecondName,
		&c.EmailAdd,
		&c.PhoneNum,
		&c.BirthDate,
		&c.CreatedAt,
		&c.UpdatedAt,
		&owner.ID,
		&owner.Username,
		&owner.Email,
		&owner.Role,
		&owner.Avatar,
	)
	if err != nil {
		return nil, err
	}
	c.Consumer = &owner
	return &c, nil
}

// duplicateContact maps a contacts unique violation to a 409 naming the field
// when the constraint is known.
func duplicateContact(constraint string) error {
	switch {
	case strings.Contains(constraint, "phone_num"):
		return apperrors.Conflict("Contact with this phone number already exists")
	case strings.Contains(constraint, "email_add"):
		return apperrors.Conflict("Contact with this email already exists")
	default:
		return apperrors.Conflict("Contact with this email or phone number already exists")
	}
}
