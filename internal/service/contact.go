package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/repository"
	"github.com/utafrali/contactbook/pkg/pagination"
)

// ContactInput holds the mutable fields of a contact.
type ContactInput struct {
	FirstName  string
	SecondName string
	EmailAdd   string
	PhoneNum   string
	BirthDate  time.Time
}

// ContactService implements contact management for a single owning account
// per call, plus an unscoped listing for staff.
type ContactService struct {
	contacts  repository.ContactRepository
	limits    pagination.Bounds
	birthdays pagination.Bounds
	nowFunc   func() time.Time
	logger    *slog.Logger
}

// NewContactService creates a new contact service. limits bounds page sizes
// and birthdays bounds the upcoming-birthday window in days.
func NewContactService(
	contacts repository.ContactRepository,
	limits, birthdays pagination.Bounds,
	logger *slog.Logger,
) *ContactService {
	return &ContactService{
		contacts:  contacts,
		limits:    limits,
		birthdays: birthdays,
		nowFunc:   time.Now,
		logger:    logger,
	}
}

// List returns a page of the account's contacts. The limit is clamped to the
// configured bounds; a non-positive limit selects the default.
func (s *ContactService) List(ctx context.Context, accountID int64, limit, offset int) ([]domain.Contact, error) {
	return s.contacts.List(ctx, accountID, s.limits.Resolve(limit), max(offset, 0))
}

// ListAll returns a page of every account's contacts.
func (s *ContactService) ListAll(ctx context.Context, limit, offset int) ([]domain.Contact, error) {
	return s.contacts.ListAll(ctx, s.limits.Resolve(limit), max(offset, 0))
}

// Search returns the account's contacts matching filter. An empty filter
// matches every contact the account owns.
func (s *ContactService) Search(ctx context.Context, accountID int64, filter domain.ContactFilter) ([]domain.Contact, error) {
	return s.contacts.Search(ctx, accountID, filter)
}

// UpcomingBirthdays returns the account's contacts whose birthday falls
// between today and today plus days, inclusive.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, accountID int64, days int) ([]domain.Contact, error) {
	keys := domain.BirthdayKeys(s.nowFunc().UTC(), s.birthdays.Resolve(days))
	return s.contacts.ListByBirthday(ctx, accountID, keys)
}

// Get returns one of the account's contacts.
func (s *ContactService) Get(ctx context.Context, accountID, id int64) (*domain.Contact, error) {
	return s.contacts.GetByID(ctx, accountID, id)
}

// Create adds a contact owned by the account.
func (s *ContactService) Create(ctx context.Context, accountID int64, input ContactInput) (*domain.Contact, error) {
	contact, err := s.contacts.Create(ctx, &domain.Contact{
		ConsumerID: accountID,
		FirstName:  input.FirstName,
		SecondName: input.SecondName,
		EmailAdd:   input.EmailAdd,
		PhoneNum:   input.PhoneNum,
		BirthDate:  input.BirthDate,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "contact created",
		slog.Int64("account_id", accountID),
		slog.Int64("contact_id", contact.ID),
	)
	return contact, nil
}

// Update replaces the fields of one of the account's contacts.
func (s *ContactService) Update(ctx context.Context, accountID, id int64, input ContactInput) (*domain.Contact, error) {
	contact, err := s.contacts.Update(ctx, &domain.Contact{
		ID:         id,
		ConsumerID: accountID,
		FirstName:  input.FirstName,
		SecondName: input.SecondName,
		EmailAdd:   input.EmailAdd,
		PhoneNum:   input.PhoneNum,
		BirthDate:  input.BirthDate,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "contact updated",
		slog.Int64("account_id", accountID),
		slog.Int64("contact_id", id),
	)
	return contact, nil
}

// Delete removes one of the account's contacts and returns it.
func (s *ContactService) Delete(ctx context.Context, accountID, id int64) (*domain.Contact, error) {
	contact, err := s.contacts.Delete(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "contact deleted",
		slog.Int64("account_id", accountID),
		slog.Int64("contact_id", id),
	)
	return contact, nil
}
