package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/repository"
	"github.com/utafrali/contactbook/internal/storage"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

const msgAvatarUploadFailed = "Failed to upload avatar. Please try again later."

// AvatarInput holds an uploaded avatar image.
type AvatarInput struct {
	ContentType string
	Size        int64
	Data        io.Reader
}

// ProfileService manages the authenticated account's own profile.
type ProfileService struct {
	accounts repository.AccountRepository
	cache    repository.AccountCache
	storage  storage.Storage
	prefix   string
	logger   *slog.Logger
}

// NewProfileService creates a new profile service. Avatars are stored under
// prefix/<email>.
func NewProfileService(
	accounts repository.AccountRepository,
	cache repository.AccountCache,
	store storage.Storage,
	prefix string,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		accounts: accounts,
		cache:    cache,
		storage:  store,
		prefix:   prefix,
		logger:   logger,
	}
}

// Me returns the account by email.
func (s *ProfileService) Me(ctx context.Context, email string) (*domain.Account, error) {
	return s.accounts.GetByEmail(ctx, email)
}

// UpdateAvatar uploads a new avatar for the account, records its URL and
// refreshes the cached account.
func (s *ProfileService) UpdateAvatar(ctx context.Context, email string, input AvatarInput) (*domain.Account, error) {
	key := path.Join(s.prefix, email)

	res, err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: input.ContentType,
		Size:        input.Size,
		Data:        input.Data,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "avatar upload failed",
			slog.String("email", email),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		appErr := apperrors.Internal(err)
		appErr.Message = msgAvatarUploadFailed
		return nil, appErr
	}

	account, err := s.accounts.UpdateAvatar(ctx, email, res.URL)
	if err != nil {
		return nil, fmt.Errorf("update avatar: %w", err)
	}

	if err := s.cache.Set(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "account cache write failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "avatar updated",
		slog.Int64("account_id", account.ID),
		slog.String("url", res.URL),
	)
	return account, nil
}
