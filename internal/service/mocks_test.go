package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/contactbook/internal/auth"
	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/storage"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) SetRefreshToken(ctx context.Context, id int64, token *string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *mockAccountRepository) RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error) {
	args := m.Called(ctx, id, current, next)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) Confirm(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *mockAccountRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	args := m.Called(ctx, email, passwordHash)
	return args.Error(0)
}

func (m *mockAccountRepository) UpdateAvatar(ctx context.Context, email, url string) (*domain.Account, error) {
	args := m.Called(ctx, email, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// --- Mock Account Cache ---

type mockAccountCache struct {
	mock.Mock
}

func (m *mockAccountCache) Get(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountCache) Set(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountCache) Delete(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// --- Mock Contact Repository ---

type mockContactRepository struct {
	mock.Mock
}

func (m *mockContactRepository) List(ctx context.Context, accountID int64, limit, offset int) ([]domain.Contact, error) {
	args := m.Called(ctx, accountID, limit, offset)
	return args.Get(0).([]domain.Contact), args.Error(1)
}

func (m *mockContactRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Contact, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.Contact), args.Error(1)
}

func (m *mockContactRepository) Search(ctx context.Context, accountID int64, filter domain.ContactFilter) ([]domain.Contact, error) {
	args := m.Called(ctx, accountID, filter)
	return args.Get(0).([]domain.Contact), args.Error(1)
}

func (m *mockContactRepository) ListByBirthday(ctx context.Context, accountID int64, days []string) ([]domain.Contact, error) {
	args := m.Called(ctx, accountID, days)
	return args.Get(0).([]domain.Contact), args.Error(1)
}

func (m *mockContactRepository) GetByID(ctx context.Context, accountID, id int64) (*domain.Contact, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}

func (m *mockContactRepository) Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	args := m.Called(ctx, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}

func (m *mockContactRepository) Update(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	args := m.Called(ctx, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}

func (m *mockContactRepository) Delete(ctx context.Context, accountID, id int64) (*domain.Contact, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}

// --- Mock Mail Dispatcher ---

type mockMailDispatcher struct {
	mock.Mock
}

func (m *mockMailDispatcher) Dispatch(ctx context.Context, req domain.MailRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// --- Mock Storage ---

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadResult), args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStorage) GetURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:        "test-secret-key-for-testing-0123456789",
		Algorithm:     "HS256",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		EmailExpiry:   24 * time.Hour,
	})
	require.NoError(t, err)
	return tm
}

func newTestHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

func strPtr(s string) *string {
	return &s
}

// assertAppError checks that err is an AppError with the given status and detail.
func assertAppError(t *testing.T, err error, status int, detail string) {
	t.Helper()
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, detail, appErr.Message)
}

