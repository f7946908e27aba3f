package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/contactbook/internal/auth"
	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/service"
	"github.com/utafrali/contactbook/internal/storage/memory"
	"github.com/utafrali/contactbook/pkg/health"
	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/middleware"
	"github.com/utafrali/contactbook/pkg/pagination"
	"github.com/utafrali/contactbook/pkg/ratelimit"
)

// ============================================================================
// Mocks
// ============================================================================

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

// ============================================================================
// Test environment
// ============================================================================

const (
	testAvatarBase = "http://localhost:8000/avatars"
	testPublicURL  = "https://contacts.example.org"
)

type testEnv struct {
	accounts *mockAccountRepository
	cache    *mockAccountCache
	contacts *mockContactRepository
	mail     *mockMailDispatcher
	db       pgxmock.PgxPoolIface
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	avatars  *memory.Storage
	router   http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestEnv builds the production router over mocked repositories. limiter
// may be nil.
func newTestEnv(t *testing.T, limiter ratelimit.Store) *testEnv {
	t.Helper()

	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:        "test-secret-key-for-testing-0123456789",
		Algorithm:     "HS256",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		EmailExpiry:   24 * time.Hour,
	})
	require.NoError(t, err)

	env := &testEnv{
		accounts: &mockAccountRepository{},
		cache:    &mockAccountCache{},
		contacts: &mockContactRepository{},
		mail:     &mockMailDispatcher{},
		db:       db,
		tokens:   tokens,
		hasher:   auth.NewPasswordHasher(bcrypt.MinCost),
		avatars:  memory.New(testAvatarBase),
	}
	t.Cleanup(func() {
		env.accounts.AssertExpectations(t)
		env.contacts.AssertExpectations(t)
		env.mail.AssertExpectations(t)
	})

	logger := testLogger()
	svc := Services{
		Auth: service.NewAuthService(env.accounts, env.cache, tokens, env.hasher, env.mail, logger),
		Contacts: service.NewContactService(env.contacts,
			pagination.Bounds{Min: 10, Max: 500, Default: 10},
			pagination.Bounds{Min: 7, Max: 100, Default: 7},
			logger,
		),
		Profile: service.NewProfileService(env.accounts, env.cache, env.avatars, "Web16", logger),
	}

	cfg := RouterConfig{
		ServiceName: "contactbook-test",
		APIPrefix:   "/api",
		CORS:        middleware.DefaultCORSConfig(),
		Ban:         middleware.BanConfig{UserAgents: []string{"Python-urllib"}},
		PublicURL:   testPublicURL,
		RateLimiter: limiter,
		Avatars:     env.avatars,
		AvatarPath:  "/avatars",
	}
	env.router = NewRouter(cfg, svc, db, health.NewHandler(), logger)
	return env
}

// loginAs makes the access token of account resolve through the cache and
// returns the Authorization header value.
func (e *testEnv) loginAs(t *testing.T, account *domain.Account) string {
	t.Helper()
	token, err := e.tokens.IssueAccessToken(account.Email)
	require.NoError(t, err)
	e.cache.On("Get", mock.Anything, account.Email).Return(account, nil)
	return "Bearer " + token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withAuth(req *http.Request, header string) *http.Request {
	req.Header.Set("Authorization", header)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Message
}

func strPtr(s string) *string {
	return &s
}

func sampleAccount() *domain.Account {
	return &domain.Account{
		ID:        7,
		Username:  "John",
		Email:     "john@x.com",
		Role:      domain.RoleUser,
		Confirmed: true,
		Avatar:    strPtr("https://www.gravatar.com/avatar/abc"),
	}
}

func sampleContact(owner *domain.Account) *domain.Contact {
	return &domain.Contact{
		ID:         3,
		ConsumerID: owner.ID,
		FirstName:  "Alice",
		SecondName: "Smith",
		EmailAdd:   "alice@example.com",
		PhoneNum:   "1234567890",
		BirthDate:  time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
		Consumer:   owner,
	}
}

