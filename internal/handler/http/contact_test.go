package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contactbook/internal/domain"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

const contactBody = `{
	"first_name": "Alice",
	"second_name": "Smith",
	"email_add": "alice@example.com",
	"phone_num": "1234567890",
	"birth_date": "1990-05-17"
}`

func decodeContacts(t *testing.T, rec *httptest.ResponseRecorder) []ContactResponse {
	t.Helper()
	var resp []ContactResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ============================================================================
// Authentication
// ============================================================================

func TestContacts_RequireAccessToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decodeError(t, rec).Detail)
}

func TestContacts_RejectRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	refresh, err := env.tokens.IssueRefreshToken("john@x.com")
	require.NoError(t, err)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users", nil), "Bearer "+refresh))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid scope for token", decodeError(t, rec).Detail)
}

func TestContacts_AccountResolvedFromDatabaseOnCacheMiss(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	token, err := env.tokens.IssueAccessToken(account.Email)
	require.NoError(t, err)

	env.cache.On("Get", mock.Anything, account.Email).Return(nil, nil)
	env.accounts.On("GetByEmail", mock.Anything, account.Email).Return(account, nil)
	env.cache.On("Set", mock.Anything, account).Return(nil)
	env.contacts.On("List", mock.Anything, int64(7), 10, 0).Return([]domain.Contact{}, nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users", nil), "Bearer "+token))

	assert.Equal(t, http.StatusOK, rec.Code)
	env.cache.AssertExpectations(t)
}

// ============================================================================
// Listing
// ============================================================================

func TestListContacts(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	bearer := env.loginAs(t, account)

	env.contacts.On("List", mock.Anything, int64(7), 50, 20).Return([]domain.Contact{*sampleContact(account)}, nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users?limit=50&offset=20", nil), bearer))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeContacts(t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].FirstName)
	assert.Equal(t, "1990-05-17", got[0].BirthDate)
	require.NotNil(t, got[0].Consumer)
	assert.Equal(t, "john@x.com", got[0].Consumer.Email)
}

func TestListContacts_LimitClamped(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	env.contacts.On("List", mock.Anything, int64(7), 500, 0).Return([]domain.Contact{}, nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users?limit=9999", nil), bearer))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeContacts(t, rec))
}

func TestListContacts_MalformedLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users?limit=ten", nil), bearer))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestListAllContacts_RoleGuard(t *testing.T) {
	tests := []struct {
		role   string
		status int
	}{
		{domain.RoleAdmin, http.StatusOK},
		{domain.RoleModerator, http.StatusOK},
		{domain.RoleUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			env := newTestEnv(t, nil)
			account := sampleAccount()
			account.Role = tt.role
			bearer := env.loginAs(t, account)

			if tt.status == http.StatusOK {
				env.contacts.On("ListAll", mock.Anything, 10, 0).Return([]domain.Contact{}, nil)
			}

			rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users/all", nil), bearer))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Detail)
			}
		})
	}
}

func TestUpcomingBirthdays_DefaultWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	env.contacts.On("ListByBirthday", mock.Anything, int64(7), mock.MatchedBy(func(days []string) bool {
		return len(days) >= 8
	})).Return([]domain.Contact{}, nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users/birth_date", nil), bearer))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchContacts(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	bearer := env.loginAs(t, account)

	env.contacts.On("Search", mock.Anything, int64(7), domain.ContactFilter{FirstName: "Alice", EmailAdd: "alice@example.com"}).
		Return([]domain.Contact{*sampleContact(account)}, nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet,
		"/api/users/search_by?first_name=Alice&email_add=alice@example.com", nil), bearer))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeContacts(t, rec), 1)
}

func TestSearchContacts_ShortQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users/search_by?second_name=Sm", nil), bearer))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "second_name")
}

// ============================================================================
// Single contact
// ============================================================================

func TestGetContact(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	bearer := env.loginAs(t, account)

	env.contacts.On("GetByID", mock.Anything, int64(7), int64(3)).Return(sampleContact(account), nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users/3", nil), bearer))

	require.Equal(t, http.StatusOK, rec.Code)
	var got ContactResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(3), got.ID)
}

func TestGetContact_NotOwnedIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	env.contacts.On("GetByID", mock.Anything, int64(7), int64(99)).Return(nil, apperrors.ErrNotFound)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users/99", nil), bearer))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT FOUND", decodeError(t, rec).Detail)
}

func TestGetContact_InvalidID(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	rec := env.do(withAuth(httptest.NewRequest(http.MethodGet, "/api/users/0", nil), bearer))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateContact(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	bearer := env.loginAs(t, account)

	env.contacts.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Contact) bool {
		return c.ConsumerID == 7 && c.FirstName == "Alice" &&
			c.BirthDate.Equal(time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC))
	})).Return(sampleContact(account), nil)

	rec := env.do(withAuth(jsonRequest(http.MethodPost, "/api/users", contactBody), bearer))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateContact_Duplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	env.contacts.On("Create", mock.Anything, mock.Anything).
		Return(nil, apperrors.Conflict("Contact with this phone number already exists"))

	rec := env.do(withAuth(jsonRequest(http.MethodPost, "/api/users", contactBody), bearer))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Contact with this phone number already exists", decodeError(t, rec).Detail)
}

func TestCreateContact_InvalidBirthDate(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	body := `{"first_name":"Alice","second_name":"Smith","email_add":"alice@example.com","phone_num":"1","birth_date":"17/05/1990"}`
	rec := env.do(withAuth(jsonRequest(http.MethodPost, "/api/users", body), bearer))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "birth_date")
}

func TestUpdateContact(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	bearer := env.loginAs(t, account)

	env.contacts.On("Update", mock.Anything, mock.MatchedBy(func(c *domain.Contact) bool {
		return c.ID == 3 && c.ConsumerID == 7
	})).Return(sampleContact(account), nil)

	rec := env.do(withAuth(jsonRequest(http.MethodPut, "/api/users/3", contactBody), bearer))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteContact(t *testing.T) {
	env := newTestEnv(t, nil)
	account := sampleAccount()
	bearer := env.loginAs(t, account)

	env.contacts.On("Delete", mock.Anything, int64(7), int64(3)).Return(sampleContact(account), nil)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodDelete, "/api/users/3", nil), bearer))

	require.Equal(t, http.StatusOK, rec.Code)
	var got ContactResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(3), got.ID)
}

func TestDeleteContact_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.loginAs(t, sampleAccount())

	env.contacts.On("Delete", mock.Anything, int64(7), int64(3)).Return(nil, apperrors.ErrNotFound)

	rec := env.do(withAuth(httptest.NewRequest(http.MethodDelete, "/api/users/3", nil), bearer))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
