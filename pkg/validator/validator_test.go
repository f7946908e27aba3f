package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactPayload struct {
	FirstName string `json:"first_name" validate:"required,min=3,max=50"`
	Email     string `json:"email_add" validate:"required,email"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

func validContact() contactPayload {
	return contactPayload{FirstName: "Alice", Email: "alice@example.com", BirthDate: "1990-04-12"}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validContact()))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	s := validContact()
	s.FirstName = ""

	fields := fieldsOf(t, Validate(s))
	assert.Equal(t, "is required", fields["first_name"])
	assert.NotContains(t, fields, "FirstName")
}

func TestValidate_InvalidEmail(t *testing.T) {
	s := validContact()
	s.Email = "not-an-email"

	fields := fieldsOf(t, Validate(s))
	assert.Equal(t, "must be a valid email address", fields["email_add"])
}

func TestValidate_MinMax(t *testing.T) {
	s := validContact()
	s.FirstName = "Al"
	assert.Contains(t, fieldsOf(t, Validate(s))["first_name"], "at least 3")

	s.FirstName = strings.Repeat("a", 51)
	assert.Contains(t, fieldsOf(t, Validate(s))["first_name"], "at most 50")
}

func TestValidate_Datetime(t *testing.T) {
	s := validContact()
	s.BirthDate = "12/04/1990"

	fields := fieldsOf(t, Validate(s))
	assert.Contains(t, fields["birth_date"], "2006-01-02")
}

type resetPayload struct {
	Password        string `json:"password" validate:"required,min=6,max=30"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func TestValidate_EqField(t *testing.T) {
	err := Validate(resetPayload{Password: "secret1", PasswordConfirm: "secret2"})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields["password_confirm"], "must match")
}

type formPayload struct {
	Username string `form:"username" validate:"required,email"`
}

func TestValidate_FormTagName(t *testing.T) {
	fields := fieldsOf(t, Validate(formPayload{}))
	assert.Contains(t, fields, "username")
}

func TestValidate_MultipleErrors(t *testing.T) {
	fields := fieldsOf(t, Validate(contactPayload{}))
	assert.Len(t, fields, 3)
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(contactPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'first_name'")
	assert.Contains(t, err.Error(), "is required")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"first_name":"Alice","email_add":"alice@example.com","birth_date":"1990-04-12"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var s contactPayload
	require.NoError(t, DecodeAndValidate(req, &s))
	assert.Equal(t, "Alice", s.FirstName)
	assert.Equal(t, "1990-04-12", s.BirthDate)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var s contactPayload
	err := DecodeAndValidate(req, &s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	body := `{"first_name":"","email_add":"bad","birth_date":"1990-04-12"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var s contactPayload
	err := DecodeAndValidate(req, &s)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestDecodeAndValidate_RejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)

	var s contactPayload
	err := DecodeAndValidate(req, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body is empty")
}

func TestDecodeAndValidate_RejectsTrailingData(t *testing.T) {
	body := `{"first_name":"Alice","email_add":"alice@example.com","birth_date":"1990-04-12"} {"first_name":"Bob"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var s contactPayload
	err := DecodeAndValidate(req, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected data after JSON object")
}

func TestDecodeAndValidate_AllowsTrailingWhitespace(t *testing.T) {
	body := `{"first_name":"Alice","email_add":"alice@example.com","birth_date":"1990-04-12"}` + "\n\n"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var s contactPayload
	assert.NoError(t, DecodeAndValidate(req, &s))
}

func TestDecodeAndValidate_BodyTooLarge(t *testing.T) {
	body := `{"first_name":"` + strings.Repeat("a", 64) + `"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var s contactPayload
	err := DecodeAndValidate(req, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than 16 bytes")
}

func TestMessages_LengthBoundsByKind(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"min=3"`
		Limit int    `json:"limit" validate:"max=10"`
		Role  string `json:"role" validate:"oneof=admin moderator user"`
	}

	fields := fieldsOf(t, Validate(payload{Name: "ab", Limit: 11, Role: "root"}))
	assert.Equal(t, "must be at least 3 characters", fields["name"])
	assert.Equal(t, "must be at most 10", fields["limit"])
	assert.Equal(t, "must be one of: admin, moderator, user", fields["role"])
}
