package http

import (
	"time"

	"github.com/utafrali/contactbook/internal/domain"
)

// birthDateLayout is the wire format of contact birth dates.
const birthDateLayout = "2006-01-02"

// --- Request DTOs ---

// SignupRequest is the JSON request body for creating an account.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=30"`
}

// LoginRequest is the form body of a login. Username carries the email.
type LoginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// RequestEmailRequest is the JSON request body for resending a confirmation.
type RequestEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for requesting a password reset.
// Matching the two passwords is left to the service so the mismatch detail
// reaches the client unchanged.
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=30"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

// ContactRequest is the JSON request body for creating or replacing a contact.
type ContactRequest struct {
	FirstName  string `json:"first_name" validate:"required,min=3,max=50"`
	SecondName string `json:"second_name" validate:"required,min=3,max=50"`
	EmailAdd   string `json:"email_add" validate:"required,email"`
	PhoneNum   string `json:"phone_num" validate:"required,max=25"`
	BirthDate  string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

// searchQuery holds the optional search parameters; each must be at least
// three characters when given.
type searchQuery struct {
	FirstName  string `query:"first_name" validate:"omitempty,min=3"`
	SecondName string `query:"second_name" validate:"omitempty,min=3"`
	EmailAdd   string `query:"email_add" validate:"omitempty,min=3"`
}

// --- Response DTOs ---

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Avatar   *string `json:"avatar"`
	Role     string  `json:"role"`
}

// ContactResponse is the public view of a contact.
type ContactResponse struct {
	ID         int64            `json:"id"`
	FirstName  string           `json:"first_name"`
	SecondName string           `json:"second_name"`
	EmailAdd   string           `json:"email_add"`
	PhoneNum   string           `json:"phone_num"`
	BirthDate  string           `json:"birth_date"`
	Consumer   *AccountResponse `json:"consumer"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func newAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Avatar:   a.Avatar,
		Role:     a.Role,
	}
}

func newContactResponse(c *domain.Contact) ContactResponse {
	resp := ContactResponse{
		ID:         c.ID,
		FirstName:  c.FirstName,
		SecondName: c.SecondName,
		EmailAdd:   c.EmailAdd,
		PhoneNum:   c.PhoneNum,
		BirthDate:  c.BirthDate.Format(birthDateLayout),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.Consumer != nil {
		consumer := newAccountResponse(c.Consumer)
		resp.Consumer = &consumer
	}
	return resp
}

func newContactListResponse(contacts []domain.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for i := range contacts {
		out = append(out, newContactResponse(&contacts[i]))
	}
	return out
}
