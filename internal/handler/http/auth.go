package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/contactbook/internal/service"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/middleware"
	"github.com/utafrali/contactbook/pkg/validator"
)

const maxBodyBytes = 1 << 20

// Outcome messages of the auth endpoints.
const (
	msgEmailConfirmed    = "Email confirmed"
	msgAlreadyConfirmed  = "Your email is already confirmed"
	msgCheckConfirmation = "Check your email for confirmation."
	msgResetLinkSent     = "Check your email, link for password reset was sent."
	msgPasswordUpdated   = "New password successfully updated!"
	msgNotAuthenticated  = "Not authenticated"
)

// AuthHandler handles HTTP requests for authentication endpoints.
type AuthHandler struct {
	service *service.AuthService
	baseURL string
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler. Links in outgoing mail are
// built on publicURL, never on the request's Host.
func NewAuthHandler(svc *service.AuthService, publicURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		baseURL: strings.TrimRight(publicURL, "/") + "/",
		logger:  logger,
	}
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SignupRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	account, err := h.service.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Host:     h.baseURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newAccountResponse(account))
}

// Login handles POST /auth/login with a form-encoded body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	req := LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	pair, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pair)
}

// RefreshToken handles GET /auth/refresh_token. The refresh token is sent as
// the bearer credential.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized(msgNotAuthenticated), h.logger)
		return
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pair)
}

// ConfirmEmail handles GET /auth/confirmed_email/{token}
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	already, err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if already {
		httputil.WriteMessage(w, http.StatusOK, msgAlreadyConfirmed)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, msgEmailConfirmed)
}

// RequestEmail handles POST /auth/request_email
func (h *AuthHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RequestEmailRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	already, err := h.service.RequestEmail(r.Context(), req.Email, h.baseURL)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if already {
		httputil.WriteMessage(w, http.StatusOK, msgAlreadyConfirmed)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, msgCheckConfirmation)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	err := h.service.RequestPasswordReset(r.Context(), service.PasswordResetInput{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Host:            h.baseURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, msgResetLinkSent)
}

// NewPassword handles GET /auth/new-password/{token}
func (h *AuthHandler) NewPassword(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ApplyPasswordReset(r.Context(), chi.URLParam(r, "token")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, msgPasswordUpdated)
}
