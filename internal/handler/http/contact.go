package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/service"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/middleware"
	"github.com/utafrali/contactbook/pkg/validator"
)

// ContactHandler handles HTTP requests for contact endpoints. Every endpoint
// except ListAll is scoped to the authenticated account.
type ContactHandler struct {
	service *service.ContactService
	logger  *slog.Logger
}

// NewContactHandler creates a new contact HTTP handler.
func NewContactHandler(svc *service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		service: svc,
		logger:  logger,
	}
}

// ListContacts handles GET /users
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	contacts, err := h.service.List(r.Context(), principal.AccountID, limit, offset)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// ListAllContacts handles GET /users/all
func (h *ContactHandler) ListAllContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	contacts, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// UpcomingBirthdays handles GET /users/birth_date?limit=N, where N is the
// window in days.
func (h *ContactHandler) UpcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	contacts, err := h.service.UpcomingBirthdays(r.Context(), principal.AccountID, days)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// SearchContacts handles GET /users/search_by
func (h *ContactHandler) SearchContacts(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	query := searchQuery{
		FirstName:  q.Get("first_name"),
		SecondName: q.Get("second_name"),
		EmailAdd:   q.Get("email_add"),
	}
	if err := validator.Validate(query); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	contacts, err := h.service.Search(r.Context(), principal.AccountID, domain.ContactFilter{
		FirstName:  query.FirstName,
		SecondName: query.SecondName,
		EmailAdd:   query.EmailAdd,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// GetContact handles GET /users/{id}
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	contact, err := h.service.Get(r.Context(), principal.AccountID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactResponse(contact))
}

// CreateContact handles POST /users
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	input, ok := decodeContact(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Create(r.Context(), principal.AccountID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newContactResponse(contact))
}

// UpdateContact handles PUT /users/{id}
func (h *ContactHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	input, ok := decodeContact(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Update(r.Context(), principal.AccountID, id, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactResponse(contact))
}

// DeleteContact handles DELETE /users/{id} and returns the removed contact.
func (h *ContactHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	contact, err := h.service.Delete(r.Context(), principal.AccountID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newContactResponse(contact))
}

// --- Helpers ---

// requirePrincipal returns the caller resolved by the Auth middleware.
func requirePrincipal(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*middleware.Principal, bool) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		httputil.WriteError(w, r, apperrors.Unauthorized(msgNotAuthenticated), logger)
		return nil, false
	}
	return p, true
}

func decodeContact(w http.ResponseWriter, r *http.Request) (service.ContactInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ContactRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return service.ContactInput{}, false
	}

	// Validated by the datetime tag above.
	birthDate, _ := time.Parse(birthDateLayout, req.BirthDate)

	return service.ContactInput{
		FirstName:  req.FirstName,
		SecondName: req.SecondName,
		EmailAdd:   req.EmailAdd,
		PhoneNum:   req.PhoneNum,
		BirthDate:  birthDate,
	}, true
}

// pageParams reads limit and offset. Absent values are zero and left to the
// service's bounds.
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	if limit, ok = queryInt(w, r, "limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = queryInt(w, r, "offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

// queryInt parses an optional integer query parameter, writing a 422 when it
// is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{
			Detail: "invalid " + name + ": " + raw,
			Code:   "INVALID_PARAMETER",
		})
		return 0, false
	}
	return v, true
}
