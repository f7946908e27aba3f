package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/contactbook/internal/service"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/httputil"
)

// maxAvatarBytes caps avatar uploads.
const maxAvatarBytes = 5 << 20

// AvatarSource serves stored avatar objects. Only the in-memory store
// implements it; S3 avatars are served by the bucket itself.
type AvatarSource interface {
	Open(key string) (io.Reader, string, bool)
}

// ProfileHandler handles HTTP requests for the authenticated account's profile.
type ProfileHandler struct {
	service *service.ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: svc,
		logger:  logger,
	}
}

// Me handles GET /users-profile/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	account, err := h.service.Me(r.Context(), principal.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newAccountResponse(account))
}

// UpdateAvatar handles PATCH /users-profile/avatar with a multipart "file" field.
func (h *ProfileHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Detail: "avatar exceeds the upload limit",
				Code:   "PAYLOAD_TOO_LARGE",
			})
			return
		}
		httputil.WriteValidationError(w, errors.New("file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	account, err := h.service.UpdateAvatar(r.Context(), principal.Email, service.AvatarInput{
		ContentType: contentType,
		Size:        header.Size,
		Data:        file,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newAccountResponse(account))
}

// serveAvatar streams an avatar from an in-process store.
func serveAvatar(src AvatarSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, contentType, ok := src.Open(chi.URLParam(r, "*"))
		if !ok {
			httputil.WriteError(w, r, apperrors.ErrNotFound, nil)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, body)
	}
}
