package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/contactbook/pkg/database"
	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/httputil"
)

const (
	msgIndex          = "Todo Application"
	msgHealthy        = "Welcome to Contactbook!"
	msgDatabaseError  = "Error connecting to the database"
	msgDatabaseConfig = "Database is not configured correctly"
)

// Index handles GET /
func Index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteMessage(w, http.StatusOK, msgIndex)
}

// Healthchecker handles GET {prefix}/healthchecker by running SELECT 1.
func Healthchecker(db database.DBTX, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var one int
		if err := db.QueryRow(r.Context(), "SELECT 1").Scan(&one); err != nil {
			httputil.WriteError(w, r, &apperrors.AppError{
				Code:    "DATABASE_UNAVAILABLE",
				Message: msgDatabaseError,
				Status:  http.StatusInternalServerError,
				Err:     err,
			}, logger)
			return
		}
		if one != 1 {
			httputil.WriteError(w, r, &apperrors.AppError{
				Code:    "DATABASE_MISCONFIGURED",
				Message: msgDatabaseConfig,
				Status:  http.StatusInternalServerError,
			}, logger)
			return
		}
		httputil.WriteMessage(w, http.StatusOK, msgHealthy)
	}
}
