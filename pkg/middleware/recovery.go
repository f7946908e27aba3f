package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/logger"
)

var httpPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Subsystem: metricsSubsystem,
	Name:      "panics_total",
	Help:      "Handler panics recovered.",
})

// Recovery turns handler panics into a 500 response. http.ErrAbortHandler is
// re-raised so net/http can abort the connection quietly. When the handler
// already started the response only the log line is written.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				httpPanicsTotal.Inc()
				l.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(p)),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("response_started", rec.wroteHeader),
				)
				if rec.wroteHeader {
					return
				}

				httputil.WriteJSON(rec, http.StatusInternalServerError, httputil.ErrorResponse{
					Detail:    "an internal error occurred",
					Code:      "INTERNAL_ERROR",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
