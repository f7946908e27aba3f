package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/utafrali/contactbook/pkg/httputil"
	"github.com/utafrali/contactbook/pkg/logger"
	"github.com/utafrali/contactbook/pkg/ratelimit"
)

// RateLimit returns middleware that limits requests per route and client IP.
// It must be attached to the route itself (chi's With) so the route pattern is
// known. Store errors let the request through.
func RateLimit(store ratelimit.Store, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := matchedRoute(r)
			if path == "" {
				path = r.URL.Path
			}
			ip := ClientIP(r)

			res, err := store.Allow(r.Context(), path+":"+ip)
			if err != nil {
				l.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				httpRateLimitedTotal.WithLabelValues(routeLabel(r)).Inc()
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
					Detail:    "Too Many Requests",
					Code:      "RATE_LIMITED",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
