package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORS. Zero-valued methods, headers and max age take
// the DefaultCORSConfig values.
type CORSConfig struct {
	AllowedOrigins   []string // "*" admits any origin
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int // seconds
	AllowCredentials bool
	// Environment "development" admits any origin regardless of AllowedOrigins.
	Environment string
}

// DefaultCORSConfig admits any origin and exposes the correlation id and
// Retry-After, which rate-limited clients need.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID", "Retry-After"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// CORS returns middleware that handles Cross-Origin Resource Sharing headers.
// Unset fields fall back to DefaultCORSConfig. When credentials are allowed a
// wildcard origin is answered by echoing the caller's Origin, since browsers
// reject "*" on credentialed requests.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	defaults := DefaultCORSConfig()
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaults.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaults.AllowedHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaults.MaxAge
	}

	allowAny := cfg.Environment == "development"
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAny = true
		}
		origins[o] = true
	}

	static := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(cfg.AllowedMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(cfg.AllowedHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(cfg.MaxAge),
	}
	if len(cfg.ExposedHeaders) > 0 {
		static["Access-Control-Expose-Headers"] = strings.Join(cfg.ExposedHeaders, ", ")
	}
	if cfg.AllowCredentials {
		static["Access-Control-Allow-Credentials"] = "true"
	}

	allowOrigin := func(origin string) (value string, vary bool) {
		switch {
		case allowAny && cfg.AllowCredentials:
			return origin, origin != ""
		case allowAny:
			return "*", false
		case origin != "" && origins[origin]:
			return origin, true
		}
		return "", false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if value, vary := allowOrigin(r.Header.Get("Origin")); value != "" {
				h.Set("Access-Control-Allow-Origin", value)
				if vary {
					h.Add("Vary", "Origin")
				}
			}
			for k, v := range static {
				h.Set(k, v)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
