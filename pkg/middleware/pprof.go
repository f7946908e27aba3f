package middleware

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RegisterPprof mounts chi's profiler (pprof and expvar) under /debug for
// clients inside allowedCIDRs. With no CIDRs configured nothing is mounted.
func RegisterPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	if len(allowedCIDRs) == 0 {
		return
	}
	r.With(IPAllowlist(allowedCIDRs, logger)).Mount("/debug", chimw.Profiler())
}
