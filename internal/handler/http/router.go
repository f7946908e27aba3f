package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/contactbook/internal/auth"
	"github.com/utafrali/contactbook/internal/domain"
	"github.com/utafrali/contactbook/internal/service"
	"github.com/utafrali/contactbook/pkg/database"
	"github.com/utafrali/contactbook/pkg/health"
	"github.com/utafrali/contactbook/pkg/middleware"
	"github.com/utafrali/contactbook/pkg/ratelimit"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName       string
	APIPrefix         string
	CORS              middleware.CORSConfig
	Ban               middleware.BanConfig
	PprofAllowedCIDRs []string

	// TrustedProxies are the CIDRs whose forwarding headers name the client.
	TrustedProxies []string

	// PublicURL is the externally visible base of links sent by mail.
	PublicURL string

	// RateLimiter guards the sensitive routes. Nil disables rate limiting.
	RateLimiter ratelimit.Store

	// Avatars, when set, is served under AvatarPath.
	Avatars    AvatarSource
	AvatarPath string
}

// Services groups the services the router dispatches to.
type Services struct {
	Auth     *service.AuthService
	Contacts *service.ContactService
	Profile  *service.ProfileService
}

// NewRouter creates a chi router with all contactbook routes registered.
func NewRouter(
	cfg RouterConfig,
	svc Services,
	db database.DBTX,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ClientAddress(cfg.TrustedProxies, logger))
	r.Use(middleware.ClientBan(cfg.Ban, logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	r.Get("/", Index)

	if cfg.Avatars != nil && cfg.AvatarPath != "" {
		r.Get(cfg.AvatarPath+"/*", serveAvatar(cfg.Avatars))
	}

	limited := func(r chi.Router) chi.Router { return r }
	if cfg.RateLimiter != nil {
		limited = func(r chi.Router) chi.Router {
			return r.With(middleware.RateLimit(cfg.RateLimiter, logger))
		}
	}

	authHandler := NewAuthHandler(svc.Auth, cfg.PublicURL, logger)
	contactHandler := NewContactHandler(svc.Contacts, logger)
	profileHandler := NewProfileHandler(svc.Profile, logger)
	requireAuth := middleware.Auth(accountValidator(svc.Auth))

	api := func(r chi.Router) {
		r.Get("/healthchecker", Healthchecker(db, logger))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Get("/confirmed_email/{token}", authHandler.ConfirmEmail)
			r.Get("/new-password/{token}", authHandler.NewPassword)
			limited(r).Post("/request_email", authHandler.RequestEmail)
			limited(r).Post("/reset-password", authHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(chimw.NoCache)
				limited(r).Post("/login", authHandler.Login)
				limited(r).Get("/refresh_token", authHandler.RefreshToken)
			})
		})

		r.Route("/users-profile", func(r chi.Router) {
			r.Use(requireAuth)
			limited(r).Get("/me", profileHandler.Me)
			limited(r).Patch("/avatar", profileHandler.UpdateAvatar)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/", contactHandler.ListContacts)
			limited(r).Post("/", contactHandler.CreateContact)

			// Fixed paths must come before /{id}.
			r.With(middleware.RequireRole(auth.NewGuard(domain.RoleAdmin, domain.RoleModerator))).
				Get("/all", contactHandler.ListAllContacts)
			r.Get("/birth_date", contactHandler.UpcomingBirthdays)
			r.Get("/search_by", contactHandler.SearchContacts)

			r.Get("/{id}", contactHandler.GetContact)
			r.Put("/{id}", contactHandler.UpdateContact)
			r.Delete("/{id}", contactHandler.DeleteContact)
		})
	}

	if cfg.APIPrefix == "" || cfg.APIPrefix == "/" {
		r.Group(api)
	} else {
		r.Route(cfg.APIPrefix, api)
	}

	return r
}

// accountValidator resolves access tokens through the auth service.
func accountValidator(svc *service.AuthService) middleware.TokenValidator {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		account, err := svc.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{
			AccountID: account.ID,
			Email:     account.Email,
			Role:      account.Role,
		}, nil
	}
}
