package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/go-api-verification/internal/config"
	jwtinfra "github.com/go-api-verification/internal/infrastructure/jwt"
	"github.com/go-api-verification/internal/transport/http/handler"
	appmiddleware "github.com/go-api-verification/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router. ctx bounds the
// background work of the rate limiter.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	codeRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.Verification.RateLimitPerSec), cfg.Verification.RateLimitBurst).
		TrustProxies(cfg.TrustedProxies...)

	healthH := handler.NewHealthHandler(deps.Channels)
	verifyH := handler.NewVerificationHandler(deps.Verification, deps.Inbox)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/verification", func(r chi.Router) {
			r.With(codeRL.Limit).Post("/send", verifyH.Send)
			r.With(codeRL.Limit).Post("/verify", verifyH.Verify)
			r.Get("/status", verifyH.Status)

			if deps.JWTProvider != nil {
				r.With(
					appmiddleware.Auth(deps.JWTProvider),
					appmiddleware.RequirePurpose(jwtinfra.PurposeEmailVerification),
				).Get("/session", verifyH.Session)
			}
			if deps.Inbox != nil && !cfg.IsProduction() {
				r.Get("/inbox", verifyH.Inbox)
			}
		})
	})

	return r
}
