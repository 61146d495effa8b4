package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"donationhub/internal/http/handlers"
	"donationhub/internal/middleware"
)

// Options tune the router. Zero values disable the matching feature.
type Options struct {
	Logger          zerolog.Logger
	AdminJWTSecret  string
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	Metrics         http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.SourceCountry(opts.CountryLookup),
		middleware.Logger(opts.Logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/webhooks/{platform}", func(r chi.Router) {
			r.Post("/", app.Webhook)
			r.Get("/", app.WebhookStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(corsHandler(opts.CORSOrigins))
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

			r.Route("/register", func(r chi.Router) {
				r.Post("/", app.Register)
				r.Get("/", app.RegisterStatus)
			})
			r.Route("/roblox", func(r chi.Router) {
				r.Get("/donations", app.Donations)
				r.Get("/top-spenders", app.TopSpenders)
				r.Post("/register-displayname", app.RegisterDisplayName)
				r.Get("/register-displayname", app.DisplayNames)
			})
		})

		if opts.AdminJWTSecret != "" {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminJWT(opts.AdminJWTSecret))

				r.Route("/discord", func(r chi.Router) {
					r.Post("/log", app.DiscordLog)
					r.Get("/test", app.DiscordTest)
					r.Get("/stats", app.DiscordStats)
				})
				r.Get("/debug/donations", app.DebugDonations)
				r.Get("/test/simulate-donation", app.SimulateDonation)
				r.Post("/test/simulate-donation", app.SimulateDonation)
			})
		}
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}
