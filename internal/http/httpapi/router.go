package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

type Options struct {
	App             *handlers.App
	Logger          zerolog.Logger
	JWTSecret       string
	AllowedOrigins  []string
	RateLimitPerMin int
	DefaultLocale   string
}

func NewRouter(opts Options) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/api/dreams", func(r chi.Router) {
		// Open endpoints: public gallery, provider webhook, per-dream reads.
		r.Get("/public", app.DreamsPublic)
		r.Post("/suno-callback", app.SunoCallback)
		r.Get("/suno-callback-test", app.SunoCallbackTest)
		r.Get("/{id}", app.DreamGet)
		r.Get("/{id}/status", app.DreamStatus)
		r.Get("/{id}/events", app.DreamEvents)

		// Owner endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))
			r.Post("/", app.DreamsCreate)
			r.Get("/", app.DreamsList)
			r.Delete("/{id}", app.DreamDelete)
		})
	})

	return r
}
