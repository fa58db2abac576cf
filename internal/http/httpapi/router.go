// Package httpapi assembles the producer router.
package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storyboard-server/internal/http/handlers"
	"storyboard-server/internal/middleware"
)

// Options configures the router surface.
type Options struct {
	// StaticDir, when set, serves stored artifacts under /static for the
	// filesystem storage backend.
	StaticDir string

	// AllowedOrigins enables CORS for browser clients. Empty disables it.
	AllowedOrigins []string

	// SubmitRatePerMinute caps job submissions per client IP. Zero disables
	// the limiter.
	SubmitRatePerMinute int
}

// NewRouter mounts the job submission surface.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}

	r.Get("/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.SubmitRatePerMinute > 0 {
				r.Use(middleware.RateLimit(opts.SubmitRatePerMinute, time.Minute))
			}
			r.Post("/images", app.SubmitImage)
			r.Post("/images:batch", app.SubmitImageBatch)
			r.Post("/videos", app.SubmitVideo)
			r.Post("/videos:batch", app.SubmitVideoBatch)
			r.Post("/text", app.SubmitText)
		})
		r.Get("/{id}", app.GetJob)
	})

	if opts.StaticDir != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
