// Package router assembles the HTTP API.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/gallery/service/internal/album"
	"github.com/gallery/service/internal/auth"
	"github.com/gallery/service/internal/category"
	appMiddleware "github.com/gallery/service/internal/middleware"
	"github.com/gallery/service/internal/photo"
	"github.com/gallery/service/internal/response"
	"github.com/gallery/service/internal/stats"
)

// Handlers groups the per-resource handlers.
type Handlers struct {
	Category *category.Handler
	Album    *album.Handler
	Photo    *photo.Handler
	Stats    *stats.Handler
	Auth     *auth.Handler
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures cross-cutting behaviour.
type Options struct {
	Verifier            *auth.Verifier
	Logger              *slog.Logger
	DB                  Pinger
	CORSOrigins         []string
	UploadRatePerMinute int
}

// New returns the API handler. Reads are public; every mutation and the
// admin endpoints require a bearer token.
func New(h Handlers, opts Options) http.Handler {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	uploadBurst := opts.UploadRatePerMinute / 3
	if uploadBurst < 1 {
		uploadBurst = 1
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(opts.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", health(opts.DB))

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/v1", func(r chi.Router) {
		r.Use(appMiddleware.OptionalAuth(opts.Verifier))

		r.Get("/categories", h.Category.List)
		r.Get("/categories/{id}", h.Category.Get)
		r.Get("/categories/slug/{slug}", h.Category.GetBySlug)

		r.Get("/albums", h.Album.List)
		r.Get("/albums/{id}", h.Album.Get)
		r.Get("/albums/slug/{slug}", h.Album.GetBySlug)
		r.Get("/albums/category/{categoryId}", h.Album.ListByCategory)

		r.Get("/photos", h.Photo.List)
		r.Get("/photos/slider", h.Photo.Slider)
		r.Get("/photos/album/{albumId}", h.Photo.ListByAlbum)
		r.Get("/photos/{id}", h.Photo.Get)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(opts.Verifier))

			r.Get("/stats", h.Stats.Get)
			r.Get("/auth/session", h.Auth.Session)

			// Multipart; skips the JSON content-type guard.
			r.With(appMiddleware.RateLimit(opts.UploadRatePerMinute, uploadBurst)).
				Post("/photos/upload", h.Photo.Upload)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))

				r.Post("/categories", h.Category.Create)
				r.Patch("/categories/order/update", h.Category.Reorder)
				r.Patch("/categories/{id}", h.Category.Update)
				r.Delete("/categories/{id}", h.Category.Delete)

				r.Post("/albums", h.Album.Create)
				r.Patch("/albums/order/update", h.Album.Reorder)
				r.Patch("/albums/{id}", h.Album.Update)
				r.Patch("/albums/{id}/cover", h.Album.SetCover)
				r.Delete("/albums/{id}", h.Album.Delete)

				r.Post("/photos", h.Photo.Create)
				r.Patch("/photos/order/update", h.Photo.Reorder)
				r.Patch("/photos/{id}", h.Photo.Update)
				r.Delete("/photos/{id}", h.Photo.Delete)
			})
		})
	})

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				response.JSON(w, http.StatusServiceUnavailable, response.Envelope{Error: "database unreachable"})
				return
			}
		}
		response.OK(w, map[string]string{"status": "ok"})
	}
}
