package http

import (
	"net/http"

	"github.com/atinyakov/boxcatalog/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler of the box catalog.
//
// Routes:
//
//	GET  /healthz                  → health (public)
//	GET  /login, POST /login       → authHandler (public)
//	POST /logout                   → authHandler.Logout
//	GET  /                         → redirect to /boxes/new
//	GET  /boxes/new, POST /boxes/new → catalogHandler create view
//	GET  /boxes                    → catalogHandler.ListBoxes
//	GET  /export                   → catalogHandler.ExportPage
//	GET  /export/box_catalog.csv   → catalogHandler.ExportCSV
//
// Everything except the public routes passes through sessions.Require.
func NewRouter(
	authHandler *AuthHandler,
	catalogHandler *CatalogHandler,
	health http.Handler,
	sessions *middleware.Sessions,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	// Request bodies are HTML form posts.
	r.Use(chiMiddleware.AllowContentType("application/x-www-form-urlencoded", "multipart/form-data"))

	r.Get("/healthz", health.ServeHTTP)
	r.Get("/login", authHandler.LoginPage)
	r.Post("/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(sessions.Require)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/boxes/new", http.StatusSeeOther)
		})
		r.Post("/logout", authHandler.Logout)
		r.Get("/boxes/new", catalogHandler.NewBoxForm)
		r.Post("/boxes/new", catalogHandler.CreateBox)
		r.Get("/boxes", catalogHandler.ListBoxes)
		r.Get("/export", catalogHandler.ExportPage)
		r.Get("/export/"+ExportFilename, catalogHandler.ExportCSV)
	})

	return r
}
