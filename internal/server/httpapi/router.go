// Package httpapi exposes the sync endpoints and the app-shell asset surface
// over HTTP. Routing is chi; auth is a bearer-token middleware around the
// /api/sync subtree.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public surface:
//
//	POST /api/sync/push       authenticated push
//	GET  /api/sync/pull       authenticated pull
//	GET  /app/version.json    current build id, never cacheable
//	GET  /app/*               static assets (content-hashed under /app/immutable/)
//	GET  /metrics             prometheus scrape endpoint
func NewRouter(h *Handler, secretKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/sync", func(r chi.Router) {
		r.Use(authMiddleware(secretKey))
		r.Post("/push", h.Push)
		r.Get("/pull", h.Pull)
	})

	r.Get("/app/version.json", h.Version)
	r.Get("/app/*", h.Static)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Static serves the app-shell asset tree. Content-hashed files under
// /app/immutable/ are safe to cache forever; everything else must revalidate
// so navigations pick up new deployments.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, "/immutable/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	http.StripPrefix("/app/", http.FileServer(http.Dir(h.staticDir))).ServeHTTP(w, r)
}
