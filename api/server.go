/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. Logger:        Request logging
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. Timeout:       Per-request deadline, propagated to the store
  5. CORS:          Cross-origin requests for the till frontend
  6. Authenticator: Bearer token to caller (only under /api/v1)

ROUTE GROUPS:
  /api/v1/items/*       Catalog and per-item metrics
  /api/v1/catalog       Browse page for the till
  /api/v1/stock/*       Stock batch removal
  /api/v1/purchases/*   Checkout and receipts
  /api/v1/reports/*     Best sellers
  /healthz              Liveness (no auth)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Caller resolution
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Auth           *Authenticator
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Middleware)
		}

		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/search", h.SearchItems)
			r.Get("/{id}", h.GetItem)
			r.Put("/{id}", h.UpdateItem)
			r.Delete("/{id}", h.DeleteItem)
			r.Get("/{id}/stock", h.ListStock)
			r.Post("/{id}/stock", h.AddStock)
			r.Get("/{id}/sold", h.SoldInWindow)
		})

		r.Get("/catalog", h.BrowseCatalog)

		// Stock routes
		r.Delete("/stock/{id}", h.DeleteStock)

		// Purchase routes
		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.ListPurchases)
			r.Post("/", h.RecordPurchase)
			r.Get("/{reference}", h.GetPurchase)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/most-sales", h.MostSales)
			r.Get("/most-sold", h.MostSold)
		})
	})

	return r
}
