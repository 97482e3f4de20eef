/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. hlog:       Structured access log through zerolog
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Request latency histogram per route
  5. CORS:       Cross-origin requests for the front-end
  6. auth:       Bearer token on everything under /api

ROUTE GROUPS:
  /healthz              Liveness (public)
  /metrics              Prometheus (public)
  /api/quote            Live price preview
  /api/members/*        Members, memberships, status, check-ins
  /api/packages/*       Catalog
  /api/products/*       Products, services, inventory counts
  /api/sales/*          Point of sale
  /api/cash/*           Cash register sessions
  /api/checkins         Attendance list
  /api/reports/*        Sales and semaphore reports
  /api/admin/*          Expiry runs
  /api/scenarios/*      Demo scenarios (admin only)

ROLES:
  RECEPCION sells, checks members in and runs the drawer. GERENTE also
  edits the catalog, cancels sales and reads reports. ADMIN passes
  every check and may act on any gym via X-Gimnasio.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Tokens and role guard
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/warp/gym-desk/auth"
)

// RouterConfig carries what the router needs beyond the handler.
type RouterConfig struct {
	Maker          *auth.Maker
	AllowedOrigins []string
	Scheduler      *ExpiryScheduler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(h.Log))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.TenantHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.Metrics.Handler())

	managers := auth.RequireRole(auth.RoleGerente)
	staff := auth.RequireRole(auth.RoleGerente, auth.RoleRecepcion)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Maker))
		r.Use(staff)

		r.Post("/quote", h.Quote)

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Put("/{id}", h.UpdateMember)
			r.Get("/{id}/status", h.GetMemberStatus)
			r.Get("/{id}/memberships", h.GetMemberships)
			r.Post("/{id}/memberships", h.EnrollMember)
			r.Post("/{id}/checkins", h.CheckIn)
		})

		// Catalog routes
		r.Route("/packages", func(r chi.Router) {
			r.Get("/", h.ListPackages)
			r.Get("/{id}", h.GetPackage)
			r.With(managers).Post("/", h.CreatePackage)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(managers).Post("/", h.CreateProduct)
			r.Get("/{id}/counts", h.ListCounts)
			r.With(managers).Post("/{id}/counts", h.CountProduct)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
			r.Get("/{id}", h.GetSale)
			r.With(managers).Delete("/{id}", h.CancelSale)
		})

		// Cash register routes
		r.Route("/cash/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.OpenSession)
			r.Get("/current", h.CurrentSession)
			r.Post("/current/in", h.CashIn)
			r.Post("/current/out", h.CashOut)
			r.Post("/current/close", h.CloseSession)
			r.Get("/{id}", h.GetSession)
		})

		r.Get("/checkins", h.ListCheckIns)

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Use(managers)
			r.Get("/sales", h.SalesReport)
			r.Get("/memberships", h.MembershipsReport)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/status-runs", h.ListStatusRuns)
			if cfg.Scheduler != nil {
				r.Post("/status-runs", h.TriggerExpiry(cfg.Scheduler))
			}
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
