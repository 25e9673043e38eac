/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap access log, level by status
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the admin frontend
  5. Authenticate:  Principal from gateway headers (/api only)

ROUTE GROUPS:
  /healthz                 Liveness + database ping
  /api/salaries/*          Salary calculation, batch, xlsx export
  /api/cache               Cache invalidation
  /api/waivers             Deduction waivers
  /api/bonuses             Quality bonuses
  /api/payments            Payment records
  /api/deduction-config    Tenant deduction table
  /api/scenarios/*         Demo datasets (only when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/payroll-engine/generic"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins  []string
	DefaultTenant   generic.TenantID
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderPrincipalID, HeaderPrincipalRole, HeaderTenantID},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.DefaultTenant))

		r.Route("/salaries", func(r chi.Router) {
			r.Get("/", h.ListSalaries)
			r.Get("/export", h.ExportSalaries)
			r.Get("/{teacherID}", h.GetSalary)
		})

		r.Delete("/cache", h.ClearCache)
		r.Post("/waivers", h.CreateWaiver)
		r.Post("/bonuses", h.CreateBonus)
		r.Post("/payments", h.RecordPayment)

		r.Route("/deduction-config", func(r chi.Router) {
			r.Get("/", h.GetDeductionConfig)
			r.Put("/", h.PutDeductionConfig)
		})

		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/{name}", h.LoadScenario)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
