package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hrapp/hr-backend/app"
	"github.com/hrapp/hr-backend/internal/observability"
	"github.com/hrapp/hr-backend/middleware"
	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/utils"
)

// AccessRules is the route-to-policy table. Order matters: the first match wins.
func AccessRules() *security.RouteTable {
	return security.NewRouteTable(security.Authenticated(),
		security.PermitPreflight,
		security.RouteRule{Method: http.MethodPost, Pattern: "/api/v1/authenticate", Policy: security.Public()},
		security.RouteRule{Pattern: "/api/v1/admin/**", Policy: security.RequireRole(security.RoleAdmin)},
		security.RouteRule{Pattern: "/api/v1/**", Policy: security.Authenticated()},
		security.RouteRule{Pattern: "/management/health/**", Policy: security.Public()},
		security.RouteRule{Pattern: "/management/info", Policy: security.Public()},
		security.RouteRule{Pattern: "/management/prometheus", Policy: security.Public()},
	)
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	timeout := 60 * time.Second
	origins := []string{"http://localhost:*"}
	metrics := true
	if deps.Config != nil {
		metrics = deps.Config.Observability.MetricsEnabled
		if deps.Config.Server.RequestTimeout > 0 {
			timeout = deps.Config.Server.RequestTimeout
		}
		if len(deps.Config.Server.AllowedOrigins) > 0 {
			origins = deps.Config.Server.AllowedOrigins
		}
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	// CORS runs before security so preflight never needs a token
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization", "Link", "X-Total-Count", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Authentication strictly before access decisions
	access := middleware.NewAccessMiddleware(AccessRules(), deps.Meters, deps.Logger)
	r.Use(deps.AuthMiddleware.Authenticate)
	r.Use(access.Enforce)

	r.Route("/management", func(r chi.Router) {
		r.Get("/health", deps.HealthHandler.HandleHealth)
		r.Get("/health/ready", deps.HealthHandler.HandleReadiness)
		r.Get("/info", deps.HealthHandler.HandleInfo)
		if metrics {
			r.Method(http.MethodGet, "/prometheus", observability.PrometheusHandler(deps.Meters, deps.Logger))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/authenticate", deps.AuthHandler.HandleAuthenticate)
		r.Get("/account", deps.AccountHandler.HandleGetAccount)
		r.Get("/authorities", deps.AccountHandler.HandleListAuthorities)

		r.Get("/users", deps.UserHandler.HandleListPublicUsers)

		r.Route("/admin/users", func(r chi.Router) {
			r.Get("/", deps.AccountHandler.HandleListUsers)
			r.Post("/", deps.UserHandler.HandleCreateUser)
			r.Get("/{login}", deps.UserHandler.HandleGetUser)
			r.Put("/{login}", deps.UserHandler.HandleUpdateUser)
			r.Delete("/{login}", deps.UserHandler.HandleDeleteUser)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
