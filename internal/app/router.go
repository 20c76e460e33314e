package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vertice-erp/vertice-erp/internal/access"
	"github.com/vertice-erp/vertice-erp/internal/auth"
	"github.com/vertice-erp/vertice-erp/internal/companies"
	"github.com/vertice-erp/vertice-erp/internal/modules"
	"github.com/vertice-erp/vertice-erp/internal/observability"
	"github.com/vertice-erp/vertice-erp/internal/profiles"
	"github.com/vertice-erp/vertice-erp/internal/shared"
	"github.com/vertice-erp/vertice-erp/internal/users"
	"github.com/vertice-erp/vertice-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	AccessHandler    *access.Handler
	ProfilesHandler  *profiles.Handler
	UsersHandler     *users.Handler
	ModulesHandler   *modules.Handler
	CompaniesHandler *companies.Handler
	JobHandler       *jobs.Handler

	AccessMiddleware access.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Vertice defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	// The access surface answers its own unauthenticated case (baseline
	// routes only), so no guard is mounted here.
	r.Route("/access", func(r chi.Router) {
		params.AccessHandler.MountRoutes(r)
	})

	guard := params.AccessMiddleware

	// Settings surface: profile and user administration of one company.
	r.Route("/profiles", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireModule(access.RouteSettings))
			params.ProfilesHandler.MountReadRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireModuleEdit(access.RouteSettings))
			params.ProfilesHandler.MountWriteRoutes(r)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(guard.RequireModuleEdit(access.RouteSettings))
		params.UsersHandler.MountRoutes(r)
	})

	r.Route("/modules", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireModule(access.RouteSettings))
			params.ModulesHandler.MountReadRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireCrossCompanyAdmin())
			params.ModulesHandler.MountAdminRoutes(r)
		})
	})

	r.Route("/companies", func(r chi.Router) {
		r.Use(guard.RequireCrossCompanyAdmin())
		params.CompaniesHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(guard.RequireCrossCompanyAdmin())
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
