package v1

import (
	"net/http"

	"github.com/fitstudio/staff-console/internal/auth"
	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type API struct {
	cfg     *config.Config
	router  *chi.Mux
	store   store.Repository
	coaches *service.Service
	users   *service.UserService
	logger  *zap.Logger
}

func NewAPI(cfg *config.Config, s store.Repository, coaches *service.Service, users *service.UserService, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &API{
		cfg:     cfg,
		router:  chi.NewRouter(),
		store:   s,
		coaches: coaches,
		users:   users,
		logger:  logger,
	}
	api.router.Use(middleware.RequestID)
	api.router.Use(middleware.RealIP)
	api.router.Use(requestMetadata)
	api.router.Use(requestLogger(logger))
	api.router.Use(middleware.Recoverer)
	api.routes()
	return api
}

func (a *API) Routes() *chi.Mux {
	return a.router
}

func (a *API) routes() {
	authH := NewAuthHandler(a.cfg, a.users, a.logger)
	coachH := NewCoachHandler(a.coaches, a.logger)
	workflowH := NewWorkflowHandler(a.coaches, a.logger)
	selfH := NewSelfHandler(a.coaches, a.logger)

	authn := auth.AuthMiddleware(a.cfg, a.users)

	r := a.router
	r.Route("/auth", func(r chi.Router) {
		r.Options("/*", func(w http.ResponseWriter, r *http.Request) {})
		r.Post("/login", authH.Login)
		r.Post("/logout", authH.Logout)
		r.Post("/refresh", authH.Refresh)
		r.Post("/google", authH.GoogleSignIn)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Options("/*", func(w http.ResponseWriter, r *http.Request) {})

		// All admin routes require authentication and admin role
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(auth.RoleMiddleware(models.RoleAdmin))

			// Coach records
			r.Get("/coaches", coachH.ListCoaches)
			r.Post("/coaches", coachH.CreateCoach)
			r.Get("/coach/{id}", coachH.GetCoach)
			r.Put("/coach/{id}", coachH.UpdateCoach)
			r.Get("/coach/{id}/checklist", coachH.GetChecklist)
			r.Get("/coach/{id}/documents", coachH.ListDocuments)
			r.Get("/coach/{id}/audit", coachH.ListAudit)

			// Evidence
			r.Post("/documents/{id}/verification", workflowH.SetVerification)
			r.Post("/contracts/{id}/current", workflowH.SetCurrentContract)

			// Workflow decisions
			r.Post("/coach/approve", workflowH.Approve)
			r.Post("/coach/reject", workflowH.Reject)
			r.Post("/coach/request-corrections", workflowH.RequestCorrections)
			r.Post("/coach/review-changes", workflowH.ReviewChanges)
			r.Post("/coach/notify", workflowH.Notify)
			r.Get("/change-requests", workflowH.ListChangeRequests)
			r.Get("/change-requests/{id}", workflowH.GetChangeRequest)
		})
	})

	r.Route("/coach", func(r chi.Router) {
		r.Options("/*", func(w http.ResponseWriter, r *http.Request) {})
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(auth.RoleMiddleware(models.RoleCoach))
			r.Get("/me", selfH.GetMe)
			r.Put("/me", selfH.UpdateMe)
		})
	})

	r.Route("/health", func(r chi.Router) {
		r.Options("/*", func(w http.ResponseWriter, r *http.Request) {})
		r.Get("/", HealthHandler(a.store))
	})
}
