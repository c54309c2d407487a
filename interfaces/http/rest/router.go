// Package rest serves the JSON API and the confirmation pages.
package rest

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"todo-backend/infrastructure/di"
	"todo-backend/interfaces/http/rest/handlers"
	"todo-backend/interfaces/http/rest/middleware"
	pkgerrors "todo-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	return &Router{
		container: container,
		logger:    container.Logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	c := rt.container
	errs := pkgerrors.NewErrorHandler(rt.logger, c.Config.IsDevelopment())

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger, c.Metrics))
	router.Use(middleware.Span(c.Tracer))

	if c.Config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   c.Config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Location"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	health := handlers.NewHealthHandler(c.Ready, rt.logger)
	router.Get("/health", health.Health)
	router.Get("/ready", health.Ready)
	if c.Config.EnableMetrics {
		router.Handle("/metrics", c.Metrics.Handler())
	}

	registration := handlers.NewRegistrationHandler(c.Registration, errs)
	router.Post("/api/register", registration.Register)

	todos := handlers.NewTodoHandler(c.Todos, errs, rt.logger)
	collaborations := handlers.NewCollaborationHandler(c.Collaborations, errs, rt.logger)
	dashboard := handlers.NewDashboardHandler(c.Dashboard, errs)
	breadcrumbs := handlers.NewBreadcrumbHandler(c.Sink, errs)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(c.JWTValidator, c.Dashboard, errs, rt.logger))
		r.Use(middleware.Trail(c.Sink, c.Metrics))

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", dashboard.Get)
			r.Get("/breadcrumbs", breadcrumbs.List)

			r.Route("/todos", func(r chi.Router) {
				r.Post("/", todos.Create)
				r.Route("/{todoID}", func(r chi.Router) {
					r.Get("/", todos.Get)
					r.Put("/", todos.Update)
					r.Delete("/", todos.Delete)
					r.Post("/complete", todos.Complete)
					r.Post("/collaborations", collaborations.Share)
					r.Post("/collaborations/{collaboratorID}/confirm", collaborations.Confirm)
				})
			})
		})

		// Link target of the invitation email
		r.Get("/todo/{todoID}/collaborations/{collaboratorID}/confirm", collaborations.ConfirmPage)
	})

	return router
}
