package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the Admission Adapter's chi.Router: /health and /dashboard
// are public, every /v1/* route requires the bearer token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/health", s.handleHealth)
	r.Get("/dashboard", s.handleDashboard)
	r.Get("/dashboard/api/stats", s.handleDashboardStats)
	r.Get("/dashboard/api/metrics", s.handleDashboardMetrics)
	r.Get("/dashboard/api/jobs", s.handleDashboardJobs)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(bearerAuth(s.cfg.APIToken))

		v1.Get("/config", s.handleConfig)

		v1.Route("/jobs", func(jobs chi.Router) {
			jobs.Post("/enqueue", s.handleEnqueue)
			jobs.Post("/dequeue", s.handleDequeue)
			jobs.Post("/complete", s.handleComplete)
			jobs.Post("/fail", s.handleFail)
			jobs.Post("/requeue", s.handleRequeue)
			jobs.Post("/purge", s.handlePurge)
			jobs.Get("/get", s.handleGet)
			jobs.Get("/stats", s.handleStats)
			jobs.Get("/list", s.handleList)
			jobs.Get("/metrics", s.handleMetrics)
		})
	})

	return r
}
