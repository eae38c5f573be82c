package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routes builds the router. Middleware order: recovery, correlation ID,
// logging, CORS.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(recoveryMiddleware(s.logger))
	r.Use(correlationIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(newCORS(s.config.CORS.Origins).Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)

		r.Route("/dividendos", func(r chi.Router) {
			r.Get("/", s.handleGetDividends)
			r.Get("/status", s.handleJobStatus)
			r.Post("/update", s.handleForceUpdate)
			r.Post("/update/background", s.handleBackgroundUpdate)
		})

		r.Get("/cache/info", s.handleCacheInfo)
		r.Delete("/cache/clear", s.handleCacheClear)

		r.Get("/jobs/ws", s.jobsWS.ServeHTTP)
	})

	return r
}
