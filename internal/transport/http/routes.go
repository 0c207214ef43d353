package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nearserve/internal/common/logger"
)

func Routes(h *Handler, sessions SessionAuthenticator, log logger.Logger, obs Observer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log, obs))

	r.Get("/health", h.Health)

	// Public reputation reads.
	r.Route("/workers", func(r chi.Router) {
		r.Get("/search", h.SearchWorkers)
		r.Get("/{workerId}/reputation", h.GetWorkerReputation)
	})

	// Authenticated writes.
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(sessions))

		r.With(RequireCustomer).Post("/reputation/assessment", h.SubmitAssessment)
		r.Post("/jobs/{jobId}/status", h.UpdateJobStatus)
	})

	return r
}
