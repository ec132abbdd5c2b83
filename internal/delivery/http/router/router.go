package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/scrapestudio/internal/delivery/http/handler"
	"github.com/user/scrapestudio/internal/delivery/http/middleware"
	"go.uber.org/zap"
)

func New(h *handler.Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.HandleCreateJob)
			r.Get("/{jobID}", h.HandleGetJob)
			r.Post("/{jobID}/cancel", h.HandleCancelJob)
		})

		r.Post("/schedules/run", h.HandleRunSchedule)
		r.Get("/projects/{projectID}/schedule/executions", h.HandleScheduleExecutions)

		r.Route("/webhooks/{webhookID}", func(r chi.Router) {
			r.Post("/test", h.HandleTestWebhook)
			r.Get("/deliveries", h.HandleWebhookDeliveries)
		})
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
