package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	compliancehandler "auditrelay/internal/compliance/handler"
	"auditrelay/internal/platform/middleware"
)

// NewRouter wires the public surface. Transport concerns only; behavior
// lives in the feature handlers.
func NewRouter(logger *slog.Logger, compliance *compliancehandler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	compliance.Register(r)
	return r
}
