// Package httpapi assembles the public HTTP surface: shared middleware, the
// per-context handlers, health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"reliefops/internal/platform/metrics"
	"reliefops/pkg/platform/httputil"
	authmw "reliefops/pkg/platform/middleware/auth"
	"reliefops/pkg/platform/middleware/request"
	"reliefops/pkg/platform/middleware/requesttime"
)

// Routes is implemented by every context handler.
type Routes interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger    *slog.Logger
	Validator authmw.JWTValidator
	Metrics   *metrics.Metrics
	Handlers  []Routes
	// Operator routes guard themselves and sit outside the bearer-token group.
	Operator []Routes
	Checks   map[string]HealthCheck
}

// NewRouter wires the middleware chain and mounts every handler under /api.
// Reads are public; writes need a bearer token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recoverer(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/health", healthHandler(d.Checks))
	r.Handle("/metrics", metrics.Handler())

	for _, h := range d.Operator {
		h.Register(r)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(authmw.RequireAuthForWrites(d.Validator, d.Logger))
		for _, h := range d.Handlers {
			h.Register(api)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
