package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Flopsa/digital-doc/common/httputil"
	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 2 * time.Second

// Checker reports whether one dependency is reachable.
type Checker func(ctx context.Context) error

type check struct {
	name string
	fn   Checker
}

type Handler struct {
	checks  []check
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		metrics: m,
	}
}

// AddCheck registers a readiness dependency. Call it before serving.
func (h *Handler) AddCheck(name string, fn Checker) {
	h.checks = append(h.checks, check{name: name, fn: fn})
}

// Dependencies lists the registered check names.
func (h *Handler) Dependencies() []string {
	names := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		names = append(names, c.name)
	}
	return names
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		start := time.Now()
		err := c.fn(ctx)
		cancel()

		h.metrics.Health.RecordDependencyCheck(r.Context(), c.name, time.Since(start), err)

		if err != nil {
			h.logger.WarnContext(r.Context(), "dependency not ready", "dependency", c.name, "error", err)
			resp.Checks[c.name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.name] = "ok"
	}

	httputil.RespondWithJSON(w, code, resp)
}
