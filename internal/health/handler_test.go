package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/internal/health"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *health.Handler) http.Handler {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func get(t *testing.T, router http.Handler, path string) (int, health.HealthResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var resp health.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	h := health.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewMock())
	h.AddCheck("postgres", func(context.Context) error { return errors.New("down") })

	code, resp := get(t, newRouter(h), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		search     error
		wantCode   int
		wantStatus string
	}{
		{name: "all up", wantCode: http.StatusOK, wantStatus: "ready"},
		{name: "search down", search: errors.New("no server"), wantCode: http.StatusServiceUnavailable, wantStatus: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewMock())
			h.AddCheck("postgres", func(context.Context) error { return nil })
			h.AddCheck("search", func(context.Context) error { return tt.search })

			assert.Equal(t, []string{"postgres", "search"}, h.Dependencies())

			code, resp := get(t, newRouter(h), "/ready")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "ok", resp.Checks["postgres"])
			if tt.search != nil {
				assert.Equal(t, tt.search.Error(), resp.Checks["search"])
			}
		})
	}
}

func TestReady_CheckHasDeadline(t *testing.T) {
	h := health.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewMock())
	h.AddCheck("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return nil
	})

	code, _ := get(t, newRouter(h), "/ready")
	assert.Equal(t, http.StatusOK, code)
}
