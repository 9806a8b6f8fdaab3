package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-hq/gearbox/internal/observability"
	"github.com/gearbox-hq/gearbox/internal/shared"
)

func testStack(t *testing.T) []func(http.Handler) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return MiddlewareStack(MiddlewareConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionManager: shared.NewSessionManager(rdb, "gearbox_session", "test-secret", time.Hour, false),
		Metrics:        observability.NewMetrics(),
	})
}

func applyStack(middlewares []func(http.Handler) http.Handler, h http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func TestMiddlewareStackServesRequests(t *testing.T) {
	handler := applyStack(testStack(t), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// Streaming endpoints sit behind the session and metrics wrappers, so both
// must forward Flush to the underlying writer.
func TestMiddlewareStackPreservesFlusher(t *testing.T) {
	var sawFlusher bool
	handler := applyStack(testStack(t), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		sawFlusher = ok
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		f.Flush()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/feed/parts", nil))
	require.True(t, sawFlusher, "feed handler must receive a flushable writer")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rec.Flushed)
}
