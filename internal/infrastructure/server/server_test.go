package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ereojs/devtrace/internal/infrastructure/config"
	"github.com/ereojs/devtrace/internal/tracing"
)

// One server per test binary: metrics register on the process-wide
// prometheus registry.
func TestServerWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false

	srv, err := New(cfg)
	require.NoError(t, err)
	router := srv.Router()

	get := func(path string) (*httptest.ResponseRecorder, map[string]any) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]any
		if w.Body.Len() > 0 && json.Unmarshal(w.Body.Bytes(), &body) != nil {
			body = nil
		}
		return w, body
	}

	t.Run("root and health", func(t *testing.T) {
		w, body := get("/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "devtrace", body["service"])

		w, body = get("/health")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("trace API round trip", func(t *testing.T) {
		root := srv.Tracer().StartTrace("GET /posts", tracing.LayerRequest, nil)
		root.End()

		w, body := get("/traces")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), body["count"])

		w, body = get("/traces/" + root.TraceID())
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, root.TraceID(), body["id"])

		now := time.Now()
		payload, err := json.Marshal(map[string]any{
			"spans": []tracing.Span{{
				ID:        "spn_client_1",
				ParentID:  root.ID(),
				Name:      "hydrate",
				Layer:     tracing.LayerIslands,
				StartTime: now,
				EndTime:   now.Add(time.Millisecond),
			}},
		})
		require.NoError(t, err)

		w = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/traces/"+root.TraceID()+"/spans", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		trace, ok := srv.Tracer().GetTrace(root.TraceID())
		require.True(t, ok)
		assert.Equal(t, 2, trace.SpanCount())
	})

	t.Run("own endpoints are not traced", func(t *testing.T) {
		before := len(srv.Tracer().Traces())
		get("/traces")
		get("/health")
		assert.Len(t, srv.Tracer().Traces(), before)
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		w, _ := get("/metrics")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "devtrace_traces_started_total")
	})

	require.NoError(t, srv.Close())
}
