package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ereojs/devtrace/internal/tracing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(tracer *tracing.Tracer) *gin.Engine {
	h := NewHandlers(tracer, nil, nil)
	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/traces", h.ListTraces)
	router.GET("/traces/:id", h.GetTrace)
	router.POST("/traces/:id/spans", h.IngestSpans)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	tracer.StartTrace("sealed", tracing.LayerRequest, nil).End()
	open := tracer.StartTrace("open", tracing.LayerRequest, nil)
	defer open.End()

	w, body := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["retained"])
	assert.Equal(t, float64(1), body["active_traces"])
}

func TestListTraces(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	for i := 0; i < 3; i++ {
		tracer.StartTrace(fmt.Sprintf("req-%d", i), tracing.LayerRequest, nil).End()
	}

	w, body := doJSON(t, router, http.MethodGet, "/traces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["count"])
	assert.Len(t, body["traces"], 3)
}

func TestGetTrace(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	root := tracer.StartTrace("req", tracing.LayerRequest, map[string]any{"method": "GET"})
	root.End()

	w, body := doJSON(t, router, http.MethodGet, "/traces/"+root.TraceID(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, root.TraceID(), body["id"])

	spans, ok := body["spans"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, spans, 1)
}

func TestGetTraceNotFound(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	w, body := doJSON(t, router, http.MethodGet, "/traces/trc_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "trace not found", body["error"])
}

func TestIngestSpans(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	root := tracer.StartTrace("req", tracing.LayerRequest, nil)
	root.End()

	now := time.Now()
	payload := IngestRequest{Spans: []tracing.Span{
		{
			ID:        "spn_client_1",
			ParentID:  root.ID(),
			Name:      "hydrate",
			Layer:     tracing.LayerIslands,
			Status:    tracing.StatusOK,
			StartTime: now,
			EndTime:   now.Add(20 * time.Millisecond),
		},
	}}

	w, body := doJSON(t, router, http.MethodPost, "/traces/"+root.TraceID()+"/spans", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["merged"])
	assert.Equal(t, float64(0), body["dropped"])

	trace, ok := tracer.GetTrace(root.TraceID())
	require.True(t, ok)
	assert.Equal(t, 2, trace.SpanCount())
}

func TestIngestSpansUnknownTrace(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	payload := IngestRequest{Spans: []tracing.Span{{ID: "spn_x", Name: "hydrate"}}}
	w, body := doJSON(t, router, http.MethodPost, "/traces/trc_missing/spans", payload)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "trace not found", body["error"])
	assert.Empty(t, tracer.Traces())
}

func TestIngestSpansRejectsMalformedBody(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{})
	router := newTestRouter(tracer)

	root := tracer.StartTrace("req", tracing.LayerRequest, nil)
	root.End()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/traces/"+root.TraceID()+"/spans",
		bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestSpansReportsDropsAtCap(t *testing.T) {
	tracer := tracing.New(nil, tracing.Config{MaxSpansPerTrace: 2})
	router := newTestRouter(tracer)

	root := tracer.StartTrace("req", tracing.LayerRequest, nil)
	root.End()

	now := time.Now()
	spans := make([]tracing.Span, 3)
	for i := range spans {
		spans[i] = tracing.Span{
			ID:        fmt.Sprintf("spn_client_%d", i),
			ParentID:  root.ID(),
			Name:      "hydrate",
			StartTime: now,
			EndTime:   now.Add(time.Millisecond),
		}
	}

	w, body := doJSON(t, router, http.MethodPost, "/traces/"+root.TraceID()+"/spans", IngestRequest{Spans: spans})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["merged"])
	assert.Equal(t, float64(2), body["dropped"])
}
