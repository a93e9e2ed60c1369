// Package http provides the REST surface over the trace engine: read
// access to retained traces and the ingest endpoint the browser-side
// agent reports its spans to.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ereojs/devtrace/internal/infrastructure/monitoring"
	"github.com/ereojs/devtrace/internal/tracing"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	tracer  *tracing.Tracer
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHandlers creates the handler set.
func NewHandlers(tracer *tracing.Tracer, logger *zap.Logger, metrics *monitoring.Metrics) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		tracer:  tracer,
		logger:  logger,
		metrics: metrics,
	}
}

// Root returns service information.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "devtrace",
		"status":  "running",
	})
}

// Health returns service health and engine occupancy.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"retained":      h.tracer.RetainedCount(),
		"active_traces": h.tracer.ActiveTraces(),
	})
}

// ListTraces returns all retained traces in insertion order.
func (h *Handlers) ListTraces(c *gin.Context) {
	traces := h.tracer.Traces()
	c.JSON(http.StatusOK, gin.H{
		"traces": traces,
		"count":  len(traces),
	})
}

// GetTrace returns one retained trace by id.
func (h *Handlers) GetTrace(c *gin.Context) {
	traceID := c.Param("id")
	trace, ok := h.tracer.GetTrace(traceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, trace)
}

// IngestRequest is the payload the client agent reports.
type IngestRequest struct {
	Spans []tracing.Span `json:"spans" binding:"required"`
}

// IngestSpans reconciles client-reported spans into a sealed trace.
// The engine treats an unknown trace as a silent no-op; at the HTTP
// boundary that distinction is worth surfacing, so the agent can stop
// retrying a trace that will never absorb its spans.
func (h *Handlers) IngestSpans(c *gin.Context) {
	traceID := c.Param("id")

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	if !h.tracer.Retained(traceID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}

	merged := h.tracer.MergeClientSpans(traceID, req.Spans)
	if h.metrics != nil {
		h.metrics.RecordMergedSpans(merged)
	}

	h.logger.Debug("ingested client spans",
		zap.String("trace_id", traceID),
		zap.Int("reported", len(req.Spans)),
		zap.Int("merged", merged),
	)

	c.JSON(http.StatusOK, gin.H{
		"merged":  merged,
		"dropped": len(req.Spans) - merged,
	})
}
