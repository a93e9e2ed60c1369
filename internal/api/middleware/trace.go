package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ereojs/devtrace/internal/tracing"
)

// TraceConfig controls which requests the tracing middleware records.
type TraceConfig struct {
	// SkipPaths lists request paths that are never traced. An entry
	// matches its exact path and everything below it, so "/traces"
	// also covers "/traces/trc_123/spans". The service's own
	// read/stream endpoints belong here, otherwise every poll of the
	// trace API mints a trace of its own.
	SkipPaths []string
}

func skipped(path string, skip []string) bool {
	for _, p := range skip {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Trace opens a request-layer root span per incoming request and binds
// the tracer and the active span into both the gin context and the
// request's context.Context, so handlers can extend the tree through
// whichever scope they carry.
func Trace(tracer *tracing.Tracer, cfg TraceConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		name := c.Request.Method + " " + c.FullPath()
		span := tracer.StartTrace(name, tracing.LayerRequest, map[string]any{
			"method":   c.Request.Method,
			"pathname": c.Request.URL.Path,
			"origin":   c.Request.Host,
		})

		tracing.SetTracer(c, tracer)
		tracing.SetActiveSpan(c, span)

		ctx := tracing.WithTracer(c.Request.Context(), tracer)
		ctx = tracing.WithActiveSpan(ctx, span)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttribute("http.status", c.Writer.Status())
		if c.Writer.Status() >= http.StatusInternalServerError || len(c.Errors) > 0 {
			span.SetStatus(tracing.StatusError)
		}
		span.End()
	}
}
