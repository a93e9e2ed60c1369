package tracing

import (
	"go.uber.org/zap"

	"github.com/ereojs/devtrace/internal/shared/id"
)

// MergeClientSpans reconciles pre-built spans from a separate origin
// (the browser-side agent) into an already-sealed trace. It returns the
// number of spans actually merged.
//
// A trace id that was never retained - evicted, filtered by duration,
// or simply unknown - absorbs nothing: the call is a silent no-op.
// Input spans are taken in order until the trace's span-cap headroom is
// exhausted; the excess is dropped deterministically. Merged spans have
// their TraceID forced to the target trace and are linked into their
// parent's Children when the parent is present. The trace's EndTime is
// extended to cover the latest merged span and Duration recomputed;
// EndTime never decreases.
//
// Merging is silent backfill: no lifecycle events are emitted. A span
// reported twice for the same id overwrites the earlier record.
//
// The retained record is mutated under the tracer mutex; Traces and
// GetTrace export deep-copied snapshots, so concurrent readers never
// observe a trace mid-merge.
func (t *Tracer) MergeClientSpans(traceID string, spans []Span) int {
	trace, ok := t.store.Get(traceID)
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	merged := 0
	latest := trace.EndTime

	for i := range spans {
		span := spans[i].clone()
		span.TraceID = traceID
		if span.ID == "" {
			span.ID = id.NewSpanID().String()
		}

		_, replacing := trace.Spans[span.ID]
		if !replacing && len(trace.Spans) >= t.cfg.MaxSpansPerTrace {
			continue
		}

		trace.Spans[span.ID] = span
		if !replacing && span.ParentID != "" {
			if parent, found := trace.Spans[span.ParentID]; found {
				parent.Children = append(parent.Children, span.ID)
			}
		}

		if span.EndTime.After(latest) {
			latest = span.EndTime
		}
		merged++
	}

	if latest.After(trace.EndTime) {
		trace.EndTime = latest
		trace.Duration = trace.EndTime.Sub(trace.StartTime)
	}

	if merged > 0 {
		t.logger.Debug("merged client spans",
			zap.String("trace_id", traceID),
			zap.Int("merged", merged),
			zap.Int("dropped", len(spans)-merged),
		)
	}

	return merged
}
