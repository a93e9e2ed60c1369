package monitoring

import (
	"github.com/ereojs/devtrace/internal/tracing"
)

// Observer returns a lifecycle observer that mirrors the engine's
// event stream into Prometheus metrics. Subscribe it on the tracer it
// is built for:
//
//	unsubscribe := tracer.Subscribe(metrics.Observer(tracer))
//
// Retention is not visible from the event alone - trace:end fires for
// filtered traces too - so the observer checks the store to tell the
// two apart.
func (m *Metrics) Observer(tracer *tracing.Tracer) tracing.Observer {
	return func(evt tracing.Event) {
		switch evt.Type {
		case tracing.EventTraceStart:
			m.TracesStarted.Inc()
		case tracing.EventSpanStart:
			m.SpansStarted.Inc()
		case tracing.EventSpanEvent:
			m.SpanEvents.Inc()
		case tracing.EventSpanEnd:
			m.SpansEnded.Inc()
		case tracing.EventTraceEnd:
			m.TracesEnded.Inc()
			if tracer.Retained(evt.TraceID) {
				m.RetainedTraces.Set(float64(tracer.RetainedCount()))
			} else {
				m.TracesFiltered.Inc()
			}
		}
	}
}
