/*
Package monitoring provides Prometheus metrics for the trace service.

Engine metrics are derived from the tracing event bus rather than from
hooks inside the engine: Observer returns a tracing.Observer that can
be subscribed on any Tracer, keeping the engine free of a metrics
dependency. HTTP metrics come from the gin middleware; stream and
ingest metrics are recorded directly by their handlers.

Scrape endpoint:

	router.GET("/metrics", metrics.Handler())
*/
package monitoring
