/*
Package tracing implements the in-memory tracing engine: it records
hierarchical units of work (spans) grouped into request-scoped traces,
retains a bounded window of completed traces, reconciles spans reported
from a separate origin (the browser-side agent) into already-sealed
traces, and broadcasts lifecycle events to observers.

# Overview

A Tracer owns the retention store, the event bus, and the set of traces
currently in flight. Callers open a root span with StartTrace and extend
the tree explicitly through the returned SpanHandle - there is no ambient
"current span" inside the engine, so concurrent requests sharing one
Tracer can never contaminate each other's traces. Per-request ambient
state lives in the caller's own scope (gin context or context.Context)
via the binding helpers in context.go.

# Usage

	tracer := tracing.New(logger, tracing.Config{MaxTraces: 50})

	root := tracer.StartTrace("GET /posts/:id", tracing.LayerRequest, map[string]any{
		"method":   "GET",
		"pathname": "/posts/42",
	})
	db := root.Child("posts.findById", tracing.LayerDatabase, nil)
	db.SetAttribute("rows", 1)
	db.End()
	root.End() // seals the trace into the retention store

	// Scoped instrumentation with end-on-every-path semantics.
	err := tracer.WithSpan(ctx, "render", tracing.LayerIslands,
		func(ctx context.Context, span *tracing.SpanHandle) error {
			return render(ctx)
		})

# Guarantees

Every span belongs to exactly one trace; parent/child links never cross
trace boundaries. Spans are kept in an arena (map of id to span) and
linked by id, so a malformed cycle cannot produce unbounded traversal.
Engine operations never return errors and never panic: mutating an ended
span, overflowing a capacity limit, or merging into an unknown trace are
all silent no-ops, because tracing must not destabilize the code paths
it instruments.

# Thread Safety

Tracer, Store and Bus are safe for concurrent use. Span and trace
mutation is serialized through the tracer, and every trace returned by
Traces or GetTrace is a deep-copied snapshot, so readers never observe
a record mid-merge. The usual discipline is that each goroutine only
touches the handles it was given.
*/
package tracing
