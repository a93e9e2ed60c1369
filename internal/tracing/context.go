package tracing

import "context"

// ContextStore is the request-scoped key/value store the caller already
// threads through request handling. *gin.Context satisfies it as-is.
// The binding is a weak reference: disposing a store has no effect on
// the tracer or its traces.
type ContextStore interface {
	Get(key string) (value any, exists bool)
	Set(key string, value any)
}

// Reserved keys inside a caller-supplied ContextStore.
const (
	tracerStoreKey     = "devtrace.tracer"
	activeSpanStoreKey = "devtrace.active_span"
)

// SetTracer stashes the tracer for this request in the caller's store.
func SetTracer(store ContextStore, tracer *Tracer) {
	store.Set(tracerStoreKey, tracer)
}

// TracerFrom retrieves the tracer previously stashed in the store.
func TracerFrom(store ContextStore) (*Tracer, bool) {
	v, ok := store.Get(tracerStoreKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*Tracer)
	return t, ok
}

// SetActiveSpan stashes the currently active span for this request.
func SetActiveSpan(store ContextStore, span *SpanHandle) {
	store.Set(activeSpanStoreKey, span)
}

// ActiveSpanFrom retrieves the active span previously stashed in the
// store.
func ActiveSpanFrom(store ContextStore) (*SpanHandle, bool) {
	v, ok := store.Get(activeSpanStoreKey)
	if !ok {
		return nil, false
	}
	h, ok := v.(*SpanHandle)
	return h, ok
}

// Private key types keep context values collision-free.
type tracerCtxKey struct{}
type activeSpanCtxKey struct{}

// WithTracer binds the tracer into a context.Context.
func WithTracer(ctx context.Context, tracer *Tracer) context.Context {
	return context.WithValue(ctx, tracerCtxKey{}, tracer)
}

// TracerFromContext extracts the tracer bound by WithTracer.
func TracerFromContext(ctx context.Context) (*Tracer, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(tracerCtxKey{}).(*Tracer)
	return t, ok
}

// WithActiveSpan binds the active span into a context.Context; child
// spans opened through StartSpan or WithSpan attach under it.
func WithActiveSpan(ctx context.Context, span *SpanHandle) context.Context {
	return context.WithValue(ctx, activeSpanCtxKey{}, span)
}

// ActiveSpanFromContext extracts the span bound by WithActiveSpan.
func ActiveSpanFromContext(ctx context.Context) (*SpanHandle, bool) {
	if ctx == nil {
		return nil, false
	}
	h, ok := ctx.Value(activeSpanCtxKey{}).(*SpanHandle)
	return h, ok
}
