package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is a minimal request-scoped key/value store, standing in for
// whatever the calling framework threads through request handling.
type mapStore map[string]any

func (m mapStore) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore) Set(key string, value any) {
	m[key] = value
}

func TestStoreBindingRoundTrip(t *testing.T) {
	tracer := New(nil, Config{})
	store := mapStore{}

	_, ok := TracerFrom(store)
	assert.False(t, ok)
	_, ok = ActiveSpanFrom(store)
	assert.False(t, ok)

	root := tracer.StartTrace("request", LayerRequest, nil)
	SetTracer(store, tracer)
	SetActiveSpan(store, root)

	gotTracer, ok := TracerFrom(store)
	require.True(t, ok)
	assert.Same(t, tracer, gotTracer)

	gotSpan, ok := ActiveSpanFrom(store)
	require.True(t, ok)
	assert.Same(t, root, gotSpan)
}

func TestStoreBindingIgnoresForeignValues(t *testing.T) {
	store := mapStore{
		"devtrace.tracer":      "not a tracer",
		"devtrace.active_span": 42,
	}

	_, ok := TracerFrom(store)
	assert.False(t, ok)
	_, ok = ActiveSpanFrom(store)
	assert.False(t, ok)
}

func TestContextBindingRoundTrip(t *testing.T) {
	tracer := New(nil, Config{})
	root := tracer.StartTrace("request", LayerRequest, nil)

	ctx := WithTracer(context.Background(), tracer)
	ctx = WithActiveSpan(ctx, root)

	gotTracer, ok := TracerFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, tracer, gotTracer)

	gotSpan, ok := ActiveSpanFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, root, gotSpan)
}

func TestContextBindingAbsent(t *testing.T) {
	_, ok := TracerFromContext(context.Background())
	assert.False(t, ok)
	_, ok = ActiveSpanFromContext(context.Background())
	assert.False(t, ok)

	_, ok = TracerFromContext(nil)
	assert.False(t, ok)
	_, ok = ActiveSpanFromContext(nil)
	assert.False(t, ok)
}

func TestConcurrentFlowsCarryIndependentSpans(t *testing.T) {
	tracer := New(nil, Config{})

	// Two "requests" sharing one engine, each with its own scope.
	storeA, storeB := mapStore{}, mapStore{}
	rootA := tracer.StartTrace("A", LayerRequest, nil)
	rootB := tracer.StartTrace("B", LayerRequest, nil)
	SetActiveSpan(storeA, rootA)
	SetActiveSpan(storeB, rootB)

	spanA, _ := ActiveSpanFrom(storeA)
	spanB, _ := ActiveSpanFrom(storeB)
	assert.NotEqual(t, spanA.TraceID(), spanB.TraceID())
}
