package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/ereojs/devtrace/internal/shared/id"
)

// Retention defaults; each Config field falls back to these when unset.
const (
	DefaultMaxTraces        = 50
	DefaultMaxSpansPerTrace = 1000
)

// Config bounds the engine's memory. All fields are optional.
type Config struct {
	// MaxTraces bounds retained completed traces; the oldest-inserted
	// trace is evicted first (FIFO).
	MaxTraces int
	// MaxSpansPerTrace bounds spans per trace; additional children and
	// merged client spans are silently dropped.
	MaxSpansPerTrace int
	// MinDuration drops traces shorter than this from retention.
	// Dropped traces still emit trace:end for low-latency observers.
	MinDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTraces <= 0 {
		c.MaxTraces = DefaultMaxTraces
	}
	if c.MaxSpansPerTrace <= 0 {
		c.MaxSpansPerTrace = DefaultMaxSpansPerTrace
	}
	if c.MinDuration < 0 {
		c.MinDuration = 0
	}
	return c
}

// activeTrace is the bookkeeping for one unsealed trace. spanCount
// includes the root and never decreases, so cap enforcement holds even
// when merges later land in the same trace.
type activeTrace struct {
	trace     *Trace
	spanCount int
}

// Tracer orchestrates the engine: it creates traces and spans, owns the
// retention store and the event bus, and exposes reconciliation for
// externally-sourced spans. Safe for concurrent use; one Tracer is
// shared by every in-flight request.
type Tracer struct {
	cfg    Config
	logger *zap.Logger
	clock  clockz.Clock
	bus    *Bus
	store  *Store

	// mu serializes every span and trace mutation: handle writes,
	// child registration, sealing, merges, and the snapshot copies
	// exports take. Readers of exported traces never need it.
	mu     sync.Mutex
	active map[string]*activeTrace
}

// New creates a tracer. A nil logger disables engine logging.
func New(logger *zap.Logger, cfg Config) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Tracer{
		cfg:    cfg,
		logger: logger,
		clock:  clockz.RealClock,
		bus:    NewBus(),
		store:  NewStore(cfg.MaxTraces),
		active: make(map[string]*activeTrace),
	}
}

// WithClock replaces the tracer's clock. Call before any spans are
// opened; used by tests for deterministic timing.
func (t *Tracer) WithClock(clock clockz.Clock) *Tracer {
	if clock != nil {
		t.clock = clock
	}
	return t
}

// StartTrace allocates a new trace and opens its root span, emitting
// trace:start then span:start. Metadata is captured write-once.
func (t *Tracer) StartTrace(name, layer string, metadata map[string]any) *SpanHandle {
	return t.startRoot(name, layer, metadata, nil)
}

// StartSpan opens a span under the active span carried by ctx. With no
// active span in scope the span is promoted to the root of its own
// one-span trace - every span belongs to some trace.
func (t *Tracer) StartSpan(ctx context.Context, name, layer string, attrs map[string]any) *SpanHandle {
	if parent, ok := ActiveSpanFromContext(ctx); ok {
		return parent.Child(name, layer, attrs)
	}
	return t.startRoot(name, layer, nil, attrs)
}

// WithSpan runs fn inside a new span scoped under ctx and guarantees
// the span ends exactly once on every exit path. A returned error or a
// panic marks the span failed before propagating unchanged.
func (t *Tracer) WithSpan(ctx context.Context, name, layer string, fn func(context.Context, *SpanHandle) error) (err error) {
	span := t.StartSpan(ctx, name, layer, nil)
	ctx = WithActiveSpan(ctx, span)

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(StatusError)
			span.End()
			panic(r)
		}
		if err != nil {
			span.SetError(err)
		}
		span.End()
	}()

	return fn(ctx, span)
}

// Traces returns the retained traces in insertion order. Every trace
// is a deep-copied snapshot: safe to read, serialize or hold while the
// engine keeps merging client spans into the retained originals.
func (t *Tracer) Traces() []*Trace {
	t.mu.Lock()
	defer t.mu.Unlock()

	all := t.store.All()
	out := make([]*Trace, len(all))
	for i, trace := range all {
		out[i] = trace.clone()
	}
	return out
}

// GetTrace looks a retained trace up by id. The returned trace is a
// deep-copied snapshot, like Traces.
func (t *Tracer) GetTrace(traceID string) (*Trace, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trace, ok := t.store.Get(traceID)
	if !ok {
		return nil, false
	}
	return trace.clone(), true
}

// Retained reports whether traceID is currently in the retention
// store, without the copying GetTrace does.
func (t *Tracer) Retained(traceID string) bool {
	_, ok := t.store.Get(traceID)
	return ok
}

// RetainedCount returns the number of retained traces.
func (t *Tracer) RetainedCount() int {
	return t.store.Len()
}

// ActiveTraces returns the number of traces currently in flight.
func (t *Tracer) ActiveTraces() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Subscribe registers a lifecycle observer and returns an idempotent
// deregistration capability.
func (t *Tracer) Subscribe(obs Observer) func() {
	return t.bus.Subscribe(obs)
}

func (t *Tracer) startRoot(name, layer string, metadata, attrs map[string]any) *SpanHandle {
	now := t.clock.Now()
	traceID := id.NewTraceID().String()

	span := &Span{
		ID:        id.NewSpanID().String(),
		TraceID:   traceID,
		Name:      name,
		Layer:     layer,
		Status:    StatusOK,
		StartTime: now,
	}
	if len(attrs) > 0 {
		span.Attributes = make(map[string]any, len(attrs))
		for k, v := range attrs {
			span.Attributes[k] = v
		}
	}

	trace := &Trace{
		ID:        traceID,
		RootID:    span.ID,
		Spans:     map[string]*Span{span.ID: span},
		StartTime: now,
	}
	if len(metadata) > 0 {
		trace.Metadata = make(map[string]any, len(metadata))
		for k, v := range metadata {
			trace.Metadata[k] = v
		}
	}

	t.mu.Lock()
	t.active[traceID] = &activeTrace{trace: trace, spanCount: 1}
	t.mu.Unlock()

	t.bus.Publish(Event{Type: EventTraceStart, TraceID: traceID, Trace: trace})
	t.bus.Publish(Event{Type: EventSpanStart, TraceID: traceID, Span: span})

	return &SpanHandle{span: span, tracer: t, root: true}
}

// child creates a span under parent. The span joins the trace arena
// only while the trace is active, under its span cap, and the parent is
// itself live; otherwise the returned handle is detached.
func (t *Tracer) child(parent *SpanHandle, name, layer string, attrs map[string]any) *SpanHandle {
	span := &Span{
		ID:        id.NewSpanID().String(),
		TraceID:   parent.span.TraceID,
		ParentID:  parent.span.ID,
		Name:      name,
		Layer:     layer,
		Status:    StatusOK,
		StartTime: t.clock.Now(),
	}
	if len(attrs) > 0 {
		span.Attributes = make(map[string]any, len(attrs))
		for k, v := range attrs {
			span.Attributes[k] = v
		}
	}

	registered := false
	if !parent.detached {
		t.mu.Lock()
		if !parent.span.Ended() {
			if at, ok := t.active[span.TraceID]; ok && at.spanCount < t.cfg.MaxSpansPerTrace {
				at.trace.Spans[span.ID] = span
				at.spanCount++
				parent.span.Children = append(parent.span.Children, span.ID)
				registered = true
			}
		}
		t.mu.Unlock()
	}

	if !registered {
		return &SpanHandle{span: span, tracer: t, detached: true}
	}

	t.bus.Publish(Event{Type: EventSpanStart, TraceID: span.TraceID, Span: span})

	return &SpanHandle{span: span, tracer: t}
}

// seal finalizes a trace after its root span ended: trace timing is
// taken from the root, the minimum-duration filter is applied, and the
// trace either enters the retention store (evicting FIFO on overflow)
// or is dropped. trace:end fires either way so observers get telemetry
// even for traces the retained window filters out.
//
// The store receives a deep copy of the arena, so handles still open at
// seal time keep mutating their own spans without ever touching the
// retained record. The trace:end payload is a copy for the same reason.
func (t *Tracer) seal(traceID string) {
	t.mu.Lock()
	at, ok := t.active[traceID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.active, traceID)

	trace := at.trace
	if root := trace.Root(); root != nil {
		trace.EndTime = root.EndTime
		trace.Duration = root.Duration
	}

	retained := trace.Duration >= t.cfg.MinDuration
	if retained {
		t.store.Insert(trace.clone())
	}
	snapshot := trace.clone()
	t.mu.Unlock()

	if retained {
		t.logger.Debug("trace sealed",
			zap.String("trace_id", traceID),
			zap.Int("spans", snapshot.SpanCount()),
			zap.Duration("duration", snapshot.Duration),
		)
	} else {
		t.logger.Debug("trace dropped below minimum duration",
			zap.String("trace_id", traceID),
			zap.Duration("duration", snapshot.Duration),
			zap.Duration("min_duration", t.cfg.MinDuration),
		)
	}

	t.bus.Publish(Event{Type: EventTraceEnd, TraceID: traceID, Trace: snapshot})
}
