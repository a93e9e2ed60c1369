package tracing

import "sync"

// EventType identifies a lifecycle event on the bus.
type EventType string

const (
	EventTraceStart EventType = "trace:start"
	EventSpanStart  EventType = "span:start"
	EventSpanEvent  EventType = "span:event"
	EventSpanEnd    EventType = "span:end"
	EventTraceEnd   EventType = "trace:end"
)

// Event is one lifecycle notification. Trace, Span and Annotation are
// populated depending on Type. Span payloads are live engine records,
// read-only during the synchronous dispatch; trace:end carries a
// detached deep copy that observers may keep.
type Event struct {
	Type       EventType  `json:"type"`
	TraceID    string     `json:"traceId"`
	Trace      *Trace     `json:"trace,omitempty"`
	Span       *Span      `json:"span,omitempty"`
	Annotation *SpanEvent `json:"event,omitempty"`
}

// Observer receives lifecycle events synchronously, in emission order,
// during the engine call that produced them.
type Observer func(Event)

type busEntry struct {
	observer Observer
	id       uint64
}

// Bus is a synchronous publish/subscribe channel for lifecycle events.
// Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   []busEntry
	nextID uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers an observer and returns an idempotent
// deregistration capability.
func (b *Bus) Subscribe(obs Observer) func() {
	if obs == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, busEntry{observer: obs, id: id})
	b.mu.Unlock()

	return func() {
		b.unsubscribe(id)
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Preserve registration order for remaining observers.
	for i, e := range b.subs {
		if e.id == id {
			copy(b.subs[i:], b.subs[i+1:])
			b.subs = b.subs[:len(b.subs)-1]
			return
		}
	}
}

// Publish delivers the event to every subscriber, synchronously and in
// subscription order. A panicking observer is recovered so broken
// instrumentation can never destabilize the instrumented call path.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	if len(b.subs) == 0 {
		b.mu.RUnlock()
		return
	}
	subs := make([]busEntry, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, e := range subs {
		b.safeCall(e.observer, evt)
	}
}

func (*Bus) safeCall(obs Observer, evt Event) {
	defer func() {
		_ = recover()
	}()
	obs(evt)
}

// Len returns the current subscriber count.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
