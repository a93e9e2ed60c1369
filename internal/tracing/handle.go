package tracing

// SpanHandle is the live, mutable front-end for exactly one open span.
// It is the only way to extend the span tree, attach attributes or
// events, or close the span. Handles are returned by StartTrace,
// StartSpan and Child and are owned by whoever holds the reference.
// All mutation is serialized through the owning tracer, so concurrent
// handles of one trace never race with each other, with sealing, or
// with exported snapshots.
//
// A detached handle (returned when the owning trace is at its span cap,
// already sealed, or the parent already ended) keeps full End and
// SetAttribute bookkeeping but registers nothing retrievable and emits
// no events. A handle left open past its trace's sealing behaves the
// same way: its span keeps local state, but the retained trace and the
// bus never see the late writes.
type SpanHandle struct {
	span     *Span
	tracer   *Tracer
	root     bool
	detached bool
}

// ID returns the underlying span id.
func (h *SpanHandle) ID() string {
	return h.span.ID
}

// TraceID returns the id of the owning trace.
func (h *SpanHandle) TraceID() string {
	return h.span.TraceID
}

// Child opens a new span under this one, sharing its trace. The child
// is silently left out of the trace once the trace's span cap has been
// reached; the returned handle still works, it just records nothing
// retrievable.
func (h *SpanHandle) Child(name, layer string, attrs map[string]any) *SpanHandle {
	return h.tracer.child(h, name, layer, attrs)
}

// SetAttribute merges one entry into the span's attributes.
// No-op after End.
func (h *SpanHandle) SetAttribute(key string, value any) {
	t := h.tracer
	t.mu.Lock()
	defer t.mu.Unlock()

	if h.span.Ended() {
		return
	}
	if h.span.Attributes == nil {
		h.span.Attributes = make(map[string]any)
	}
	h.span.Attributes[key] = value
}

// SetStatus transitions the span's status. Only the ok to error
// transition is allowed; error is terminal. No-op after End.
func (h *SpanHandle) SetStatus(status Status) {
	t := h.tracer
	t.mu.Lock()
	defer t.mu.Unlock()

	if h.span.Ended() || status != StatusError {
		return
	}
	h.span.Status = StatusError
}

// SetError marks the span failed and records the error message.
// No-op after End or with a nil error.
func (h *SpanHandle) SetError(err error) {
	if err == nil {
		return
	}
	h.SetAttribute("error", err.Error())
	h.SetStatus(StatusError)
}

// Event appends a timestamped annotation and emits span:event.
// No-op after End; emits nothing once the trace has sealed.
func (h *SpanHandle) Event(name string, attrs map[string]any) {
	t := h.tracer
	t.mu.Lock()
	if h.span.Ended() {
		t.mu.Unlock()
		return
	}
	evt := SpanEvent{
		Name:       name,
		Attributes: attrs,
		Timestamp:  t.clock.Now(),
	}
	h.span.Events = append(h.span.Events, evt)
	_, live := t.active[h.span.TraceID]
	t.mu.Unlock()

	if h.detached || !live {
		return
	}
	t.bus.Publish(Event{
		Type:       EventSpanEvent,
		TraceID:    h.span.TraceID,
		Span:       h.span,
		Annotation: &evt,
	})
}

// End closes the span: it stamps EndTime, computes Duration and emits
// span:end. Ending the root span additionally seals the trace. Safe to
// call more than once; only the first call has any effect. Ending a
// span after its trace sealed records locally but emits nothing.
func (h *SpanHandle) End() {
	t := h.tracer
	t.mu.Lock()
	if h.span.Ended() {
		t.mu.Unlock()
		return
	}
	h.span.EndTime = t.clock.Now()
	h.span.Duration = h.span.EndTime.Sub(h.span.StartTime)
	_, live := t.active[h.span.TraceID]
	t.mu.Unlock()

	if h.detached || !live {
		return
	}

	t.bus.Publish(Event{
		Type:    EventSpanEnd,
		TraceID: h.span.TraceID,
		Span:    h.span,
	})

	if h.root {
		t.seal(h.span.TraceID)
	}
}

// EndError records err on the span and ends it. With a nil err the
// span ends with its status untouched.
func (h *SpanHandle) EndError(err error) {
	h.SetError(err)
	h.End()
}

// Ended reports whether the span has been closed.
func (h *SpanHandle) Ended() bool {
	h.tracer.mu.Lock()
	defer h.tracer.mu.Unlock()
	return h.span.Ended()
}
