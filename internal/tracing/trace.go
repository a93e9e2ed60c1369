package tracing

import "time"

// Trace is the full tree of spans sharing one root, plus trace-level
// metadata and aggregate timing. Spans live in an arena keyed by span
// id; tree structure is resolved through ParentID/Children ids.
//
// A trace is created the moment its root span opens and sealed the
// moment the root span ends. After sealing it is immutable except for
// MergeClientSpans, which may add spans and extend EndTime/Duration
// upward (never shrink them).
type Trace struct {
	ID        string           `json:"id"`
	RootID    string           `json:"rootId"`
	Spans     map[string]*Span `json:"spans"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
	Duration  time.Duration    `json:"duration"`
}

// Root returns the root span, or nil if the arena is malformed.
func (t *Trace) Root() *Span {
	return t.Spans[t.RootID]
}

// SpanCount returns the number of spans currently in the arena.
func (t *Trace) SpanCount() int {
	return len(t.Spans)
}

// Span looks a span up by id.
func (t *Trace) Span(id string) (*Span, bool) {
	s, ok := t.Spans[id]
	return s, ok
}

// clone returns a deep copy, detached from live handles and from later
// merges into the retained original.
func (t *Trace) clone() *Trace {
	out := *t
	out.Spans = make(map[string]*Span, len(t.Spans))
	for id, s := range t.Spans {
		out.Spans[id] = s.clone()
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
