package tracing

import "time"

// Status reports whether a span completed cleanly.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Recommended layer tags. Layer is free-form; these cover the
// instrumentation points the framework ships with.
const (
	LayerRequest  = "request"
	LayerRouting  = "routing"
	LayerData     = "data"
	LayerDatabase = "database"
	LayerAuth     = "auth"
	LayerIslands  = "islands"
)

// SpanEvent is a timestamped point-in-time annotation on a span.
type SpanEvent struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Span is one recorded unit of work. A span is mutable only while open;
// once EndTime is stamped it is frozen, except for the merge path that
// may extend trace-level timing.
//
// Parent/child relationships are expressed by id (ParentID, Children),
// never by pointer: the owning Trace is the arena that resolves them, so
// a malformed cycle cannot create a retain cycle or infinite traversal.
type Span struct {
	ID         string         `json:"id"`
	TraceID    string         `json:"traceId"`
	ParentID   string         `json:"parentId,omitempty"`
	Name       string         `json:"name"`
	Layer      string         `json:"layer"`
	Status     Status         `json:"status"`
	StartTime  time.Time      `json:"startTime"`
	EndTime    time.Time      `json:"endTime"`
	Duration   time.Duration  `json:"duration"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []SpanEvent    `json:"events,omitempty"`
	Children   []string       `json:"children,omitempty"`
}

// Ended reports whether the span has been closed.
func (s *Span) Ended() bool {
	return !s.EndTime.IsZero()
}

// IsRoot reports whether the span is the root of its trace.
func (s *Span) IsRoot() bool {
	return s.ParentID == ""
}

// clone returns a deep copy so externally-sourced spans never share
// maps or slices with their origin.
func (s *Span) clone() *Span {
	out := *s
	if s.Attributes != nil {
		out.Attributes = make(map[string]any, len(s.Attributes))
		for k, v := range s.Attributes {
			out.Attributes[k] = v
		}
	}
	if s.Events != nil {
		out.Events = append([]SpanEvent(nil), s.Events...)
	}
	if s.Children != nil {
		out.Children = append([]string(nil), s.Children...)
	}
	return &out
}
