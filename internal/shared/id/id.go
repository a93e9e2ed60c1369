// Package id provides centralized ID generation for the trace engine.
//
// IDs are prefixed ULIDs: lexicographically sortable, so a span listing
// ordered by id is ordered by creation time, and prefixed per type so
// logs stay readable (trc_*, spn_*). Separate string types keep a trace
// id from being used where a span id is expected.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TraceID identifies a trace.
type TraceID string

// SpanID identifies a span within a trace.
type SpanID string

const (
	TracePrefix = "trc"
	SpanPrefix  = "spn"
)

// Generator generates prefixed ULIDs.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // oklog entropy readers are not concurrency-safe
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator backed by crypto/rand.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewTraceID generates a new trace id.
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// NewSpanID generates a new span id.
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

func (id TraceID) String() string { return string(id) }
func (id SpanID) String() string  { return string(id) }

// Timestamp extracts the creation time embedded in a prefixed id.
func Timestamp(id string) (time.Time, error) {
	raw := id
	if i := strings.IndexByte(id, '_'); i >= 0 {
		raw = id[i+1:]
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValid checks that an id carries the given prefix and a well-formed
// ULID payload.
func IsValid(id, prefix string) bool {
	rest, found := strings.CutPrefix(id, prefix+"_")
	if !found {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
