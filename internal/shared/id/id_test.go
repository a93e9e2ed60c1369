package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceID(t *testing.T) {
	tid := NewTraceID()

	assert.True(t, IsValid(tid.String(), TracePrefix))
	assert.False(t, IsValid(tid.String(), SpanPrefix))
}

func TestNewSpanID(t *testing.T) {
	sid := NewSpanID()

	assert.True(t, IsValid(sid.String(), SpanPrefix))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[SpanID]bool)
	for i := 0; i < 1000; i++ {
		sid := NewSpanID()
		require.False(t, seen[sid], "duplicate id %s", sid)
		seen[sid] = true
	}
}

func TestSortability(t *testing.T) {
	first := NewSpanID()
	time.Sleep(2 * time.Millisecond)
	second := NewSpanID()

	// ULIDs are k-sortable: later ids compare greater.
	assert.Less(t, first.String(), second.String())
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	tid := NewTraceID()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(tid.String())
	require.NoError(t, err)
	assert.True(t, ts.After(before) && ts.Before(after))
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("", TracePrefix))
	assert.False(t, IsValid("trc_not-a-ulid", TracePrefix))
	assert.False(t, IsValid("01ARZ3NDEKTSV4RRFFQ69G5FAV", TracePrefix))
}
