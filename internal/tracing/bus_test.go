package tracing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(func(Event) { order = append(order, 1) })
	bus.Subscribe(func(Event) { order = append(order, 2) })
	bus.Subscribe(func(Event) { order = append(order, 3) })

	bus.Publish(Event{Type: EventTraceStart})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var calls int
	unsubscribe := bus.Subscribe(func(Event) { calls++ })

	bus.Publish(Event{Type: EventSpanStart})
	require.Equal(t, 1, calls)

	unsubscribe()
	bus.Publish(Event{Type: EventSpanStart})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()

	first := bus.Subscribe(func(Event) {})
	second := bus.Subscribe(func(Event) {})

	first()
	first() // repeated calls must not touch other subscribers

	assert.Equal(t, 1, bus.Len())
	second()
	assert.Equal(t, 0, bus.Len())
}

func TestBusRecoversObserverPanic(t *testing.T) {
	bus := NewBus()

	var delivered bool
	bus.Subscribe(func(Event) { panic("bad observer") })
	bus.Subscribe(func(Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(Event{Type: EventSpanEnd})
	})
	assert.True(t, delivered, "later observers still receive the event")
}

func TestBusNilObserver(t *testing.T) {
	bus := NewBus()

	unsubscribe := bus.Subscribe(nil)
	assert.NotNil(t, unsubscribe)
	assert.NotPanics(t, unsubscribe)
	assert.Equal(t, 0, bus.Len())
}

func TestBusConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				unsubscribe := bus.Subscribe(func(Event) {})
				bus.Publish(Event{Type: EventSpanStart})
				unsubscribe()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.Len())
}
