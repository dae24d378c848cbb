package events_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/acorndb/pkg/events"
)

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := events.New[int]()
	var mu sync.Mutex
	var order []int

	bus.Subscribe(func(doc int) {
		mu.Lock()
		order = append(order, doc*10+1)
		mu.Unlock()
	})
	bus.Subscribe(func(doc int) {
		mu.Lock()
		order = append(order, doc*10+2)
		mu.Unlock()
	})

	bus.Publish(7)
	assert.Equal(t, []int{71, 72}, order)
}

func TestPublishIsolatesPanickingSubscriber(t *testing.T) {
	bus := events.New[string]()
	secondRan := false

	bus.Subscribe(func(doc string) { panic("boom") })
	bus.Subscribe(func(doc string) { secondRan = true })

	assert.NotPanics(t, func() { bus.Publish("x") })
	assert.True(t, secondRan)
}

func TestSubscribeNilIsNoOp(t *testing.T) {
	bus := events.New[int]()
	bus.Subscribe(nil)
	assert.Equal(t, 0, bus.Count())
}

func TestResetClearsSubscribers(t *testing.T) {
	bus := events.New[int]()
	bus.Subscribe(func(int) {})
	assert.Equal(t, 1, bus.Count())
	bus.Reset()
	assert.Equal(t, 0, bus.Count())
}

func TestCountReflectsSubscriptions(t *testing.T) {
	bus := events.New[int]()
	assert.Equal(t, 0, bus.Count())
	bus.Subscribe(func(int) {})
	bus.Subscribe(func(int) {})
	assert.Equal(t, 2, bus.Count())
}
