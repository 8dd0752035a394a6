package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"

	"muro/domain"
)

func TestHubBroadcastReachesAll(t *testing.T) {
	hub := NewHub()
	a := connect(hub, &domain.Session{UserID: "u1", Username: "alice"})
	b := connect(hub, nil)

	hub.Broadcast("postCreated", "payload")

	for _, c := range []*Conn{a, b} {
		ev, ok := recv(c)
		assert.Equal(t, ok, true)
		assert.Equal(t, "postCreated", ev.Event)
		assert.Equal(t, "payload", ev.Data)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	a := connect(hub, nil)
	b := connect(hub, nil)
	assert.Equal(t, 2, hub.Count())

	hub.unregister(a)
	assert.Equal(t, 1, hub.Count())

	hub.Broadcast("postCreated", "payload")

	_, ok := recv(b)
	assert.Equal(t, ok, true)

	// emitting to a closed connection is a no-op, not a panic
	a.emit("postCreated", "payload")

	// double unregister is harmless
	hub.unregister(a)
	assert.Equal(t, 1, hub.Count())
}

func TestHubBroadcastDuringChurn(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := connect(hub, nil)
				hub.Broadcast("postUpdated", fmt.Sprintf("%d-%d", i, j))
				hub.unregister(c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Count())
}

func TestConnEmitDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := newConn(context.Background(), hub, nil, nil)
	hub.register(c)

	for i := 0; i < sendBufferSize+5; i++ {
		c.emit("postCreated", i)
	}

	delivered := 0
	for {
		_, ok := recv(c)
		if !ok {
			break
		}
		delivered++
	}
	assert.Equal(t, sendBufferSize, delivered)
}
