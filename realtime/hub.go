package realtime

import (
	"sync"
)

// Hub owns the set of live connections. Connect and disconnect mutate the
// set; every broadcast iterates it, so the map is guarded for
// iteration-while-mutating.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: map[*Conn]struct{}{},
	}
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		c.close()
	}
}

// Broadcast delivers an event to every live connection. Fire and forget:
// there is no acknowledgment, and a connection that is gone or backed up
// simply misses the event.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.emit(event, data)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
