package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"muro/domain"
)

const (
	writeTimeout   = 5 * time.Second
	readTimeout    = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// envelope is the wire format in both directions: a named event plus its
// payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is one live bidirectional connection. The session association is
// fixed when the connection is established; nil means an anonymous
// viewer, which can receive everything but mutate nothing.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	hub     *Hub
	ws      *websocket.Conn
	session *domain.Session

	sendMu sync.Mutex
	closed bool
	send   chan outbound
}

func newConn(ctx context.Context, hub *Hub, ws *websocket.Conn, session *domain.Session) *Conn {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Conn{
		ctx:     cancelCtx,
		cancel:  cancel,
		hub:     hub,
		ws:      ws,
		session: session,
		send:    make(chan outbound, sendBufferSize),
	}
}

// Session returns the session attached at establishment time, or nil.
// Handlers call this per event rather than caching the answer.
func (c *Conn) Session() *domain.Session {
	return c.session
}

// emit queues an event for this connection only. Non-blocking: a
// connection that cannot keep up loses events instead of stalling the
// sender.
func (c *Conn) emit(event string, data any) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- outbound{Event: event, Data: data}:
	default:
		glog.Warningf("dropping %s event, connection send buffer full", event)
	}
}

func (c *Conn) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

// readPump decodes inbound envelopes and dispatches them one at a time,
// so events from a single connection are always processed in arrival
// order. Returns when the peer disconnects.
func (c *Conn) readPump(feed *Feed) {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.Infof("connection read: %v", err)
			}
			return
		}
		feed.Dispatch(c.ctx, c, env)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
