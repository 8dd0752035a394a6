package realtime

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"muro/domain"
)

// SessionResolver replays the HTTP session resolution against a raw
// handshake request. Returning nil is not an error: the connection is
// accepted as an anonymous viewer and mutation events fail at the
// authorization step instead.
type SessionResolver func(r *http.Request) *domain.Session

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server bridges HTTP sessions onto websocket connections and runs each
// connection's event loop against the feed.
type Server struct {
	Hub     *Hub
	Feed    *Feed
	Resolve SessionResolver
}

// Handle upgrades the request and serves the connection until the peer
// disconnects. The session is resolved once, before any event is
// routed, and stays fixed for the connection's lifetime.
func (s *Server) Handle(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := newConn(c.Request().Context(), s.Hub, ws, s.Resolve(c.Request()))
	s.Hub.register(conn)
	go conn.writePump()

	s.Feed.SendSnapshot(conn.ctx, conn)
	conn.readPump(s.Feed)
	return nil
}
