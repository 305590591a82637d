package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilroybot/kilroy-face-twitter/face"
	"github.com/kilroybot/kilroy-face-twitter/state"
)

const (
	// writeWait bounds a single WebSocket write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway serves trusted operator tooling, not browsers with
	// credentials; cross-origin dialing is allowed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn serializes writes to one WebSocket connection between the
// event loop and the keepalive pinger.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	message := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// upgrade turns the request into a managed WebSocket connection and
// starts the read pump that cancels ctx when the client goes away.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*wsConn, context.Context, context.CancelFunc, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return nil, nil, nil, false
	}

	ctx, cancel := context.WithCancel(r.Context())

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients send no data on these endpoints; the read pump exists to
	// notice closes and enforce the pong deadline.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return &wsConn{conn: conn}, ctx, cancel, true
}

// handleScrap streams (id, content, score) records over a WebSocket,
// honoring limit/before/after query parameters. The stream closes
// normally when the walk completes or the limit is reached; a client
// disconnect cancels upstream fetching promptly.
func (s *Server) handleScrap(w http.ResponseWriter, r *http.Request) {
	limit, window, err := scrapQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ws, ctx, cancel, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer cancel()

	stop := make(chan struct{})
	go keepalive(ws, stop)
	defer close(stop)

	err = s.face.Scrap(ctx, limit, window, func(item face.ScrapItem) error {
		return ws.writeJSON(item)
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("scrap stream failed", "error", err)
		ws.close(websocket.CloseInternalServerErr, "scrap failed")
		return
	}

	ws.close(websocket.CloseNormalClosure, "")
}

// handleWatchConfig streams one (old, new) configuration pair per
// successful update, from subscription onward.
func (s *Server) handleWatchConfig(w http.ResponseWriter, r *http.Request) {
	serveWatch(s, w, r, "config", s.face.WatchConfig())
}

// handleWatchReady streams readiness transitions.
func (s *Server) handleWatchReady(w http.ResponseWriter, r *http.Request) {
	serveWatch(s, w, r, "ready", s.face.WatchReady())
}

// serveWatch pumps one subscription's events over a WebSocket until the
// subscription's stream ends or the client goes away.
func serveWatch[T any](s *Server, w http.ResponseWriter, r *http.Request, stream string, sub *state.Subscription[T]) {
	defer sub.Cancel()

	ws, ctx, cancel, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer cancel()

	if s.metrics != nil {
		s.metrics.CoreMetrics().RecordWatchStart(stream)
		defer s.metrics.CoreMetrics().RecordWatchEnd(stream)
	}

	stop := make(chan struct{})
	go keepalive(ws, stop)
	defer close(stop)

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.C():
			if !open {
				ws.close(websocket.CloseGoingAway, "face shutting down")
				return
			}
			if err := ws.writeJSON(event); err != nil {
				return
			}
		}
	}
}

// keepalive pings the connection until stop closes.
func keepalive(ws *wsConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
