package fanout

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/sports-lounge/internal/relay"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

// relayConn is the hub's end of the relay link. Writes are serialized
// because gorilla connections allow a single concurrent writer.
type relayConn struct {
	conn   *websocket.Conn
	remote string

	mu     sync.Mutex
	closed bool
}

func (c *relayConn) Remote() string { return c.remote }

func (c *relayConn) SendRequestPBP(gameID string) error {
	raw, err := relay.RequestPBP(gameID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return err
	}
	telemetry.Metrics.RelayMessagesOut.Inc()
	return nil
}

func (c *relayConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeDeadline))
	return c.conn.Close()
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.RelaySecret == "" {
		return false
	}
	got := r.URL.Query().Get("secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.RelaySecret)) == 1
}

// handleRelay accepts the collector. The newest authorized relay replaces
// any existing one.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: relay upgrade failed: %v", err)
		return
	}

	if !s.authorized(r) {
		telemetry.Metrics.RelayAuthFailures.Inc()
		if s.cfg.RelaySecret == "" {
			telemetry.Errorf("fanout: relay connection from %s refused, no relay secret configured", r.RemoteAddr)
		} else {
			telemetry.Warnf("fanout: relay connection from %s refused, bad secret", r.RemoteAddr)
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(relay.CloseUnauthorized, "unauthorized"),
			time.Now().Add(writeDeadline))
		conn.Close()
		return
	}

	rc := &relayConn{conn: conn, remote: r.RemoteAddr}
	s.hub.AttachRelay(rc)
	telemetry.Plainf("Hub: Relay Connected [%s]", r.RemoteAddr)
	defer func() {
		s.hub.DetachRelay(rc)
		rc.Close()
		telemetry.Plainf("Hub: Relay Disconnected [%s]", r.RemoteAddr)
	}()

	// Three missed heartbeats mean the link is dead.
	readTimeout := 3 * s.cfg.HeartbeatInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				telemetry.Warnf("fanout: relay read: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.hub.OnRelayMessage(raw)
	}
}
