package fanout

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charleschow/sports-lounge/internal/telemetry"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleLive serves one viewer: subscribe, unsubscribe and request_pbp
// frames until the socket closes.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: viewer upgrade failed: %v", err)
		return
	}

	v := newWSViewer(conn)
	telemetry.Metrics.ViewerConnections.Inc()
	telemetry.Debugf("fanout: viewer %s connected from %s", v.id, r.RemoteAddr)
	go v.writePump()
	defer func() {
		s.hub.DisconnectViewer(v)
		v.Close()
		telemetry.Metrics.ViewerConnections.Dec()
		telemetry.Debugf("fanout: viewer %s disconnected", v.id)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var req ViewerRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			s.reject(v, "malformed request")
			continue
		}
		switch req.Type {
		case ReqSubscribe:
			if err := s.hub.Subscribe(ctx, v, req.Topic); err != nil {
				s.reject(v, err.Error())
			}
		case ReqUnsubscribe:
			s.hub.Unsubscribe(v, req.Topic)
		case ReqRequestPBP:
			s.hub.RequestPBP(req.GameID)
		default:
			s.reject(v, "unknown request type")
		}
	}
}

func (s *Server) reject(v *wsViewer, msg string) {
	raw, _ := json.Marshal(errorPayload{Type: "error", Message: msg})
	v.Send(raw)
}
