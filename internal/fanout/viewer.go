package fanout

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/charleschow/sports-lounge/internal/telemetry"
)

const (
	viewerSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 25 * time.Second
)

var (
	errViewerClosed = errors.New("viewer closed")
	errSlowViewer   = errors.New("viewer send buffer full")
)

// wsViewer is a viewer on /ws/live. Send only enqueues; writePump owns the
// socket writes.
type wsViewer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSViewer(conn *websocket.Conn) *wsViewer {
	return &wsViewer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, viewerSendBuf),
		done: make(chan struct{}),
	}
}

func (v *wsViewer) ID() string { return v.id }

func (v *wsViewer) Send(msg []byte) error {
	select {
	case <-v.done:
		return errViewerClosed
	default:
	}
	select {
	case v.send <- msg:
		return nil
	case <-v.done:
		return errViewerClosed
	default:
		return errSlowViewer
	}
}

// Close signals the write pump to stop. It never closes v.send, so a
// concurrent Send cannot panic.
func (v *wsViewer) Close() error {
	v.once.Do(func() { close(v.done) })
	return nil
}

// writePump drains the send channel and pings on an interval. On exit it
// closes the socket, which unblocks the read loop.
func (v *wsViewer) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case msg := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Debugf("fanout: write to viewer %s: %v", v.id, err)
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-v.done:
			v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeDeadline))
			return
		}
	}
}
