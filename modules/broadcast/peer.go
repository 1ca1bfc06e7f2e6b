package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Close codes and reasons sent to clients.
const (
	CloseNormal        = websocket.CloseNormalClosure
	CloseGoingAway     = websocket.CloseGoingAway
	CloseProtocolError = websocket.CloseProtocolError
	ClosePolicy        = websocket.ClosePolicyViolation
	CloseInternalError = websocket.CloseInternalServerErr
	CloseSuperseded    = 4000

	ReasonLeftRoom      = "left_room"
	ReasonRoomDeleted   = "room_deleted"
	ReasonSuperseded    = "superseded"
	ReasonProtocolError = "protocol_error"
	ReasonValidation    = "validation_error"
	ReasonNotJoined     = "room_not_joined"
	ReasonStoreFailure  = "store_failure"
	ReasonIdle          = "idle_timeout"
	ReasonShutdown      = "server_shutdown"
)

// ErrPeerClosed is returned when writing to a closed peer.
var ErrPeerClosed = errors.New("peer closed")

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Peer serializes writes to a single connection.
type Peer struct {
	conn         Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPeer wraps conn. A zero writeTimeout disables write deadlines.
func NewPeer(conn Conn, writeTimeout time.Duration) *Peer {
	return &Peer{conn: conn, writeTimeout: writeTimeout}
}

// Send writes a text frame.
func (p *Peer) Send(data []byte) error {
	return p.write(websocket.TextMessage, data)
}

// Ping writes a ping control frame.
func (p *Peer) Ping() error {
	return p.write(websocket.PingMessage, nil)
}

func (p *Peer) write(messageType int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPeerClosed
	}
	if p.writeTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return p.conn.WriteMessage(messageType, data)
}

// CloseWith sends a close frame with code and reason, then closes the
// connection. Only the first call has any effect.
func (p *Peer) CloseWith(code int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.writeTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	// The peer may already be gone, the close still has to happen.
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	return p.conn.Close()
}

// Closed reports whether CloseWith has been called.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
