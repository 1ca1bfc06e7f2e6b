// Package session runs one chat session per accepted websocket: it registers
// the connection for broadcasts, turns inbound frames into posted messages and
// takes the guest out of the room when the connection goes away.
package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/viral32111/LiveChat/domain/chat"
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/modules/broadcast"
)

// Default timings.
const (
	DefaultIdleTimeout  = 60 * time.Second
	DefaultPingInterval = 25 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Config holds session timings.
type Config struct {
	IdleTimeout  time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.IdleTimeout {
		c.PingInterval = min(DefaultPingInterval, c.IdleTimeout/2)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Conn is a websocket connection.
type Conn interface {
	broadcast.Conn
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Registry is the part of the connection registry a session needs.
type Registry interface {
	Register(roomID, guestID string, peer *broadcast.Peer) *broadcast.Peer
	Release(roomID, guestID string, peer *broadcast.Peer) bool
}

// Coordinator is the part of the lifecycle API a session drives.
type Coordinator interface {
	CurrentRoom(ctx context.Context, guestID string) (string, error)
	PostMessage(ctx context.Context, guestID, roomID, content string, attachments []room.Attachment) (string, error)
	Disconnect(ctx context.Context, guestID, roomID string) error
}

// Session is a single guest's connection to their current room.
type Session struct {
	guestID     string
	roomID      string
	conn        Conn
	peer        *broadcast.Peer
	registry    Registry
	coordinator Coordinator
	cfg         Config
	logger      types.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session for a guest already known to be a member of roomID.
func New(conn Conn, guestID, roomID string, registry Registry, coordinator Coordinator, cfg Config, logger types.Logger) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		guestID:     guestID,
		roomID:      roomID,
		conn:        conn,
		peer:        broadcast.NewPeer(conn, cfg.WriteTimeout),
		registry:    registry,
		coordinator: coordinator,
		cfg:         cfg,
		logger:      logger.With("guestID", guestID, "roomID", roomID),
		done:        make(chan struct{}),
	}
}

// Run registers the connection and reads frames until it closes. The close
// path has run by the time Run returns.
func (s *Session) Run(ctx context.Context) {
	if replaced := s.registry.Register(s.roomID, s.guestID, s.peer); replaced != nil {
		_ = replaced.CloseWith(broadcast.CloseSuperseded, broadcast.ReasonSuperseded)
		s.logger.Info("Replaced previous connection")
	}

	// The guest may have left between the upgrade and Register. Membership
	// read after registering is what the registry entry must agree with.
	if err := s.confirmMembership(ctx); err != nil {
		s.closeOnce.Do(func() { close(s.done) })
		s.registry.Release(s.roomID, s.guestID, s.peer)
		s.reject(err)
		return
	}
	defer s.close(ctx)

	s.conn.SetPongHandler(func(string) error {
		return s.extendDeadline()
	})
	if err := s.extendDeadline(); err != nil {
		s.logger.Warn("Failed to set read deadline", "error", err)
		return
	}
	go s.pingLoop()

	s.logger.Info("Session opened")
	s.readLoop(ctx)
}

func (s *Session) confirmMembership(ctx context.Context) error {
	roomID, err := s.coordinator.CurrentRoom(ctx, s.guestID)
	if err != nil {
		return err
	}
	if roomID != s.roomID {
		return chat.ErrRoomNotJoined
	}
	return nil
}

// Shutdown closes the connection for a server shutdown. The registry entry is
// left alone so the close path still takes the guest out of the room.
func (s *Session) Shutdown() {
	_ = s.peer.CloseWith(broadcast.CloseGoingAway, broadcast.ReasonShutdown)
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.readFailed(err)
			return
		}
		if err := s.extendDeadline(); err != nil {
			s.logger.Warn("Failed to set read deadline", "error", err)
			return
		}
		if err := s.handleFrame(ctx, frame); err != nil {
			s.reject(err)
			return
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, frame []byte) error {
	env, err := broadcast.DecodeEnvelope(frame)
	if err != nil {
		return chat.ProtocolError(err)
	}

	switch env.Type {
	case broadcast.PayloadSendMessage:
		payload, err := broadcast.DecodeSendMessage(env)
		if err != nil {
			return chat.ProtocolError(err)
		}
		_, err = s.coordinator.PostMessage(ctx, s.guestID, s.roomID, payload.Content, payload.Attachments)
		return err
	default:
		s.logger.Debug("Ignoring frame", "type", env.Type)
		return nil
	}
}

// reject closes the connection with the close code matching err.
func (s *Session) reject(err error) {
	code, reason := closeCodeFor(err)
	if code == broadcast.CloseInternalError {
		s.logger.Error("Closing session", "reason", reason, "error", err)
	} else {
		s.logger.Warn("Closing session", "reason", reason, "error", err)
	}
	_ = s.peer.CloseWith(code, reason)
}

func closeCodeFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrProtocol):
		return broadcast.CloseProtocolError, broadcast.ReasonProtocolError
	case errors.Is(err, chat.ErrValidation):
		return broadcast.ClosePolicy, broadcast.ReasonValidation
	case errors.Is(err, chat.ErrRoomNotJoined), errors.Is(err, chat.ErrRoomNotFound), errors.Is(err, chat.ErrNameNotChosen):
		return broadcast.ClosePolicy, broadcast.ReasonNotJoined
	default:
		return broadcast.CloseInternalError, broadcast.ReasonStoreFailure
	}
}

func (s *Session) readFailed(err error) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Info("Session idle, closing")
		_ = s.peer.CloseWith(broadcast.CloseGoingAway, broadcast.ReasonIdle)
	case s.peer.Closed():
		// Closed from our side: left, superseded, room deleted or shutdown.
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.logger.Warn("Session read failed", "error", err)
	}
}

func (s *Session) extendDeadline() error {
	return s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.peer.Ping(); err != nil {
				return
			}
		}
	}
}

// close runs once per session. The guest leaves the room only if this
// connection was still the registered one; a superseded connection or one
// removed by an explicit leave has nothing left to undo.
func (s *Session) close(ctx context.Context) {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.peer.CloseWith(broadcast.CloseNormal, "")

		if !s.registry.Release(s.roomID, s.guestID, s.peer) {
			s.logger.Info("Session closed")
			return
		}
		if err := s.coordinator.Disconnect(context.WithoutCancel(ctx), s.guestID, s.roomID); err != nil {
			s.logger.Error("Failed to leave room on disconnect", "error", err)
			return
		}
		s.logger.Info("Session closed, guest left room")
	})
}
