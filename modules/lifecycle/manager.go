package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/viral32111/LiveChat/domain/chat"
	"github.com/viral32111/LiveChat/domain/guest"
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/events"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"golang.org/x/sync/singleflight"
)

const (
	maxJoinCodeAttempts = 10
	maxMoveAttempts     = 3
	defaultHistoryLimit = 100
)

var (
	errJoinCodesExhausted  = errors.New("no unused join code found")
	errMembershipContended = errors.New("membership kept changing")
)

// GuestStore is the identity store used by the manager.
type GuestStore interface {
	Create(ctx context.Context, g *guest.Guest) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*guest.Guest, error)
	FindByIDs(ctx context.Context, ids []string) ([]*guest.Guest, error)
	FindByRoom(ctx context.Context, roomID string) ([]*guest.Guest, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	MoveToRoom(ctx context.Context, id, from, roomID string) (bool, error)
	ClearCurrentRoom(ctx context.Context, id, roomID string) (bool, error)
}

// RoomStore is the room store used by the manager.
type RoomStore interface {
	Create(ctx context.Context, r *room.Room) error
	Delete(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (*room.Room, error)
	FindByJoinCode(ctx context.Context, code string) (*room.Room, error)
	FindAll(ctx context.Context) ([]*room.Room, error)
	FindPublic(ctx context.Context) ([]*room.Room, error)
	FindByCreator(ctx context.Context, guestID string) ([]*room.Room, error)
}

// MessageStore is the message store used by the manager.
type MessageStore interface {
	Create(ctx context.Context, msg *room.Message) error
	FindByRoom(ctx context.Context, roomID string, limit int) ([]*room.Message, error)
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
	DeleteOrphaned(ctx context.Context) (int64, error)
	LatestSentAt(ctx context.Context, roomID string) (*time.Time, error)
}

// ConnectionRegistry is the part of the connection registry the manager needs.
type ConnectionRegistry interface {
	Unregister(roomID, guestID string) *broadcast.Peer
}

// Broadcaster fans an envelope out to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, env broadcast.Envelope) (int, error)
}

// Notifier receives lifecycle events once a transition has completed.
type Notifier interface {
	RoomCreated(ev events.RoomCreatedEvent)
	RoomDeleted(ev events.RoomDeletedEvent)
	MembershipChanged(ev events.MembershipChangedEvent)
	MessagePosted(ev events.MessagePostedEvent)
}

// DirectoryCache caches the public room directory.
type DirectoryCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

type nopNotifier struct{}

func (nopNotifier) RoomCreated(events.RoomCreatedEvent)             {}
func (nopNotifier) RoomDeleted(events.RoomDeletedEvent)             {}
func (nopNotifier) MembershipChanged(events.MembershipChangedEvent) {}
func (nopNotifier) MessagePosted(events.MessagePostedEvent)         {}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the receiver of lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithDirectoryCache caches the public room directory in c.
func WithDirectoryCache(c DirectoryCache) Option {
	return func(m *Manager) { m.directory = c }
}

// WithJoinCodeGenerator replaces the random join code generator.
func WithJoinCodeGenerator(gen room.JoinCodeGenerator) Option {
	return func(m *Manager) { m.newJoinCode = gen }
}

// WithHistoryLimit sets how many recent messages a room view includes.
func WithHistoryLimit(limit int) Option {
	return func(m *Manager) { m.historyLimit = limit }
}

// Manager drives guests through NoName, Named and InRoom. Every transition is
// a sequence of store calls; membership is always written last on the way in
// and cleared first on the way out, so a failed step never leaves a guest
// pointing at a room they did not finish joining. Switching rooms is a single
// membership write, and the previous room is only told once that write has
// succeeded.
type Manager struct {
	guests      GuestStore
	rooms       RoomStore
	messages    MessageStore
	registry    ConnectionRegistry
	broadcaster Broadcaster
	notifier    Notifier
	directory   DirectoryCache
	logger      types.Logger

	newJoinCode  room.JoinCodeGenerator
	historyLimit int
	group        singleflight.Group
}

// NewManager creates a lifecycle manager.
func NewManager(
	guests GuestStore,
	rooms RoomStore,
	messages MessageStore,
	registry ConnectionRegistry,
	broadcaster Broadcaster,
	logger types.Logger,
	opts ...Option,
) (*Manager, error) {
	m := &Manager{
		guests:       guests,
		rooms:        rooms,
		messages:     messages,
		registry:     registry,
		broadcaster:  broadcaster,
		notifier:     nopNotifier{},
		logger:       logger,
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newJoinCode == nil {
		gen, err := room.NewJoinCodeGenerator()
		if err != nil {
			return nil, err
		}
		m.newJoinCode = gen
	}
	return m, nil
}

// ChooseName creates a guest with the given display name. currentGuestID is
// the guest already bound to the caller's session, if any.
func (m *Manager) ChooseName(ctx context.Context, currentGuestID, name string) (*guest.Guest, error) {
	if currentGuestID != "" {
		_, err := m.guests.FindByID(ctx, currentGuestID)
		switch {
		case err == nil:
			return nil, chat.ErrNameAlreadyChosen
		case !errors.Is(err, guest.ErrNotFound):
			return nil, chat.StoreFailure("find guest", err)
		}
		// The session outlived its guest; a new name may be chosen.
	}

	if err := guest.ValidateName(name); err != nil {
		return nil, err
	}

	g := &guest.Guest{
		ID:       uuid.New().String(),
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}
	if err := m.guests.Create(ctx, g); err != nil {
		return nil, chat.StoreFailure("create guest", err)
	}

	m.logger.Info("Guest chose name", "guestID", g.ID, "name", g.Name)
	return g, nil
}

// GetName returns the guest's display name, or "" when there is no such guest.
func (m *Manager) GetName(ctx context.Context, guestID string) (string, error) {
	if guestID == "" {
		return "", nil
	}
	g, err := m.guests.FindByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, guest.ErrNotFound) {
			return "", nil
		}
		return "", chat.StoreFailure("find guest", err)
	}
	return g.Name, nil
}

func (m *Manager) requireGuest(ctx context.Context, guestID string) (*guest.Guest, error) {
	if guestID == "" {
		return nil, chat.ErrNameNotChosen
	}
	g, err := m.guests.FindByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, guest.ErrNotFound) {
			return nil, chat.Wrap(chat.ErrNameNotChosen, err)
		}
		return nil, chat.StoreFailure("find guest", err)
	}
	return g, nil
}

// CreateRoom creates a room and moves its creator into it. The creator's
// previous room sees them leave only once the move has been written.
func (m *Manager) CreateRoom(ctx context.Context, guestID, name string, isPrivate bool) (*CreatedRoom, error) {
	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if err := room.ValidateRoomName(name); err != nil {
		return nil, err
	}

	r, err := m.insertRoom(ctx, g.ID, name, isPrivate)
	if err != nil {
		return nil, err
	}

	previous, err := m.moveGuest(ctx, g, r.ID)
	if err != nil {
		m.discardRoom(ctx, r.ID)
		return nil, err
	}
	m.departed(ctx, g.ID, previous)

	m.invalidateDirectory(ctx)
	m.notifier.RoomCreated(events.RoomCreatedEvent{
		RoomID:    r.ID,
		RoomName:  r.Name,
		IsPrivate: r.IsPrivate,
		CreatedBy: g.ID,
		Timestamp: r.CreatedAt,
	})

	m.logger.Info("Room created",
		"roomID", r.ID,
		"name", r.Name,
		"private", r.IsPrivate,
		"guestID", g.ID)

	return &CreatedRoom{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		JoinCode:  r.JoinCode,
	}, nil
}

// insertRoom persists a new room, drawing join codes until one is unused.
func (m *Manager) insertRoom(ctx context.Context, creatorID, name string, isPrivate bool) (*room.Room, error) {
	for attempt := 1; attempt <= maxJoinCodeAttempts; attempt++ {
		r := &room.Room{
			ID:        uuid.New().String(),
			Name:      name,
			IsPrivate: isPrivate,
			JoinCode:  m.newJoinCode(),
			CreatedBy: creatorID,
			CreatedAt: time.Now().UTC(),
		}
		err := m.rooms.Create(ctx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, room.ErrJoinCodeTaken) {
			return nil, chat.StoreFailure("create room", err)
		}
		m.logger.Debug("Join code collision", "attempt", attempt)
	}
	return nil, chat.StoreFailure("create room", errJoinCodesExhausted)
}

// discardRoom undoes insertRoom after a later step of CreateRoom failed.
func (m *Manager) discardRoom(ctx context.Context, roomID string) {
	if _, err := m.rooms.Delete(context.WithoutCancel(ctx), roomID); err != nil {
		m.logger.Error("Failed to discard room after failed create", "roomID", roomID, "error", err)
	}
}

// JoinRoom moves a guest into the room with the given join code. The room's
// members, including the joining guest, receive the new member list before
// JoinRoom returns.
func (m *Manager) JoinRoom(ctx context.Context, guestID, code string) (*JoinedRoom, error) {
	if err := room.ValidateJoinCode(code); err != nil {
		return nil, err
	}
	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}

	r, err := m.rooms.FindByJoinCode(ctx, code)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return nil, chat.Wrap(chat.ErrRoomNotFound, err)
		}
		return nil, chat.StoreFailure("find room", err)
	}

	joined := &JoinedRoom{ID: r.ID, Name: r.Name, Code: code}
	if g.InRoom(r.ID) {
		return joined, nil
	}

	previous, err := m.moveGuest(ctx, g, r.ID)
	if err != nil {
		return nil, err
	}

	// The last member may have left, deleting the room, between the lookup
	// and the membership write. Back out instead of joining a deleted room.
	if _, err := m.rooms.FindByID(ctx, r.ID); err != nil {
		m.moveBack(ctx, g.ID, r.ID, previous)
		if errors.Is(err, room.ErrNotFound) {
			return nil, chat.Wrap(chat.ErrRoomNotFound, err)
		}
		return nil, chat.StoreFailure("find room", err)
	}
	m.departed(ctx, g.ID, previous)

	count, err := m.broadcastMembership(ctx, r)
	if err != nil {
		// Unwind through leave so an emptied room is cascaded as usual.
		if leaveErr := m.leave(context.WithoutCancel(ctx), g.ID, r.ID, false); leaveErr != nil {
			m.logger.Error("Failed to unwind join", "guestID", g.ID, "roomID", r.ID, "error", leaveErr)
		}
		return nil, err
	}

	m.invalidateDirectory(ctx)
	m.notifier.MembershipChanged(events.MembershipChangedEvent{
		RoomID:     r.ID,
		GuestID:    g.ID,
		Action:     events.ActionJoined,
		GuestCount: count,
		Timestamp:  time.Now().UTC(),
	})

	m.logger.Info("Guest joined room", "guestID", g.ID, "roomID", r.ID, "guests", count)
	return joined, nil
}

// moveGuest writes the guest's membership from their current room to roomID
// in one compare-and-set and returns the room they were in, or "". A guest
// whose membership changed since it was read is re-read and tried again.
func (m *Manager) moveGuest(ctx context.Context, g *guest.Guest, roomID string) (string, error) {
	for attempt := 1; attempt <= maxMoveAttempts; attempt++ {
		previous := g.RoomID()
		moved, err := m.guests.MoveToRoom(ctx, g.ID, previous, roomID)
		if err != nil {
			return "", chat.StoreFailure("join room", err)
		}
		if moved {
			return previous, nil
		}

		g, err = m.requireGuest(ctx, g.ID)
		if err != nil {
			return "", err
		}
		if g.InRoom(roomID) {
			return "", nil
		}
	}
	return "", chat.StoreFailure("join room", errMembershipContended)
}

// moveBack undoes moveGuest after the room turned out to be gone. When the
// previous room cannot be restored the guest ends up in no room and the
// previous room is told they left.
func (m *Manager) moveBack(ctx context.Context, guestID, roomID, previous string) {
	ctx = context.WithoutCancel(ctx)
	if previous != "" {
		moved, err := m.guests.MoveToRoom(ctx, guestID, roomID, previous)
		if err != nil {
			m.logger.Error("Failed to restore membership", "guestID", guestID, "roomID", previous, "error", err)
		} else if moved {
			if _, err := m.rooms.FindByID(ctx, previous); err == nil {
				return
			}
			roomID = previous
		}
	}
	m.clearMembership(ctx, guestID, roomID)
	m.departed(ctx, guestID, previous)
}

func (m *Manager) clearMembership(ctx context.Context, guestID, roomID string) {
	if _, err := m.guests.ClearCurrentRoom(context.WithoutCancel(ctx), guestID, roomID); err != nil {
		m.logger.Error("Failed to clear membership", "guestID", guestID, "roomID", roomID, "error", err)
	}
}

// LeaveRoom takes a guest out of their current room and closes their
// connection to it.
func (m *Manager) LeaveRoom(ctx context.Context, guestID string) error {
	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return err
	}
	roomID := g.RoomID()
	if roomID == "" {
		return chat.ErrRoomNotJoined
	}
	return m.leave(ctx, g.ID, roomID, true)
}

// Disconnect is the leave of a connection that has closed and already
// released its registry entry. It is a no-op when the guest is no longer a
// member of roomID, so a disconnect racing an explicit leave changes
// membership only once.
func (m *Manager) Disconnect(ctx context.Context, guestID, roomID string) error {
	if guestID == "" || roomID == "" {
		return nil
	}
	return m.leave(ctx, guestID, roomID, false)
}

// leave removes guestID from roomID. It runs as a series of idempotent steps
// rather than a transaction; every step tolerates a concurrent leave having
// done it already.
func (m *Manager) leave(ctx context.Context, guestID, roomID string, unregister bool) error {
	ctx = context.WithoutCancel(ctx)

	// Compare-and-clear the membership. Of several racing leaves for the
	// same guest and room, exactly one gets past this point.
	cleared, err := m.guests.ClearCurrentRoom(ctx, guestID, roomID)
	if err != nil {
		return chat.StoreFailure("leave room", err)
	}
	if !cleared {
		return nil
	}
	return m.afterLeave(ctx, guestID, roomID, unregister)
}

// departed runs the post-leave steps for a room the guest has already been
// moved out of. The move is committed by then, so failures are logged and
// left for SweepEmptyRooms.
func (m *Manager) departed(ctx context.Context, guestID, roomID string) {
	if roomID == "" {
		return
	}
	if err := m.afterLeave(context.WithoutCancel(ctx), guestID, roomID, true); err != nil {
		m.logger.Error("Failed to finish leaving previous room", "guestID", guestID, "roomID", roomID, "error", err)
	}
}

// afterLeave is everything that follows a guest's membership of roomID
// ending: their connection to it is dropped, then whoever is left hears about
// it, or the room goes when nobody is.
func (m *Manager) afterLeave(ctx context.Context, guestID, roomID string, unregister bool) error {
	if unregister {
		if peer := m.registry.Unregister(roomID, guestID); peer != nil {
			_ = peer.CloseWith(broadcast.CloseNormal, broadcast.ReasonLeftRoom)
		}
	}

	remaining, err := m.guests.CountByRoom(ctx, roomID)
	if err != nil {
		return chat.StoreFailure("count room members", err)
	}
	if remaining == 0 {
		return m.deleteRoom(ctx, roomID)
	}

	r, err := m.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return nil
		}
		return chat.StoreFailure("find room", err)
	}
	count, err := m.broadcastMembership(ctx, r)
	if err != nil {
		return err
	}

	m.invalidateDirectory(ctx)
	m.notifier.MembershipChanged(events.MembershipChangedEvent{
		RoomID:     roomID,
		GuestID:    guestID,
		Action:     events.ActionLeft,
		GuestCount: count,
		Timestamp:  time.Now().UTC(),
	})

	m.logger.Info("Guest left room", "guestID", guestID, "roomID", roomID, "guests", count)
	return nil
}

// deleteRoom removes an empty room and then its messages. Only the caller
// whose delete removed the room row carries on with the messages, so racing
// leaves cascade once.
//
// A join that writes its membership after the member count read zero but
// before the row is gone ends up in a deleted room. JoinRoom re-reads the
// room after writing membership to catch most of these, and GetRoom clears
// membership that points at a missing room.
func (m *Manager) deleteRoom(ctx context.Context, roomID string) error {
	history, err := m.messages.FindByRoom(ctx, roomID, 0)
	if err != nil {
		return chat.StoreFailure("find room messages", err)
	}

	deleted, err := m.rooms.Delete(ctx, roomID)
	if err != nil {
		return chat.StoreFailure("delete room", err)
	}
	if !deleted {
		return nil
	}

	// The room is already unreachable, so a failure here only leaves
	// orphans for SweepEmptyRooms.
	removed, err := m.messages.DeleteByRoom(ctx, roomID)
	if err != nil {
		m.logger.Error("Failed to delete messages of deleted room", "roomID", roomID, "error", err)
	}

	var paths []string
	for _, msg := range history {
		for _, a := range msg.Attachments {
			paths = append(paths, a.Path)
		}
	}

	m.invalidateDirectory(ctx)
	m.notifier.RoomDeleted(events.RoomDeletedEvent{
		RoomID:          roomID,
		MessagesDeleted: removed,
		AttachmentPaths: paths,
		Timestamp:       time.Now().UTC(),
	})

	m.logger.Info("Room deleted", "roomID", roomID, "messages", removed)
	return nil
}

// broadcastMembership sends the room's current member list to the room and
// returns the number of members.
func (m *Manager) broadcastMembership(ctx context.Context, r *room.Room) (int, error) {
	members, err := m.guests.FindByRoom(ctx, r.ID)
	if err != nil {
		return 0, chat.StoreFailure("find room members", err)
	}

	env, err := broadcast.NewEnvelope(broadcast.PayloadMembershipUpdate, broadcast.MembershipUpdatePayload{
		Guests: guestPayloads(members, r.CreatedBy),
	})
	if err != nil {
		return 0, chat.StoreFailure("encode membership update", err)
	}
	if _, err := m.broadcaster.Broadcast(context.WithoutCancel(ctx), r.ID, env); err != nil {
		return 0, chat.StoreFailure("broadcast membership update", err)
	}
	return len(members), nil
}

func guestPayloads(members []*guest.Guest, creatorID string) []broadcast.GuestPayload {
	payloads := make([]broadcast.GuestPayload, 0, len(members))
	for _, g := range members {
		payloads = append(payloads, broadcast.GuestPayload{
			Name:          g.Name,
			IsRoomCreator: g.ID == creatorID,
		})
	}
	return payloads
}

// EndSession removes a guest: they leave their room, the guest is deleted and
// so is every room they created that nobody is in.
func (m *Manager) EndSession(ctx context.Context, guestID string) error {
	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return err
	}

	if roomID := g.RoomID(); roomID != "" {
		if err := m.leave(ctx, g.ID, roomID, true); err != nil {
			return err
		}
	}

	if err := m.guests.Delete(ctx, g.ID); err != nil && !errors.Is(err, guest.ErrNotFound) {
		return chat.StoreFailure("delete guest", err)
	}

	created, err := m.rooms.FindByCreator(ctx, g.ID)
	if err != nil {
		return chat.StoreFailure("find created rooms", err)
	}
	for _, r := range created {
		if err := m.deleteIfEmpty(ctx, r.ID); err != nil {
			return err
		}
	}

	m.logger.Info("Session ended", "guestID", g.ID)
	return nil
}

func (m *Manager) deleteIfEmpty(ctx context.Context, roomID string) error {
	count, err := m.guests.CountByRoom(ctx, roomID)
	if err != nil {
		return chat.StoreFailure("count room members", err)
	}
	if count > 0 {
		return nil
	}
	return m.deleteRoom(ctx, roomID)
}

// PostMessage persists a message and then fans it out to the room. Nothing
// is broadcast unless the message was saved.
func (m *Manager) PostMessage(ctx context.Context, guestID, roomID, content string, attachments []room.Attachment) (*room.Message, error) {
	if err := room.ValidateContent(content); err != nil {
		return nil, err
	}
	if err := room.ValidateAttachments(attachments); err != nil {
		return nil, err
	}

	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if roomID == "" || !g.InRoom(roomID) {
		return nil, chat.ErrRoomNotJoined
	}

	if attachments == nil {
		attachments = []room.Attachment{}
	}
	msg := &room.Message{
		ID:          ulid.Make().String(),
		Content:     content,
		Attachments: attachments,
		SentBy:      g.ID,
		RoomID:      roomID,
		SentAt:      time.Now().UTC(),
	}
	ctx = context.WithoutCancel(ctx)
	if err := m.messages.Create(ctx, msg); err != nil {
		return nil, chat.StoreFailure("save message", err)
	}

	env, err := broadcast.NewEnvelope(broadcast.PayloadChatMessage, broadcast.ChatMessagePayload{
		Content:     msg.Content,
		Attachments: msg.Attachments,
		SentAt:      msg.SentAt,
		SentBy:      g.Name,
	})
	if err != nil {
		return nil, chat.StoreFailure("encode chat message", err)
	}
	recipients, err := m.broadcaster.Broadcast(ctx, roomID, env)
	if err != nil {
		return nil, chat.StoreFailure("broadcast chat message", err)
	}

	m.notifier.MessagePosted(events.MessagePostedEvent{
		MessageID:   msg.ID,
		RoomID:      roomID,
		GuestID:     g.ID,
		Attachments: len(msg.Attachments),
		Recipients:  recipients,
		Timestamp:   msg.SentAt,
	})

	m.logger.Debug("Message posted", "messageID", msg.ID, "roomID", roomID, "recipients", recipients)
	return msg, nil
}

// GetRoom returns the guest's view of their current room.
func (m *Manager) GetRoom(ctx context.Context, guestID string) (*RoomView, error) {
	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	roomID := g.RoomID()
	if roomID == "" {
		return nil, chat.ErrRoomNotJoined
	}

	r, err := m.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			m.clearMembership(ctx, g.ID, roomID)
			return nil, chat.Wrap(chat.ErrRoomNotFound, err)
		}
		return nil, chat.StoreFailure("find room", err)
	}

	members, err := m.guests.FindByRoom(ctx, r.ID)
	if err != nil {
		return nil, chat.StoreFailure("find room members", err)
	}
	history, err := m.messages.FindByRoom(ctx, r.ID, m.historyLimit)
	if err != nil {
		return nil, chat.StoreFailure("find room messages", err)
	}
	names, err := m.senderNames(ctx, members, history)
	if err != nil {
		return nil, err
	}

	view := &RoomView{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		Guests:    guestPayloads(members, r.CreatedBy),
		Messages:  make([]broadcast.ChatMessagePayload, 0, len(history)),
	}
	if r.CreatedBy == g.ID {
		code := r.JoinCode
		view.JoinCode = &code
	}
	for _, msg := range history {
		sentBy, ok := names[msg.SentBy]
		if !ok {
			sentBy = DepartedSenderName
		}
		view.Messages = append(view.Messages, broadcast.ChatMessagePayload{
			Content:     msg.Content,
			Attachments: msg.Attachments,
			SentAt:      msg.SentAt,
			SentBy:      sentBy,
		})
	}
	return view, nil
}

// CurrentRoom returns the id of the guest's current room. Unlike GetRoom it
// loads neither members nor history.
func (m *Manager) CurrentRoom(ctx context.Context, guestID string) (string, error) {
	g, err := m.requireGuest(ctx, guestID)
	if err != nil {
		return "", err
	}
	roomID := g.RoomID()
	if roomID == "" {
		return "", chat.ErrRoomNotJoined
	}
	if _, err := m.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, room.ErrNotFound) {
			m.clearMembership(ctx, g.ID, roomID)
			return "", chat.Wrap(chat.ErrRoomNotFound, err)
		}
		return "", chat.StoreFailure("find room", err)
	}
	return roomID, nil
}

// senderNames resolves the display names of message senders. Current members
// are already loaded; only the rest are looked up.
func (m *Manager) senderNames(ctx context.Context, members []*guest.Guest, history []*room.Message) (map[string]string, error) {
	names := make(map[string]string, len(members))
	for _, g := range members {
		names[g.ID] = g.Name
	}

	var missing []string
	seen := make(map[string]bool)
	for _, msg := range history {
		if _, ok := names[msg.SentBy]; ok || seen[msg.SentBy] {
			continue
		}
		seen[msg.SentBy] = true
		missing = append(missing, msg.SentBy)
	}
	if len(missing) == 0 {
		return names, nil
	}

	others, err := m.guests.FindByIDs(ctx, missing)
	if err != nil {
		return nil, chat.StoreFailure("find message senders", err)
	}
	for _, g := range others {
		names[g.ID] = g.Name
	}
	return names, nil
}

// SweepEmptyRooms deletes rooms nobody is in and messages whose room is gone.
// It repairs what an interrupted cascade or a restart left behind.
func (m *Manager) SweepEmptyRooms(ctx context.Context) (int, error) {
	all, err := m.rooms.FindAll(ctx)
	if err != nil {
		return 0, chat.StoreFailure("find rooms", err)
	}

	swept := 0
	for _, r := range all {
		count, err := m.guests.CountByRoom(ctx, r.ID)
		if err != nil {
			return swept, chat.StoreFailure("count room members", err)
		}
		if count > 0 {
			continue
		}
		if err := m.deleteRoom(ctx, r.ID); err != nil {
			return swept, err
		}
		swept++
	}

	orphans, err := m.messages.DeleteOrphaned(ctx)
	if err != nil {
		return swept, chat.StoreFailure("delete orphaned messages", err)
	}
	m.resetDirectory(ctx)
	if swept > 0 || orphans > 0 {
		m.logger.Info("Swept empty rooms", "rooms", swept, "orphanedMessages", orphans)
	}
	return swept, nil
}
