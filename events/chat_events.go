package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Membership actions carried by MembershipChangedEvent.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// RoomCreatedEvent is emitted when a guest creates a room.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	IsPrivate bool      `json:"is_private"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomDeletedEvent is emitted when the last guest leaves a room and the room
// and its messages have been removed.
type RoomDeletedEvent struct {
	RoomID          string    `json:"room_id"`
	MessagesDeleted int64     `json:"messages_deleted"`
	AttachmentPaths []string  `json:"attachment_paths,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MembershipChangedEvent is emitted when a guest joins or leaves a room that
// still exists afterwards.
type MembershipChangedEvent struct {
	RoomID     string    `json:"room_id"`
	GuestID    string    `json:"guest_id"`
	Action     string    `json:"action"`
	GuestCount int       `json:"guest_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessagePostedEvent is emitted after a message has been persisted and fanned out.
type MessagePostedEvent struct {
	MessageID   string    `json:"message_id"`
	RoomID      string    `json:"room_id"`
	GuestID     string    `json:"guest_id"`
	Attachments int       `json:"attachments"`
	Recipients  int       `json:"recipients"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event definitions for the room lifecycle.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"lifecycle",
		"RoomCreated",
		"v1",
	)

	RoomDeletedV1 = helper.EventDefinition[RoomDeletedEvent](
		"lifecycle",
		"RoomDeleted",
		"v1",
	)

	MembershipChangedV1 = helper.EventDefinition[MembershipChangedEvent](
		"lifecycle",
		"MembershipChanged",
		"v1",
	)

	MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
		"lifecycle",
		"MessagePosted",
		"v1",
	)
)
