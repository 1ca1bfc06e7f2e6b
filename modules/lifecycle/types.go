package lifecycle

import (
	"github.com/viral32111/LiveChat/domain/chat"
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/modules/broadcast"
)

// DepartedSenderName is shown for messages whose sender has ended their session.
const DepartedSenderName = "[departed]"

// CreatedRoom is returned to the creator of a room.
type CreatedRoom struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	JoinCode  string `json:"joinCode"`
}

// JoinedRoom is returned after joining a room.
type JoinedRoom struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// RoomView is a guest's view of their current room. JoinCode is only set for
// the room's creator.
type RoomView struct {
	ID        string                         `json:"id"`
	Name      string                         `json:"name"`
	IsPrivate bool                           `json:"isPrivate"`
	JoinCode  *string                        `json:"joinCode"`
	Guests    []broadcast.GuestPayload       `json:"guests"`
	Messages  []broadcast.ChatMessagePayload `json:"messages"`
}

// PublicRoom is one entry of the public room directory.
type PublicRoom struct {
	Name                string `json:"name"`
	GuestCount          int    `json:"guestCount"`
	LatestMessageSentAt *int64 `json:"latestMessageSentAt"` // unix seconds
	JoinCode            string `json:"joinCode"`
}

// Request-reply service payloads. Every response carries a Failure instead of
// a transport error so the caller gets the typed error back.

// ChooseNameRequest is the request for the choose-name service.
type ChooseNameRequest struct {
	CurrentGuestID string `json:"current_guest_id"`
	Name           string `json:"name"`
}

// ChooseNameResponse is the response from the choose-name service.
type ChooseNameResponse struct {
	GuestID string        `json:"guest_id,omitempty"`
	Name    string        `json:"name,omitempty"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// GuestRequest identifies the calling guest.
type GuestRequest struct {
	GuestID string `json:"guest_id"`
}

// GetNameResponse is the response from the get-name service.
type GetNameResponse struct {
	Name    string        `json:"name"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// CreateRoomRequest is the request for the create-room service.
type CreateRoomRequest struct {
	GuestID   string `json:"guest_id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

// CreateRoomResponse is the response from the create-room service.
type CreateRoomResponse struct {
	Room    *CreatedRoom  `json:"room,omitempty"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// JoinRoomRequest is the request for the join-room service.
type JoinRoomRequest struct {
	GuestID string `json:"guest_id"`
	Code    string `json:"code"`
}

// JoinRoomResponse is the response from the join-room service.
type JoinRoomResponse struct {
	Room    *JoinedRoom   `json:"room,omitempty"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// LeaveRoomRequest is the request for the leave-room service. Disconnected
// marks the leave of a closed websocket, which has already released its
// registry entry and names the room it belonged to.
type LeaveRoomRequest struct {
	GuestID      string `json:"guest_id"`
	RoomID       string `json:"room_id,omitempty"`
	Disconnected bool   `json:"disconnected,omitempty"`
}

// AckResponse is the response of services that return nothing but success.
type AckResponse struct {
	Failure *chat.Failure `json:"failure,omitempty"`
}

// GetRoomResponse is the response from the get-room service.
type GetRoomResponse struct {
	Room    *RoomView     `json:"room,omitempty"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// CurrentRoomResponse is the response from the current-room service.
type CurrentRoomResponse struct {
	RoomID  string        `json:"room_id,omitempty"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// ListRoomsResponse is the response from the list-rooms service.
type ListRoomsResponse struct {
	Rooms   []PublicRoom  `json:"rooms"`
	Failure *chat.Failure `json:"failure,omitempty"`
}

// PostMessageRequest is the request for the post-message service.
type PostMessageRequest struct {
	GuestID     string            `json:"guest_id"`
	RoomID      string            `json:"room_id"`
	Content     string            `json:"content"`
	Attachments []room.Attachment `json:"attachments"`
}

// PostMessageResponse is the response from the post-message service.
type PostMessageResponse struct {
	MessageID string        `json:"message_id,omitempty"`
	Failure   *chat.Failure `json:"failure,omitempty"`
}
