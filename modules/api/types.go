package api

import (
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"github.com/viral32111/LiveChat/modules/lifecycle"
)

// ChooseNameResponse confirms the chosen display name.
type ChooseNameResponse struct {
	ChosenName string `json:"chosenName"`
}

// NameResponse carries the guest's name, null until one is chosen.
type NameResponse struct {
	Name *string `json:"name"`
}

// PublicRoomsResponse is the public room directory.
type PublicRoomsResponse struct {
	PublicRooms []lifecycle.PublicRoom `json:"publicRooms"`
}

// CreateRoomResponse is returned to the creator of a room.
type CreateRoomResponse struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	JoinCode  string `json:"joinCode"`
}

// JoinRoomResponse confirms a join.
type JoinRoomResponse struct {
	Code string `json:"code"`
}

// RoomResponse is the guest's current room.
type RoomResponse struct {
	Name      string                         `json:"name"`
	IsPrivate bool                           `json:"isPrivate"`
	JoinCode  *string                        `json:"joinCode"`
	Guests    []broadcast.GuestPayload       `json:"guests"`
	Messages  []broadcast.ChatMessagePayload `json:"messages"`
}

// UploadResponse lists the stored attachments in upload order.
type UploadResponse []room.Attachment

// EmptyResponse is the body of requests that return nothing.
type EmptyResponse struct{}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   ErrorCode `json:"error"`
	Message string    `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
