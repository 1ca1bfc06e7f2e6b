package lifecycle

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/viral32111/LiveChat/domain/chat"
)

// Service names registered by the lifecycle module.
const (
	ServiceChooseName  = "choose-name"
	ServiceGetName     = "get-name"
	ServiceCreateRoom  = "create-room"
	ServiceJoinRoom    = "join-room"
	ServiceLeaveRoom   = "leave-room"
	ServiceEndSession  = "end-session"
	ServiceGetRoom     = "get-room"
	ServiceCurrentRoom = "current-room"
	ServiceListRooms   = "list-rooms"
	ServicePostMessage = "post-message"
)

// chooseName handles the lifecycle.choose-name service request.
func (m *Module) chooseName(ctx context.Context, req ChooseNameRequest, _ *mono.Msg) (ChooseNameResponse, error) {
	g, err := m.manager.ChooseName(ctx, req.CurrentGuestID, req.Name)
	if err != nil {
		return ChooseNameResponse{Failure: chat.ToFailure(err)}, nil
	}
	return ChooseNameResponse{GuestID: g.ID, Name: g.Name}, nil
}

// getName handles the lifecycle.get-name service request.
func (m *Module) getName(ctx context.Context, req GuestRequest, _ *mono.Msg) (GetNameResponse, error) {
	name, err := m.manager.GetName(ctx, req.GuestID)
	if err != nil {
		return GetNameResponse{Failure: chat.ToFailure(err)}, nil
	}
	return GetNameResponse{Name: name}, nil
}

// createRoom handles the lifecycle.create-room service request.
func (m *Module) createRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	created, err := m.manager.CreateRoom(ctx, req.GuestID, req.Name, req.IsPrivate)
	if err != nil {
		return CreateRoomResponse{Failure: chat.ToFailure(err)}, nil
	}
	return CreateRoomResponse{Room: created}, nil
}

// joinRoom handles the lifecycle.join-room service request.
func (m *Module) joinRoom(ctx context.Context, req JoinRoomRequest, _ *mono.Msg) (JoinRoomResponse, error) {
	joined, err := m.manager.JoinRoom(ctx, req.GuestID, req.Code)
	if err != nil {
		return JoinRoomResponse{Failure: chat.ToFailure(err)}, nil
	}
	return JoinRoomResponse{Room: joined}, nil
}

// leaveRoom handles the lifecycle.leave-room service request.
func (m *Module) leaveRoom(ctx context.Context, req LeaveRoomRequest, _ *mono.Msg) (AckResponse, error) {
	var err error
	if req.Disconnected {
		err = m.manager.Disconnect(ctx, req.GuestID, req.RoomID)
	} else {
		err = m.manager.LeaveRoom(ctx, req.GuestID)
	}
	return AckResponse{Failure: chat.ToFailure(err)}, nil
}

// endSession handles the lifecycle.end-session service request.
func (m *Module) endSession(ctx context.Context, req GuestRequest, _ *mono.Msg) (AckResponse, error) {
	err := m.manager.EndSession(ctx, req.GuestID)
	return AckResponse{Failure: chat.ToFailure(err)}, nil
}

// getRoom handles the lifecycle.get-room service request.
func (m *Module) getRoom(ctx context.Context, req GuestRequest, _ *mono.Msg) (GetRoomResponse, error) {
	view, err := m.manager.GetRoom(ctx, req.GuestID)
	if err != nil {
		return GetRoomResponse{Failure: chat.ToFailure(err)}, nil
	}
	return GetRoomResponse{Room: view}, nil
}

// currentRoom handles the lifecycle.current-room service request.
func (m *Module) currentRoom(ctx context.Context, req GuestRequest, _ *mono.Msg) (CurrentRoomResponse, error) {
	roomID, err := m.manager.CurrentRoom(ctx, req.GuestID)
	if err != nil {
		return CurrentRoomResponse{Failure: chat.ToFailure(err)}, nil
	}
	return CurrentRoomResponse{RoomID: roomID}, nil
}

// listRooms handles the lifecycle.list-rooms service request.
func (m *Module) listRooms(ctx context.Context, req GuestRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	if _, err := m.manager.requireGuest(ctx, req.GuestID); err != nil {
		return ListRoomsResponse{Rooms: []PublicRoom{}, Failure: chat.ToFailure(err)}, nil
	}
	rooms, err := m.manager.ListPublicRooms(ctx)
	if err != nil {
		return ListRoomsResponse{Rooms: []PublicRoom{}, Failure: chat.ToFailure(err)}, nil
	}
	return ListRoomsResponse{Rooms: rooms}, nil
}

// postMessage handles the lifecycle.post-message service request.
func (m *Module) postMessage(ctx context.Context, req PostMessageRequest, _ *mono.Msg) (PostMessageResponse, error) {
	msg, err := m.manager.PostMessage(ctx, req.GuestID, req.RoomID, req.Content, req.Attachments)
	if err != nil {
		return PostMessageResponse{Failure: chat.ToFailure(err)}, nil
	}
	return PostMessageResponse{MessageID: msg.ID}, nil
}
