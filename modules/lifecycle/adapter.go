package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/viral32111/LiveChat/domain/room"
)

// LifecyclePort is the lifecycle API as seen by other modules.
type LifecyclePort interface {
	ChooseName(ctx context.Context, currentGuestID, name string) (guestID, chosen string, err error)
	GetName(ctx context.Context, guestID string) (string, error)
	CreateRoom(ctx context.Context, guestID, name string, isPrivate bool) (*CreatedRoom, error)
	JoinRoom(ctx context.Context, guestID, code string) (*JoinedRoom, error)
	LeaveRoom(ctx context.Context, guestID string) error
	Disconnect(ctx context.Context, guestID, roomID string) error
	EndSession(ctx context.Context, guestID string) error
	GetRoom(ctx context.Context, guestID string) (*RoomView, error)
	CurrentRoom(ctx context.Context, guestID string) (string, error)
	ListPublicRooms(ctx context.Context, guestID string) ([]PublicRoom, error)
	PostMessage(ctx context.Context, guestID, roomID, content string, attachments []room.Attachment) (string, error)
}

// LifecycleAdapter implements LifecyclePort over request-reply services.
type LifecycleAdapter struct {
	container mono.ServiceContainer
}

// NewLifecycleAdapter creates a new LifecycleAdapter.
func NewLifecycleAdapter(container mono.ServiceContainer) LifecyclePort {
	if container == nil {
		panic("lifecycle: ServiceContainer is nil")
	}
	return &LifecycleAdapter{container: container}
}

// callService makes a typed request-reply call to service.
func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("failed to call %s: %w", service, err)
	}
	return nil
}

// ChooseName creates a guest with the given display name.
func (a *LifecycleAdapter) ChooseName(ctx context.Context, currentGuestID, name string) (string, string, error) {
	req := ChooseNameRequest{CurrentGuestID: currentGuestID, Name: name}
	var resp ChooseNameResponse
	if err := callService(ctx, a.container, ServiceChooseName, &req, &resp); err != nil {
		return "", "", err
	}
	if err := resp.Failure.Err(); err != nil {
		return "", "", err
	}
	return resp.GuestID, resp.Name, nil
}

// GetName returns the guest's display name.
func (a *LifecycleAdapter) GetName(ctx context.Context, guestID string) (string, error) {
	req := GuestRequest{GuestID: guestID}
	var resp GetNameResponse
	if err := callService(ctx, a.container, ServiceGetName, &req, &resp); err != nil {
		return "", err
	}
	if err := resp.Failure.Err(); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// CreateRoom creates a room and moves the guest into it.
func (a *LifecycleAdapter) CreateRoom(ctx context.Context, guestID, name string, isPrivate bool) (*CreatedRoom, error) {
	req := CreateRoomRequest{GuestID: guestID, Name: name, IsPrivate: isPrivate}
	var resp CreateRoomResponse
	if err := callService(ctx, a.container, ServiceCreateRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// JoinRoom moves the guest into the room with the given join code.
func (a *LifecycleAdapter) JoinRoom(ctx context.Context, guestID, code string) (*JoinedRoom, error) {
	req := JoinRoomRequest{GuestID: guestID, Code: code}
	var resp JoinRoomResponse
	if err := callService(ctx, a.container, ServiceJoinRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// LeaveRoom takes the guest out of their current room.
func (a *LifecycleAdapter) LeaveRoom(ctx context.Context, guestID string) error {
	req := LeaveRoomRequest{GuestID: guestID}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceLeaveRoom, &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

// Disconnect reports a closed connection of guestID in roomID.
func (a *LifecycleAdapter) Disconnect(ctx context.Context, guestID, roomID string) error {
	req := LeaveRoomRequest{GuestID: guestID, RoomID: roomID, Disconnected: true}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceLeaveRoom, &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

// EndSession removes the guest.
func (a *LifecycleAdapter) EndSession(ctx context.Context, guestID string) error {
	req := GuestRequest{GuestID: guestID}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceEndSession, &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

// GetRoom returns the guest's view of their current room.
func (a *LifecycleAdapter) GetRoom(ctx context.Context, guestID string) (*RoomView, error) {
	req := GuestRequest{GuestID: guestID}
	var resp GetRoomResponse
	if err := callService(ctx, a.container, ServiceGetRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// CurrentRoom returns the id of the guest's current room.
func (a *LifecycleAdapter) CurrentRoom(ctx context.Context, guestID string) (string, error) {
	req := GuestRequest{GuestID: guestID}
	var resp CurrentRoomResponse
	if err := callService(ctx, a.container, ServiceCurrentRoom, &req, &resp); err != nil {
		return "", err
	}
	if err := resp.Failure.Err(); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// ListPublicRooms returns the public room directory.
func (a *LifecycleAdapter) ListPublicRooms(ctx context.Context, guestID string) ([]PublicRoom, error) {
	req := GuestRequest{GuestID: guestID}
	var resp ListRoomsResponse
	if err := callService(ctx, a.container, ServiceListRooms, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// PostMessage posts a message to the guest's room and returns its id.
func (a *LifecycleAdapter) PostMessage(ctx context.Context, guestID, roomID, content string, attachments []room.Attachment) (string, error) {
	req := PostMessageRequest{GuestID: guestID, RoomID: roomID, Content: content, Attachments: attachments}
	var resp PostMessageResponse
	if err := callService(ctx, a.container, ServicePostMessage, &req, &resp); err != nil {
		return "", err
	}
	if err := resp.Failure.Err(); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}
