package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/viral32111/LiveChat/domain/room"
)

// PayloadType identifies the data carried by an Envelope.
type PayloadType int

// Payload types. SendMessage travels client to server, the rest server to client.
const (
	PayloadSendMessage      PayloadType = 0
	PayloadChatMessage      PayloadType = 1
	PayloadMembershipUpdate PayloadType = 2
)

func (t PayloadType) String() string {
	switch t {
	case PayloadSendMessage:
		return "send_message"
	case PayloadChatMessage:
		return "chat_message"
	case PayloadMembershipUpdate:
		return "membership_update"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Envelope is the websocket frame: {"type": int, "data": object}.
type Envelope struct {
	Type PayloadType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrMissingType is returned for a frame without a type field.
var ErrMissingType = errors.New("envelope has no type")

// NewEnvelope encodes data into an envelope of the given type.
func NewEnvelope(t PayloadType, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: raw}, nil
}

// DecodeEnvelope parses a raw frame. Anything that is not a JSON object with
// an integer type is an error.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var wire struct {
		Type *int            `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if wire.Type == nil {
		return Envelope{}, ErrMissingType
	}
	return Envelope{Type: PayloadType(*wire.Type), Data: wire.Data}, nil
}

// SendMessagePayload is what a client sends to post a message.
type SendMessagePayload struct {
	Content     string            `json:"content"`
	Attachments []room.Attachment `json:"attachments"`
}

// DecodeSendMessage parses the data of a SendMessage envelope.
func DecodeSendMessage(env Envelope) (SendMessagePayload, error) {
	var payload SendMessagePayload
	if len(env.Data) == 0 {
		return payload, errors.New("send message envelope has no data")
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode send message data: %w", err)
	}
	return payload, nil
}

// ChatMessagePayload is fanned out to every guest in the room.
type ChatMessagePayload struct {
	Content     string            `json:"content"`
	Attachments []room.Attachment `json:"attachments"`
	SentAt      time.Time         `json:"sentAt"`
	SentBy      string            `json:"sentBy"`
}

// GuestPayload describes one room member.
type GuestPayload struct {
	Name          string `json:"name"`
	IsRoomCreator bool   `json:"isRoomCreator"`
}

// MembershipUpdatePayload is the full, current member list of a room.
type MembershipUpdatePayload struct {
	Guests []GuestPayload `json:"guests"`
}
