// Package room is the room store: rooms, their messages and join codes.
package room

import (
	"time"

	"gorm.io/gorm"
)

// Room is a chat room. Rooms are hard deleted once their last guest leaves.
type Room struct {
	ID          string    `gorm:"primarykey;size:36" json:"id"`
	Name        string    `gorm:"size:50;not null" json:"name"`
	IsPrivate   bool      `gorm:"not null;default:false;index" json:"is_private"`
	JoinCode    string    `gorm:"size:6;not null" json:"join_code"`
	JoinCodeKey string    `gorm:"size:6;not null;uniqueIndex" json:"-"`
	CreatedBy   string    `gorm:"size:36;not null;index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for Room model.
func (Room) TableName() string {
	return "rooms"
}

// BeforeCreate derives the lookup key from the join code.
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	r.JoinCodeKey = NormalizeJoinCode(r.JoinCode)
	return nil
}

// Attachment references an uploaded file.
type Attachment struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Message is an immutable chat message.
type Message struct {
	ID          string       `gorm:"primarykey;size:26" json:"id"`
	Content     string       `gorm:"size:800;not null" json:"content"`
	Attachments []Attachment `gorm:"serializer:json" json:"attachments"`
	SentBy      string       `gorm:"size:36;not null" json:"sent_by"`
	RoomID      string       `gorm:"size:36;not null;index:idx_messages_room_sent,priority:1" json:"room_id"`
	SentAt      time.Time    `gorm:"not null;index:idx_messages_room_sent,priority:2" json:"sent_at"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}
