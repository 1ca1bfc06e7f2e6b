// Package guest is the identity store: anonymous guests and their current room.
package guest

import "time"

// Guest is an anonymous participant identified by a chosen display name.
type Guest struct {
	ID            string    `gorm:"primarykey;size:36" json:"id"`
	Name          string    `gorm:"size:30;not null" json:"name"`
	CurrentRoomID *string   `gorm:"size:36;index" json:"current_room_id,omitempty"`
	JoinedAt      time.Time `gorm:"not null" json:"joined_at"` // creation, then last room join
}

// TableName returns the table name for Guest model.
func (Guest) TableName() string {
	return "guests"
}

// InRoom reports whether the guest's current room is roomID.
func (g *Guest) InRoom(roomID string) bool {
	return g.CurrentRoomID != nil && *g.CurrentRoomID == roomID
}

// RoomID returns the current room id, or "" when the guest is in no room.
func (g *Guest) RoomID() string {
	if g.CurrentRoomID == nil {
		return ""
	}
	return *g.CurrentRoomID
}
