package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a room is not found.
	ErrNotFound = errors.New("room not found")

	// ErrJoinCodeTaken is returned when an existing room already uses the join code.
	ErrJoinCodeTaken = errors.New("join code already in use")
)

// Repository provides access to room storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new room repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new room. The database must be opened with TranslateError
// for join code collisions to surface as ErrJoinCodeTaken.
func (r *Repository) Create(ctx context.Context, room *Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrJoinCodeTaken
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// Delete removes a room by ID and reports whether this call removed it.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&Room{}, "id = ?", id)
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}
	return result.RowsAffected == 1, nil
}

// FindByID retrieves a room by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*Room, error) {
	var room Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// FindByJoinCode retrieves a room by join code, ignoring case.
func (r *Repository) FindByJoinCode(ctx context.Context, code string) (*Room, error) {
	var room Room
	err := r.db.WithContext(ctx).First(&room, "join_code_key = ?", NormalizeJoinCode(code)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room by join code: %w", err)
	}
	return &room, nil
}

// FindAll retrieves every room.
func (r *Repository) FindAll(ctx context.Context) ([]*Room, error) {
	var rooms []*Room
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	return rooms, nil
}

// FindPublic retrieves every public room, oldest first.
func (r *Repository) FindPublic(ctx context.Context) ([]*Room, error) {
	var rooms []*Room
	err := r.db.WithContext(ctx).Where("is_private = ?", false).Order("created_at ASC").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find public rooms: %w", err)
	}
	return rooms, nil
}

// FindByCreator retrieves the rooms created by a guest.
func (r *Repository) FindByCreator(ctx context.Context, guestID string) ([]*Room, error) {
	var rooms []*Room
	if err := r.db.WithContext(ctx).Where("created_by = ?", guestID).Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to find rooms by creator: %w", err)
	}
	return rooms, nil
}

// MessageRepository provides access to message storage.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create saves a new message.
func (r *MessageRepository) Create(ctx context.Context, msg *Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindByRoom retrieves the most recent limit messages of a room, oldest first.
// A limit of zero or less returns every message.
func (r *MessageRepository) FindByRoom(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	var messages []*Message
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("sent_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// DeleteByRoom removes every message of a room and returns how many were removed.
func (r *MessageRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&Message{})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return result.RowsAffected, nil
}

// DeleteOrphaned removes messages whose room no longer exists.
func (r *MessageRepository) DeleteOrphaned(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("room_id NOT IN (?)", r.db.Model(&Room{}).Select("id")).
		Delete(&Message{})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to delete orphaned messages: %w", err)
	}
	return result.RowsAffected, nil
}

// LatestSentAt returns when the newest message of a room was sent, or nil
// when the room has no messages.
func (r *MessageRepository) LatestSentAt(ctx context.Context, roomID string) (*time.Time, error) {
	var msg Message
	err := r.db.WithContext(ctx).
		Select("sent_at").
		Where("room_id = ?", roomID).
		Order("sent_at DESC").
		Take(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest message: %w", err)
	}
	return &msg.SentAt, nil
}
