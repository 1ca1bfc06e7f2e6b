package guest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a guest is not found.
var ErrNotFound = errors.New("guest not found")

// Repository provides access to guest storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new guest repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new guest to the database.
func (r *Repository) Create(ctx context.Context, guest *Guest) error {
	if err := r.db.WithContext(ctx).Create(guest).Error; err != nil {
		return fmt.Errorf("failed to create guest: %w", err)
	}
	return nil
}

// Delete removes a guest by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Guest{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByID retrieves a guest by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*Guest, error) {
	var guest Guest
	if err := r.db.WithContext(ctx).First(&guest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guest: %w", err)
	}
	return &guest, nil
}

// FindByIDs retrieves every existing guest among ids.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]*Guest, error) {
	var guests []*Guest
	if len(ids) == 0 {
		return guests, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("failed to find guests: %w", err)
	}
	return guests, nil
}

// FindByRoom retrieves the guests whose current room is roomID, earliest first.
func (r *Repository) FindByRoom(ctx context.Context, roomID string) ([]*Guest, error) {
	var guests []*Guest
	err := r.db.WithContext(ctx).
		Where("current_room_id = ?", roomID).
		Order("joined_at ASC, id ASC").
		Find(&guests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find guests in room: %w", err)
	}
	return guests, nil
}

// CountByRoom counts the guests whose current room is roomID.
func (r *Repository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Guest{}).Where("current_room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count guests in room: %w", err)
	}
	return count, nil
}

// MoveToRoom sets the guest's current room to roomID only if it is still
// from, where "" means no room, and stamps the join time. Leaving the old room
// and entering the new one is a single write. It reports whether this call
// performed the change; false means the guest is gone or is no longer in from.
func (r *Repository) MoveToRoom(ctx context.Context, id, from, roomID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&Guest{}).Where("id = ?", id)
	if from == "" {
		query = query.Where("current_room_id IS NULL")
	} else {
		query = query.Where("current_room_id = ?", from)
	}
	result := query.Updates(map[string]any{
		"current_room_id": roomID,
		"joined_at":       time.Now(),
	})
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to move guest to room: %w", err)
	}
	return result.RowsAffected == 1, nil
}

// ClearCurrentRoom clears the guest's current room only if it is still roomID.
// It reports whether this call performed the change, so of several racing
// callers exactly one observes true.
func (r *Repository) ClearCurrentRoom(ctx context.Context, id, roomID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Guest{}).
		Where("id = ? AND current_room_id = ?", id, roomID).
		Update("current_room_id", nil)
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to clear current room: %w", err)
	}
	return result.RowsAffected == 1, nil
}
