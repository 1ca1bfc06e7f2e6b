package lifecycle

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/viral32111/LiveChat/domain/chat"
)

// The directory is invalidated on every membership change. Posting a message
// does not invalidate it, so LatestMessageSentAt may lag by up to the cache TTL.
const (
	directoryCacheKey     = "rooms:public"
	directoryCachePattern = "rooms:*"
)

// ListPublicRooms returns every public room, busiest first. Concurrent misses
// share a single load from the store.
func (m *Manager) ListPublicRooms(ctx context.Context) ([]PublicRoom, error) {
	if m.directory != nil {
		var cached []PublicRoom
		found, err := m.directory.Get(ctx, directoryCacheKey, &cached)
		if err != nil {
			m.logger.Warn("Directory cache read failed", "error", err)
		}
		if found {
			return cached, nil
		}
	}

	v, err, _ := m.group.Do(directoryCacheKey, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		rooms, err := m.loadDirectory(loadCtx)
		if err != nil {
			return nil, err
		}
		if m.directory != nil {
			if err := m.directory.Set(loadCtx, directoryCacheKey, rooms); err != nil {
				m.logger.Warn("Directory cache write failed", "error", err)
			}
		}
		return rooms, nil
	})
	if err != nil {
		return nil, err
	}

	rooms, ok := v.([]PublicRoom)
	if !ok {
		return nil, chat.StoreFailure("list public rooms", fmt.Errorf("unexpected directory type %T", v))
	}
	return rooms, nil
}

func (m *Manager) loadDirectory(ctx context.Context) ([]PublicRoom, error) {
	public, err := m.rooms.FindPublic(ctx)
	if err != nil {
		return nil, chat.StoreFailure("find public rooms", err)
	}

	rooms := make([]PublicRoom, 0, len(public))
	for _, r := range public {
		count, err := m.guests.CountByRoom(ctx, r.ID)
		if err != nil {
			return nil, chat.StoreFailure("count room members", err)
		}
		latest, err := m.messages.LatestSentAt(ctx, r.ID)
		if err != nil {
			return nil, chat.StoreFailure("find latest message", err)
		}

		entry := PublicRoom{
			Name:       r.Name,
			GuestCount: int(count),
			JoinCode:   r.JoinCode,
		}
		if latest != nil {
			unix := latest.Unix()
			entry.LatestMessageSentAt = &unix
		}
		rooms = append(rooms, entry)
	}

	slices.SortStableFunc(rooms, func(a, b PublicRoom) int {
		return cmp.Compare(b.GuestCount, a.GuestCount)
	})
	return rooms, nil
}

func (m *Manager) invalidateDirectory(ctx context.Context) {
	if m.directory == nil {
		return
	}
	if err := m.directory.Delete(context.WithoutCancel(ctx), directoryCacheKey); err != nil {
		m.logger.Warn("Directory cache invalidation failed", "error", err)
	}
}

// resetDirectory drops every cached directory entry, including ones written by
// an earlier process against rooms that have since been swept.
func (m *Manager) resetDirectory(ctx context.Context) {
	if m.directory == nil {
		return
	}
	if err := m.directory.DeletePattern(context.WithoutCancel(ctx), directoryCachePattern); err != nil {
		m.logger.Warn("Directory cache reset failed", "error", err)
	}
}
