package broadcast

import (
	"sync"

	"github.com/go-monolith/mono/pkg/types"
)

// Entry is one live connection of a room.
type Entry struct {
	GuestID string
	Peer    *Peer
}

// Registry maps (room, guest) pairs to live connections. It holds at most one
// connection per pair; registering again replaces the previous one.
// Every method works on memory only and never blocks on I/O.
type Registry struct {
	rooms  map[string]map[string]*Peer // roomID -> guestID -> peer
	logger types.Logger
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger types.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]*Peer),
		logger: logger,
	}
}

// Register stores peer for the pair and returns the connection it replaced,
// if any. The replaced connection is left open for the caller to close.
func (r *Registry) Register(roomID, guestID string, peer *Peer) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	guests, ok := r.rooms[roomID]
	if !ok {
		guests = make(map[string]*Peer)
		r.rooms[roomID] = guests
	}
	replaced := guests[guestID]
	guests[guestID] = peer
	return replaced
}

// Unregister removes the pair and returns its connection. A missing pair is
// not an error; it is logged and nil is returned.
func (r *Registry) Unregister(roomID, guestID string) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.rooms[roomID][guestID]
	if !ok {
		r.logger.Warn("Unregister of unknown connection", "roomID", roomID, "guestID", guestID)
		return nil
	}
	r.remove(roomID, guestID)
	return peer
}

// Release removes the pair only while it still points at peer, and reports
// whether it did. A replaced connection releasing itself leaves its successor
// in place.
func (r *Registry) Release(roomID, guestID string, peer *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.rooms[roomID][guestID]; !ok || current != peer {
		return false
	}
	r.remove(roomID, guestID)
	return true
}

// remove must be called with mu held.
func (r *Registry) remove(roomID, guestID string) {
	delete(r.rooms[roomID], guestID)
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
	}
}

// ConnectionsFor returns a snapshot of the connections in a room. An unknown
// room yields an empty slice.
func (r *Registry) ConnectionsFor(roomID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	guests := r.rooms[roomID]
	entries := make([]Entry, 0, len(guests))
	for guestID, peer := range guests {
		entries = append(entries, Entry{GuestID: guestID, Peer: peer})
	}
	return entries
}

// DropRoom removes every connection of a room and returns them.
func (r *Registry) DropRoom(roomID string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	guests := r.rooms[roomID]
	entries := make([]Entry, 0, len(guests))
	for guestID, peer := range guests {
		entries = append(entries, Entry{GuestID: guestID, Peer: peer})
	}
	delete(r.rooms, roomID)
	return entries
}

// Count returns the number of connections in a room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Size returns the number of connections across all rooms.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, guests := range r.rooms {
		total += len(guests)
	}
	return total
}

// RoomCount returns the number of rooms with at least one connection.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CloseAll closes every connection with code and reason and empties the registry.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]map[string]*Peer)
	r.mu.Unlock()

	closed := 0
	for _, guests := range rooms {
		for _, peer := range guests {
			_ = peer.CloseWith(code, reason)
			closed++
		}
	}
	return closed
}
