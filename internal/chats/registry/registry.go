// Package registry maps chat rooms to the connections currently joined to
// them. Room ids are derived from the two participants and are independent of
// argument order.
package registry

import (
	"sort"
	"strings"
	"sync"

	chatserrors "carrental/internal/chats/errors"
)

const roomSeparator = "_"

// ValidUserID reports whether id can take part in a room. Ids containing the
// room separator are refused so that every room id maps back to exactly one
// pair of users.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, roomSeparator)
}

// RoomID derives the deterministic room id for a pair of users.
func RoomID(a, b string) (string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !ValidUserID(a) || !ValidUserID(b) || a == b {
		return "", chatserrors.ErrInvalidParticipants
	}
	if b < a {
		a, b = b, a
	}
	return a + roomSeparator + b, nil
}

// Participants splits a room id back into its two user ids. It returns false
// for ids that did not come from RoomID.
func Participants(roomID string) (string, string, bool) {
	a, b, ok := strings.Cut(roomID, roomSeparator)
	if !ok || !ValidUserID(a) || !ValidUserID(b) || a >= b {
		return "", "", false
	}
	return a, b, true
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
	conns map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds connID to roomID. Subscribing twice is a no-op.
func (r *Registry) Subscribe(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}

	rooms, ok := r.conns[connID]
	if !ok {
		rooms = make(map[string]struct{})
		r.conns[connID] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Unsubscribe removes connID from roomID and drops the room once empty.
func (r *Registry) Unsubscribe(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(roomID, connID)
}

// UnsubscribeAll removes connID from every room and returns those rooms.
func (r *Registry) UnsubscribeAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for roomID := range r.conns[connID] {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		r.unsubscribeLocked(roomID, connID)
	}
	sort.Strings(left)
	return left
}

func (r *Registry) unsubscribeLocked(roomID, connID string) {
	if members, ok := r.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if rooms, ok := r.conns[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.conns, connID)
		}
	}
}

// Members returns a snapshot of the connections joined to roomID.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[roomID]))
	for connID := range r.rooms[roomID] {
		members = append(members, connID)
	}
	return members
}

// RoomsOf returns the rooms connID is joined to.
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.conns[connID]))
	for roomID := range r.conns[connID] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

func (r *Registry) IsMember(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][connID]
	return ok
}

// RoomCount returns the number of rooms with at least one connection.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
