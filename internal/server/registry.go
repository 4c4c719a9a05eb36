package server

import (
	"github.com/npezzotti/ketchup-chat/internal/types"
)

// Registry tracks room membership for one logical channel. A room exists
// only while it has at least one member. Registry is not safe for
// concurrent use; it is owned by the ChatServer run loop.
type Registry struct {
	rooms       map[types.RoomId]map[*Client]struct{}
	memberships map[*Client]map[types.RoomId]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[types.RoomId]map[*Client]struct{}),
		memberships: make(map[*Client]map[types.RoomId]struct{}),
	}
}

// Join adds c to room, creating the room if needed. It reports whether the
// room was created by this call. Joining twice is a no-op.
func (r *Registry) Join(room types.RoomId, c *Client) bool {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}

	if r.memberships[c] == nil {
		r.memberships[c] = make(map[types.RoomId]struct{})
	}
	r.memberships[c][room] = struct{}{}

	return !ok
}

// Leave removes c from room. It reports whether the room was removed
// because c was its last member.
func (r *Registry) Leave(room types.RoomId, c *Client) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}

	delete(members, c)
	if rooms, ok := r.memberships[c]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberships, c)
		}
	}

	if len(members) == 0 {
		delete(r.rooms, room)
		return true
	}

	return false
}

// LeaveAll removes c from every room it belongs to and returns the rooms
// that no longer exist as a result.
func (r *Registry) LeaveAll(c *Client) []types.RoomId {
	var removed []types.RoomId
	for room := range r.memberships[c] {
		if r.Leave(room, c) {
			removed = append(removed, room)
		}
	}

	return removed
}

// Members returns a snapshot of the clients currently in room.
func (r *Registry) Members(room types.RoomId) []*Client {
	members := r.rooms[room]
	clients := make([]*Client, 0, len(members))
	for c := range members {
		clients = append(clients, c)
	}

	return clients
}

func (r *Registry) IsMember(room types.RoomId, c *Client) bool {
	_, ok := r.rooms[room][c]
	return ok
}

// Rooms returns the rooms c belongs to.
func (r *Registry) Rooms(c *Client) []types.RoomId {
	rooms := make([]types.RoomId, 0, len(r.memberships[c]))
	for room := range r.memberships[c] {
		rooms = append(rooms, room)
	}

	return rooms
}

// Len returns the number of rooms with at least one member.
func (r *Registry) Len() int {
	return len(r.rooms)
}
