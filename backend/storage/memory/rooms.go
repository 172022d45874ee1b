package memory

import (
	"maps"
	"slices"

	"github.com/adwski/chatapp/backend/model"
)

type set map[model.ConnID]struct{}

// Rooms tracks which connections are subscribed to which chat.
// Like Registry it expects a single owner.
type Rooms struct {
	members map[model.ID]set
	joined  map[model.ConnID]map[model.ID]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[model.ID]set),
		joined:  make(map[model.ConnID]map[model.ID]struct{}),
	}
}

// Join subscribes connID to chatID, creating the room on first join.
func (rs *Rooms) Join(chatID model.ID, connID model.ConnID) {
	room, ok := rs.members[chatID]
	if !ok {
		room = make(set)
		rs.members[chatID] = room
	}
	room[connID] = struct{}{}

	chats, ok := rs.joined[connID]
	if !ok {
		chats = make(map[model.ID]struct{})
		rs.joined[connID] = chats
	}
	chats[chatID] = struct{}{}
}

func (rs *Rooms) Leave(chatID model.ID, connID model.ConnID) {
	if room, ok := rs.members[chatID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(rs.members, chatID)
		}
	}
	if chats, ok := rs.joined[connID]; ok {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(rs.joined, connID)
		}
	}
}

// LeaveAll drops connID from every room it joined.
func (rs *Rooms) LeaveAll(connID model.ConnID) {
	for chatID := range rs.joined[connID] {
		rs.Leave(chatID, connID)
	}
}

// MembersOf returns members of chatID sorted by connection id, nil if room does not exist.
func (rs *Rooms) MembersOf(chatID model.ID) []model.ConnID {
	room, ok := rs.members[chatID]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(room))
}

// RoomsOf returns chats connID is subscribed to.
func (rs *Rooms) RoomsOf(connID model.ConnID) []model.ID {
	return slices.Sorted(maps.Keys(rs.joined[connID]))
}

func (rs *Rooms) Len() int {
	return len(rs.members)
}

func (rs *Rooms) Reset() {
	clear(rs.members)
	clear(rs.joined)
}
