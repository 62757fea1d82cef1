package room

import "sync"

// JoinOutcome is the result of a Join attempt.
type JoinOutcome int

const (
	// RoomFull means the room rejected the join; membership is unchanged.
	RoomFull JoinOutcome = iota
	// JoinedExisting means the participant was appended to an existing room.
	JoinedExisting
	// CreatedNew means the room did not exist and was created with this
	// participant as its sole member.
	CreatedNew
)

func (o JoinOutcome) String() string {
	switch o {
	case RoomFull:
		return "full"
	case JoinedExisting:
		return "joined"
	case CreatedNew:
		return "created"
	}
	return "unknown"
}

// Registry tracks rooms and their members. All state lives here; a single
// RWMutex serializes joins and leaves so a capacity check and its append
// are atomic with respect to other joins.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string][]Participant
	roomSize int
}

// NewRegistry creates an empty registry. roomSize is the nominal per-room
// capacity; the historical check is strictly greater-than against the
// pre-join count, so a room holds up to roomSize+1 members. The frontend
// depends on that count, keep it.
func NewRegistry(roomSize int) *Registry {
	return &Registry{
		rooms:    make(map[string][]Participant),
		roomSize: roomSize,
	}
}

// Join adds p to roomID, creating the room on first join.
func (r *Registry) Join(roomID string, p Participant) JoinOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[roomID]
	if exists && len(members) > r.roomSize {
		return RoomFull
	}
	r.rooms[roomID] = append(members, p)
	if exists {
		return JoinedExisting
	}
	return CreatedNew
}

// Leave removes the first participant whose connection id matches, scanning
// every room. A connection belongs to at most one room, so the scan stops at
// the first hit. Unknown connections are a no-op. Emptied rooms are pruned,
// which behaves the same as never having existed for capacity checks.
func (r *Registry) Leave(connID string) (roomID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, members := range r.rooms {
		for i, p := range members {
			if p.ConnID == connID {
				r.rooms[id] = append(members[:i:i], members[i+1:]...)
				if len(r.rooms[id]) == 0 {
					delete(r.rooms, id)
				}
				return id, true
			}
		}
	}
	return "", false
}

// Members returns a snapshot of the room's members in join order, or nil if
// the room does not exist. Callers own the returned slice.
func (r *Registry) Members(roomID string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Participant, len(members))
	copy(out, members)
	return out
}

// Lookup reports whether roomID exists and how many members it holds.
func (r *Registry) Lookup(roomID string) (count int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	return len(members), ok
}
