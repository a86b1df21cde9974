package world

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
)

// Manager provides thread-safe access to the loaded world state and the
// items lying on room floors. It indexes rooms across all zones for O(1)
// lookup by room ID.
type Manager struct {
	mu        sync.RWMutex
	zones     map[string]*Zone
	rooms     map[string]*Room
	floors    map[string][]GroundItem // roomID → dropped items
	startRoom string
}

// NewManager creates a Manager from the given zones.
//
// Precondition: zones must contain at least one zone; the first zone's start room is the global start room.
// Postcondition: Returns a Manager with all rooms indexed by ID, or an error on duplicate room IDs.
func NewManager(zones []*Zone) (*Manager, error) {
	m := &Manager{
		zones:  make(map[string]*Zone, len(zones)),
		rooms:  make(map[string]*Room),
		floors: make(map[string][]GroundItem),
	}

	for _, z := range zones {
		if _, exists := m.zones[z.ID]; exists {
			return nil, fmt.Errorf("duplicate zone ID: %q", z.ID)
		}
		m.zones[z.ID] = z
		for id, room := range z.Rooms {
			if existing, exists := m.rooms[id]; exists {
				return nil, fmt.Errorf("duplicate room ID %q: in zone %q and %q", id, existing.ZoneID, z.ID)
			}
			m.rooms[id] = room
		}
	}

	if len(zones) > 0 {
		m.startRoom = zones[0].StartRoom
	}

	return m, nil
}

// ValidateExits checks that every exit target in every room resolves to a
// known room across all loaded zones. Call this after NewManager to catch
// dangling cross-zone exit references.
//
// Postcondition: Returns nil if all exits resolve, or an error naming the first dangling target.
func (m *Manager) ValidateExits() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, zone := range m.zones {
		for _, room := range zone.Rooms {
			for _, exit := range room.Exits {
				if _, ok := m.rooms[exit.TargetRoom]; !ok {
					return fmt.Errorf("zone %q: room %q: exit %q targets unknown room %q",
						zone.ID, room.ID, exit.Direction, exit.TargetRoom)
				}
			}
		}
	}
	return nil
}

// GetRoom returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RandomExit picks a uniformly random unlocked exit from roomID.
//
// Precondition: src must be non-nil.
// Postcondition: Returns (exit, true) when the room exists and has at least
// one unlocked exit; (Exit{}, false) otherwise.
func (m *Manager) RandomExit(roomID string, src dice.Source) (Exit, bool) {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return Exit{}, false
	}
	open := room.OpenExits()
	if len(open) == 0 {
		return Exit{}, false
	}
	return open[dice.PickIndex(len(open), src)], true
}

// DropItem places an item instance on the floor of roomID.
//
// Precondition: roomID must be non-empty; item.InstanceID must be unique.
func (m *Manager) DropItem(roomID string, item GroundItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floors[roomID] = append(m.floors[roomID], item)
}

// ItemsInRoom returns a snapshot of the items on the floor of roomID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) ItemsInRoom(roomID string) []GroundItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.floors[roomID]
	out := make([]GroundItem, len(items))
	copy(out, items)
	return out
}

// TakeItem removes the item with instanceID from roomID's floor.
//
// Postcondition: Returns (item, true) when found and removed, or
// (GroundItem{}, false) when no such instance lies in the room.
func (m *Manager) TakeItem(roomID, instanceID string) (GroundItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.floors[roomID]
	for i, item := range items {
		if item.InstanceID == instanceID {
			m.floors[roomID] = append(items[:i], items[i+1:]...)
			if len(m.floors[roomID]) == 0 {
				delete(m.floors, roomID)
			}
			return item, true
		}
	}
	return GroundItem{}, false
}

// StartRoom returns the global start room.
//
// Postcondition: Returns the start room or nil if the world is empty.
func (m *Manager) StartRoom() *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.startRoom == "" {
		return nil
	}
	return m.rooms[m.startRoom]
}

// RoomCount returns the total number of rooms across all zones.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// ZoneCount returns the number of loaded zones.
func (m *Manager) ZoneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.zones)
}
