package entity

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Manager tracks all live agents by ID and by room.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	agents   map[string]*Agent          // agentID → Agent
	roomSets map[string]map[string]bool // roomID → set of agentIDs
	counter  atomic.Uint64
}

// NewManager creates an empty agent Manager.
func NewManager() *Manager {
	return &Manager{
		agents:   make(map[string]*Agent),
		roomSets: make(map[string]map[string]bool),
	}
}

// Spawn creates a new Agent from tmpl and places it in roomID.
//
// Precondition: tmpl must be non-nil; roomID must be non-empty.
// Postcondition: Returns a new Agent with a unique ID registered in roomID.
func (m *Manager) Spawn(tmpl *Template, roomID string) (*Agent, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("entity.Manager.Spawn: tmpl must not be nil")
	}
	if roomID == "" {
		return nil, fmt.Errorf("entity.Manager.Spawn: roomID must not be empty")
	}

	n := m.counter.Add(1)
	id := fmt.Sprintf("%s-%s-%d", tmpl.ID, roomID, n)
	agent := NewAgent(id, tmpl, roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents[id] = agent
	if m.roomSets[roomID] == nil {
		m.roomSets[roomID] = make(map[string]bool)
	}
	m.roomSets[roomID][id] = true

	return agent, nil
}

// Remove deletes an agent by ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an error if the agent is not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("agent %q not found", id)
	}

	if rs, ok := m.roomSets[agent.RoomID]; ok {
		delete(rs, id)
		if len(rs) == 0 {
			delete(m.roomSets, agent.RoomID)
		}
	}
	delete(m.agents, id)
	return nil
}

// Get returns the agent with the given ID.
//
// Postcondition: Returns (agent, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	return agent, ok
}

// All returns a snapshot of every live agent.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) All() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		out = append(out, agent)
	}
	return out
}

// AgentsInRoom returns a snapshot of all live agents in roomID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) AgentsInRoom(roomID string) []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.roomSets[roomID]
	if !ok {
		return []*Agent{}
	}

	out := make([]*Agent, 0, len(ids))
	for id := range ids {
		if agent, ok := m.agents[id]; ok {
			out = append(out, agent)
		}
	}
	return out
}

// CountTemplateInRoom counts live agents of templateID in roomID.
// Used for respawn instance-cap checks.
func (m *Manager) CountTemplateInRoom(roomID, templateID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for id := range m.roomSets[roomID] {
		if agent, ok := m.agents[id]; ok && agent.TemplateID == templateID {
			count++
		}
	}
	return count
}

// Move relocates an agent from its current room to newRoomID.
//
// Precondition: id must identify an existing agent; newRoomID must be non-empty.
// Postcondition: agent.RoomID equals newRoomID; room index is updated accordingly.
func (m *Manager) Move(id, newRoomID string) error {
	if newRoomID == "" {
		return fmt.Errorf("entity.Manager.Move: newRoomID must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("entity.Manager.Move: agent %q not found", id)
	}

	oldRoomID := agent.RoomID
	if rs, ok := m.roomSets[oldRoomID]; ok {
		delete(rs, id)
		if len(rs) == 0 {
			delete(m.roomSets, oldRoomID)
		}
	}

	agent.RoomID = newRoomID
	if m.roomSets[newRoomID] == nil {
		m.roomSets[newRoomID] = make(map[string]bool)
	}
	m.roomSets[newRoomID][id] = true

	return nil
}
