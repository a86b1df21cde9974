package gameserver

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/duskfall/internal/game/encounter"
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/session"
)

// CombatHandler handles the attack and flee commands, resolving target names
// against room occupancy before delegating to the encounter engine.
type CombatHandler struct {
	engine   *encounter.Engine
	agents   *entity.Manager
	sessions *session.Registry
}

// NewCombatHandler creates a CombatHandler with the given dependencies.
//
// Precondition: all arguments must be non-nil.
func NewCombatHandler(engine *encounter.Engine, agents *entity.Manager, sessions *session.Registry) *CombatHandler {
	return &CombatHandler{
		engine:   engine,
		agents:   agents,
		sessions: sessions,
	}
}

// Attack starts combat between uid and the named agent in uid's room.
//
// Precondition: uid must be a connected player; target must be non-empty.
// Postcondition: On success combat is live and ticking. Conflicts surface
// the encounter engine's sentinel errors.
func (h *CombatHandler) Attack(uid, target string) error {
	p, ok := h.sessions.Get(uid)
	if !ok {
		return fmt.Errorf("player %q not found", uid)
	}

	// Resolution reads fields combat ticks mutate; it runs under the
	// simulation mutex, which is released again before Start takes it.
	sim := h.engine.SimLock()
	sim.Lock()
	inst := h.findInRoom(p.RoomID, target)
	var instID, instName string
	var dead bool
	if inst != nil {
		instID, instName, dead = inst.ID, inst.Name, inst.IsDead()
	}
	sim.Unlock()

	if inst == nil {
		return fmt.Errorf("you don't see %q here", target)
	}
	if dead {
		return fmt.Errorf("%s is already dead", instName)
	}

	if err := h.engine.Start(uid, instID); err != nil {
		return fmt.Errorf("attacking %s: %w", instName, err)
	}
	return nil
}

// Flee attempts to escape uid's current encounter.
//
// Postcondition: Returns (true, nil) when the player relocated, (false, nil)
// when the roll failed or no exit exists, or an error when not in combat.
func (h *CombatHandler) Flee(uid string) (bool, error) {
	escaped, err := h.engine.Flee(uid)
	if err != nil {
		return false, fmt.Errorf("fleeing: %w", err)
	}
	return escaped, nil
}

// findInRoom resolves target against the agents in roomID by instance ID
// first, then by case-insensitive display name.
func (h *CombatHandler) findInRoom(roomID, target string) *entity.Agent {
	if a, ok := h.agents.Get(target); ok && a.RoomID == roomID {
		return a
	}
	for _, a := range h.agents.AgentsInRoom(roomID) {
		if strings.EqualFold(a.Name, target) {
			return a
		}
	}
	return nil
}
