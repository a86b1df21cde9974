package session

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/duskfall/internal/game/message"
)

// Player tracks a connected player's live combat-relevant state.
type Player struct {
	// UID is the unique player identifier.
	UID string
	// Name is the character display name shown in-game.
	Name string
	// RoomID is the current room the player occupies.
	RoomID string
	// CurrentHP is the player's current hit points.
	CurrentHP int
	// MaxHP is the player's maximum hit points.
	MaxHP int
	// Level is the player's current level.
	Level int
	// Experience is the player's accumulated experience.
	Experience int
	// Damage is the player's base damage before the weapon bonus.
	Damage int
	// WeaponBonus is the equipped weapon's damage bonus.
	WeaponBonus int
	// Armor is subtracted from incoming damage, subject to the damage floor.
	Armor int
	// CombatTargetID is the identity this player is fighting, or empty.
	CombatTargetID string
	// Conn is the outbound channel for pushing events to the player.
	Conn *Conn
}

// InCombat reports whether the player currently holds a combat target.
func (p *Player) InCombat() bool {
	return p.CombatTargetID != ""
}

// AttackDamage returns base damage plus the equipped-weapon bonus, before
// variance.
func (p *Player) AttackDamage() int {
	return p.Damage + p.WeaponBonus
}

// Registry tracks all connected players and room occupancy and owns the
// room/identity-scoped fan-out used by every simulation component.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	players  map[string]*Player         // uid → player
	roomSets map[string]map[string]bool // roomID → set of UIDs
}

// NewRegistry creates an empty session Registry.
func NewRegistry() *Registry {
	return &Registry{
		players:  make(map[string]*Player),
		roomSets: make(map[string]map[string]bool),
	}
}

// Add registers a new player session in the given room.
//
// Precondition: p.UID, p.Name, and p.RoomID must be non-empty; health and
// level fields must be consistent.
// Postcondition: Returns the registered Player with an open Conn, or an error
// if the UID is already registered.
func (r *Registry) Add(p *Player) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[p.UID]; exists {
		return nil, fmt.Errorf("player %q already connected", p.UID)
	}

	if p.Conn == nil {
		p.Conn = NewConn(p.UID, 64)
	}

	r.players[p.UID] = p
	if r.roomSets[p.RoomID] == nil {
		r.roomSets[p.RoomID] = make(map[string]bool)
	}
	r.roomSets[p.RoomID][p.UID] = true

	return p, nil
}

// Remove removes a player session and cleans up room occupancy.
//
// Precondition: uid must be non-empty.
// Postcondition: The player is removed from all tracking and their Conn is
// closed. Returns an error if not found.
func (r *Registry) Remove(uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[uid]
	if !exists {
		return fmt.Errorf("player %q not found", uid)
	}

	if rs, ok := r.roomSets[p.RoomID]; ok {
		delete(rs, uid)
		if len(rs) == 0 {
			delete(r.roomSets, p.RoomID)
		}
	}

	_ = p.Conn.Close()

	delete(r.players, uid)
	return nil
}

// Move moves a player from their current room to a new room.
//
// Precondition: uid and newRoomID must be non-empty.
// Postcondition: Returns the old room ID, or an error if the player is not found.
func (r *Registry) Move(uid, newRoomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[uid]
	if !exists {
		return "", fmt.Errorf("player %q not found", uid)
	}

	oldRoomID := p.RoomID

	if rs, ok := r.roomSets[oldRoomID]; ok {
		delete(rs, uid)
		if len(rs) == 0 {
			delete(r.roomSets, oldRoomID)
		}
	}

	p.RoomID = newRoomID
	if r.roomSets[newRoomID] == nil {
		r.roomSets[newRoomID] = make(map[string]bool)
	}
	r.roomSets[newRoomID][uid] = true

	return oldRoomID, nil
}

// Get returns the player with the given UID.
//
// Postcondition: Returns (player, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(uid string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[uid]
	return p, ok
}

// PlayersInRoom returns a snapshot of all players in the given room.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (r *Registry) PlayersInRoom(roomID string) []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uids, ok := r.roomSets[roomID]
	if !ok {
		return []*Player{}
	}

	out := make([]*Player, 0, len(uids))
	for uid := range uids {
		if p, ok := r.players[uid]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the total number of connected players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// SendToPlayer pushes msg to the player with the given UID. Delivery is
// fire-and-forget: unknown, closed, or saturated connections are ignored.
func (r *Registry) SendToPlayer(uid string, msg message.Message) {
	r.mu.RLock()
	p, ok := r.players[uid]
	r.mu.RUnlock()
	if !ok {
		return
	}
	_ = p.Conn.Push(msg)
}

// SendToRoom pushes msg to every player in roomID except excludeUID.
// Pass an empty excludeUID to reach all occupants. Delivery is fire-and-forget.
func (r *Registry) SendToRoom(roomID string, msg message.Message, excludeUID string) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.roomSets[roomID]))
	for uid := range r.roomSets[roomID] {
		if uid == excludeUID {
			continue
		}
		if p, ok := r.players[uid]; ok {
			conns = append(conns, p.Conn)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.Push(msg)
	}
}
