package gameserver

import (
	"fmt"

	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/party"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
)

// LootHandler handles pickups of ground items. The loot-turn gate is applied
// here, at the point of pickup: drops themselves are unrestricted.
type LootHandler struct {
	worldMgr *world.Manager
	parties  *party.Manager
	sessions *session.Registry
}

// NewLootHandler creates a LootHandler with the given dependencies.
//
// Precondition: all arguments must be non-nil.
func NewLootHandler(worldMgr *world.Manager, parties *party.Manager, sessions *session.Registry) *LootHandler {
	return &LootHandler{
		worldMgr: worldMgr,
		parties:  parties,
		sessions: sessions,
	}
}

// Pickup takes the ground item with instanceID from uid's room.
//
// Precondition: uid must be a connected player.
// Postcondition: On success the item is removed from the floor, the party
// loot turn advances, and the room is notified. Returns the taken item.
func (h *LootHandler) Pickup(uid, instanceID string) (world.GroundItem, error) {
	p, ok := h.sessions.Get(uid)
	if !ok {
		return world.GroundItem{}, fmt.Errorf("player %q not found", uid)
	}

	if !h.parties.CanLoot(uid) {
		return world.GroundItem{}, fmt.Errorf("it is not your turn to loot")
	}

	item, ok := h.worldMgr.TakeItem(p.RoomID, instanceID)
	if !ok {
		return world.GroundItem{}, fmt.Errorf("item %q is not here", instanceID)
	}

	h.parties.AdvanceTurn(uid)

	h.sessions.SendToRoom(p.RoomID, message.System(
		fmt.Sprintf("%s picks up %s.", p.Name, item.ItemID)), uid)
	h.sessions.SendToPlayer(uid, message.System(
		fmt.Sprintf("You pick up %s (x%d).", item.ItemID, item.Quantity)))
	return item, nil
}
