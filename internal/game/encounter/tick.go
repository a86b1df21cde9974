package encounter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
)

// ExecuteTick resolves one combat tick for the pairing keyed by attackerID.
// Normally driven by the handle's timer; exported so tests can step combat
// deterministically.
//
// Resolution is attacker-then-defender within one tick, not simultaneous:
// the initiator always strikes first, so a defender killed by the opening
// blow never replies.
func (e *Engine) ExecuteTick(attackerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.handles[attackerID]
	if !ok {
		return
	}

	attacker, aok := e.fighterLocked(h.AttackerID)
	defender, dok := e.fighterLocked(h.DefenderID)
	if !aok || !dok {
		e.logger.Warn("combat side vanished, tearing down pairing",
			zap.String("attacker", h.AttackerID),
			zap.String("defender", h.DefenderID),
		)
		e.teardownLocked(h)
		return
	}

	roomID := attacker.roomID()

	dmg := e.strikeLocked(attacker, defender)
	blow := message.CombatLog(attacker.name(), defender.name(),
		fmt.Sprintf("%s hits %s for %d damage.", attacker.name(), defender.name(), dmg), dmg)

	if defender.dead() {
		e.resolveDeathLocked(h, attacker, defender, blow)
		return
	}

	counter := e.strikeLocked(defender, attacker)
	counterBlow := message.CombatLog(defender.name(), attacker.name(),
		fmt.Sprintf("%s hits %s for %d damage.", defender.name(), attacker.name(), counter), counter)

	if attacker.dead() {
		// The surviving side's health changed too; its row lands before the
		// death path starts talking.
		e.persistFighterLocked(defender)
		e.resolveDeathLocked(h, defender, attacker, blow, counterBlow)
		return
	}

	// Neither side died: persist both health changes, then push the blow
	// logs and both updated states to whichever sides are players.
	e.persistFighterLocked(attacker)
	e.persistFighterLocked(defender)
	e.sessions.SendToRoom(roomID, blow, "")
	e.sessions.SendToRoom(roomID, counterBlow, "")
	for _, f := range []fighter{attacker, defender} {
		if f.isPlayer() {
			e.sessions.SendToPlayer(f.id(), message.StateUpdate(attacker.name(), attacker.hp(), attacker.maxHP()))
			e.sessions.SendToPlayer(f.id(), message.StateUpdate(defender.name(), defender.hp(), defender.maxHP()))
		}
	}
}

// strikeLocked rolls one blow from att against def and applies it.
// Damage is the varied base minus the defender's armor, floored at
// cfg.MinDamage whenever the base is nonzero. Caller must hold e.mu.
//
// Postcondition: Returns the damage applied, >= 0.
func (e *Engine) strikeLocked(att, def fighter) int {
	base := att.attackDamage()
	if base <= 0 {
		return 0
	}
	dmg := dice.ApplyVariance(base, e.cfg.DamageVariance, e.src) - def.armor()
	if dmg < e.cfg.MinDamage {
		dmg = e.cfg.MinDamage
	}
	def.applyDamage(dmg)
	return dmg
}

// resolveDeathLocked dispatches the death path for the vanquished side.
// blows are the combat logs for the tick's strikes; the death paths hold
// them back until their durable writes have landed. Caller must hold e.mu.
func (e *Engine) resolveDeathLocked(h *Handle, victor, vanquished fighter, blows ...message.Message) {
	if vanquished.isPlayer() {
		e.defeatPlayerLocked(vanquished.player, blows...)
		return
	}
	e.agentDeathLocked(h, victor, vanquished.agent, blows...)
}

// agentDeathLocked runs the defender-death path for a defeated agent:
// experience and level-ups for a player victor, the loot-turn check, loot
// placement, respawn scheduling, and handle teardown. Durable writes land
// before any notification. Caller must hold e.mu.
func (e *Engine) agentDeathLocked(h *Handle, victor fighter, dead *entity.Agent, blows ...message.Message) {
	snapshot := dead.Snapshot()
	roomID := dead.RoomID
	ctx := context.Background()

	notes := append([]message.Message{}, blows...)
	notes = append(notes, message.System(dead.Name+" is defeated!"))

	if victor.isPlayer() {
		p := victor.player
		levels := e.grantExperienceLocked(p, dead.Level, &notes)
		if levels > 0 {
			e.logger.Info("player leveled up",
				zap.String("uid", p.UID),
				zap.Int("levels", levels),
				zap.Int("new_level", p.Level),
			)
		}
		notes = append(notes, e.placeLootLocked(p.UID, dead, roomID)...)
	}

	if err := e.agents.Remove(dead.ID); err != nil {
		e.logger.Warn("removing defeated agent", zap.String("agent", dead.ID), zap.Error(err))
	}
	e.teardownLocked(h)

	if e.respawner != nil {
		e.respawner.ScheduleRespawn(snapshot, roomID)
	}

	if err := e.persister.DeleteAgent(ctx, dead.ID); err != nil {
		e.logger.Error("deleting agent row", zap.String("agent", dead.ID), zap.Error(err))
	}
	if victor.isPlayer() {
		if err := e.persister.SavePlayer(ctx, victor.player); err != nil {
			e.logger.Error("saving player", zap.String("uid", victor.id()), zap.Error(err))
		}
	}

	for _, n := range notes {
		e.sessions.SendToRoom(roomID, n, "")
	}
	if victor.isPlayer() {
		e.sessions.SendToPlayer(victor.id(), message.StateUpdate(victor.name(), victor.hp(), victor.maxHP()))
	}
}

// grantExperienceLocked credits experience for a kill of an agent at
// agentLevel (boosted by the external multiplier) and loops level-up
// evaluation so one kill can cross several levels. Health is restored to max
// on each level crossed and one level-up note is appended per level.
//
// Postcondition: Returns the number of levels gained, >= 0.
func (e *Engine) grantExperienceLocked(p *session.Player, agentLevel int, notes *[]message.Message) int {
	base := agentLevel * e.cfg.XPPerLevel
	award := e.xpLookup(p.UID, base)
	p.Experience += award

	levels := 0
	for p.Experience >= p.Level*e.cfg.LevelThreshold {
		p.Level++
		p.CurrentHP = p.MaxHP
		levels++
		*notes = append(*notes, message.Message{
			Kind:  message.KindSystem,
			Actor: p.Name,
			Level: p.Level,
			Text:  fmt.Sprintf("%s reaches level %d!", p.Name, p.Level),
		})
	}
	return levels
}

// placeLootLocked runs the loot-turn check for the killer's party, rolls the
// dead agent's loot table, and drops the results on the room floor.
// Caller must hold e.mu.
func (e *Engine) placeLootLocked(killerUID string, dead *entity.Agent, roomID string) []message.Message {
	if dead.Loot == nil {
		return nil
	}
	items := entity.GenerateLoot(*dead.Loot, e.src)
	if len(items) == 0 {
		return nil
	}

	var notes []message.Message
	for _, item := range items {
		e.worldMgr.DropItem(roomID, world.GroundItem{
			InstanceID: item.InstanceID,
			ItemID:     item.ItemID,
			Quantity:   item.Quantity,
		})
		notes = append(notes, message.System(fmt.Sprintf("%s drops %s x%d.", dead.Name, item.ItemID, item.Quantity)))
	}

	// Announce whose loot turn it is before anyone reaches for the pile.
	if pt, ok := e.parties.PartyOf(killerUID); ok {
		for _, member := range pt.Members {
			if e.parties.CanLoot(member) {
				notes = append(notes, message.System("The spoils are "+member+"'s to claim."))
				break
			}
		}
	}
	return notes
}

// defeatPlayerLocked runs the attacker-death path for a player: every
// pairing involving the player is torn down, the player relocates to the
// recovery room with a fixed fraction of max health, and the durable write
// lands before the notifications, including any blow logs carried in from
// the tick that felled them. Caller must hold e.mu.
func (e *Engine) defeatPlayerLocked(p *session.Player, blows ...message.Message) {
	for _, h := range e.handlesInvolvingLocked(p.UID) {
		e.teardownLocked(h)
	}

	fromRoom := p.RoomID
	restored := int(float64(p.MaxHP) * e.cfg.RecoveryFraction)
	if restored < 1 {
		restored = 1
	}
	p.CurrentHP = restored

	if e.cfg.RecoveryRoomID != "" && e.cfg.RecoveryRoomID != p.RoomID {
		if _, err := e.sessions.Move(p.UID, e.cfg.RecoveryRoomID); err != nil {
			e.logger.Warn("relocating defeated player", zap.String("uid", p.UID), zap.Error(err))
		}
	}

	if err := e.persister.SavePlayer(context.Background(), p); err != nil {
		e.logger.Error("saving defeated player", zap.String("uid", p.UID), zap.Error(err))
	}

	for _, b := range blows {
		e.sessions.SendToRoom(fromRoom, b, "")
	}
	e.sessions.SendToRoom(fromRoom, message.System(p.Name+" collapses!"), p.UID)
	e.sessions.SendToPlayer(p.UID, message.System("Everything goes dark. You come to somewhere safe."))
	e.sessions.SendToPlayer(p.UID, message.StateUpdate(p.Name, p.CurrentHP, p.MaxHP))
}

// handlesInvolvingLocked returns every live handle where uid is a side.
// Caller must hold e.mu.
func (e *Engine) handlesInvolvingLocked(uid string) []*Handle {
	var out []*Handle
	for _, h := range e.handles {
		if h.AttackerID == uid || h.DefenderID == uid {
			out = append(out, h)
		}
	}
	return out
}

// persistFighterLocked writes the durable copy of one side's state.
// Caller must hold e.mu.
func (e *Engine) persistFighterLocked(f fighter) {
	ctx := context.Background()
	var err error
	if f.isPlayer() {
		err = e.persister.SavePlayer(ctx, f.player)
	} else {
		err = e.persister.SaveAgent(ctx, f.agent)
	}
	if err != nil {
		e.logger.Error("persisting combat state", zap.String("id", f.id()), zap.Error(err))
	}
}
