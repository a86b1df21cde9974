package encounter

import (
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/session"
)

// fighter is a uniform view over the two entity kinds a pairing can hold.
// Exactly one of player/agent is non-nil.
type fighter struct {
	player *session.Player
	agent  *entity.Agent
}

func (f fighter) isPlayer() bool {
	return f.player != nil
}

func (f fighter) id() string {
	if f.player != nil {
		return f.player.UID
	}
	return f.agent.ID
}

func (f fighter) name() string {
	if f.player != nil {
		return f.player.Name
	}
	return f.agent.Name
}

func (f fighter) roomID() string {
	if f.player != nil {
		return f.player.RoomID
	}
	return f.agent.RoomID
}

func (f fighter) hp() int {
	if f.player != nil {
		return f.player.CurrentHP
	}
	return f.agent.CurrentHP
}

func (f fighter) maxHP() int {
	if f.player != nil {
		return f.player.MaxHP
	}
	return f.agent.MaxHP
}

// attackDamage is the pre-variance damage: base plus weapon bonus for
// players, enrage-scaled base for agents.
func (f fighter) attackDamage() int {
	if f.player != nil {
		return f.player.AttackDamage()
	}
	return f.agent.EffectiveDamage()
}

func (f fighter) armor() int {
	if f.player != nil {
		return f.player.Armor
	}
	return f.agent.Armor
}

func (f fighter) applyDamage(n int) {
	if f.player != nil {
		f.player.CurrentHP -= n
		return
	}
	f.agent.CurrentHP -= n
}

func (f fighter) dead() bool {
	return f.hp() <= 0
}

func (f fighter) inCombat() bool {
	if f.player != nil {
		return f.player.InCombat()
	}
	return f.agent.InCombat()
}

func (f fighter) setCombatTarget(id string) {
	if f.player != nil {
		f.player.CombatTargetID = id
		return
	}
	f.agent.CombatTargetID = id
}
