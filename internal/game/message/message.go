// Package message defines the closed set of tagged payloads pushed to clients.
// Every state change the simulation fans out is expressed as one of these
// variants so serialization stays exhaustive and typed.
package message

// Kind tags a Message variant.
type Kind string

// The full set of message variants the core emits.
const (
	// KindJoin announces that combat has started for the recipient.
	KindJoin Kind = "join"
	// KindStateUpdate carries current/maximum health for an entity.
	KindStateUpdate Kind = "state_update"
	// KindCombatLog carries a single combat narration line with damage detail.
	KindCombatLog Kind = "combat_log"
	// KindCastStart announces a boss ability wind-up with its duration.
	KindCastStart Kind = "cast_start"
	// KindSpawn announces an agent appearing in a room.
	KindSpawn Kind = "spawn"
	// KindMovement announces an entity departing or arriving.
	KindMovement Kind = "movement"
	// KindSystem carries out-of-band notices (level-ups, loot, defeat).
	KindSystem Kind = "system"
)

// Message is the single wire struct for all variants. Fields that do not
// apply to a variant are left at their zero value and omitted from JSON.
type Message struct {
	Kind Kind `json:"kind"`
	// Actor is the display name of the entity the message is about.
	Actor string `json:"actor,omitempty"`
	// Target is the display name of the entity acted upon, if any.
	Target string `json:"target,omitempty"`
	// Text is the human-readable narration line.
	Text string `json:"text,omitempty"`
	// Damage is the damage dealt for combat_log variants.
	Damage int `json:"damage,omitempty"`
	// HP and MaxHP describe Actor's health for state_update variants.
	HP    int `json:"hp,omitempty"`
	MaxHP int `json:"max_hp,omitempty"`
	// Level is Actor's level after a level-up system notice.
	Level int `json:"level,omitempty"`
	// DurationMs is the cast duration for cast_start variants.
	DurationMs int `json:"duration_ms,omitempty"`
	// RoomID is the room the message concerns, when room-scoped.
	RoomID string `json:"room_id,omitempty"`
}

// Join builds a join variant for an attacker engaging a target.
func Join(attacker, target string) Message {
	return Message{Kind: KindJoin, Actor: attacker, Target: target,
		Text: attacker + " attacks " + target + "!"}
}

// StateUpdate builds a state_update variant for an entity's health.
func StateUpdate(name string, hp, maxHP int) Message {
	return Message{Kind: KindStateUpdate, Actor: name, HP: hp, MaxHP: maxHP}
}

// CombatLog builds a combat_log variant.
func CombatLog(attacker, target, text string, damage int) Message {
	return Message{Kind: KindCombatLog, Actor: attacker, Target: target,
		Text: text, Damage: damage}
}

// System builds a system variant carrying only a narration line.
func System(text string) Message {
	return Message{Kind: KindSystem, Text: text}
}
