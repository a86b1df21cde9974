package entity

// Agent is a live NPC entity occupying a room.
//
// Agents are durable-but-ephemeral: the row backing an Agent is created on
// spawn and deleted on death; a respawn creates a fresh Agent from the same
// template snapshot.
type Agent struct {
	// ID uniquely identifies this runtime instance.
	ID string
	// TemplateID is the source template's ID.
	TemplateID string
	// Name is copied from the template for display.
	Name string
	// RoomID is the room this agent currently occupies.
	RoomID string
	// CurrentHP is the agent's current hit points.
	CurrentHP int
	// MaxHP is the agent's maximum hit points.
	MaxHP int
	// Level is the agent's level.
	Level int
	// Damage is the agent's base damage per tick before variance.
	Damage int
	// Armor is subtracted from incoming damage, subject to the damage floor.
	Armor int
	// DamageMultiplier scales outgoing damage. 1.0 unless enraged.
	DamageMultiplier float64
	// Behavior is the movement/aggression policy copied at spawn.
	Behavior Behavior
	// PatrolRoute is the ordered room sequence for patrol agents.
	PatrolRoute []string
	// PatrolIndex is the current position in PatrolRoute.
	PatrolIndex int
	// Boss marks this agent for mechanic evaluation.
	Boss bool
	// Mechanics is the ordered mechanic list copied from the template.
	Mechanics []MechanicConfig
	// Loot is the loot table copied from the template; nil means no loot.
	Loot *LootTable
	// MaxInstances is the per-room live-copy cap copied from the template.
	MaxInstances int
	// CombatTargetID is the identity this agent is fighting, or empty.
	// A back-reference only; the encounter engine owns the pairing.
	CombatTargetID string
}

// NewAgent creates a live agent from a template, placed in roomID.
//
// Precondition: id must be non-empty; tmpl must be non-nil; roomID must be non-empty.
// Postcondition: CurrentHP equals tmpl.MaxHP and DamageMultiplier is 1.0.
func NewAgent(id string, tmpl *Template, roomID string) *Agent {
	return &Agent{
		ID:               id,
		TemplateID:       tmpl.ID,
		Name:             tmpl.Name,
		RoomID:           roomID,
		CurrentHP:        tmpl.MaxHP,
		MaxHP:            tmpl.MaxHP,
		Level:            tmpl.Level,
		Damage:           tmpl.Damage,
		Armor:            tmpl.Armor,
		DamageMultiplier: 1.0,
		Behavior:         tmpl.Behavior,
		PatrolRoute:      append([]string(nil), tmpl.PatrolRoute...),
		Boss:             tmpl.Boss,
		Mechanics:        append([]MechanicConfig(nil), tmpl.Mechanics...),
		Loot:             tmpl.Loot,
		MaxInstances:     tmpl.MaxInstances,
	}
}

// Snapshot captures the template state needed to respawn this agent later.
//
// Postcondition: Returns a Template equivalent to the one the agent was
// spawned from.
func (a *Agent) Snapshot() *Template {
	return &Template{
		ID:           a.TemplateID,
		Name:         a.Name,
		Level:        a.Level,
		MaxHP:        a.MaxHP,
		Damage:       a.Damage,
		Armor:        a.Armor,
		Behavior:     a.Behavior,
		PatrolRoute:  append([]string(nil), a.PatrolRoute...),
		MaxInstances: a.MaxInstances,
		Boss:         a.Boss,
		Mechanics:    append([]MechanicConfig(nil), a.Mechanics...),
		Loot:         a.Loot,
	}
}

// IsDead reports whether the agent has zero or fewer hit points.
func (a *Agent) IsDead() bool {
	return a.CurrentHP <= 0
}

// InCombat reports whether the agent currently holds a combat target.
func (a *Agent) InCombat() bool {
	return a.CombatTargetID != ""
}

// EffectiveDamage returns base damage scaled by the enrage multiplier.
//
// Postcondition: Returns >= 0.
func (a *Agent) EffectiveDamage() int {
	m := a.DamageMultiplier
	if m <= 0 {
		m = 1.0
	}
	return int(float64(a.Damage) * m)
}
