// Package entity provides agent template definitions and live agent
// instance management for the simulation core.
package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Behavior is the movement/aggression policy tag for an agent.
type Behavior string

// The closed set of agent behaviors.
const (
	BehaviorPassive    Behavior = "passive"
	BehaviorWander     Behavior = "wander"
	BehaviorAggressive Behavior = "aggressive"
	BehaviorPatrol     Behavior = "patrol"
)

// Valid reports whether b is one of the defined behaviors.
func (b Behavior) Valid() bool {
	switch b {
	case BehaviorPassive, BehaviorWander, BehaviorAggressive, BehaviorPatrol:
		return true
	}
	return false
}

// TriggerConfig describes when a boss mechanic fires.
type TriggerConfig struct {
	// Type is "health_threshold" or "timer".
	Type string `yaml:"type"`
	// HealthPct is the fraction of max health below which a
	// health_threshold trigger fires. Must be in (0, 1).
	HealthPct float64 `yaml:"health_pct"`
	// Cooldown is the minimum duration between firings of a timer trigger.
	Cooldown string `yaml:"cooldown"`
}

// ActionConfig describes what a boss mechanic does when its trigger fires.
type ActionConfig struct {
	// Type is one of "enrage", "summon_minions", "cast_stomp", "heal_self".
	Type string `yaml:"type"`
	// Multiplier is the permanent damage multiplier for enrage.
	Multiplier float64 `yaml:"multiplier"`
	// MinionTemplate and MinionCount configure summon_minions.
	MinionTemplate string `yaml:"minion_template"`
	MinionCount    int    `yaml:"minion_count"`
	// CastDuration is the wind-up before cast_stomp resolves.
	CastDuration string `yaml:"cast_duration"`
	// Damage is the room-wide damage dealt by cast_stomp.
	Damage int `yaml:"damage"`
	// HealPct is the fraction of max health restored by heal_self.
	HealPct float64 `yaml:"heal_pct"`
}

// MechanicConfig pairs one trigger with one action, evaluated in template order.
type MechanicConfig struct {
	Name    string        `yaml:"name"`
	Trigger TriggerConfig `yaml:"trigger"`
	Action  ActionConfig  `yaml:"action"`
}

// Template defines a reusable agent archetype loaded from YAML.
type Template struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Level       int      `yaml:"level"`
	MaxHP       int      `yaml:"max_hp"`
	Damage      int      `yaml:"damage"`
	Armor       int      `yaml:"armor"`
	Behavior    Behavior `yaml:"behavior"`
	// PatrolRoute is the ordered room sequence walked by patrol agents.
	PatrolRoute []string `yaml:"patrol_route"`
	// MaxInstances caps live copies of this template per room.
	MaxInstances int `yaml:"max_instances"`
	// Boss marks the template for mechanic evaluation.
	Boss      bool             `yaml:"boss"`
	Mechanics []MechanicConfig `yaml:"mechanics"`
	Loot      *LootTable       `yaml:"loot"`
	// SpawnRooms lists the rooms seeded with one instance each at startup.
	// Room existence is checked against the loaded world during wiring.
	SpawnRooms []string `yaml:"spawn_rooms"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1,
// MaxHP >= 1, Damage >= 0, MaxInstances >= 1, the behavior tag is known, and
// any mechanics and loot table validate; returns an error on the first
// violation otherwise.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("agent template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("agent template %q: name must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("agent template %q: level must be >= 1", t.ID)
	}
	if t.MaxHP < 1 {
		return fmt.Errorf("agent template %q: max_hp must be >= 1", t.ID)
	}
	if t.Damage < 0 {
		return fmt.Errorf("agent template %q: damage must be >= 0", t.ID)
	}
	if t.MaxInstances < 1 {
		return fmt.Errorf("agent template %q: max_instances must be >= 1", t.ID)
	}
	if !t.Behavior.Valid() {
		return fmt.Errorf("agent template %q: unknown behavior %q", t.ID, t.Behavior)
	}
	if t.Behavior == BehaviorPatrol && len(t.PatrolRoute) < 2 {
		return fmt.Errorf("agent template %q: patrol_route must list at least 2 rooms", t.ID)
	}
	if len(t.Mechanics) > 0 && !t.Boss {
		return fmt.Errorf("agent template %q: mechanics require boss: true", t.ID)
	}
	for i, mech := range t.Mechanics {
		if err := validateMechanic(mech); err != nil {
			return fmt.Errorf("agent template %q: mechanic[%d]: %w", t.ID, i, err)
		}
	}
	if t.Loot != nil {
		if err := t.Loot.Validate(); err != nil {
			return fmt.Errorf("agent template %q: %w", t.ID, err)
		}
	}
	return nil
}

func validateMechanic(m MechanicConfig) error {
	if m.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	switch m.Trigger.Type {
	case "health_threshold":
		if m.Trigger.HealthPct <= 0 || m.Trigger.HealthPct >= 1 {
			return fmt.Errorf("%q: health_pct must be in (0, 1), got %f", m.Name, m.Trigger.HealthPct)
		}
	case "timer":
		if m.Trigger.Cooldown == "" {
			return fmt.Errorf("%q: timer trigger requires a cooldown", m.Name)
		}
		if _, err := time.ParseDuration(m.Trigger.Cooldown); err != nil {
			return fmt.Errorf("%q: cooldown %q is not a valid duration: %w", m.Name, m.Trigger.Cooldown, err)
		}
	default:
		return fmt.Errorf("%q: unknown trigger type %q", m.Name, m.Trigger.Type)
	}
	switch m.Action.Type {
	case "enrage":
		if m.Action.Multiplier <= 1 {
			return fmt.Errorf("%q: enrage multiplier must be > 1, got %f", m.Name, m.Action.Multiplier)
		}
	case "summon_minions":
		if m.Action.MinionTemplate == "" || m.Action.MinionCount < 1 {
			return fmt.Errorf("%q: summon_minions requires minion_template and minion_count >= 1", m.Name)
		}
	case "cast_stomp":
		if m.Action.Damage < 1 {
			return fmt.Errorf("%q: cast_stomp damage must be >= 1", m.Name)
		}
		if m.Action.CastDuration == "" {
			return fmt.Errorf("%q: cast_stomp requires a cast_duration", m.Name)
		}
		if _, err := time.ParseDuration(m.Action.CastDuration); err != nil {
			return fmt.Errorf("%q: cast_duration %q is not a valid duration: %w", m.Name, m.Action.CastDuration, err)
		}
	case "heal_self":
		if m.Action.HealPct <= 0 || m.Action.HealPct > 1 {
			return fmt.Errorf("%q: heal_pct must be in (0, 1], got %f", m.Name, m.Action.HealPct)
		}
	default:
		return fmt.Errorf("%q: unknown action type %q", m.Name, m.Action.Type)
	}
	return nil
}

// LoadTemplateFromBytes parses a single agent template from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	tmpl := Template{MaxInstances: 1}
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed
// templates keyed by ID.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or
// validate failure; on error, the partial result is discarded.
func LoadTemplates(dir string) (map[string]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading agent template dir %q: %w", dir, err)
	}

	templates := make(map[string]*Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if _, exists := templates[tmpl.ID]; exists {
			return nil, fmt.Errorf("duplicate agent template ID %q in %q", tmpl.ID, path)
		}
		templates[tmpl.ID] = tmpl
	}
	return templates, nil
}
