package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
)

const ratYAML = `
id: sewer_rat
name: Sewer Rat
description: A rat the size of a small dog.
level: 1
max_hp: 20
damage: 3
behavior: wander
max_instances: 3
loot:
  items:
    - item: rat_tail
      chance: 0.8
      min_qty: 1
      max_qty: 2
`

func TestLoadTemplateFromBytes(t *testing.T) {
	tmpl, err := LoadTemplateFromBytes([]byte(ratYAML))
	require.NoError(t, err)

	assert.Equal(t, "sewer_rat", tmpl.ID)
	assert.Equal(t, BehaviorWander, tmpl.Behavior)
	assert.Equal(t, 3, tmpl.MaxInstances)
	require.NotNil(t, tmpl.Loot)
	assert.Len(t, tmpl.Loot.Items, 1)
}

func TestLoadTemplateFromBytes_DefaultsMaxInstances(t *testing.T) {
	tmpl, err := LoadTemplateFromBytes([]byte(`
id: lone_wolf
name: Lone Wolf
level: 2
max_hp: 18
damage: 4
behavior: wander
`))
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.MaxInstances)
}

func TestTemplateValidate_Rejections(t *testing.T) {
	base := func() *Template {
		return &Template{
			ID: "x", Name: "X", Level: 1, MaxHP: 10, Damage: 1,
			Behavior: BehaviorPassive, MaxInstances: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"empty id", func(t *Template) { t.ID = "" }},
		{"zero level", func(t *Template) { t.Level = 0 }},
		{"zero hp", func(t *Template) { t.MaxHP = 0 }},
		{"negative damage", func(t *Template) { t.Damage = -1 }},
		{"unknown behavior", func(t *Template) { t.Behavior = "ambush" }},
		{"patrol without route", func(t *Template) { t.Behavior = BehaviorPatrol }},
		{"mechanics without boss", func(t *Template) {
			t.Mechanics = []MechanicConfig{{
				Name:    "enrage",
				Trigger: TriggerConfig{Type: "health_threshold", HealthPct: 0.5},
				Action:  ActionConfig{Type: "enrage", Multiplier: 2},
			}}
		}},
		{"bad trigger type", func(t *Template) {
			t.Boss = true
			t.Mechanics = []MechanicConfig{{
				Name:    "m",
				Trigger: TriggerConfig{Type: "phase"},
				Action:  ActionConfig{Type: "enrage", Multiplier: 2},
			}}
		}},
		{"bad cooldown", func(t *Template) {
			t.Boss = true
			t.Mechanics = []MechanicConfig{{
				Name:    "m",
				Trigger: TriggerConfig{Type: "timer", Cooldown: "soon"},
				Action:  ActionConfig{Type: "heal_self", HealPct: 0.2},
			}}
		}},
		{"loot chance out of range", func(t *Template) {
			t.Loot = &LootTable{Items: []ItemDrop{{ItemID: "gem", Chance: 1.5, MinQty: 1, MaxQty: 1}}}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := base()
			tc.mutate(tmpl)
			assert.Error(t, tmpl.Validate())
		})
	}
}

func TestManagerSpawnAssignsUniqueIDs(t *testing.T) {
	m := NewManager()
	tmpl, err := LoadTemplateFromBytes([]byte(ratYAML))
	require.NoError(t, err)

	a, err := m.Spawn(tmpl, "den")
	require.NoError(t, err)
	b, err := m.Spawn(tmpl, "den")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, tmpl.MaxHP, a.CurrentHP)
	assert.Equal(t, 1.0, a.DamageMultiplier)
	assert.Equal(t, 2, m.CountTemplateInRoom("den", "sewer_rat"))
	assert.Equal(t, 0, m.CountTemplateInRoom("alley", "sewer_rat"))
}

func TestManagerMoveReindexesRooms(t *testing.T) {
	m := NewManager()
	tmpl, err := LoadTemplateFromBytes([]byte(ratYAML))
	require.NoError(t, err)
	a, err := m.Spawn(tmpl, "den")
	require.NoError(t, err)

	require.NoError(t, m.Move(a.ID, "alley"))

	assert.Equal(t, "alley", a.RoomID)
	assert.Empty(t, m.AgentsInRoom("den"))
	assert.Len(t, m.AgentsInRoom("alley"), 1)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	tmpl, err := LoadTemplateFromBytes([]byte(ratYAML))
	require.NoError(t, err)
	a, err := m.Spawn(tmpl, "den")
	require.NoError(t, err)

	require.NoError(t, m.Remove(a.ID))
	_, ok := m.Get(a.ID)
	assert.False(t, ok)
	assert.Error(t, m.Remove(a.ID))
}

func TestAgentSnapshotRoundTrips(t *testing.T) {
	tmpl, err := LoadTemplateFromBytes([]byte(ratYAML))
	require.NoError(t, err)
	a := NewAgent("sewer_rat-den-1", tmpl, "den")
	a.CurrentHP = 3 // wounds do not leak into the snapshot

	snap := a.Snapshot()
	assert.Equal(t, tmpl.ID, snap.ID)
	assert.Equal(t, tmpl.MaxHP, snap.MaxHP)
	assert.Equal(t, tmpl.MaxInstances, snap.MaxInstances)

	reborn := NewAgent("sewer_rat-den-2", snap, "den")
	assert.Equal(t, tmpl.MaxHP, reborn.CurrentHP)
}

func TestEffectiveDamageUsesMultiplier(t *testing.T) {
	a := &Agent{Damage: 10, DamageMultiplier: 2.0}
	assert.Equal(t, 20, a.EffectiveDamage())

	a.DamageMultiplier = 0 // unset behaves as 1.0
	assert.Equal(t, 10, a.EffectiveDamage())
}

func TestGenerateLoot(t *testing.T) {
	lt := LootTable{Items: []ItemDrop{
		{ItemID: "always", Chance: 1.0, MinQty: 2, MaxQty: 2},
		{ItemID: "never", Chance: 0.0000001, MinQty: 1, MaxQty: 1},
	}}
	require.NoError(t, lt.Validate())

	src := dice.NewSeededSource(11)
	items := GenerateLoot(lt, src)

	require.NotEmpty(t, items)
	assert.Equal(t, "always", items[0].ItemID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.NotEmpty(t, items[0].InstanceID)
}
