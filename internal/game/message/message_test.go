package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersTagTheRightVariant(t *testing.T) {
	assert.Equal(t, KindJoin, Join("Hero", "Rat").Kind)
	assert.Equal(t, KindStateUpdate, StateUpdate("Hero", 10, 30).Kind)
	assert.Equal(t, KindCombatLog, CombatLog("Hero", "Rat", "ouch", 6).Kind)
	assert.Equal(t, KindSystem, System("welcome").Kind)
}

func TestMarshalOmitsUnusedFields(t *testing.T) {
	data, err := json.Marshal(System("the gates creak open"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "system", decoded["kind"])
	assert.Equal(t, "the gates creak open", decoded["text"])
	assert.NotContains(t, decoded, "damage")
	assert.NotContains(t, decoded, "hp")
	assert.NotContains(t, decoded, "duration_ms")
}

func TestStateUpdateCarriesHealth(t *testing.T) {
	m := StateUpdate("Hero", 12, 30)
	assert.Equal(t, "Hero", m.Actor)
	assert.Equal(t, 12, m.HP)
	assert.Equal(t, 30, m.MaxHP)
}
