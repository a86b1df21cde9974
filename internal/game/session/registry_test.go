package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/duskfall/internal/game/message"
)

func add(t *testing.T, r *Registry, uid, roomID string) *Player {
	t.Helper()
	p, err := r.Add(&Player{
		UID: uid, Name: "P " + uid, RoomID: roomID,
		CurrentHP: 30, MaxHP: 30, Level: 1, Damage: 5,
	})
	require.NoError(t, err)
	return p
}

func received(p *Player) []message.Message {
	var out []message.Message
	for {
		select {
		case m := <-p.Conn.Events():
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestAddRejectsDuplicateUID(t *testing.T) {
	r := NewRegistry()
	add(t, r, "p1", "square")

	_, err := r.Add(&Player{UID: "p1", Name: "Other", RoomID: "square"})
	assert.Error(t, err)
	assert.Equal(t, 1, r.Count())
}

func TestRemoveClosesConnAndClearsRoom(t *testing.T) {
	r := NewRegistry()
	p := add(t, r, "p1", "square")

	require.NoError(t, r.Remove("p1"))

	assert.True(t, p.Conn.IsClosed())
	assert.Empty(t, r.PlayersInRoom("square"))
	assert.Error(t, r.Remove("p1"))
}

func TestMoveUpdatesOccupancy(t *testing.T) {
	r := NewRegistry()
	p := add(t, r, "p1", "square")

	old, err := r.Move("p1", "mill")
	require.NoError(t, err)

	assert.Equal(t, "square", old)
	assert.Equal(t, "mill", p.RoomID)
	assert.Empty(t, r.PlayersInRoom("square"))
	assert.Len(t, r.PlayersInRoom("mill"), 1)
}

func TestSendToRoomExcludesSenderAndOtherRooms(t *testing.T) {
	r := NewRegistry()
	speaker := add(t, r, "speaker", "square")
	listener := add(t, r, "listener", "square")
	outside := add(t, r, "outside", "mill")

	r.SendToRoom("square", message.System("a bell tolls"), "speaker")

	assert.Empty(t, received(speaker))
	require.Len(t, received(listener), 1)
	assert.Empty(t, received(outside))
}

func TestSendToPlayerSwallowsClosedAndUnknownConns(t *testing.T) {
	r := NewRegistry()
	p := add(t, r, "p1", "square")
	_ = p.Conn.Close()

	// Neither a closed conn nor an unknown UID may panic or block.
	r.SendToPlayer("p1", message.System("hello"))
	r.SendToPlayer("ghost", message.System("hello"))
}

func TestSendToRoomSwallowsFullBuffers(t *testing.T) {
	r := NewRegistry()
	p, err := r.Add(&Player{
		UID: "tiny", Name: "Tiny", RoomID: "square",
		CurrentHP: 10, MaxHP: 10, Level: 1, Damage: 1,
		Conn: NewConn("tiny", 1),
	})
	require.NoError(t, err)

	r.SendToRoom("square", message.System("first"), "")
	r.SendToRoom("square", message.System("second"), "") // buffer full, dropped

	msgs := received(p)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)
}

func TestConnPushAfterCloseFails(t *testing.T) {
	c := NewConn("p1", 2)
	require.NoError(t, c.Push(message.System("hi")))
	require.NoError(t, c.Close())

	assert.Error(t, c.Push(message.System("late")))
	assert.NoError(t, c.Close(), "closing twice is safe")
}

func TestAttackDamageAddsWeaponBonus(t *testing.T) {
	p := &Player{Damage: 5, WeaponBonus: 2}
	assert.Equal(t, 7, p.AttackDamage())
	assert.False(t, p.InCombat())
	p.CombatTargetID = "rat"
	assert.True(t, p.InCombat())
}
