// Package party provides transient group membership, invitations, and the
// loot-turn state machine consulted before ground-item pickups.
package party

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State-conflict errors surfaced to the command layer. None are retried.
var (
	// ErrAlreadyGrouped is returned when the invite target already belongs to a party.
	ErrAlreadyGrouped = errors.New("player already belongs to a party")
	// ErrNotLeader is returned when a non-leader member tries a leader-only operation.
	ErrNotLeader = errors.New("only the party leader may do that")
	// ErrDuplicateInvite is returned when a pending invitation to the target already exists.
	ErrDuplicateInvite = errors.New("an invitation is already pending for that player")
	// ErrNoSuchInvite is returned when accepting or declining a non-existent invitation.
	ErrNoSuchInvite = errors.New("no pending invitation from that player")
	// ErrNotInParty is returned when the player does not belong to any party.
	ErrNotInParty = errors.New("player is not in a party")
)

// LootRule selects how loot turns are arbitrated within a party.
type LootRule string

const (
	// LootLeaderOnly restricts pickups to the party leader.
	LootLeaderOnly LootRule = "leader_only"
	// LootRoundRobin rotates pickup rights through members in join order.
	LootRoundRobin LootRule = "round_robin"
)

// InviteMaxAge is how long a pending invitation survives before the sweep
// removes it.
const InviteMaxAge = 10 * time.Minute

// invite records one pending invitation into a party.
type invite struct {
	inviterID string
	sentAt    time.Time
}

// Party holds one group's membership and loot-turn state.
//
// Invariant: Members is non-empty and ordered by join time; Members[0] join
// order determines leadership succession.
type Party struct {
	// ID uniquely identifies the party.
	ID string
	// LeaderID is the current leader's player UID.
	LeaderID string
	// Members lists member UIDs in join order. The leader is always present.
	Members []string
	// Rule is the active loot rule.
	Rule LootRule
	// TurnIndex is the rotating loot-turn cursor for round-robin.
	TurnIndex int

	invites map[string]invite // target UID → pending invite
}

// contains reports whether uid is a member.
func (p *Party) contains(uid string) bool {
	for _, m := range p.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// Manager owns all party state. All mutation funnels through its methods so
// the membership and loot-turn invariants hold in one place.
// All methods are safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	parties     map[string]*Party // partyID → party
	memberIndex map[string]string // member UID → partyID
	now         func() time.Time
}

// NewManager creates an empty party Manager.
func NewManager() *Manager {
	return &Manager{
		parties:     make(map[string]*Party),
		memberIndex: make(map[string]string),
		now:         time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Invite records a pending invitation from inviterID to targetID.
// A lone inviter implicitly creates a new party and becomes its leader.
//
// Precondition: inviterID and targetID must be non-empty and distinct.
// Postcondition: Returns ErrAlreadyGrouped if target belongs to a party,
// ErrNotLeader if the inviter is a non-leader member, ErrDuplicateInvite if
// an invitation to target is already pending; otherwise the invite is stored.
func (m *Manager) Invite(inviterID, targetID string) error {
	if inviterID == targetID {
		return fmt.Errorf("player %q cannot invite themselves", inviterID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, grouped := m.memberIndex[targetID]; grouped {
		return ErrAlreadyGrouped
	}

	p, ok := m.partyOf(inviterID)
	if ok {
		if p.LeaderID != inviterID {
			return ErrNotLeader
		}
	} else {
		p = &Party{
			ID:       uuid.New().String(),
			LeaderID: inviterID,
			Members:  []string{inviterID},
			Rule:     LootRoundRobin,
			invites:  make(map[string]invite),
		}
		m.parties[p.ID] = p
		m.memberIndex[inviterID] = p.ID
	}

	if _, pending := p.invites[targetID]; pending {
		return ErrDuplicateInvite
	}
	p.invites[targetID] = invite{inviterID: inviterID, sentAt: m.now()}
	return nil
}

// Accept adds targetID to the party that inviterID invited them to.
//
// Postcondition: Returns ErrNoSuchInvite if no matching invitation is
// pending, ErrAlreadyGrouped if target joined another party meanwhile;
// otherwise target is appended to the member list and the invite cleared.
func (m *Manager) Accept(targetID, inviterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pendingInvite(targetID, inviterID)
	if !ok {
		return ErrNoSuchInvite
	}
	if _, grouped := m.memberIndex[targetID]; grouped {
		return ErrAlreadyGrouped
	}

	delete(p.invites, targetID)
	p.Members = append(p.Members, targetID)
	m.memberIndex[targetID] = p.ID
	return nil
}

// Decline clears the pending invitation from inviterID to targetID.
//
// Postcondition: Returns ErrNoSuchInvite if no matching invitation is pending.
func (m *Manager) Decline(targetID, inviterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pendingInvite(targetID, inviterID)
	if !ok {
		return ErrNoSuchInvite
	}
	delete(p.invites, targetID)
	return nil
}

// Leave removes memberID from their party. An empty party is destroyed; if
// the leader departs, leadership transfers to the earliest remaining member.
//
// Postcondition: Returns ErrNotInParty if the player is not grouped.
func (m *Manager) Leave(memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partyOf(memberID)
	if !ok {
		return ErrNotInParty
	}

	idx := -1
	for i, uid := range p.Members {
		if uid == memberID {
			idx = i
			break
		}
	}
	p.Members = append(p.Members[:idx], p.Members[idx+1:]...)
	delete(m.memberIndex, memberID)

	if len(p.Members) == 0 {
		delete(m.parties, p.ID)
		return nil
	}

	// Keep the loot rotation aligned after the membership shrinks.
	if p.TurnIndex >= len(p.Members) {
		p.TurnIndex = p.TurnIndex % len(p.Members)
	}
	if p.LeaderID == memberID {
		p.LeaderID = p.Members[0]
	}
	return nil
}

// PartyOf returns a snapshot of the party uid belongs to.
//
// Postcondition: Returns (party copy, true) or (Party{}, false).
func (m *Manager) PartyOf(uid string) (Party, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partyOf(uid)
	if !ok {
		return Party{}, false
	}
	out := *p
	out.Members = append([]string(nil), p.Members...)
	out.invites = nil
	return out, true
}

// SetLootRule changes the party's loot rule. Leader-only.
//
// Postcondition: Returns ErrNotInParty or ErrNotLeader on conflict; on
// success the rule is replaced and the turn cursor reset.
func (m *Manager) SetLootRule(leaderID string, rule LootRule) error {
	if rule != LootLeaderOnly && rule != LootRoundRobin {
		return fmt.Errorf("unknown loot rule %q", rule)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partyOf(leaderID)
	if !ok {
		return ErrNotInParty
	}
	if p.LeaderID != leaderID {
		return ErrNotLeader
	}
	p.Rule = rule
	p.TurnIndex = 0
	return nil
}

// CanLoot reports whether uid is currently entitled to pick up ground items.
// Ungrouped players may always loot. Under leader_only, only the leader may;
// under round_robin, only the member at TurnIndex mod member count may.
func (m *Manager) CanLoot(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partyOf(uid)
	if !ok {
		return true
	}
	switch p.Rule {
	case LootLeaderOnly:
		return p.LeaderID == uid
	default:
		return p.Members[p.TurnIndex%len(p.Members)] == uid
	}
}

// AdvanceTurn rotates the loot turn after a successful pickup by uid.
// Only the member currently holding the turn advances it; calls by any other
// player are no-ops, as are calls under leader_only.
func (m *Manager) AdvanceTurn(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partyOf(uid)
	if !ok || p.Rule != LootRoundRobin {
		return
	}
	if p.Members[p.TurnIndex%len(p.Members)] != uid {
		return
	}
	p.TurnIndex++
}

// SweepInvites removes every pending invitation older than InviteMaxAge.
// Intended to run on a periodic tick.
//
// Postcondition: Returns the number of invitations removed.
func (m *Manager) SweepInvites() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-InviteMaxAge)
	removed := 0
	for _, p := range m.parties {
		for target, inv := range p.invites {
			if inv.sentAt.Before(cutoff) {
				delete(p.invites, target)
				removed++
			}
		}
	}
	return removed
}

// PendingInviteCount returns the number of invitations pending across all
// parties. Exposed for observability and tests.
func (m *Manager) PendingInviteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.parties {
		n += len(p.invites)
	}
	return n
}

// partyOf returns the live party uid belongs to. Caller must hold m.mu.
func (m *Manager) partyOf(uid string) (*Party, bool) {
	id, ok := m.memberIndex[uid]
	if !ok {
		return nil, false
	}
	p, ok := m.parties[id]
	return p, ok
}

// pendingInvite finds the party holding a pending invite from inviterID to
// targetID. Caller must hold m.mu.
func (m *Manager) pendingInvite(targetID, inviterID string) (*Party, bool) {
	for _, p := range m.parties {
		if inv, ok := p.invites[targetID]; ok && inv.inviterID == inviterID {
			return p, true
		}
	}
	return nil, false
}
