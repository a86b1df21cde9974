package gameserver

import (
	"fmt"

	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/party"
	"github.com/cory-johannsen/duskfall/internal/game/session"
)

// PartyHandler handles the party subcommands: invite, accept, decline,
// leave, and lootrule. It resolves counterpart connectivity and pushes the
// notification messages the party manager itself does not send.
type PartyHandler struct {
	parties  *party.Manager
	sessions *session.Registry
}

// NewPartyHandler creates a PartyHandler with the given dependencies.
//
// Precondition: parties and sessions must be non-nil.
func NewPartyHandler(parties *party.Manager, sessions *session.Registry) *PartyHandler {
	return &PartyHandler{
		parties:  parties,
		sessions: sessions,
	}
}

// Invite sends a party invitation from uid to targetID.
//
// Precondition: both players must be connected.
// Postcondition: The target is notified of the pending invitation.
func (h *PartyHandler) Invite(uid, targetID string) error {
	inviter, ok := h.sessions.Get(uid)
	if !ok {
		return fmt.Errorf("player %q not found", uid)
	}
	target, ok := h.sessions.Get(targetID)
	if !ok {
		return fmt.Errorf("player %q is not online", targetID)
	}

	if err := h.parties.Invite(uid, targetID); err != nil {
		return fmt.Errorf("inviting %s: %w", target.Name, err)
	}

	h.sessions.SendToPlayer(targetID, message.System(
		fmt.Sprintf("%s invites you to join their party. (party accept %s)", inviter.Name, uid)))
	h.sessions.SendToPlayer(uid, message.System(
		fmt.Sprintf("You invite %s to your party.", target.Name)))
	return nil
}

// Accept joins uid to the party that invited them via inviterID.
//
// Postcondition: On success every member is notified of the new arrival.
func (h *PartyHandler) Accept(uid, inviterID string) error {
	p, ok := h.sessions.Get(uid)
	if !ok {
		return fmt.Errorf("player %q not found", uid)
	}

	if err := h.parties.Accept(uid, inviterID); err != nil {
		return fmt.Errorf("accepting invitation: %w", err)
	}

	grp, ok := h.parties.PartyOf(uid)
	if !ok {
		return fmt.Errorf("party vanished after accept")
	}
	for _, member := range grp.Members {
		if member == uid {
			continue
		}
		h.sessions.SendToPlayer(member, message.System(p.Name+" joins the party."))
	}
	h.sessions.SendToPlayer(uid, message.System("You join the party."))
	return nil
}

// Decline refuses the pending invitation from inviterID.
func (h *PartyHandler) Decline(uid, inviterID string) error {
	p, ok := h.sessions.Get(uid)
	if !ok {
		return fmt.Errorf("player %q not found", uid)
	}

	if err := h.parties.Decline(uid, inviterID); err != nil {
		return fmt.Errorf("declining invitation: %w", err)
	}

	h.sessions.SendToPlayer(inviterID, message.System(p.Name+" declines your invitation."))
	h.sessions.SendToPlayer(uid, message.System("You decline the invitation."))
	return nil
}

// Leave removes uid from their party, notifying the remaining members.
// Leadership transfer and party destruction follow the manager's rules.
func (h *PartyHandler) Leave(uid string) error {
	p, ok := h.sessions.Get(uid)
	if !ok {
		return fmt.Errorf("player %q not found", uid)
	}

	grp, inParty := h.parties.PartyOf(uid)
	if err := h.parties.Leave(uid); err != nil {
		return fmt.Errorf("leaving party: %w", err)
	}

	if inParty {
		for _, member := range grp.Members {
			if member == uid {
				continue
			}
			h.sessions.SendToPlayer(member, message.System(p.Name+" leaves the party."))
		}
	}
	h.sessions.SendToPlayer(uid, message.System("You leave the party."))
	return nil
}

// SetLootRule switches uid's party to the named loot rule. Leader only.
func (h *PartyHandler) SetLootRule(uid, rule string) error {
	var lr party.LootRule
	switch rule {
	case string(party.LootLeaderOnly):
		lr = party.LootLeaderOnly
	case string(party.LootRoundRobin):
		lr = party.LootRoundRobin
	default:
		return fmt.Errorf("unknown loot rule %q", rule)
	}

	if err := h.parties.SetLootRule(uid, lr); err != nil {
		return fmt.Errorf("setting loot rule: %w", err)
	}

	grp, ok := h.parties.PartyOf(uid)
	if !ok {
		return nil
	}
	for _, member := range grp.Members {
		h.sessions.SendToPlayer(member, message.System("Party loot rule is now "+rule+"."))
	}
	return nil
}
