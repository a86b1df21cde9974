// Package encounter resolves attacker/defender pairings on a fixed tick:
// damage, mitigation, death, loot turns, leveling, and flee attempts.
package encounter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/party"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
)

// Persister writes the durable side of simulation state changes. Every write
// completes before the corresponding client push ("persist, then notify").
type Persister interface {
	SavePlayer(ctx context.Context, p *session.Player) error
	CreateAgent(ctx context.Context, a *entity.Agent) error
	SaveAgent(ctx context.Context, a *entity.Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

// NopPersister is a Persister for hosts running without a database.
type NopPersister struct{}

func (NopPersister) SavePlayer(context.Context, *session.Player) error { return nil }
func (NopPersister) CreateAgent(context.Context, *entity.Agent) error  { return nil }
func (NopPersister) SaveAgent(context.Context, *entity.Agent) error    { return nil }
func (NopPersister) DeleteAgent(context.Context, string) error         { return nil }

// ExperienceMultiplier returns the possibly-boosted experience award for a
// player. The base amount is returned unchanged when no buff applies.
type ExperienceMultiplier func(playerUID string, base int) int

// RespawnScheduler accepts one-shot respawn requests for defeated agents.
// Implemented by the behavior scheduler.
type RespawnScheduler interface {
	ScheduleRespawn(snapshot *entity.Template, roomID string)
}

// Config holds the encounter tuning constants.
type Config struct {
	// TickInterval is the fixed combat tick period.
	TickInterval time.Duration
	// DamageVariance is the ± spread applied to every damage roll.
	DamageVariance float64
	// MinDamage is the floor after armor mitigation for nonzero base damage.
	MinDamage int
	// XPPerLevel is the base experience awarded per defeated-agent level.
	XPPerLevel int
	// LevelThreshold is the per-level experience requirement multiplier:
	// a player levels while Experience >= Level * LevelThreshold.
	LevelThreshold int
	// FleeChance is the fixed flee success probability.
	FleeChance float64
	// RecoveryRoomID is where defeated players wake up.
	RecoveryRoomID string
	// RecoveryFraction is the share of max health restored on defeat.
	RecoveryFraction float64
}

// DefaultConfig returns the standard tuning constants.
func DefaultConfig() Config {
	return Config{
		TickInterval:     3 * time.Second,
		DamageVariance:   0.2,
		MinDamage:        1,
		XPPerLevel:       10,
		LevelThreshold:   100,
		FleeChance:       0.5,
		RecoveryFraction: 0.5,
	}
}

// Handle is one live attacker/defender pairing and its recurring tick timer.
//
// Invariant: at most one Handle exists per attacker at any time.
type Handle struct {
	// AttackerID is the initiating side; the handle is keyed by it.
	AttackerID string
	// DefenderID is the opposing side.
	DefenderID string
	timer      *TickTimer
}

// Engine manages all live encounter handles, keyed by attacker identity.
// All mutation of combat state funnels through the simulation mutex so the
// one-handle-per-attacker invariant is enforced in one place. The behavior
// scheduler and mechanic director share the same mutex (via SimLock), so
// every read and write of player and agent fields is serialized across the
// three services.
type Engine struct {
	cfg       Config
	sessions  *session.Registry
	agents    *entity.Manager
	worldMgr  *world.Manager
	parties   *party.Manager
	persister Persister
	xpLookup  ExperienceMultiplier
	respawner RespawnScheduler
	src       dice.Source
	logger    *zap.Logger

	mu      *sync.Mutex
	handles map[string]*Handle // attackerID → handle
}

// NewEngine creates an encounter Engine.
//
// Precondition: sessions, agents, worldMgr, parties, src, and logger must be
// non-nil. persister may be nil (no durable writes); xpLookup may be nil (no
// boost); respawner may be nil (defeated agents do not respawn).
func NewEngine(
	cfg Config,
	sessions *session.Registry,
	agents *entity.Manager,
	worldMgr *world.Manager,
	parties *party.Manager,
	persister Persister,
	xpLookup ExperienceMultiplier,
	respawner RespawnScheduler,
	src dice.Source,
	logger *zap.Logger,
) *Engine {
	if persister == nil {
		persister = NopPersister{}
	}
	if xpLookup == nil {
		xpLookup = func(_ string, base int) int { return base }
	}
	return &Engine{
		cfg:       cfg,
		sessions:  sessions,
		agents:    agents,
		worldMgr:  worldMgr,
		parties:   parties,
		persister: persister,
		xpLookup:  xpLookup,
		respawner: respawner,
		src:       src,
		logger:    logger,
		mu:        &sync.Mutex{},
		handles:   make(map[string]*Handle),
	}
}

// SimLock exposes the simulation mutex. The behavior scheduler and mechanic
// director take it before touching any player or agent state so their
// mutations are ordered against combat ticks. Callers must never hold it
// while calling back into the engine.
func (e *Engine) SimLock() *sync.Mutex {
	return e.mu
}

// SetRespawner wires the respawn scheduler after construction. The behavior
// scheduler needs the engine for aggression, so one of the two is wired late.
func (e *Engine) SetRespawner(r RespawnScheduler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.respawner = r
}

// Start begins combat between attackerID and defenderID and starts the
// fixed-interval tick for the pairing.
//
// Precondition: both identities must resolve to live entities in the same room.
// Postcondition: Returns ErrAlreadyInCombat when either side already holds a
// pairing (single-attacker-per-target policy), ErrSafeZone when the room
// forbids combat; otherwise both sides carry mutual target references, a join
// message is broadcast, and a live Handle keyed by attackerID exists.
func (e *Engine) Start(attackerID, defenderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	attacker, ok := e.fighterLocked(attackerID)
	if !ok {
		return fmt.Errorf("attacker %q not found", attackerID)
	}
	defender, ok := e.fighterLocked(defenderID)
	if !ok {
		return fmt.Errorf("defender %q not found", defenderID)
	}
	if attacker.roomID() != defender.roomID() {
		return fmt.Errorf("%s is not here", defender.name())
	}
	if room, ok := e.worldMgr.GetRoom(attacker.roomID()); ok && room.SafeZone {
		return ErrSafeZone
	}
	if _, exists := e.handles[attackerID]; exists {
		return ErrAlreadyInCombat
	}
	if attacker.inCombat() || defender.inCombat() {
		return ErrAlreadyInCombat
	}

	attacker.setCombatTarget(defenderID)
	defender.setCombatTarget(attackerID)

	h := &Handle{AttackerID: attackerID, DefenderID: defenderID}
	h.timer = NewTickTimer(e.cfg.TickInterval, func() {
		e.ExecuteTick(attackerID)
	})
	e.handles[attackerID] = h

	e.sessions.SendToRoom(attacker.roomID(), message.Join(attacker.name(), defender.name()), "")
	return nil
}

// Flee attempts to remove uid's side from its live pairing.
//
// Postcondition: Returns ErrNotInCombat when uid holds no pairing. On a
// successful roll the fleeing side relocates through a random unlocked exit,
// both sides' combat flags clear, and the handle is torn down; the first
// return is true. On a failed roll combat continues unchanged and the first
// return is false.
func (e *Engine) Flee(uid string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.handleForLocked(uid)
	if !ok {
		return false, ErrNotInCombat
	}

	if !dice.Chance(e.cfg.FleeChance, e.src) {
		return false, nil
	}

	runner, ok := e.fighterLocked(uid)
	if !ok {
		// The fleeing side vanished between schedule and execution.
		e.teardownLocked(h)
		return false, ErrNotInCombat
	}

	fromRoom := runner.roomID()
	exit, ok := e.worldMgr.RandomExit(fromRoom, e.src)
	if !ok {
		// No way out: the roll is spent but nothing moves.
		return false, nil
	}

	if runner.isPlayer() {
		if _, err := e.sessions.Move(uid, exit.TargetRoom); err != nil {
			return false, fmt.Errorf("relocating fleeing player: %w", err)
		}
	} else {
		if err := e.agents.Move(uid, exit.TargetRoom); err != nil {
			return false, fmt.Errorf("relocating fleeing agent: %w", err)
		}
	}

	e.teardownLocked(h)

	e.sessions.SendToRoom(fromRoom, message.Message{
		Kind: message.KindMovement, Actor: runner.name(), RoomID: fromRoom,
		Text: runner.name() + " flees " + string(exit.Direction) + "!",
	}, "")
	e.sessions.SendToPlayer(uid, message.System("You escape to "+exit.TargetRoom+"."))
	return true, nil
}

// InCombat reports whether uid is a side of any live pairing.
func (e *Engine) InCombat(uid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.handleForLocked(uid)
	return ok
}

// HandleFor returns the live handle where uid is the attacker.
//
// Postcondition: Returns (handle copy, true) if one exists, or (Handle{}, false).
func (e *Engine) HandleFor(uid string) (Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[uid]
	if !ok {
		return Handle{}, false
	}
	return Handle{AttackerID: h.AttackerID, DefenderID: h.DefenderID}, true
}

// ActiveHandles returns the number of live pairings.
func (e *Engine) ActiveHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// HandlePlayerDefeat applies the player-defeat path for uid outside a tick:
// any pairings involving the player are torn down, combat flags clear, the
// player relocates to the recovery room with partial health, and the durable
// write lands before the notification. Used by the mechanic director for
// room-wide boss damage.
func (e *Engine) HandlePlayerDefeat(uid string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.sessions.Get(uid)
	if !ok {
		return
	}
	e.defeatPlayerLocked(p)
}

// Shutdown cancels every outstanding encounter tick and clears all pairings.
//
// Postcondition: ActiveHandles() == 0 and no timer callback will fire again.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.handles {
		h.timer.Stop()
		e.clearFlagsLocked(h)
	}
	e.handles = make(map[string]*Handle)
}

// fighterLocked resolves an identity to a player or agent view.
// Caller must hold e.mu.
func (e *Engine) fighterLocked(id string) (fighter, bool) {
	if p, ok := e.sessions.Get(id); ok {
		return fighter{player: p}, true
	}
	if a, ok := e.agents.Get(id); ok {
		return fighter{agent: a}, true
	}
	return fighter{}, false
}

// handleForLocked finds the handle where uid is either side.
// Caller must hold e.mu.
func (e *Engine) handleForLocked(uid string) (*Handle, bool) {
	if h, ok := e.handles[uid]; ok {
		return h, true
	}
	for _, h := range e.handles {
		if h.DefenderID == uid {
			return h, true
		}
	}
	return nil, false
}

// teardownLocked stops the handle's timer, clears both sides' combat flags,
// and removes the handle. Caller must hold e.mu.
func (e *Engine) teardownLocked(h *Handle) {
	h.timer.Stop()
	e.clearFlagsLocked(h)
	delete(e.handles, h.AttackerID)
}

// clearFlagsLocked clears the combat back-references on whichever sides
// still exist. Caller must hold e.mu.
func (e *Engine) clearFlagsLocked(h *Handle) {
	if f, ok := e.fighterLocked(h.AttackerID); ok {
		f.setCombatTarget("")
	}
	if f, ok := e.fighterLocked(h.DefenderID); ok {
		f.setCombatTarget("")
	}
}
