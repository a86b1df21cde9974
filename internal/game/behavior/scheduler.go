// Package behavior drives autonomous agent movement and aggression on a
// fixed tick, and owns the one-shot respawn entries for defeated agents.
package behavior

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
)

// CombatStarter is the slice of the encounter engine the scheduler needs:
// aggression for hostile agents and the simulation mutex that orders agent
// mutation against combat ticks.
type CombatStarter interface {
	Start(attackerID, defenderID string) error
	InCombat(id string) bool
	SimLock() *sync.Mutex
}

// AgentCreator writes the durable row for a freshly respawned agent.
// Satisfied by the full Persister.
type AgentCreator interface {
	CreateAgent(ctx context.Context, a *entity.Agent) error
}

// Config holds the behavior tuning constants.
type Config struct {
	// TickInterval is the behavior pass period.
	TickInterval time.Duration
	// WanderChance is the per-tick probability a wandering agent moves.
	WanderChance float64
	// PatrolAdvanceChance is the per-tick probability a patrolling agent
	// advances to the next route stop.
	PatrolAdvanceChance float64
	// RespawnDelay is the default delay before a defeated agent respawns.
	// Rooms may override it.
	RespawnDelay time.Duration
}

// DefaultConfig returns the standard behavior tuning constants.
func DefaultConfig() Config {
	return Config{
		TickInterval:        10 * time.Second,
		WanderChance:        0.35,
		PatrolAdvanceChance: 0.5,
		RespawnDelay:        5 * time.Second,
	}
}

// Scheduler runs one behavior pass per tick: due respawns first, then the
// movement/aggression step for every idle agent. A failure processing one
// agent never stops the pass.
type Scheduler struct {
	cfg      Config
	agents   *entity.Manager
	sessions *session.Registry
	worldMgr *world.Manager
	combat   CombatStarter
	creator  AgentCreator
	src      dice.Source
	logger   *zap.Logger

	// sim is the engine's simulation mutex; every read or write of agent
	// and player fields happens under it. Never held across combat.Start,
	// which takes it itself.
	sim *sync.Mutex

	mu      sync.Mutex
	pending []respawnEntry
	now     func() time.Time
}

// NewScheduler creates a behavior Scheduler.
//
// Precondition: agents, sessions, worldMgr, combat, src, and logger must be
// non-nil. creator may be nil (respawned agents get no durable row).
func NewScheduler(
	cfg Config,
	agents *entity.Manager,
	sessions *session.Registry,
	worldMgr *world.Manager,
	combat CombatStarter,
	creator AgentCreator,
	src dice.Source,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		agents:   agents,
		sessions: sessions,
		worldMgr: worldMgr,
		combat:   combat,
		creator:  creator,
		src:      src,
		logger:   logger,
		sim:      combat.SimLock(),
		now:      time.Now,
	}
}

// SetClock overrides the scheduler clock. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// RunOnce executes a single behavior pass. The host's tick manager drives
// it on the behavior interval; tests step the world through it manually.
func (s *Scheduler) RunOnce() {
	s.drainRespawns()
	for _, agent := range s.agents.All() {
		s.stepAgent(agent)
	}
}

// stepAgent applies one behavior step to a single agent. Movement and state
// reads happen under the simulation mutex; aggression is only decided there,
// with the actual combat start deferred until the mutex is released because
// the engine takes it itself. Panics are contained here so one misbehaving
// agent cannot take the pass down.
func (s *Scheduler) stepAgent(a *entity.Agent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("behavior step panicked",
				zap.String("agent", a.ID),
				zap.Any("panic", r),
			)
		}
	}()

	targetUID := func() string {
		s.sim.Lock()
		defer s.sim.Unlock()

		if a.InCombat() {
			return ""
		}
		switch a.Behavior {
		case entity.BehaviorWander:
			s.maybeWanderLocked(a)
		case entity.BehaviorAggressive:
			uid, ok := s.pickTargetLocked(a)
			if ok {
				return uid
			}
			s.maybeWanderLocked(a)
		case entity.BehaviorPatrol:
			s.maybePatrolLocked(a)
		case entity.BehaviorPassive:
			// Stays put until provoked.
		}
		return ""
	}()

	if targetUID == "" {
		return
	}
	if err := s.combat.Start(a.ID, targetUID); err != nil {
		// The target got busy or left between the pick and the start; the
		// agent forfeits this tick.
		s.logger.Debug("aggressive engage rejected",
			zap.String("agent", a.ID),
			zap.String("target", targetUID),
			zap.Error(err),
		)
	}
}

// pickTargetLocked chooses a random idle player in the agent's room. Players
// already in combat are never contested. Caller must hold s.sim.
func (s *Scheduler) pickTargetLocked(a *entity.Agent) (string, bool) {
	var idle []*session.Player
	for _, p := range s.sessions.PlayersInRoom(a.RoomID) {
		if !p.InCombat() {
			idle = append(idle, p)
		}
	}
	if len(idle) == 0 {
		return "", false
	}
	return idle[dice.PickIndex(len(idle), s.src)].UID, true
}

// maybeWanderLocked rolls the wander chance and, on success, moves the agent
// through a random unlocked exit. Caller must hold s.sim.
func (s *Scheduler) maybeWanderLocked(a *entity.Agent) {
	if !dice.Chance(s.cfg.WanderChance, s.src) {
		return
	}
	exit, ok := s.worldMgr.RandomExit(a.RoomID, s.src)
	if !ok {
		return
	}
	s.relocateLocked(a, a.RoomID, exit.TargetRoom, string(exit.Direction))
}

// maybePatrolLocked rolls the advance chance and, on success, moves the
// agent to the stop after its current one, wrapping at the route's end. The
// current stop is located by the agent's room: the stored cursor is trusted
// only while it still matches, so routes may visit a room more than once. An
// agent found off its route snaps back to the route's first stop. Caller
// must hold s.sim.
func (s *Scheduler) maybePatrolLocked(a *entity.Agent) {
	if len(a.PatrolRoute) < 2 {
		return
	}
	if !dice.Chance(s.cfg.PatrolAdvanceChance, s.src) {
		return
	}

	idx := -1
	if a.PatrolIndex < len(a.PatrolRoute) && a.PatrolRoute[a.PatrolIndex] == a.RoomID {
		idx = a.PatrolIndex
	} else {
		for i, roomID := range a.PatrolRoute {
			if roomID == a.RoomID {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		// Dragged off the route (a flee, a stomp knockback): rejoin at the
		// first stop.
		a.PatrolIndex = 0
		s.relocateLocked(a, a.RoomID, a.PatrolRoute[0], "")
		return
	}

	next := (idx + 1) % len(a.PatrolRoute)
	target := a.PatrolRoute[next]
	if target == a.RoomID {
		a.PatrolIndex = next
		return
	}
	from := a.RoomID
	s.relocateLocked(a, from, target, "")
	a.PatrolIndex = next
}

// relocateLocked moves the agent and announces the departure and arrival.
// Caller must hold s.sim.
func (s *Scheduler) relocateLocked(a *entity.Agent, from, to, direction string) {
	if err := s.agents.Move(a.ID, to); err != nil {
		s.logger.Warn("moving agent", zap.String("agent", a.ID), zap.Error(err))
		return
	}

	depart := a.Name + " leaves"
	if direction != "" {
		depart += " " + direction
	}
	s.sessions.SendToRoom(from, message.Message{
		Kind: message.KindMovement, Actor: a.Name, RoomID: from, Text: depart + ".",
	}, "")
	s.sessions.SendToRoom(to, message.Message{
		Kind: message.KindMovement, Actor: a.Name, RoomID: to, Text: a.Name + " arrives.",
	}, "")
}
