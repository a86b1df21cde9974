// Package mechanic evaluates boss mechanics for live bosses on a fixed tick:
// enrage, minion summons, telegraphed stomps, and self-heals.
package mechanic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/session"
)

// DefeatHandler is the slice of the encounter engine the director needs:
// stomp damage can fell players outside their own combat tick, and the
// simulation mutex orders boss mutation against combat ticks.
type DefeatHandler interface {
	HandlePlayerDefeat(uid string)
	SimLock() *sync.Mutex
}

// Persister writes the durable side of mechanic effects.
type Persister interface {
	SavePlayer(ctx context.Context, p *session.Player) error
	SaveAgent(ctx context.Context, a *entity.Agent) error
	CreateAgent(ctx context.Context, a *entity.Agent) error
}

// Config holds the mechanic tuning constants.
type Config struct {
	// TickInterval is the mechanic evaluation period.
	TickInterval time.Duration
	// MinDamage is the floor applied to stomp damage after armor.
	MinDamage int
}

// DefaultConfig returns the standard mechanic tuning constants.
func DefaultConfig() Config {
	return Config{
		TickInterval: 2 * time.Second,
		MinDamage:    1,
	}
}

// pendingCast is a boss's single in-flight telegraphed action.
type pendingCast struct {
	mechanic  entity.MechanicConfig
	resolveAt time.Time
}

// bossState is the per-boss mechanic bookkeeping.
type bossState struct {
	// fired marks one-shot mechanics (health thresholds, enrage) that have
	// already gone off for this boss instance.
	fired map[string]bool
	// lastFired gates timer triggers; seeded at first sight so a freshly
	// engaged boss waits a full cooldown before its first timer mechanic.
	lastFired map[string]time.Time
	cast      *pendingCast
}

// Director evaluates the mechanics of every boss that is in combat. At most
// one mechanic fires per boss per tick, in template order, and an in-flight
// cast blocks all trigger evaluation until it resolves.
type Director struct {
	cfg       Config
	agents    *entity.Manager
	sessions  *session.Registry
	templates map[string]*entity.Template
	defeats   DefeatHandler
	persister Persister
	logger    *zap.Logger

	// sim is the engine's simulation mutex; boss state and entity fields
	// are only touched under it. Never held across HandlePlayerDefeat,
	// which takes it itself.
	sim    *sync.Mutex
	states map[string]*bossState // agentID → state
	now    func() time.Time
}

// NewDirector creates a mechanic Director.
//
// Precondition: agents, sessions, defeats, and logger must be non-nil.
// templates supplies minion archetypes for summon mechanics and may be empty;
// persister may be nil (no durable writes).
func NewDirector(
	cfg Config,
	agents *entity.Manager,
	sessions *session.Registry,
	templates map[string]*entity.Template,
	defeats DefeatHandler,
	persister Persister,
	logger *zap.Logger,
) *Director {
	return &Director{
		cfg:       cfg,
		agents:    agents,
		sessions:  sessions,
		templates: templates,
		defeats:   defeats,
		persister: persister,
		logger:    logger,
		sim:       defeats.SimLock(),
		states:    make(map[string]*bossState),
		now:       time.Now,
	}
}

// SetClock overrides the director clock. Tests only.
func (d *Director) SetClock(now func() time.Time) {
	d.sim.Lock()
	defer d.sim.Unlock()
	d.now = now
}

// RunOnce executes a single mechanic pass over every in-combat boss. The
// host's tick manager drives it on the mechanic interval; tests step bosses
// through it manually. Players felled by a resolving stomp are handed to the
// engine's defeat path after the simulation mutex is released, because the
// engine takes it itself.
func (d *Director) RunOnce() {
	for _, uid := range d.pass() {
		d.defeats.HandlePlayerDefeat(uid)
	}
}

// pass runs one pass over every boss under the simulation mutex and returns
// the players felled by resolving casts.
func (d *Director) pass() []string {
	d.sim.Lock()
	defer d.sim.Unlock()

	var felled []string
	live := make(map[string]bool)
	for _, a := range d.agents.All() {
		if !a.Boss {
			continue
		}
		live[a.ID] = true
		if !a.InCombat() {
			continue
		}
		felled = append(felled, d.stepBossLocked(a)...)
	}

	// Drop bookkeeping for bosses that died or despawned.
	for id := range d.states {
		if !live[id] {
			delete(d.states, id)
		}
	}
	return felled
}

// stepBossLocked evaluates one boss and returns the players felled by a
// resolving cast, if any.
func (d *Director) stepBossLocked(a *entity.Agent) (felled []string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("mechanic step panicked",
				zap.String("boss", a.ID),
				zap.Any("panic", r),
			)
		}
	}()

	st := d.stateLocked(a)
	now := d.now()

	// A pending cast resolves before anything else may trigger.
	if st.cast != nil {
		if now.Before(st.cast.resolveAt) {
			return nil
		}
		cast := st.cast
		st.cast = nil
		return d.resolveStompLocked(a, cast.mechanic)
	}

	for _, m := range a.Mechanics {
		if !d.triggeredLocked(st, a, m, now) {
			continue
		}
		d.fireLocked(st, a, m, now)
		return nil // one mechanic per boss per tick
	}
	return nil
}

// stateLocked returns the boss's bookkeeping, creating it on first sight.
func (d *Director) stateLocked(a *entity.Agent) *bossState {
	st, ok := d.states[a.ID]
	if ok {
		return st
	}
	st = &bossState{
		fired:     make(map[string]bool),
		lastFired: make(map[string]time.Time),
	}
	now := d.now()
	for _, m := range a.Mechanics {
		if m.Trigger.Type == "timer" {
			st.lastFired[m.Name] = now
		}
	}
	d.states[a.ID] = st
	return st
}

func (d *Director) triggeredLocked(st *bossState, a *entity.Agent, m entity.MechanicConfig, now time.Time) bool {
	switch m.Trigger.Type {
	case "health_threshold":
		if st.fired[m.Name] {
			return false
		}
		return float64(a.CurrentHP) < m.Trigger.HealthPct*float64(a.MaxHP)
	case "timer":
		cooldown, err := time.ParseDuration(m.Trigger.Cooldown)
		if err != nil {
			return false // validated at load; unreachable for loaded templates
		}
		return now.Sub(st.lastFired[m.Name]) >= cooldown
	}
	return false
}

func (d *Director) fireLocked(st *bossState, a *entity.Agent, m entity.MechanicConfig, now time.Time) {
	switch m.Trigger.Type {
	case "health_threshold":
		st.fired[m.Name] = true
	case "timer":
		st.lastFired[m.Name] = now
	}

	d.logger.Info("boss mechanic fires",
		zap.String("boss", a.ID),
		zap.String("mechanic", m.Name),
		zap.String("action", m.Action.Type),
	)

	switch m.Action.Type {
	case "enrage":
		d.enrageLocked(st, a, m)
	case "summon_minions":
		d.summonLocked(a, m)
	case "cast_stomp":
		d.beginStompLocked(st, a, m, now)
	case "heal_self":
		d.healLocked(a, m)
	}
}

// enrageLocked applies the permanent damage multiplier. One-time per boss
// regardless of trigger type.
func (d *Director) enrageLocked(st *bossState, a *entity.Agent, m entity.MechanicConfig) {
	if a.DamageMultiplier > 1 {
		return
	}
	st.fired[m.Name] = true
	a.DamageMultiplier = m.Action.Multiplier
	d.persistAgentLocked(a)
	d.sessions.SendToRoom(a.RoomID, message.System(a.Name+" flies into a rage!"), "")
}

// summonLocked spawns the configured minions beside the boss, honoring the
// minion template's per-room instance cap.
func (d *Director) summonLocked(a *entity.Agent, m entity.MechanicConfig) {
	tmpl, ok := d.templates[m.Action.MinionTemplate]
	if !ok {
		d.logger.Warn("summon references unknown template",
			zap.String("boss", a.ID),
			zap.String("template", m.Action.MinionTemplate),
		)
		return
	}

	summoned := 0
	for i := 0; i < m.Action.MinionCount; i++ {
		if d.agents.CountTemplateInRoom(a.RoomID, tmpl.ID) >= tmpl.MaxInstances {
			break
		}
		minion, err := d.agents.Spawn(tmpl, a.RoomID)
		if err != nil {
			d.logger.Error("summoning minion", zap.String("boss", a.ID), zap.Error(err))
			return
		}
		if d.persister != nil {
			if err := d.persister.CreateAgent(context.Background(), minion); err != nil {
				d.logger.Error("creating minion row", zap.String("agent", minion.ID), zap.Error(err))
			}
		}
		summoned++
	}
	if summoned > 0 {
		d.sessions.SendToRoom(a.RoomID, message.Message{
			Kind: message.KindSpawn, Actor: a.Name, RoomID: a.RoomID,
			Text: fmt.Sprintf("%s calls %d minions to its side!", a.Name, summoned),
		}, "")
	}
}

// beginStompLocked telegraphs the stomp: the cast slot fills and every
// occupant is warned with the wind-up duration.
func (d *Director) beginStompLocked(st *bossState, a *entity.Agent, m entity.MechanicConfig, now time.Time) {
	castDuration, err := time.ParseDuration(m.Action.CastDuration)
	if err != nil {
		return // validated at load
	}
	st.cast = &pendingCast{mechanic: m, resolveAt: now.Add(castDuration)}
	d.sessions.SendToRoom(a.RoomID, message.Message{
		Kind:       message.KindCastStart,
		Actor:      a.Name,
		RoomID:     a.RoomID,
		DurationMs: int(castDuration / time.Millisecond),
		Text:       a.Name + " rears up to stomp!",
	}, "")
}

// resolveStompLocked lands the stomp on every player in the boss's room and
// returns everyone it felled. Durable writes land before the damage notices;
// the caller routes the felled through the engine's defeat path once the
// simulation mutex is released.
func (d *Director) resolveStompLocked(a *entity.Agent, m entity.MechanicConfig) []string {
	players := d.sessions.PlayersInRoom(a.RoomID)
	ctx := context.Background()

	var felled []string
	for _, p := range players {
		dmg := m.Action.Damage - p.Armor
		if dmg < d.cfg.MinDamage {
			dmg = d.cfg.MinDamage
		}
		p.CurrentHP -= dmg

		if d.persister != nil {
			if err := d.persister.SavePlayer(ctx, p); err != nil {
				d.logger.Error("saving stomped player", zap.String("uid", p.UID), zap.Error(err))
			}
		}
		d.sessions.SendToPlayer(p.UID, message.CombatLog(a.Name, p.Name,
			fmt.Sprintf("%s's stomp hits you for %d damage!", a.Name, dmg), dmg))

		if p.CurrentHP <= 0 {
			felled = append(felled, p.UID)
		}
	}

	d.sessions.SendToRoom(a.RoomID, message.System(a.Name+"'s stomp shakes the room!"), "")
	return felled
}

// healLocked restores a fraction of the boss's max health, clamped at max.
func (d *Director) healLocked(a *entity.Agent, m entity.MechanicConfig) {
	healed := int(m.Action.HealPct * float64(a.MaxHP))
	if healed < 1 {
		healed = 1
	}
	a.CurrentHP += healed
	if a.CurrentHP > a.MaxHP {
		a.CurrentHP = a.MaxHP
	}
	d.persistAgentLocked(a)
	d.sessions.SendToRoom(a.RoomID, message.System(a.Name+"'s wounds knit closed."), "")
}

func (d *Director) persistAgentLocked(a *entity.Agent) {
	if d.persister == nil {
		return
	}
	if err := d.persister.SaveAgent(context.Background(), a); err != nil {
		d.logger.Error("saving boss state", zap.String("agent", a.ID), zap.Error(err))
	}
}
