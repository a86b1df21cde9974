package behavior

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
	"github.com/cory-johannsen/duskfall/internal/game/encounter"
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/party"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
)

// stubCombat records aggression attempts without running real encounters.
type stubCombat struct {
	mu      sync.Mutex
	started [][2]string
	err     error
}

func (c *stubCombat) Start(attackerID, defenderID string) error {
	if c.err != nil {
		return c.err
	}
	c.started = append(c.started, [2]string{attackerID, defenderID})
	return nil
}

func (c *stubCombat) InCombat(string) bool { return false }

func (c *stubCombat) SimLock() *sync.Mutex { return &c.mu }

type countingCreator struct{ created int }

func (c *countingCreator) CreateAgent(context.Context, *entity.Agent) error {
	c.created++
	return nil
}

type schedFixture struct {
	agents   *entity.Manager
	sessions *session.Registry
	worldMgr *world.Manager
	combat   *stubCombat
	creator  *countingCreator
	sched    *Scheduler
}

func newSchedFixture(t *testing.T, cfg Config) *schedFixture {
	t.Helper()

	zone := &world.Zone{
		ID:        "crypt",
		Name:      "The Crypt",
		StartRoom: "hall",
		Rooms: map[string]*world.Room{
			"hall": {
				ID: "hall", ZoneID: "crypt", Title: "Great Hall",
				Exits: []world.Exit{{Direction: world.East, TargetRoom: "vault"}},
			},
			"vault": {
				ID: "vault", ZoneID: "crypt", Title: "Vault",
				Exits: []world.Exit{{Direction: world.West, TargetRoom: "hall"}},
			},
			"cell": {
				ID: "cell", ZoneID: "crypt", Title: "Sealed Cell",
				RespawnSeconds: 30,
			},
		},
	}
	worldMgr, err := world.NewManager([]*world.Zone{zone})
	require.NoError(t, err)

	f := &schedFixture{
		agents:   entity.NewManager(),
		sessions: session.NewRegistry(),
		worldMgr: worldMgr,
		combat:   &stubCombat{},
		creator:  &countingCreator{},
	}
	f.sched = NewScheduler(cfg, f.agents, f.sessions, worldMgr, f.combat,
		f.creator, dice.NewSeededSource(7), zaptest.NewLogger(t))
	return f
}

func alwaysMove() Config {
	cfg := DefaultConfig()
	cfg.WanderChance = 1.0
	cfg.PatrolAdvanceChance = 1.0
	return cfg
}

func neverMove() Config {
	cfg := DefaultConfig()
	cfg.WanderChance = 0
	cfg.PatrolAdvanceChance = 0
	return cfg
}

func spawn(t *testing.T, f *schedFixture, tmpl *entity.Template, roomID string) *entity.Agent {
	t.Helper()
	a, err := f.agents.Spawn(tmpl, roomID)
	require.NoError(t, err)
	return a
}

func TestRunOnce_WanderMovesThroughOpenExit(t *testing.T) {
	f := newSchedFixture(t, alwaysMove())
	a := spawn(t, f, &entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 1,
	}, "hall")

	f.sched.RunOnce()

	assert.Equal(t, "vault", a.RoomID, "only open exit leads east")
}

func TestRunOnce_WanderSkipsRollFailure(t *testing.T) {
	f := newSchedFixture(t, neverMove())
	a := spawn(t, f, &entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 1,
	}, "hall")

	f.sched.RunOnce()

	assert.Equal(t, "hall", a.RoomID)
}

func TestRunOnce_PassiveAndInCombatAgentsStayPut(t *testing.T) {
	f := newSchedFixture(t, alwaysMove())
	passive := spawn(t, f, &entity.Template{
		ID: "statue", Name: "Statue", Level: 1, MaxHP: 50, Damage: 0,
		Behavior: entity.BehaviorPassive, MaxInstances: 1,
	}, "hall")
	fighting := spawn(t, f, &entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 1,
	}, "hall")
	fighting.CombatTargetID = "someone"

	f.sched.RunOnce()

	assert.Equal(t, "hall", passive.RoomID)
	assert.Equal(t, "hall", fighting.RoomID)
}

func TestRunOnce_AggressiveEngagesIdlePlayerOnly(t *testing.T) {
	f := newSchedFixture(t, neverMove())
	a := spawn(t, f, &entity.Template{
		ID: "wight", Name: "Wight", Level: 5, MaxHP: 40, Damage: 8,
		Behavior: entity.BehaviorAggressive, MaxInstances: 1,
	}, "hall")

	busy, err := f.sessions.Add(&session.Player{
		UID: "busy", Name: "Busy", RoomID: "hall",
		CurrentHP: 30, MaxHP: 30, Level: 1, Damage: 5,
		CombatTargetID: "other",
	})
	require.NoError(t, err)
	idle, err := f.sessions.Add(&session.Player{
		UID: "idle", Name: "Idle", RoomID: "hall",
		CurrentHP: 30, MaxHP: 30, Level: 1, Damage: 5,
	})
	require.NoError(t, err)
	_ = busy

	f.sched.RunOnce()

	require.Len(t, f.combat.started, 1)
	assert.Equal(t, a.ID, f.combat.started[0][0])
	assert.Equal(t, idle.UID, f.combat.started[0][1])
}

func TestRunOnce_AggressiveWithEmptyRoomWanders(t *testing.T) {
	f := newSchedFixture(t, alwaysMove())
	a := spawn(t, f, &entity.Template{
		ID: "wight", Name: "Wight", Level: 5, MaxHP: 40, Damage: 8,
		Behavior: entity.BehaviorAggressive, MaxInstances: 1,
	}, "hall")

	f.sched.RunOnce()

	assert.Empty(t, f.combat.started)
	assert.Equal(t, "vault", a.RoomID)
}

func TestRunOnce_PatrolAdvancesAndWraps(t *testing.T) {
	f := newSchedFixture(t, alwaysMove())
	a := spawn(t, f, &entity.Template{
		ID: "warden", Name: "Warden", Level: 3, MaxHP: 25, Damage: 5,
		Behavior: entity.BehaviorPatrol, MaxInstances: 1,
		PatrolRoute: []string{"hall", "vault"},
	}, "hall")

	f.sched.RunOnce()
	assert.Equal(t, "vault", a.RoomID)
	assert.Equal(t, 1, a.PatrolIndex)

	f.sched.RunOnce()
	assert.Equal(t, "hall", a.RoomID, "route wraps back to the start")
	assert.Equal(t, 0, a.PatrolIndex)
}

func TestRunOnce_PatrolOffRouteSnapsToFirstStop(t *testing.T) {
	f := newSchedFixture(t, alwaysMove())
	a := spawn(t, f, &entity.Template{
		ID: "warden", Name: "Warden", Level: 3, MaxHP: 25, Damage: 5,
		Behavior: entity.BehaviorPatrol, MaxInstances: 1,
		PatrolRoute: []string{"hall", "vault"},
	}, "hall")

	// Knocked off the route: the next pass rejoins at the first stop.
	require.NoError(t, f.agents.Move(a.ID, "cell"))
	a.PatrolIndex = 1

	f.sched.RunOnce()
	assert.Equal(t, "hall", a.RoomID)
	assert.Equal(t, 0, a.PatrolIndex)

	f.sched.RunOnce()
	assert.Equal(t, "vault", a.RoomID, "patrol resumes from the first stop")
	assert.Equal(t, 1, a.PatrolIndex)
}

func TestRunOnce_PatrolRevisitedStopFollowsTheCursor(t *testing.T) {
	f := newSchedFixture(t, alwaysMove())
	a := spawn(t, f, &entity.Template{
		ID: "warden", Name: "Warden", Level: 3, MaxHP: 25, Damage: 5,
		Behavior: entity.BehaviorPatrol, MaxInstances: 1,
		PatrolRoute: []string{"hall", "vault", "hall", "cell"},
	}, "hall")

	var visited []string
	for i := 0; i < 4; i++ {
		f.sched.RunOnce()
		visited = append(visited, a.RoomID)
	}

	assert.Equal(t, []string{"vault", "hall", "cell", "hall"}, visited,
		"the second hall stop continues toward the cell instead of looping")
}

func TestScheduleRespawn_FiresAfterDelayAndPersists(t *testing.T) {
	f := newSchedFixture(t, neverMove())
	tmpl := &entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 2,
	}

	base := time.Now()
	now := base
	f.sched.SetClock(func() time.Time { return now })

	f.sched.ScheduleRespawn(tmpl, "hall")
	require.Equal(t, 1, f.sched.PendingRespawns())

	f.sched.RunOnce()
	assert.Equal(t, 1, f.sched.PendingRespawns(), "entry not yet due")
	assert.Empty(t, f.agents.AgentsInRoom("hall"))

	now = base.Add(DefaultConfig().RespawnDelay)
	f.sched.RunOnce()

	assert.Equal(t, 0, f.sched.PendingRespawns())
	assert.Len(t, f.agents.AgentsInRoom("hall"), 1)
	assert.Equal(t, 1, f.creator.created, "durable row written for the respawn")
}

func TestScheduleRespawn_RoomOverrideDelaysFiring(t *testing.T) {
	f := newSchedFixture(t, neverMove())
	tmpl := &entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 2,
	}

	base := time.Now()
	now := base
	f.sched.SetClock(func() time.Time { return now })

	f.sched.ScheduleRespawn(tmpl, "cell") // room sets 30s

	now = base.Add(DefaultConfig().RespawnDelay)
	f.sched.RunOnce()
	assert.Equal(t, 1, f.sched.PendingRespawns(), "default delay is not enough")

	now = base.Add(30 * time.Second)
	f.sched.RunOnce()
	assert.Len(t, f.agents.AgentsInRoom("cell"), 1)
}

func TestScheduleRespawn_AtCapIsDroppedSilently(t *testing.T) {
	f := newSchedFixture(t, neverMove())
	tmpl := &entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 1,
	}
	spawn(t, f, tmpl, "hall") // room already holds the cap

	base := time.Now()
	f.sched.SetClock(func() time.Time { return base })
	f.sched.ScheduleRespawn(tmpl, "hall")

	f.sched.SetClock(func() time.Time { return base.Add(time.Minute) })
	f.sched.RunOnce()

	assert.Equal(t, 0, f.sched.PendingRespawns(), "entry consumed")
	assert.Len(t, f.agents.AgentsInRoom("hall"), 1, "no second copy at cap")
	assert.Equal(t, 0, f.creator.created)
}

// The scheduler shares the engine's simulation mutex, so behavior passes and
// combat ticks may run from different goroutines against the same entities.
func TestRunOnce_ConcurrentWithCombatTicks(t *testing.T) {
	zone := &world.Zone{
		ID:        "crypt",
		Name:      "The Crypt",
		StartRoom: "hall",
		Rooms: map[string]*world.Room{
			"hall": {
				ID: "hall", ZoneID: "crypt", Title: "Great Hall",
				Exits: []world.Exit{{Direction: world.East, TargetRoom: "vault"}},
			},
			"vault": {
				ID: "vault", ZoneID: "crypt", Title: "Vault",
				Exits: []world.Exit{{Direction: world.West, TargetRoom: "hall"}},
			},
		},
	}
	worldMgr, err := world.NewManager([]*world.Zone{zone})
	require.NoError(t, err)

	agents := entity.NewManager()
	sessions := session.NewRegistry()

	engCfg := encounter.DefaultConfig()
	engCfg.TickInterval = time.Hour
	engCfg.DamageVariance = 0
	engine := encounter.NewEngine(engCfg, sessions, agents, worldMgr,
		party.NewManager(), nil, nil, nil, dice.NewSeededSource(5), zaptest.NewLogger(t))

	schedCfg := DefaultConfig()
	schedCfg.WanderChance = 1.0
	sched := NewScheduler(schedCfg, agents, sessions, worldMgr, engine,
		nil, dice.NewSeededSource(9), zaptest.NewLogger(t))
	engine.SetRespawner(sched)

	wanderer, err := agents.Spawn(&entity.Template{
		ID: "ghoul", Name: "Ghoul", Level: 2, MaxHP: 15, Damage: 4,
		Behavior: entity.BehaviorWander, MaxInstances: 1,
	}, "hall")
	require.NoError(t, err)
	brute, err := agents.Spawn(&entity.Template{
		ID: "pit_brute", Name: "Pit Brute", Level: 6, MaxHP: 2000, Damage: 1,
		Behavior: entity.BehaviorPassive, MaxInstances: 1,
	}, "hall")
	require.NoError(t, err)

	p, err := sessions.Add(&session.Player{
		UID: "p1", Name: "Hero", RoomID: "hall",
		CurrentHP: 2000, MaxHP: 2000, Level: 1, Damage: 2,
	})
	require.NoError(t, err)

	require.NoError(t, engine.Start(p.UID, brute.ID))
	defer engine.Shutdown()

	const passes = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < passes; i++ {
			engine.ExecuteTick(p.UID)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < passes; i++ {
			sched.RunOnce()
		}
	}()
	wg.Wait()

	assert.Contains(t, []string{"hall", "vault"}, wanderer.RoomID)
	assert.Equal(t, 2000-passes*2, brute.CurrentHP, "every strike lands for exactly 2")
	assert.Equal(t, 2000-passes, p.CurrentHP, "brute counters for 1 each tick")
}
