// Package main provides the game server binary: it wires configuration,
// logging, optional postgres persistence, world and agent content, the
// simulation services, and the websocket transport.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/config"
	"github.com/cory-johannsen/duskfall/internal/game/behavior"
	"github.com/cory-johannsen/duskfall/internal/game/dice"
	"github.com/cory-johannsen/duskfall/internal/game/encounter"
	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/mechanic"
	"github.com/cory-johannsen/duskfall/internal/game/party"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
	"github.com/cory-johannsen/duskfall/internal/gameserver"
	"github.com/cory-johannsen/duskfall/internal/observability"
	"github.com/cory-johannsen/duskfall/internal/server"
	"github.com/cory-johannsen/duskfall/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	zonesDir := flag.String("zones-dir", "", "override for the zone YAML directory")
	templatesDir := flag.String("templates-dir", "", "override for the agent template YAML directory")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *zonesDir != "" {
		cfg.Content.ZonesDir = *zonesDir
	}
	if *templatesDir != "" {
		cfg.Content.TemplatesDir = *templatesDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	src := dice.NewCryptoSource()

	// Load world content.
	zoneStart := time.Now()
	zones, err := world.LoadZonesFromDir(cfg.Content.ZonesDir)
	if err != nil {
		logger.Fatal("loading zones", zap.Error(err))
	}
	worldMgr, err := world.NewManager(zones)
	if err != nil {
		logger.Fatal("creating world manager", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("zones", worldMgr.ZoneCount()),
		zap.Int("rooms", worldMgr.RoomCount()),
		zap.Duration("elapsed", time.Since(zoneStart)),
	)

	templates, err := entity.LoadTemplates(cfg.Content.TemplatesDir)
	if err != nil {
		logger.Fatal("loading agent templates", zap.Error(err))
	}
	logger.Info("loaded agent templates", zap.Int("count", len(templates)))

	// Durable storage is optional: a disabled database runs memory-only.
	var persister encounter.Persister = encounter.NopPersister{}
	var playerSource gameserver.PlayerSource = gameserver.MemoryPlayerSource{
		StartRoomID: worldMgr.StartRoom().ID,
	}
	dbStart := time.Now()
	pool, err := postgres.Open(ctx, cfg.Database)
	switch {
	case errors.Is(err, postgres.ErrDisabled):
		logger.Info("durable storage disabled, running memory-only")
	case err != nil:
		logger.Fatal("connecting to database", zap.Error(err))
	default:
		defer pool.Close()
		store := postgres.NewStore(pool)

		// Agent rows are session-scoped; clear leftovers from a prior run.
		if err := store.Agents.DeleteAll(ctx); err != nil {
			logger.Fatal("clearing stale agent rows", zap.Error(err))
		}

		persister = store
		playerSource = &storedPlayerSource{
			store:    store,
			fallback: gameserver.MemoryPlayerSource{StartRoomID: worldMgr.StartRoom().ID},
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	sessions := session.NewRegistry()
	agents := entity.NewManager()
	parties := party.NewManager()
	rates := gameserver.NewExperienceRates()

	recoveryRoom := cfg.Sim.RecoveryRoom
	if recoveryRoom == "" {
		recoveryRoom = worldMgr.StartRoom().ID
	}
	engine := encounter.NewEngine(encounter.Config{
		TickInterval:     cfg.Sim.EncounterTick,
		DamageVariance:   cfg.Sim.DamageVariance,
		MinDamage:        cfg.Sim.MinDamage,
		XPPerLevel:       cfg.Sim.XPPerLevel,
		LevelThreshold:   cfg.Sim.LevelThreshold,
		FleeChance:       cfg.Sim.FleeChance,
		RecoveryRoomID:   recoveryRoom,
		RecoveryFraction: cfg.Sim.RecoveryFraction,
	}, sessions, agents, worldMgr, parties, persister, rates.Boost, nil, src, logger)

	scheduler := behavior.NewScheduler(behavior.Config{
		TickInterval:        cfg.Sim.BehaviorTick,
		WanderChance:        cfg.Sim.WanderChance,
		PatrolAdvanceChance: cfg.Sim.PatrolAdvanceChance,
		RespawnDelay:        cfg.Sim.RespawnDelay,
	}, agents, sessions, worldMgr, engine, persister, src, logger)
	engine.SetRespawner(scheduler)

	director := mechanic.NewDirector(mechanic.Config{
		TickInterval: cfg.Sim.MechanicTick,
		MinDamage:    cfg.Sim.MinDamage,
	}, agents, sessions, templates, engine, persister, logger)

	spawnInitialAgents(ctx, logger, worldMgr, agents, templates, persister)

	ticks := gameserver.NewTickManager()
	ticks.RegisterTick("behavior", cfg.Sim.BehaviorTick, scheduler.RunOnce)
	ticks.RegisterTick("mechanics", cfg.Sim.MechanicTick, director.RunOnce)
	ticks.RegisterTick("invite-sweep", cfg.Sim.InviteSweepInterval, func() {
		if swept := parties.SweepInvites(); swept > 0 {
			logger.Debug("swept expired party invites", zap.Int("count", swept))
		}
	})

	combatHandler := gameserver.NewCombatHandler(engine, agents, sessions)
	partyHandler := gameserver.NewPartyHandler(parties, sessions)
	lootHandler := gameserver.NewLootHandler(worldMgr, parties, sessions)
	ws := gameserver.NewWebSocketServer(cfg.WebSocket, sessions, worldMgr,
		playerSource, combatHandler, partyHandler, lootHandler, logger)

	tickCtx, cancelTicks := context.WithCancel(ctx)
	tickDone := make(chan struct{})

	lc := server.NewLifecycle(logger)
	lc.Add("simulation-ticks", &server.FuncService{
		StartFn: func() error {
			ticks.Start(tickCtx)
			<-tickDone
			return nil
		},
		StopFn: func() {
			cancelTicks()
			close(tickDone)
			engine.Shutdown()
		},
	})
	lc.Add("websocket", ws)

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("lifecycle", zap.Error(err))
	}
}

// spawnInitialAgents seeds each template's listed spawn rooms with one live
// instance, honoring the per-room cap.
func spawnInitialAgents(
	ctx context.Context,
	logger *zap.Logger,
	worldMgr *world.Manager,
	agents *entity.Manager,
	templates map[string]*entity.Template,
	persister encounter.Persister,
) {
	spawned := 0
	for _, tmpl := range templates {
		for _, roomID := range tmpl.SpawnRooms {
			if _, ok := worldMgr.GetRoom(roomID); !ok {
				logger.Fatal("spawn references unknown room",
					zap.String("template", tmpl.ID),
					zap.String("room", roomID),
				)
			}
			if agents.CountTemplateInRoom(roomID, tmpl.ID) >= tmpl.MaxInstances {
				continue
			}
			a, err := agents.Spawn(tmpl, roomID)
			if err != nil {
				logger.Fatal("spawning agent",
					zap.String("template", tmpl.ID),
					zap.String("room", roomID),
					zap.Error(err),
				)
			}
			if err := persister.CreateAgent(ctx, a); err != nil {
				logger.Fatal("persisting agent", zap.String("id", a.ID), zap.Error(err))
			}
			spawned++
		}
	}
	logger.Info("initial agent population complete", zap.Int("agents", spawned))
}

// storedPlayerSource loads players from postgres, minting a fresh durable
// record on first connect.
type storedPlayerSource struct {
	store    *postgres.Store
	fallback gameserver.MemoryPlayerSource
}

func (s *storedPlayerSource) Fetch(ctx context.Context, uid, name string) (*session.Player, error) {
	p, err := s.store.Players.GetByUID(ctx, uid)
	if err == nil {
		p.Name = name
		return p, nil
	}
	if !errors.Is(err, postgres.ErrPlayerNotFound) {
		return nil, err
	}

	fresh, _ := s.fallback.Fetch(ctx, uid, name)
	if err := s.store.Players.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
