package behavior

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/message"
)

// respawnEntry is a one-shot respawn request awaiting its due time.
type respawnEntry struct {
	snapshot *entity.Template
	roomID   string
	dueAt    time.Time
}

// ScheduleRespawn queues a defeated agent's template snapshot for respawn
// into roomID after the room's respawn delay (or the configured default).
// The per-room instance cap is re-checked when the entry fires, not here.
func (s *Scheduler) ScheduleRespawn(snapshot *entity.Template, roomID string) {
	delay := s.cfg.RespawnDelay
	if room, ok := s.worldMgr.GetRoom(roomID); ok && room.RespawnSeconds > 0 {
		delay = time.Duration(room.RespawnSeconds) * time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, respawnEntry{
		snapshot: snapshot,
		roomID:   roomID,
		dueAt:    s.now().Add(delay),
	})
}

// PendingRespawns returns the number of queued respawn entries.
func (s *Scheduler) PendingRespawns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// drainRespawns fires every due entry. An entry whose room is already at the
// template's instance cap is dropped silently.
func (s *Scheduler) drainRespawns() {
	s.mu.Lock()
	now := s.now()
	var due, rest []respawnEntry
	for _, e := range s.pending {
		if !e.dueAt.After(now) {
			due = append(due, e)
		} else {
			rest = append(rest, e)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	for _, e := range due {
		s.fireRespawn(e)
	}
}

// fireRespawn spawns one due entry under the simulation mutex. The engine
// schedules entries while holding that mutex, so the cap check and spawn
// must not run concurrently with a combat tick.
func (s *Scheduler) fireRespawn(e respawnEntry) {
	s.sim.Lock()
	defer s.sim.Unlock()

	if s.agents.CountTemplateInRoom(e.roomID, e.snapshot.ID) >= e.snapshot.MaxInstances {
		return
	}

	agent, err := s.agents.Spawn(e.snapshot, e.roomID)
	if err != nil {
		s.logger.Error("respawning agent",
			zap.String("template", e.snapshot.ID),
			zap.String("room", e.roomID),
			zap.Error(err),
		)
		return
	}

	if s.creator != nil {
		if err := s.creator.CreateAgent(context.Background(), agent); err != nil {
			s.logger.Error("creating respawned agent row",
				zap.String("agent", agent.ID),
				zap.Error(err),
			)
		}
	}

	s.sessions.SendToRoom(e.roomID, message.Message{
		Kind: message.KindSpawn, Actor: agent.Name, RoomID: e.roomID,
		Text: agent.Name + " appears.",
	}, "")
}
