package postgres

import (
	"context"

	"github.com/cory-johannsen/duskfall/internal/game/entity"
	"github.com/cory-johannsen/duskfall/internal/game/session"
)

// Store bundles the player and agent repositories behind the persistence
// interface the simulation services consume.
type Store struct {
	Players *PlayerRepository
	Agents  *AgentRepository
}

// NewStore creates a Store over the given pool.
//
// Precondition: pool must be a connected Pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		Players: NewPlayerRepository(pool.DB()),
		Agents:  NewAgentRepository(pool.DB()),
	}
}

// SavePlayer upserts a player's durable state.
func (s *Store) SavePlayer(ctx context.Context, p *session.Player) error {
	return s.Players.Save(ctx, p)
}

// CreateAgent inserts a freshly spawned agent's row.
func (s *Store) CreateAgent(ctx context.Context, a *entity.Agent) error {
	return s.Agents.Create(ctx, a)
}

// SaveAgent updates a live agent's row.
func (s *Store) SaveAgent(ctx context.Context, a *entity.Agent) error {
	return s.Agents.Save(ctx, a)
}

// DeleteAgent removes a defeated agent's row.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	return s.Agents.Delete(ctx, id)
}
