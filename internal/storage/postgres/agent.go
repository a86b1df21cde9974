package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/duskfall/internal/game/entity"
)

// ErrAgentNotFound is returned when an agent lookup yields no results.
var ErrAgentNotFound = errors.New("agent not found")

// AgentRepository persists live agent rows. Agents are durable-but-ephemeral:
// a row is created on spawn and deleted on death.
type AgentRepository struct {
	db *pgxpool.Pool
}

// NewAgentRepository creates an AgentRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAgentRepository(db *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create inserts the row for a freshly spawned agent.
//
// Precondition: a.ID must not already exist.
func (r *AgentRepository) Create(ctx context.Context, a *entity.Agent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO agents
			(id, template_id, name, room_id, current_hp, max_hp, level,
			 damage, armor, damage_multiplier, behavior, boss)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.TemplateID, a.Name, a.RoomID, a.CurrentHP, a.MaxHP, a.Level,
		a.Damage, a.Armor, a.DamageMultiplier, string(a.Behavior), a.Boss,
	)
	if err != nil {
		return fmt.Errorf("inserting agent %s: %w", a.ID, err)
	}
	return nil
}

// Save updates the mutable state of an existing agent row.
//
// Postcondition: Returns ErrAgentNotFound when no row matched.
func (r *AgentRepository) Save(ctx context.Context, a *entity.Agent) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE agents SET
			room_id = $2,
			current_hp = $3,
			damage_multiplier = $4,
			updated_at = now()
		WHERE id = $1`,
		a.ID, a.RoomID, a.CurrentHP, a.DamageMultiplier,
	)
	if err != nil {
		return fmt.Errorf("saving agent %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// Delete removes the row for a defeated or despawned agent.
//
// Postcondition: Returns ErrAgentNotFound when no row matched.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting agent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// GetByID retrieves a single agent row.
//
// Postcondition: Returns the agent or ErrAgentNotFound.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*entity.Agent, error) {
	var a entity.Agent
	var behavior string
	err := r.db.QueryRow(ctx, `
		SELECT id, template_id, name, room_id, current_hp, max_hp, level,
		       damage, armor, damage_multiplier, behavior, boss
		FROM agents WHERE id = $1`,
		id,
	).Scan(
		&a.ID, &a.TemplateID, &a.Name, &a.RoomID, &a.CurrentHP, &a.MaxHP,
		&a.Level, &a.Damage, &a.Armor, &a.DamageMultiplier, &behavior, &a.Boss,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("querying agent %s: %w", id, err)
	}
	a.Behavior = entity.Behavior(behavior)
	return &a, nil
}

// DeleteAll clears the agents table. Called at startup: live agents are
// rebuilt from templates, so rows from a previous run are stale.
func (r *AgentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM agents`); err != nil {
		return fmt.Errorf("clearing agents: %w", err)
	}
	return nil
}
