package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/duskfall/internal/game/session"
)

// ErrPlayerNotFound is returned when a player lookup yields no results.
var ErrPlayerNotFound = errors.New("player not found")

// PlayerRepository provides durable player state persistence.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Save upserts the durable copy of a player's simulation state. First save
// creates the row; subsequent saves overwrite it.
//
// Precondition: p.UID and p.Name must be non-empty.
func (r *PlayerRepository) Save(ctx context.Context, p *session.Player) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO players
			(uid, name, room_id, current_hp, max_hp, level, experience,
			 damage, weapon_bonus, armor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			room_id = EXCLUDED.room_id,
			current_hp = EXCLUDED.current_hp,
			max_hp = EXCLUDED.max_hp,
			level = EXCLUDED.level,
			experience = EXCLUDED.experience,
			damage = EXCLUDED.damage,
			weapon_bonus = EXCLUDED.weapon_bonus,
			armor = EXCLUDED.armor,
			updated_at = now()`,
		p.UID, p.Name, p.RoomID, p.CurrentHP, p.MaxHP, p.Level, p.Experience,
		p.Damage, p.WeaponBonus, p.Armor,
	)
	if err != nil {
		return fmt.Errorf("saving player %s: %w", p.UID, err)
	}
	return nil
}

// GetByUID retrieves a player's durable state by UID.
//
// Postcondition: Returns the player (Conn unset) or ErrPlayerNotFound.
func (r *PlayerRepository) GetByUID(ctx context.Context, uid string) (*session.Player, error) {
	var p session.Player
	err := r.db.QueryRow(ctx, `
		SELECT uid, name, room_id, current_hp, max_hp, level, experience,
		       damage, weapon_bonus, armor
		FROM players WHERE uid = $1`,
		uid,
	).Scan(
		&p.UID, &p.Name, &p.RoomID, &p.CurrentHP, &p.MaxHP, &p.Level,
		&p.Experience, &p.Damage, &p.WeaponBonus, &p.Armor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("querying player %s: %w", uid, err)
	}
	return &p, nil
}

// Delete removes a player's durable state.
//
// Postcondition: Returns ErrPlayerNotFound when no row matched.
func (r *PlayerRepository) Delete(ctx context.Context, uid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM players WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("deleting player %s: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}
