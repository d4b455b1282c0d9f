package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository stores supplies and upgrades in two tables keyed by
// user id, mirroring how the game treats them as separate sections.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, userID int64, s Supplies, u Upgrades) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("progress: begin tx: %w", err)
	}
	defer tx.Rollback()

	const suppliesQ = `
		INSERT INTO supplies (user_id, tomato, lettuce, meat, potato, bread, money)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			tomato = EXCLUDED.tomato,
			lettuce = EXCLUDED.lettuce,
			meat = EXCLUDED.meat,
			potato = EXCLUDED.potato,
			bread = EXCLUDED.bread,
			money = EXCLUDED.money`
	if _, err := tx.ExecContext(ctx, suppliesQ, userID, s.Tomato, s.Lettuce, s.Meat, s.Potato, s.Bread, s.Money); err != nil {
		return fmt.Errorf("progress: save supplies: %w", err)
	}

	const upgradesQ = `
		INSERT INTO upgrades (user_id, fryer, grill, cutting)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			fryer = EXCLUDED.fryer,
			grill = EXCLUDED.grill,
			cutting = EXCLUDED.cutting`
	if _, err := tx.ExecContext(ctx, upgradesQ, userID, u.Fryer, u.Grill, u.Cutting); err != nil {
		return fmt.Errorf("progress: save upgrades: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("progress: commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, userID int64) (Supplies, Upgrades, error) {
	var s Supplies
	var u Upgrades

	const suppliesQ = `SELECT tomato, lettuce, meat, potato, bread, money FROM supplies WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, suppliesQ, userID).
		Scan(&s.Tomato, &s.Lettuce, &s.Meat, &s.Potato, &s.Bread, &s.Money)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Supplies{}, Upgrades{}, fmt.Errorf("progress: load supplies: %w", err)
	}

	const upgradesQ = `SELECT fryer, grill, cutting FROM upgrades WHERE user_id = $1`
	err = r.db.QueryRowContext(ctx, upgradesQ, userID).
		Scan(&u.Fryer, &u.Grill, &u.Cutting)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Supplies{}, Upgrades{}, fmt.Errorf("progress: load upgrades: %w", err)
	}

	return s, u, nil
}
