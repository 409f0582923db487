package repository

import (
	"context"
	"errors"
	"fmt"

	"casinometrics/database"
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GameRepository implements the GameRepository interface
type GameRepository struct {
	q queryable
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{q: db.Pool}
}

func newGameRepositoryWithTx(tx queryable) *GameRepository {
	return &GameRepository{q: tx}
}

// GetByID retrieves a game, returning nil when it does not exist
func (r *GameRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	query := `SELECT id, name, type, status, created_at FROM games WHERE id = $1`

	var game models.Game
	err := r.q.QueryRow(ctx, query, id).Scan(&game.ID, &game.Name, &game.Type, &game.Status, &game.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", id, err)
	}
	return &game, nil
}

// GetAll returns every game in creation order
func (r *GameRepository) GetAll(ctx context.Context) ([]*models.Game, error) {
	query := `SELECT id, name, type, status, created_at FROM games ORDER BY created_at, id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		var game models.Game
		if err := rows.Scan(&game.ID, &game.Name, &game.Type, &game.Status, &game.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, &game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}
	return games, nil
}

// Create inserts a new game
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `INSERT INTO games (id, name, type, status, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.q.Exec(ctx, query, game.ID, game.Name, game.Type, game.Status, game.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create game %q: %w", game.Name, translateConstraintError(err))
	}
	return nil
}
