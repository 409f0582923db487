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

// AffiliateRepository implements the AffiliateRepository interface
type AffiliateRepository struct {
	q queryable
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *database.DB) *AffiliateRepository {
	return &AffiliateRepository{q: db.Pool}
}

func newAffiliateRepositoryWithTx(tx queryable) *AffiliateRepository {
	return &AffiliateRepository{q: tx}
}

// GetByID retrieves an affiliate, returning nil when it does not exist
func (r *AffiliateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	query := `SELECT id, name, code, status, created_at FROM affiliates WHERE id = $1`

	var a models.Affiliate
	err := r.q.QueryRow(ctx, query, id).Scan(&a.ID, &a.Name, &a.Code, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate %s: %w", id, err)
	}
	return &a, nil
}

// GetAll returns every affiliate in creation order
func (r *AffiliateRepository) GetAll(ctx context.Context) ([]*models.Affiliate, error) {
	query := `SELECT id, name, code, status, created_at FROM affiliates ORDER BY created_at, id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliates: %w", err)
	}
	defer rows.Close()

	affiliates := make([]*models.Affiliate, 0)
	for rows.Next() {
		var a models.Affiliate
		if err := rows.Scan(&a.ID, &a.Name, &a.Code, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan affiliate: %w", err)
		}
		affiliates = append(affiliates, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate affiliates: %w", err)
	}
	return affiliates, nil
}

// Create inserts a new affiliate
func (r *AffiliateRepository) Create(ctx context.Context, a *models.Affiliate) error {
	query := `INSERT INTO affiliates (id, name, code, status, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.q.Exec(ctx, query, a.ID, a.Name, a.Code, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create affiliate %q: %w", a.Code, translateConstraintError(err))
	}
	return nil
}

// CountReferred counts the users referred by an affiliate
func (r *AffiliateRepository) CountReferred(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE affiliate_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referred users of affiliate %s: %w", id, err)
	}
	return count, nil
}
