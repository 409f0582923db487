package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"casinometrics/database"
	"casinometrics/models"

	"github.com/jackc/pgx/v5"
)

const reconciliationRunColumns = `id, run_at, users_checked, users_drifted, applied, balance_drift, drifted, created_at`

// ReconciliationRunRepository stores the history of cache audits
type ReconciliationRunRepository struct {
	q queryable
}

// NewReconciliationRunRepository creates a new reconciliation run repository
func NewReconciliationRunRepository(db *database.DB) *ReconciliationRunRepository {
	return &ReconciliationRunRepository{q: db.Pool}
}

func scanReconciliationRun(row scanner) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	var driftedJSON []byte

	err := row.Scan(
		&run.ID,
		&run.RunAt,
		&run.UsersChecked,
		&run.UsersDrifted,
		&run.Applied,
		&run.BalanceDrift,
		&driftedJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Drifted = []*models.DriftReport{}
	if len(driftedJSON) > 0 {
		if err := json.Unmarshal(driftedJSON, &run.Drifted); err != nil {
			return nil, fmt.Errorf("failed to unmarshal drift reports: %w", err)
		}
	}
	return &run, nil
}

// Create records a run and fills in its id and creation time
func (r *ReconciliationRunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	drifted := run.Drifted
	if drifted == nil {
		drifted = []*models.DriftReport{}
	}
	driftedJSON, err := json.Marshal(drifted)
	if err != nil {
		return fmt.Errorf("failed to marshal drift reports: %w", err)
	}

	query := `
		INSERT INTO reconciliation_runs
		(run_at, users_checked, users_drifted, applied, balance_drift, drifted)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		run.RunAt,
		run.UsersChecked,
		run.UsersDrifted,
		run.Applied,
		run.BalanceDrift,
		driftedJSON,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation run at %s: %w", run.RunAt.Format("2006-01-02 15:04:05"), err)
	}
	return nil
}

// GetLatest returns the most recent run, or nil when none has been recorded
func (r *ReconciliationRunRepository) GetLatest(ctx context.Context) (*models.ReconciliationRun, error) {
	query := `SELECT ` + reconciliationRunColumns + ` FROM reconciliation_runs ORDER BY run_at DESC, id DESC LIMIT 1`

	run, err := scanReconciliationRun(r.q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reconciliation run: %w", err)
	}
	return run, nil
}

// List returns the newest runs first
func (r *ReconciliationRunRepository) List(ctx context.Context, limit int) ([]*models.ReconciliationRun, error) {
	query := `SELECT ` + reconciliationRunColumns + ` FROM reconciliation_runs ORDER BY run_at DESC, id DESC LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.ReconciliationRun, 0)
	for rows.Next() {
		run, err := scanReconciliationRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reconciliation runs: %w", err)
	}
	return runs, nil
}
