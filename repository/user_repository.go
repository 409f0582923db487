package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casinometrics/database"
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, join_date, balance, total_deposited, total_withdrawn,
	risk_level, affiliate_id, status, last_active`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row scanner) (*models.User, error) {
	var user models.User
	var affiliateID uuid.NullUUID
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.JoinDate,
		&user.Balance,
		&user.TotalDeposited,
		&user.TotalWithdrawn,
		&user.RiskLevel,
		&affiliateID,
		&user.Status,
		&user.LastActive,
	)
	if err != nil {
		return nil, err
	}
	if affiliateID.Valid {
		user.AffiliateID = &affiliateID.UUID
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user and holds its row lock until the transaction ends
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", id, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username %q: %w", username, err)
	}
	return user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.JoinDate,
		user.Balance,
		user.TotalDeposited,
		user.TotalWithdrawn,
		user.RiskLevel,
		user.AffiliateID,
		user.Status,
		user.LastActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create user %q: %w", user.Username, translateConstraintError(err))
	}
	return nil
}

// List returns users ordered by last activity, newest first.
// Search matches a case-insensitive substring of username or email.
func (r *UserRepository) List(ctx context.Context, limit, offset int, search string) ([]*models.User, error) {
	var where whereClause
	if search != "" {
		pattern := where.arg("%" + escapeLike(search) + "%")
		where.add(fmt.Sprintf("(username ILIKE %s OR email ILIKE %s)", pattern, pattern))
	}

	query := `SELECT ` + userColumns + ` FROM users` + where.String() + ` ORDER BY last_active DESC, id`
	if limit > 0 {
		query += " LIMIT " + where.arg(limit)
	}
	if offset > 0 {
		query += " OFFSET " + where.arg(offset)
	}

	rows, err := r.q.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

// ListByAffiliate returns every user referred by an affiliate
func (r *UserRepository) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE affiliate_id = $1 ORDER BY last_active DESC, id`

	rows, err := r.q.Query(ctx, query, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users of affiliate %s: %w", affiliateID, err)
	}
	return collectUsers(rows)
}

// CountByStatus counts users in an account state
func (r *UserRepository) CountByStatus(ctx context.Context, status models.UserStatus) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s users: %w", status, err)
	}
	return count, nil
}

// CountJoinedSince counts users whose join date is at or after since
func (r *UserRepository) CountJoinedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE join_date >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count signups: %w", err)
	}
	return count, nil
}

// CountByRiskLevel counts users per stored risk tier. Tiers without users are absent.
func (r *UserRepository) CountByRiskLevel(ctx context.Context) ([]*models.RiskCount, error) {
	rows, err := r.q.Query(ctx, `SELECT risk_level, COUNT(*) FROM users GROUP BY risk_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by risk level: %w", err)
	}
	defer rows.Close()

	counts := make([]*models.RiskCount, 0, len(models.RiskLevels))
	for rows.Next() {
		var c models.RiskCount
		if err := rows.Scan(&c.RiskLevel, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan risk count: %w", err)
		}
		counts = append(counts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk counts: %w", err)
	}
	return counts, nil
}

// ApplyDelta applies a ledger movement to the cached fields in a single statement.
// The row lock it takes serializes concurrent appends for the same user.
func (r *UserRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta models.BalanceDelta, lastActive time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET balance = balance + $2,
		    total_deposited = total_deposited + $3,
		    total_withdrawn = total_withdrawn + $4,
		    last_active = GREATEST(last_active, $5)
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, id, delta.Balance, delta.Deposited, delta.Withdrawn, lastActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply balance delta for user %s: %w", id, err)
	}
	return user, nil
}

// SetProjection overwrites the cached balance fields
func (r *UserRepository) SetProjection(ctx context.Context, id uuid.UUID, projection models.BalanceProjection) error {
	query := `
		UPDATE users
		SET balance = $2, total_deposited = $3, total_withdrawn = $4
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, projection.Balance, projection.TotalDeposited, projection.TotalWithdrawn)
	if err != nil {
		return fmt.Errorf("failed to set balance projection for user %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}

// UpdateRiskLevel stores a new risk tier
func (r *UserRepository) UpdateRiskLevel(ctx context.Context, id uuid.UUID, level models.RiskLevel) error {
	result, err := r.q.Exec(ctx, `UPDATE users SET risk_level = $2 WHERE id = $1`, id, level)
	if err != nil {
		return fmt.Errorf("failed to update risk level for user %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}
