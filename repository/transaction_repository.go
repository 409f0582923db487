package repository

import (
	"context"
	"fmt"
	"time"

	"casinometrics/database"
	"casinometrics/models"

	"github.com/google/uuid"
)

const transactionColumns = `id, seq, user_id, game_id, type, amount, timestamp`

// totalsColumns aggregates a set of ledger rows aliased as t into models.LedgerTotals
const totalsColumns = `
	COUNT(*) FILTER (WHERE t.type = 'Bet'),
	COUNT(DISTINCT t.user_id) FILTER (WHERE t.type = 'Bet'),
	COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'Bet'), 0),
	COALESCE(SUM(t.amount) FILTER (WHERE t.type IN ('Win', 'Jackpot')), 0),
	COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'Deposit'), 0),
	COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'Withdrawal'), 0)`

// seriesResolution is the width of the buckets Series returns. Every UTC
// offset in use is a multiple of it, so callers can regroup them by any
// calendar without splitting a bucket.
const seriesResolution = 15 * time.Minute

// TransactionRepository is the ledger store. Rows are never updated or deleted.
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new ledger repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var tx models.Transaction
	var gameID uuid.NullUUID
	if err := row.Scan(&tx.ID, &tx.Seq, &tx.UserID, &gameID, &tx.Type, &tx.Amount, &tx.Timestamp); err != nil {
		return nil, err
	}
	if gameID.Valid {
		tx.GameID = &gameID.UUID
	}
	return &tx, nil
}

func scanTotals(row scanner) (*models.LedgerTotals, error) {
	var totals models.LedgerTotals
	err := row.Scan(
		&totals.BetCount,
		&totals.DistinctBettors,
		&totals.Wagered,
		&totals.Payout,
		&totals.Deposited,
		&totals.Withdrawn,
	)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Insert appends a ledger entry and fills in its sequence number
func (r *TransactionRepository) Insert(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, game_id, type, amount, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`

	err := r.q.QueryRow(ctx, query, tx.ID, tx.UserID, tx.GameID, tx.Type, tx.Amount, tx.Timestamp).Scan(&tx.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert transaction for user %s: %w", tx.UserID, translateConstraintError(err))
	}
	return nil
}

// Query returns the entries matching the filter ordered by timestamp then
// insertion order, newest first unless filter.Ascending is set.
func (r *TransactionRepository) Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var where whereClause
	if filter.UserID != nil {
		where.add("user_id = " + where.arg(*filter.UserID))
	}
	if filter.GameID != nil {
		where.add("game_id = " + where.arg(*filter.GameID))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where.add("type = ANY(" + where.arg(types) + "::text[])")
	}
	if filter.From != nil {
		where.add("timestamp >= " + where.arg(*filter.From))
	}
	if filter.To != nil {
		where.add("timestamp < " + where.arg(*filter.To))
	}

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where.String() +
		fmt.Sprintf(" ORDER BY timestamp %s, seq %s", order, order)
	if filter.Limit > 0 {
		query += " LIMIT " + where.arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + where.arg(filter.Offset)
	}

	rows, err := r.q.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// Totals aggregates the entries in scope in a single pass
func (r *TransactionRepository) Totals(ctx context.Context, scope models.LedgerScope) (*models.LedgerTotals, error) {
	var where whereClause
	if len(scope.UserIDs) > 0 {
		where.add("t.user_id = ANY(" + where.arg(uuidStrings(scope.UserIDs)) + "::uuid[])")
	}
	if scope.GameID != nil {
		where.add("t.game_id = " + where.arg(*scope.GameID))
	}
	if scope.AffiliateID != nil {
		where.add("t.user_id IN (SELECT id FROM users WHERE affiliate_id = " + where.arg(*scope.AffiliateID) + ")")
	}
	if scope.From != nil {
		where.add("t.timestamp >= " + where.arg(*scope.From))
	}
	if scope.To != nil {
		where.add("t.timestamp < " + where.arg(*scope.To))
	}

	query := `SELECT ` + totalsColumns + ` FROM transactions t` + where.String()

	totals, err := scanTotals(r.q.QueryRow(ctx, query, where.args...))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	return totals, nil
}

// TotalsByUser aggregates per user in one query. Users without entries are absent from the result.
func (r *TransactionRepository) TotalsByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.LedgerTotals, error) {
	result := make(map[uuid.UUID]*models.LedgerTotals, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT t.user_id, ` + totalsColumns + `
		FROM transactions t
		WHERE t.user_id = ANY($1::uuid[])
		GROUP BY t.user_id
	`

	rows, err := r.q.Query(ctx, query, uuidStrings(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions by user: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		var totals models.LedgerTotals
		err := rows.Scan(
			&userID,
			&totals.BetCount,
			&totals.DistinctBettors,
			&totals.Wagered,
			&totals.Payout,
			&totals.Deposited,
			&totals.Withdrawn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user totals: %w", err)
		}
		result[userID] = &totals
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user totals: %w", err)
	}
	return result, nil
}

// RecentActivity returns the newest entries joined with the username and game name.
// Entries whose user cannot be resolved carry the username "Unknown".
func (r *TransactionRepository) RecentActivity(ctx context.Context, limit int) ([]*models.ActivityEntry, error) {
	query := `
		SELECT t.id, t.seq, t.user_id, t.game_id, t.type, t.amount, t.timestamp,
		       COALESCE(u.username, 'Unknown'), g.name
		FROM transactions t
		LEFT JOIN users u ON u.id = t.user_id
		LEFT JOIN games g ON g.id = t.game_id
		ORDER BY t.timestamp DESC, t.seq DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ActivityEntry, 0, limit)
	for rows.Next() {
		var entry models.ActivityEntry
		var gameID uuid.NullUUID
		var gameName *string
		err := rows.Scan(
			&entry.ID,
			&entry.Seq,
			&entry.UserID,
			&gameID,
			&entry.Type,
			&entry.Amount,
			&entry.Timestamp,
			&entry.Username,
			&gameName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if gameID.Valid {
			entry.GameID = &gameID.UUID
		}
		entry.GameName = gameName
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return entries, nil
}

// Series returns quarter-hour buckets of activity in [from, to), oldest first.
// Empty buckets are omitted.
func (r *TransactionRepository) Series(ctx context.Context, from, to time.Time) ([]*models.SeriesBucket, error) {
	query := `
		SELECT to_timestamp((floor(extract(epoch FROM t.timestamp) / $3::int) * $3::int)::double precision) AS bucket,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'Bet'), 0),
		       COALESCE(SUM(t.amount) FILTER (WHERE t.type IN ('Win', 'Jackpot')), 0),
		       COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'Deposit'), 0),
		       COUNT(*)
		FROM transactions t
		WHERE t.timestamp >= $1 AND t.timestamp < $2
		GROUP BY bucket
		ORDER BY bucket
	`

	rows, err := r.q.Query(ctx, query, from, to, int64(seriesResolution/time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction series: %w", err)
	}
	defer rows.Close()

	buckets := make([]*models.SeriesBucket, 0)
	for rows.Next() {
		var b models.SeriesBucket
		if err := rows.Scan(&b.Start, &b.Bets, &b.Wins, &b.Deposits, &b.Transactions); err != nil {
			return nil, fmt.Errorf("failed to scan series bucket: %w", err)
		}
		b.Start = b.Start.UTC()
		buckets = append(buckets, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series: %w", err)
	}
	return buckets, nil
}
