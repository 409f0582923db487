package service

import (
	"context"
	"time"

	"casinometrics/events"
	"casinometrics/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user, returning nil when it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByIDForUpdate retrieves a user and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByUsername retrieves a user by username, returning nil when it does not exist
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Create inserts a new user
	Create(ctx context.Context, user *models.User) error

	// List returns users ordered by last activity, newest first. A limit of 0 is unbounded.
	List(ctx context.Context, limit, offset int, search string) ([]*models.User, error)

	// ListByAffiliate returns every user referred by an affiliate
	ListByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]*models.User, error)

	// CountByStatus counts users in an account state
	CountByStatus(ctx context.Context, status models.UserStatus) (int, error)

	// CountJoinedSince counts users whose join date is at or after since
	CountJoinedSince(ctx context.Context, since time.Time) (int, error)

	// CountByRiskLevel counts users per stored risk tier
	CountByRiskLevel(ctx context.Context) ([]*models.RiskCount, error)

	// ApplyDelta atomically applies a ledger movement to the cached fields and returns the updated user
	ApplyDelta(ctx context.Context, id uuid.UUID, delta models.BalanceDelta, lastActive time.Time) (*models.User, error)

	// SetProjection overwrites the cached balance fields
	SetProjection(ctx context.Context, id uuid.UUID, projection models.BalanceProjection) error

	// UpdateRiskLevel stores a new risk tier
	UpdateRiskLevel(ctx context.Context, id uuid.UUID, level models.RiskLevel) error
}

// GameRepository defines the interface for game data access
type GameRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
	GetAll(ctx context.Context) ([]*models.Game, error)
	Create(ctx context.Context, game *models.Game) error
}

// AffiliateRepository defines the interface for affiliate data access
type AffiliateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	GetAll(ctx context.Context) ([]*models.Affiliate, error)
	Create(ctx context.Context, affiliate *models.Affiliate) error
	// CountReferred counts the users referred by an affiliate
	CountReferred(ctx context.Context, id uuid.UUID) (int, error)
}

// TransactionRepository is the ledger store. It has no update or delete.
type TransactionRepository interface {
	// Insert appends a ledger entry and fills in its sequence number
	Insert(ctx context.Context, tx *models.Transaction) error

	// Query returns the entries matching the filter
	Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	// Totals aggregates the entries in scope
	Totals(ctx context.Context, scope models.LedgerScope) (*models.LedgerTotals, error)

	// TotalsByUser aggregates per user in one pass. Users without entries are absent.
	TotalsByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.LedgerTotals, error)

	// RecentActivity returns the newest entries joined with user and game names
	RecentActivity(ctx context.Context, limit int) ([]*models.ActivityEntry, error)

	// Series returns fine grained activity buckets in [from, to), oldest first
	Series(ctx context.Context, from, to time.Time) ([]*models.SeriesBucket, error)
}

// ReconciliationRunRepository stores the history of cache audits
type ReconciliationRunRepository interface {
	Create(ctx context.Context, run *models.ReconciliationRun) error
	// GetLatest returns the most recent run, or nil when none has been recorded
	GetLatest(ctx context.Context) (*models.ReconciliationRun, error)
	List(ctx context.Context, limit int) ([]*models.ReconciliationRun, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// LedgerService appends to and reads from the ledger
type LedgerService interface {
	// Append validates and records a transaction, updating the owner's cached balance atomically
	Append(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)

	// Query returns ledger entries, newest first unless the filter asks otherwise
	Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
}

// RegistryService manages the entities the ledger refers to
type RegistryService interface {
	CreateUser(ctx context.Context, newUser models.NewUser) (*models.User, error)
	CreateGame(ctx context.Context, name string, gameType models.GameType) (*models.Game, error)
	CreateAffiliate(ctx context.Context, name, code string) (*models.Affiliate, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// RefreshRiskLevel classifies a user and stores the result
	RefreshRiskLevel(ctx context.Context, userID uuid.UUID) (models.RiskLevel, error)
}

// ReportService assembles read-only snapshots of the ledger
type ReportService interface {
	ListUsers(ctx context.Context, limit, offset int, search string) ([]*models.UserRow, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.UserDetail, error)
	ListGames(ctx context.Context) ([]*models.GameView, error)
	GetGame(ctx context.Context, id uuid.UUID) (*models.GameView, error)
	ListAffiliates(ctx context.Context) ([]*models.AffiliateView, error)
	GetAffiliate(ctx context.Context, id uuid.UUID) (*models.AffiliateDetail, error)
	PlatformStats(ctx context.Context) (*models.PlatformStats, error)
	TopUsers(ctx context.Context) (*models.Standings, error)
	Leaderboard(ctx context.Context) (*models.Standings, error)
	RecentActivity(ctx context.Context, limit int) ([]*models.ActivityEntry, error)
	Analytics(ctx context.Context, from, to time.Time) (*models.Analytics, error)
}

// ReconciliationService audits cached balances against the ledger
type ReconciliationService interface {
	// Reconcile compares one user's cache with the ledger and repairs it when apply is set
	Reconcile(ctx context.Context, userID uuid.UUID, apply bool) (*models.DriftReport, error)

	// ReconcileAll reconciles every user, records the run and returns the drifted ones
	ReconcileAll(ctx context.Context, apply bool) ([]*models.DriftReport, error)

	// History returns recorded runs, newest first
	History(ctx context.Context, limit int) ([]*models.ReconciliationRun, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	GameRepository() GameRepository
	AffiliateRepository() AffiliateRepository
	TransactionRepository() TransactionRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
