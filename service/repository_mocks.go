package service

import (
	"context"
	"time"

	"casinometrics/events"
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int, search string) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) CountByStatus(ctx context.Context, status models.UserStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) CountJoinedSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) CountByRiskLevel(ctx context.Context) ([]*models.RiskCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RiskCount), args.Error(1)
}

func (m *MockUserRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta models.BalanceDelta, lastActive time.Time) (*models.User, error) {
	args := m.Called(ctx, id, delta, lastActive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) SetProjection(ctx context.Context, id uuid.UUID, projection models.BalanceProjection) error {
	args := m.Called(ctx, id, projection)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateRiskLevel(ctx context.Context, id uuid.UUID, level models.RiskLevel) error {
	args := m.Called(ctx, id, level)
	return args.Error(0)
}

// MockGameRepository is a mock implementation of GameRepository
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) GetAll(ctx context.Context) ([]*models.Game, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) Create(ctx context.Context, game *models.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

// MockAffiliateRepository is a mock implementation of AffiliateRepository
type MockAffiliateRepository struct {
	mock.Mock
}

func (m *MockAffiliateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Affiliate), args.Error(1)
}

func (m *MockAffiliateRepository) GetAll(ctx context.Context) ([]*models.Affiliate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Affiliate), args.Error(1)
}

func (m *MockAffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	args := m.Called(ctx, affiliate)
	return args.Error(0)
}

func (m *MockAffiliateRepository) CountReferred(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Insert(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Totals(ctx context.Context, scope models.LedgerScope) (*models.LedgerTotals, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerTotals), args.Error(1)
}

func (m *MockTransactionRepository) TotalsByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.LedgerTotals, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*models.LedgerTotals), args.Error(1)
}

func (m *MockTransactionRepository) RecentActivity(ctx context.Context, limit int) ([]*models.ActivityEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ActivityEntry), args.Error(1)
}

func (m *MockTransactionRepository) Series(ctx context.Context, from, to time.Time) ([]*models.SeriesBucket, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SeriesBucket), args.Error(1)
}

// MockReconciliationRunRepository is a mock implementation of ReconciliationRunRepository
type MockReconciliationRunRepository struct {
	mock.Mock
}

func (m *MockReconciliationRunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockReconciliationRunRepository) GetLatest(ctx context.Context) (*models.ReconciliationRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReconciliationRun), args.Error(1)
}

func (m *MockReconciliationRunRepository) List(ctx context.Context, limit int) ([]*models.ReconciliationRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReconciliationRun), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever SetRepositories stored; only the transaction calls are recorded.
type MockUnitOfWork struct {
	mock.Mock
	userRepo        UserRepository
	gameRepo        GameRepository
	affiliateRepo   AffiliateRepository
	transactionRepo TransactionRepository
	eventBus        EventPublisher
}

// SetRepositories configures the repositories handed out by the unit of work
func (m *MockUnitOfWork) SetRepositories(users UserRepository, games GameRepository, affiliates AffiliateRepository, ledger TransactionRepository, bus EventPublisher) {
	m.userRepo = users
	m.gameRepo = games
	m.affiliateRepo = affiliates
	m.transactionRepo = ledger
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository               { return m.userRepo }
func (m *MockUnitOfWork) GameRepository() GameRepository               { return m.gameRepo }
func (m *MockUnitOfWork) AffiliateRepository() AffiliateRepository     { return m.affiliateRepo }
func (m *MockUnitOfWork) TransactionRepository() TransactionRepository { return m.transactionRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                     { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
