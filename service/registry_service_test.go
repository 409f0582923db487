package service

import (
	"context"
	"fmt"
	"testing"

	"casinometrics/apperr"
	"casinometrics/config"
	"casinometrics/events"
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type registryMocks struct {
	factory    *MockUnitOfWorkFactory
	uow        *MockUnitOfWork
	users      *MockUserRepository
	games      *MockGameRepository
	affiliates *MockAffiliateRepository
	txs        *MockTransactionRepository
	publisher  *MockEventPublisher
}

func newRegistryMocks() *registryMocks {
	m := &registryMocks{
		factory:    new(MockUnitOfWorkFactory),
		uow:        new(MockUnitOfWork),
		users:      new(MockUserRepository),
		games:      new(MockGameRepository),
		affiliates: new(MockAffiliateRepository),
		txs:        new(MockTransactionRepository),
		publisher:  new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.users, m.games, m.affiliates, m.txs, m.publisher)
	return m
}

func (m *registryMocks) expectTransaction(commit bool) {
	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)
	if commit {
		m.uow.On("Commit").Return(nil)
	}
}

func TestRegistryService_CreateUser(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(true)

	m.users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "alice" && u.Balance.IsZero() &&
			u.RiskLevel == models.RiskLevelLow && u.Status == models.UserStatusActive
	})).Return(nil)
	m.publisher.On("Publish", mock.AnythingOfType("events.UserCreatedEvent")).Return()

	user, err := svc.CreateUser(context.Background(), models.NewUser{Username: " alice ", Email: "alice@example.com"})

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, uuid.Nil, user.ID)
	m.uow.AssertExpectations(t)
	m.users.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestRegistryService_CreateUser_WithAffiliate(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(true)

	affiliateID := uuid.New()
	m.affiliates.On("GetByID", mock.Anything, affiliateID).Return(&models.Affiliate{ID: affiliateID}, nil)
	m.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		created, ok := e.(events.UserCreatedEvent)
		return ok && created.AffiliateID != nil && *created.AffiliateID == affiliateID
	})).Return()

	user, err := svc.CreateUser(context.Background(), models.NewUser{
		Username:    "bob",
		Email:       "bob@example.com",
		RiskLevel:   models.RiskLevelMedium,
		AffiliateID: &affiliateID,
	})

	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMedium, user.RiskLevel)
	m.publisher.AssertExpectations(t)
}

func TestRegistryService_CreateUser_UnknownAffiliate(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(false)

	affiliateID := uuid.New()
	m.affiliates.On("GetByID", mock.Anything, affiliateID).Return(nil, nil)

	_, err := svc.CreateUser(context.Background(), models.NewUser{
		Username:    "carol",
		Email:       "carol@example.com",
		AffiliateID: &affiliateID,
	})

	assert.True(t, apperr.IsValidation(err))
	m.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegistryService_CreateUser_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   models.NewUser
	}{
		{"blank username", models.NewUser{Username: "  ", Email: "x@example.com"}},
		{"bad email", models.NewUser{Username: "dave", Email: "dave"}},
		{"unknown risk level", models.NewUser{Username: "dave", Email: "d@example.com", RiskLevel: "Extreme"}},
		{"unknown status", models.NewUser{Username: "dave", Email: "d@example.com", Status: "Frozen"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newRegistryMocks()
			svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())

			_, err := svc.CreateUser(context.Background(), tt.in)

			assert.True(t, apperr.IsValidation(err))
			m.factory.AssertNotCalled(t, "Create")
		})
	}
}

func TestRegistryService_CreateUser_DuplicateSurfacesValidation(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(false)

	dup := fmt.Errorf("failed to create user %q: %w", "erin", apperr.Validation("username already exists"))
	m.users.On("Create", mock.Anything, mock.Anything).Return(dup)

	_, err := svc.CreateUser(context.Background(), models.NewUser{Username: "erin", Email: "erin@example.com"})

	assert.True(t, apperr.IsValidation(err))
	m.publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestRegistryService_CreateGame(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(true)
	m.games.On("Create", mock.Anything, mock.Anything).Return(nil)

	game, err := svc.CreateGame(context.Background(), "Starburst", models.GameTypeSlot)

	require.NoError(t, err)
	assert.Equal(t, models.GameStatusActive, game.Status)
	assert.Equal(t, models.GameTypeSlot, game.Type)

	_, err = svc.CreateGame(context.Background(), "Poker", "Arcade")
	assert.True(t, apperr.IsValidation(err))
}

func TestRegistryService_CreateAffiliate(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(true)
	m.affiliates.On("Create", mock.Anything, mock.Anything).Return(nil)

	affiliate, err := svc.CreateAffiliate(context.Background(), "Partners", "PART01")

	require.NoError(t, err)
	assert.Equal(t, "PART01", affiliate.Code)

	_, err = svc.CreateAffiliate(context.Background(), "Partners", "")
	assert.True(t, apperr.IsValidation(err))
}

func TestRegistryService_GetUserByUsername(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())

	existing := &models.User{ID: uuid.New(), Username: "frank"}
	m.users.On("GetByUsername", mock.Anything, "frank").Return(existing, nil)
	m.users.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)

	user, err := svc.GetUserByUsername(context.Background(), "frank")
	require.NoError(t, err)
	assert.Equal(t, existing, user)

	_, err = svc.GetUserByUsername(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRegistryService_RefreshRiskLevel_PromotesToVIP(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(true)

	userID := uuid.New()
	m.users.On("GetByIDForUpdate", mock.Anything, userID).
		Return(&models.User{ID: userID, RiskLevel: models.RiskLevelLow}, nil)
	m.txs.On("Totals", mock.Anything, models.LedgerScope{UserIDs: []uuid.UUID{userID}}).
		Return(&models.LedgerTotals{Wagered: decimal.NewFromInt(1000), Payout: decimal.NewFromInt(7000)}, nil)
	m.users.On("UpdateRiskLevel", mock.Anything, userID, models.RiskLevelVIP).Return(nil)
	m.publisher.On("Publish", events.RiskLevelChangedEvent{
		UserID:   userID,
		OldLevel: models.RiskLevelLow,
		NewLevel: models.RiskLevelVIP,
	}).Return()

	level, err := svc.RefreshRiskLevel(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelVIP, level)
	m.users.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestRegistryService_RefreshRiskLevel_Unchanged(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(false)

	userID := uuid.New()
	m.users.On("GetByIDForUpdate", mock.Anything, userID).
		Return(&models.User{ID: userID, RiskLevel: models.RiskLevelMedium}, nil)
	m.txs.On("Totals", mock.Anything, mock.Anything).
		Return(&models.LedgerTotals{Wagered: decimal.NewFromInt(100), Payout: decimal.NewFromInt(50)}, nil)

	level, err := svc.RefreshRiskLevel(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMedium, level)
	m.users.AssertNotCalled(t, "UpdateRiskLevel", mock.Anything, mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestRegistryService_RefreshRiskLevel_UnknownUser(t *testing.T) {
	m := newRegistryMocks()
	svc := NewRegistryService(m.factory, m.users, config.NewTestConfig())
	m.expectTransaction(false)

	userID := uuid.New()
	m.users.On("GetByIDForUpdate", mock.Anything, userID).Return(nil, nil)

	_, err := svc.RefreshRiskLevel(context.Background(), userID)

	assert.True(t, apperr.IsNotFound(err))
}
