package testutil

import (
	"fmt"
	"time"

	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(username string) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          fmt.Sprintf("%s@example.com", username),
		JoinDate:       now,
		Balance:        decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		RiskLevel:      models.RiskLevelLow,
		Status:         models.UserStatusActive,
		LastActive:     now,
	}
}

// CreateTestUserWithAffiliate creates a test user referred by an affiliate
func CreateTestUserWithAffiliate(username string, affiliateID uuid.UUID) *models.User {
	user := CreateTestUser(username)
	user.AffiliateID = &affiliateID
	return user
}

// CreateTestGame creates a test game of the given type
func CreateTestGame(name string, gameType models.GameType) *models.Game {
	return &models.Game{
		ID:        uuid.New(),
		Name:      name,
		Type:      gameType,
		Status:    models.GameStatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestAffiliate creates a test affiliate
func CreateTestAffiliate(name, code string) *models.Affiliate {
	return &models.Affiliate{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		Status:    models.AffiliateStatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestTransaction creates a ledger entry with an amount given as a string
func CreateTestTransaction(userID uuid.UUID, gameID *uuid.UUID, txType models.TransactionType, amount string) *models.Transaction {
	return &models.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		GameID:    gameID,
		Type:      txType,
		Amount:    decimal.RequireFromString(amount),
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestReconciliationRun creates a run record with one drifted user
func CreateTestReconciliationRun(runAt time.Time) *models.ReconciliationRun {
	report := &models.DriftReport{
		UserID: uuid.New(),
		Cached: models.BalanceProjection{
			Balance:        decimal.RequireFromString("90.00"),
			TotalDeposited: decimal.RequireFromString("100.00"),
			TotalWithdrawn: decimal.Zero,
		},
		Ledger: models.BalanceProjection{
			Balance:        decimal.RequireFromString("100.00"),
			TotalDeposited: decimal.RequireFromString("100.00"),
			TotalWithdrawn: decimal.Zero,
		},
		Drifted: true,
	}
	return &models.ReconciliationRun{
		RunAt:        runAt.UTC().Truncate(time.Microsecond),
		UsersChecked: 12,
		UsersDrifted: 1,
		BalanceDrift: decimal.RequireFromString("10.00"),
		Drifted:      []*models.DriftReport{report},
	}
}
