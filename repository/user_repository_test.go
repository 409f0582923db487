package repository

import (
	"context"
	"testing"
	"time"

	"casinometrics/apperr"
	"casinometrics/models"
	"casinometrics/repository/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	affiliates := NewAffiliateRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing user returns nil", func(t *testing.T) {
		user, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("create and get", func(t *testing.T) {
		testDB.Truncate(t)

		affiliate := testutil.CreateTestAffiliate("Partner", "PARTNER")
		require.NoError(t, affiliates.Create(ctx, affiliate))

		original := testutil.CreateTestUserWithAffiliate("alice", affiliate.ID)
		require.NoError(t, repo.Create(ctx, original))

		user, err := repo.GetByID(ctx, original.ID)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@example.com", user.Email)
		require.NotNil(t, user.AffiliateID)
		assert.Equal(t, affiliate.ID, *user.AffiliateID)
		assert.True(t, user.Balance.IsZero())

		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, original.ID, byName.ID)
	})

	t.Run("duplicate username is a validation error", func(t *testing.T) {
		testDB.Truncate(t)

		require.NoError(t, repo.Create(ctx, testutil.CreateTestUser("bob")))

		dup := testutil.CreateTestUser("bob")
		dup.Email = "other@example.com"
		err := repo.Create(ctx, dup)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("unknown affiliate is a validation error", func(t *testing.T) {
		testDB.Truncate(t)

		err := repo.Create(ctx, testutil.CreateTestUserWithAffiliate("carol", uuid.New()))
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("list orders by last activity and searches case-insensitively", func(t *testing.T) {
		testDB.Truncate(t)

		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		for i, name := range []string{"Alpha", "beta", "gamma_ALPHA"} {
			u := testutil.CreateTestUser(name)
			u.Email = name + "@casino.test"
			u.LastActive = base.Add(time.Duration(i) * time.Hour)
			require.NoError(t, repo.Create(ctx, u))
		}

		all, err := repo.List(ctx, 0, 0, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "gamma_ALPHA", all[0].Username)
		assert.Equal(t, "Alpha", all[2].Username)

		found, err := repo.List(ctx, 10, 0, "alpha")
		require.NoError(t, err)
		require.Len(t, found, 2)

		page, err := repo.List(ctx, 1, 1, "")
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "beta", page[0].Username)

		// wildcards in the search are literal
		none, err := repo.List(ctx, 10, 0, "%")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("apply delta is atomic and cumulative", func(t *testing.T) {
		testDB.Truncate(t)

		u := testutil.CreateTestUser("dave")
		require.NoError(t, repo.Create(ctx, u))

		at := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
		updated, err := repo.ApplyDelta(ctx, u.ID, models.BalanceDelta{
			Balance:   decimal.RequireFromString("500.00"),
			Deposited: decimal.RequireFromString("500.00"),
			Withdrawn: decimal.Zero,
		}, at)
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.RequireFromString("500")))
		assert.True(t, updated.TotalDeposited.Equal(decimal.RequireFromString("500")))
		assert.True(t, updated.LastActive.Equal(at))

		updated, err = repo.ApplyDelta(ctx, u.ID, models.BalanceDelta{
			Balance: decimal.RequireFromString("-600.00"),
		}, at.Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.RequireFromString("-100")))
		// last activity never moves backwards
		assert.True(t, updated.LastActive.Equal(at))

		_, err = repo.ApplyDelta(ctx, uuid.New(), models.BalanceDelta{}, at)
		assert.Error(t, err)
	})

	t.Run("counts", func(t *testing.T) {
		testDB.Truncate(t)

		yesterday := time.Now().UTC().Add(-48 * time.Hour)
		old := testutil.CreateTestUser("old")
		old.JoinDate = yesterday
		old.RiskLevel = models.RiskLevelHigh
		require.NoError(t, repo.Create(ctx, old))

		blocked := testutil.CreateTestUser("blocked")
		blocked.Status = models.UserStatusBlocked
		require.NoError(t, repo.Create(ctx, blocked))

		require.NoError(t, repo.Create(ctx, testutil.CreateTestUser("fresh")))

		active, err := repo.CountByStatus(ctx, models.UserStatusActive)
		require.NoError(t, err)
		assert.Equal(t, 2, active)

		joined, err := repo.CountJoinedSince(ctx, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, joined)

		byRisk, err := repo.CountByRiskLevel(ctx)
		require.NoError(t, err)
		counts := map[models.RiskLevel]int{}
		for _, c := range byRisk {
			counts[c.RiskLevel] = c.Count
		}
		assert.Equal(t, map[models.RiskLevel]int{models.RiskLevelLow: 2, models.RiskLevelHigh: 1}, counts)
	})

	t.Run("set projection and risk level", func(t *testing.T) {
		testDB.Truncate(t)

		u := testutil.CreateTestUser("erin")
		require.NoError(t, repo.Create(ctx, u))

		require.NoError(t, repo.SetProjection(ctx, u.ID, models.BalanceProjection{
			Balance:        decimal.RequireFromString("12.34"),
			TotalDeposited: decimal.RequireFromString("20.00"),
			TotalWithdrawn: decimal.RequireFromString("1.00"),
		}))
		require.NoError(t, repo.UpdateRiskLevel(ctx, u.ID, models.RiskLevelVIP))

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.34")))
		assert.Equal(t, models.RiskLevelVIP, got.RiskLevel)

		assert.Error(t, repo.UpdateRiskLevel(ctx, uuid.New(), models.RiskLevelLow))
	})
}
