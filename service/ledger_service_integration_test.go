package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"casinometrics/config"
	"casinometrics/events"
	"casinometrics/models"
	"casinometrics/repository"
	"casinometrics/repository/testutil"
	"casinometrics/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerStack struct {
	db        *testutil.TestDatabase
	bus       *events.Bus
	ledger    service.LedgerService
	registry  service.RegistryService
	reports   service.ReportService
	reconcile service.ReconciliationService
}

func newLedgerStack(t *testing.T) *ledgerStack {
	t.Helper()
	testDB := testutil.SetupTestDatabase(t)
	cfg := config.NewTestConfig()
	bus := events.NewBus()

	users := repository.NewUserRepository(testDB.DB)
	games := repository.NewGameRepository(testDB.DB)
	affiliates := repository.NewAffiliateRepository(testDB.DB)
	txs := repository.NewTransactionRepository(testDB.DB)
	uowFactory := repository.NewUnitOfWorkFactory(testDB.DB, bus)

	return &ledgerStack{
		db:        testDB,
		bus:       bus,
		ledger:    service.NewLedgerService(uowFactory, txs),
		registry:  service.NewRegistryService(uowFactory, users, cfg),
		reports:   service.NewReportService(users, games, affiliates, txs, cfg),
		reconcile: service.NewReconciliationService(uowFactory, users, repository.NewReconciliationRunRepository(testDB.DB)),
	}
}

func (s *ledgerStack) append(t *testing.T, userID uuid.UUID, gameID *uuid.UUID, txType models.TransactionType, amount string) {
	t.Helper()
	_, err := s.ledger.Append(context.Background(), &models.Transaction{
		UserID: userID,
		GameID: gameID,
		Type:   txType,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func TestLedgerService_ConcurrentDeposits_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newLedgerStack(t)
	ctx := context.Background()

	user, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "racer", Email: "racer@example.com"})
	require.NoError(t, err)

	const appends = 100
	var wg sync.WaitGroup
	errs := make(chan error, appends)
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stack.ledger.Append(ctx, &models.Transaction{
				UserID: user.ID,
				Type:   models.TransactionTypeDeposit,
				Amount: decimal.RequireFromString("10.00"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	detail, err := stack.reports.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", detail.Balance.StringFixed(2))
	assert.Equal(t, "1000.00", detail.TotalDeposited.StringFixed(2))

	txs, err := stack.ledger.Query(ctx, models.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Len(t, txs, appends)
}

func TestLedgerService_BackdatedAppendKeepsLastActive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newLedgerStack(t)
	ctx := context.Background()

	user, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "latecomer", Email: "late@example.com"})
	require.NoError(t, err)

	recent, err := stack.ledger.Append(ctx, &models.Transaction{
		UserID: user.ID,
		Type:   models.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	backdated, err := stack.ledger.Append(ctx, &models.Transaction{
		UserID:    user.ID,
		Type:      models.TransactionTypeWithdrawal,
		Amount:    decimal.RequireFromString("40.00"),
		Timestamp: recent.Timestamp.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	detail, err := stack.reports.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", detail.Balance.StringFixed(2))
	assert.WithinDuration(t, recent.Timestamp, detail.LastActive, time.Millisecond)

	txs, err := stack.ledger.Query(ctx, models.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, recent.ID, txs[0].ID)
	assert.Equal(t, backdated.ID, txs[1].ID)
}

func TestLedgerService_Scenario_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newLedgerStack(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []events.EventType
	stack.bus.SubscribeAll([]events.EventType{
		events.EventTypeTransactionAppended,
		events.EventTypeBalanceChange,
	}, func(ctx context.Context, e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type())
	})

	game, err := stack.registry.CreateGame(ctx, "Roulette", models.GameTypeTable)
	require.NoError(t, err)
	user, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "player", Email: "player@example.com"})
	require.NoError(t, err)

	stack.append(t, user.ID, nil, models.TransactionTypeDeposit, "500")
	stack.append(t, user.ID, &game.ID, models.TransactionTypeBet, "100")
	stack.append(t, user.ID, &game.ID, models.TransactionTypeWin, "150")
	stack.append(t, user.ID, &game.ID, models.TransactionTypeBet, "50")

	detail, err := stack.reports.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", detail.Balance.StringFixed(2))
	assert.Equal(t, "500.00", detail.TotalDeposited.StringFixed(2))
	assert.True(t, detail.TotalWithdrawn.IsZero())
	assert.True(t, detail.Stats.NetProfit.IsZero())
	require.Len(t, detail.RecentTransactions, 4)
	assert.Equal(t, models.TransactionTypeBet, detail.RecentTransactions[0].Type, "newest first")

	view, err := stack.reports.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Plays)
	assert.Equal(t, 1, view.UniquePlayers)
	assert.Equal(t, 100.0, view.RTP)
	assert.True(t, view.RTPWarning)

	report, err := stack.reconcile.Reconcile(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, report.Drifted)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 8
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLedgerService_RejectedAppendLeavesNoTrace_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newLedgerStack(t)
	ctx := context.Background()

	user, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "careful", Email: "careful@example.com"})
	require.NoError(t, err)

	missingGame := uuid.New()
	_, err = stack.ledger.Append(ctx, &models.Transaction{
		UserID: user.ID,
		GameID: &missingGame,
		Type:   models.TransactionTypeBet,
		Amount: decimal.NewFromInt(5),
	})
	require.Error(t, err)

	txs, err := stack.ledger.Query(ctx, models.TransactionFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Empty(t, txs)

	detail, err := stack.reports.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, detail.Balance.IsZero())
}

func TestReconciliationService_RepairsDrift_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newLedgerStack(t)
	ctx := context.Background()

	user, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "drifter", Email: "drifter@example.com"})
	require.NoError(t, err)
	stack.append(t, user.ID, nil, models.TransactionTypeDeposit, "200")
	stack.append(t, user.ID, nil, models.TransactionTypeWithdrawal, "75.25")

	_, err = stack.db.DB.Exec(ctx, `UPDATE users SET balance = 1 WHERE id = $1`, user.ID)
	require.NoError(t, err)

	reports, err := stack.reconcile.ReconcileAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Applied)
	assert.Equal(t, "124.75", reports[0].Ledger.Balance.StringFixed(2))

	report, err := stack.reconcile.Reconcile(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, report.Drifted)

	history, err := stack.reconcile.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].UsersChecked)
	assert.Equal(t, "123.75", history[0].BalanceDrift.StringFixed(2))
}

func TestReportService_Affiliate_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	stack := newLedgerStack(t)
	ctx := context.Background()

	affiliate, err := stack.registry.CreateAffiliate(ctx, "Partners", "PARTNER")
	require.NoError(t, err)
	game, err := stack.registry.CreateGame(ctx, "Bingo Hall", models.GameTypeBingo)
	require.NoError(t, err)

	loser, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "loser", Email: "loser@example.com", AffiliateID: &affiliate.ID})
	require.NoError(t, err)
	winner, err := stack.registry.CreateUser(ctx, models.NewUser{Username: "winner", Email: "winner@example.com", AffiliateID: &affiliate.ID})
	require.NoError(t, err)

	stack.append(t, loser.ID, &game.ID, models.TransactionTypeBet, "200")
	stack.append(t, winner.ID, &game.ID, models.TransactionTypeBet, "100")
	stack.append(t, winner.ID, &game.ID, models.TransactionTypeJackpot, "150")

	detail, err := stack.reports.GetAffiliate(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ReferredUsers)
	assert.Equal(t, "150.00", detail.TotalNGR.StringFixed(2))
	assert.Equal(t, "45.00", detail.Commission.StringFixed(2))
	assert.Len(t, detail.Referred, 2)

	top, err := stack.reports.TopUsers(ctx)
	require.NoError(t, err)
	require.Len(t, top.TopWinners, 2)
	assert.Equal(t, winner.ID, top.TopWinners[0].User.ID)
	assert.Equal(t, loser.ID, top.TopLosers[0].User.ID)

	_, err = stack.registry.CreateAffiliate(ctx, "Copycat", "PARTNER")
	assert.Error(t, err)
}
