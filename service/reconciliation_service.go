package service

import (
	"context"
	"fmt"

	"casinometrics/apperr"
	"casinometrics/events"
	"casinometrics/models"
	"casinometrics/stats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// reconciliationService implements the ReconciliationService interface
type reconciliationService struct {
	uowFactory UnitOfWorkFactory
	users      UserRepository
	runs       ReconciliationRunRepository
	now        Clock
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(uowFactory UnitOfWorkFactory, users UserRepository, runs ReconciliationRunRepository) ReconciliationService {
	return &reconciliationService{
		uowFactory: uowFactory,
		users:      users,
		runs:       runs,
		now:        SystemClock,
	}
}

// Reconcile compares a user's cached balance fields with the ledger. The user
// row is locked while the ledger is read so no append can interleave.
func (s *reconciliationService) Reconcile(ctx context.Context, userID uuid.UUID, apply bool) (report *models.DriftReport, err error) {
	ctx, span := startSpan(ctx, "ReconciliationService.Reconcile",
		attribute.String("user.id", userID.String()),
		attribute.Bool("apply", apply))
	defer func() { endSpan(span, err) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	totals, err := uow.TransactionRepository().Totals(ctx, models.LedgerScope{UserIDs: []uuid.UUID{userID}})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ledger: %w", err)
	}

	cached := models.BalanceProjection{
		Balance:        user.Balance,
		TotalDeposited: user.TotalDeposited,
		TotalWithdrawn: user.TotalWithdrawn,
	}
	ledger := stats.ProjectBalance(orZero(totals))

	report = &models.DriftReport{
		UserID:  userID,
		Cached:  cached,
		Ledger:  ledger,
		Drifted: stats.Drifted(cached, ledger),
	}
	if !report.Drifted {
		return report, nil
	}

	log.WithFields(log.Fields{
		"userId":        userID,
		"cachedBalance": cached.Balance.StringFixed(2),
		"ledgerBalance": ledger.Balance.StringFixed(2),
		"apply":         apply,
	}).Warn("Cached balance drifted from ledger")

	if !apply {
		return report, nil
	}

	if err := uow.UserRepository().SetProjection(ctx, userID, ledger); err != nil {
		return nil, apperr.Consistency(err, "failed to repair projection of user %s", userID)
	}
	uow.EventBus().Publish(events.ProjectionRepairedEvent{
		UserID: userID,
		Before: cached,
		After:  ledger,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	report.Applied = true
	return report, nil
}

// ReconcileAll reconciles every user, one transaction each, and returns the drifted ones
func (s *reconciliationService) ReconcileAll(ctx context.Context, apply bool) (drifted []*models.DriftReport, err error) {
	ctx, span := startSpan(ctx, "ReconciliationService.ReconcileAll", attribute.Bool("apply", apply))
	defer func() { endSpan(span, err) }()

	runAt := s.now()
	users, err := s.users.List(ctx, 0, 0, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	drifted = make([]*models.DriftReport, 0)
	balanceDrift := decimal.Zero
	for _, u := range users {
		report, err := s.Reconcile(ctx, u.ID, apply)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile user %s: %w", u.ID, err)
		}
		if report.Drifted {
			drifted = append(drifted, report)
			balanceDrift = balanceDrift.Add(report.Ledger.Balance.Sub(report.Cached.Balance).Abs())
		}
	}

	run := &models.ReconciliationRun{
		RunAt:        runAt,
		UsersChecked: len(users),
		UsersDrifted: len(drifted),
		Applied:      apply,
		BalanceDrift: stats.Money(balanceDrift),
		Drifted:      drifted,
	}
	// The repairs are already committed; a lost history entry must not hide them
	if err := s.runs.Create(ctx, run); err != nil {
		log.WithError(err).Error("Failed to record reconciliation run")
	}

	log.WithFields(log.Fields{
		"users":   len(users),
		"drifted": len(drifted),
		"applied": apply,
	}).Info("Reconciliation finished")

	return drifted, nil
}

// History returns recorded reconciliation runs, newest first
func (s *reconciliationService) History(ctx context.Context, limit int) ([]*models.ReconciliationRun, error) {
	if limit < 1 {
		return nil, apperr.Validation("limit must be at least 1")
	}

	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation runs: %w", err)
	}
	return runs, nil
}
