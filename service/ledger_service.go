package service

import (
	"context"
	"fmt"

	"casinometrics/apperr"
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// maxAmount bounds a single ledger entry to what NUMERIC(14,2) can hold
var maxAmount = decimal.New(1, 12)

// ledgerService implements the LedgerService interface
type ledgerService struct {
	uowFactory UnitOfWorkFactory
	ledger     TransactionRepository
	now        Clock
}

// NewLedgerService creates a new ledger service. Reads go through ledger,
// appends through a unit of work.
func NewLedgerService(uowFactory UnitOfWorkFactory, ledger TransactionRepository) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		ledger:     ledger,
		now:        SystemClock,
	}
}

// Append records a transaction and updates its owner's cached balance in one
// database transaction
func (s *ledgerService) Append(ctx context.Context, in *models.Transaction) (appended *models.Transaction, err error) {
	if err := validateTransaction(in); err != nil {
		return nil, err
	}

	tx := *in
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = s.now()
	}

	ctx, span := startSpan(ctx, "LedgerService.Append",
		attribute.String("transaction.type", string(tx.Type)),
		attribute.String("user.id", tx.UserID.String()))
	defer func() { endSpan(span, err) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperr.Validation("user %s does not exist", tx.UserID)
	}

	if tx.GameID != nil {
		game, err := uow.GameRepository().GetByID(ctx, *tx.GameID)
		if err != nil {
			return nil, fmt.Errorf("failed to get game: %w", err)
		}
		if game == nil {
			return nil, apperr.Validation("game %s does not exist", *tx.GameID)
		}
	}

	if err := uow.TransactionRepository().Insert(ctx, &tx); err != nil {
		return nil, wrapInfra(err, "failed to insert transaction")
	}

	updated, err := RecordBalanceChange(ctx, uow, &tx)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"transactionId": tx.ID,
		"userId":        tx.UserID,
		"type":          tx.Type,
		"amount":        tx.Amount.StringFixed(2),
		"balance":       updated.Balance.StringFixed(2),
	}).Debug("Appended ledger entry")

	return &tx, nil
}

// Query returns ledger entries matching the filter
func (s *ledgerService) Query(ctx context.Context, filter models.TransactionFilter) (txs []*models.Transaction, err error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, apperr.Validation("unknown transaction type %q", t)
		}
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperr.Validation("from must be before to")
	}

	ctx, span := startSpan(ctx, "LedgerService.Query")
	defer func() { endSpan(span, err) }()

	txs, err = s.ledger.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	return txs, nil
}

// validateTransaction rejects entries the ledger must never hold
func validateTransaction(tx *models.Transaction) error {
	if tx == nil {
		return apperr.Validation("transaction is required")
	}
	if tx.UserID == uuid.Nil {
		return apperr.Validation("user id is required")
	}
	if !tx.Type.Valid() {
		return apperr.Validation("unknown transaction type %q", tx.Type)
	}
	if tx.Amount.IsNegative() {
		return apperr.Validation("amount must not be negative, got %s", tx.Amount)
	}
	if !tx.Amount.Equal(tx.Amount.Round(2)) {
		return apperr.Validation("amount %s has more than two decimal places", tx.Amount)
	}
	if tx.Amount.GreaterThanOrEqual(maxAmount) {
		return apperr.Validation("amount %s is too large", tx.Amount)
	}
	if tx.Type.IsCashier() && tx.GameID != nil {
		return apperr.Validation("%s transactions cannot reference a game", tx.Type)
	}
	return nil
}
