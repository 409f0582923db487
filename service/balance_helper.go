package service

import (
	"context"
	"fmt"

	"casinometrics/apperr"
	"casinometrics/events"
	"casinometrics/models"
	"casinometrics/stats"
)

// RecordBalanceChange applies a committed-to-be ledger entry to its owner's
// cached fields and queues the matching events. This is the single entry
// point for balance changes; it must run inside the unit of work that
// inserted the entry.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, tx *models.Transaction) (*models.User, error) {
	delta, ok := stats.BalanceDelta(tx.Type, tx.Amount)
	if !ok {
		return nil, apperr.Validation("unknown transaction type %q", tx.Type)
	}

	updated, err := uow.UserRepository().ApplyDelta(ctx, tx.UserID, delta, tx.Timestamp)
	if err != nil {
		return nil, apperr.Consistency(err, "failed to update balance of user %s", tx.UserID)
	}

	// Events are flushed after the transaction commits
	uow.EventBus().Publish(events.TransactionAppendedEvent{Transaction: *tx})
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          tx.UserID,
		TransactionID:   tx.ID,
		OldBalance:      updated.Balance.Sub(delta.Balance),
		NewBalance:      updated.Balance,
		TransactionType: tx.Type,
		ChangeAmount:    delta.Balance,
	})

	return updated, nil
}

// wrapInfra wraps an infrastructure error unless it already carries a code
func wrapInfra(err error, format string, args ...any) error {
	if apperr.CodeOf(err) != apperr.CodeUnknown {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
