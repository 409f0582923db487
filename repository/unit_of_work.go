package repository

import (
	"context"
	"errors"
	"fmt"

	"casinometrics/database"
	"casinometrics/events"
	"casinometrics/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	userRepo         service.UserRepository
	gameRepo         service.GameRepository
	affiliateRepo    service.AffiliateRepository
	transactionRepo  service.TransactionRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepositoryWithTx(tx)
	u.gameRepo = newGameRepositoryWithTx(tx)
	u.affiliateRepo = newAffiliateRepositoryWithTx(tx)
	u.transactionRepo = newTransactionRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction. It is a no-op after Commit, so it can always be deferred.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// GameRepository returns the game repository for this unit of work
func (u *unitOfWork) GameRepository() service.GameRepository {
	if u.gameRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameRepo
}

// AffiliateRepository returns the affiliate repository for this unit of work
func (u *unitOfWork) AffiliateRepository() service.AffiliateRepository {
	if u.affiliateRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.affiliateRepo
}

// TransactionRepository returns the ledger repository for this unit of work
func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	if u.transactionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
