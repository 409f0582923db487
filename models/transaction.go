package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of ledger movement
type TransactionType string

const (
	TransactionTypeBet        TransactionType = "Bet"
	TransactionTypeWin        TransactionType = "Win"
	TransactionTypeDeposit    TransactionType = "Deposit"
	TransactionTypeWithdrawal TransactionType = "Withdrawal"
	TransactionTypeJackpot    TransactionType = "Jackpot"
)

// TransactionTypes lists every valid transaction type in schema order
var TransactionTypes = []TransactionType{
	TransactionTypeBet,
	TransactionTypeWin,
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypeJackpot,
}

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsPayout reports whether the type pays money out to the player (Win or Jackpot)
func (t TransactionType) IsPayout() bool {
	return t == TransactionTypeWin || t == TransactionTypeJackpot
}

// IsCashier reports whether the type moves money in or out of the platform
// rather than in or out of a game
func (t TransactionType) IsCashier() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

// Transaction is an immutable ledger entry. Amount is never negative; the
// direction of the money is implied by Type.
type Transaction struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Seq       int64           `db:"seq" json:"-"` // Insertion order, assigned by the store
	UserID    uuid.UUID       `db:"user_id" json:"userId"`
	GameID    *uuid.UUID      `db:"game_id" json:"gameId,omitempty"`
	Type      TransactionType `db:"type" json:"type"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// TransactionFilter selects a slice of the ledger
type TransactionFilter struct {
	UserID    *uuid.UUID
	GameID    *uuid.UUID
	Types     []TransactionType
	From      *time.Time // inclusive
	To        *time.Time // exclusive
	Limit     int        // 0 means unbounded
	Offset    int
	Ascending bool // default is newest first
}

// ActivityEntry is a ledger entry joined with the names a feed displays
type ActivityEntry struct {
	Transaction
	Username string  `json:"username"`
	GameName *string `json:"gameName,omitempty"`
}

// LedgerScope selects the entries an aggregate is computed over. Empty
// fields do not restrict; UserIDs and AffiliateID combine with AND.
type LedgerScope struct {
	UserIDs     []uuid.UUID
	GameID      *uuid.UUID
	AffiliateID *uuid.UUID
	From        *time.Time // inclusive
	To          *time.Time // exclusive
}
