package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerTotals is the raw aggregate every calculator is built from. It can be
// produced by SQL aggregation or by folding a slice of transactions.
type LedgerTotals struct {
	BetCount        int
	DistinctBettors int
	Wagered         decimal.Decimal // sum of Bet amounts
	Payout          decimal.Decimal // sum of Win and Jackpot amounts
	Deposited       decimal.Decimal
	Withdrawn       decimal.Decimal
}

// UserStats represents a player's betting result
type UserStats struct {
	TotalBets decimal.Decimal `json:"totalBets"`
	TotalWins decimal.Decimal `json:"totalWins"`
	NetProfit decimal.Decimal `json:"netProfit"` // positive means the player is ahead
}

// GameStats represents the performance of a single game
type GameStats struct {
	Plays         int             `json:"plays"`
	UniquePlayers int             `json:"uniquePlayers"`
	Wagered       decimal.Decimal `json:"wagered"`
	Payout        decimal.Decimal `json:"payout"`
	NGR           decimal.Decimal `json:"ngr"`
}

// AffiliateStats represents the revenue generated by an affiliate's players
type AffiliateStats struct {
	ReferredUsers int             `json:"referredUsers"`
	TotalNGR      decimal.Decimal `json:"totalNGR"`
}

// PlatformStats is the dashboard summary
type PlatformStats struct {
	ActiveUsers     int             `json:"activeUsers"`
	TotalGGR        decimal.Decimal `json:"totalGGR"`
	TotalNGR        decimal.Decimal `json:"totalNGR"`
	NewSignupsToday int             `json:"newSignupsToday"`
}

// BalanceProjection is the cached user state implied by the ledger alone
type BalanceProjection struct {
	Balance        decimal.Decimal `json:"balance"`
	TotalDeposited decimal.Decimal `json:"totalDeposited"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
}

// BalanceDelta is the effect a single transaction has on its owner's cache
type BalanceDelta struct {
	Balance   decimal.Decimal
	Deposited decimal.Decimal
	Withdrawn decimal.Decimal
}

// SeriesBucket is one raw time bucket of ledger activity
type SeriesBucket struct {
	Start        time.Time
	Bets         decimal.Decimal
	Wins         decimal.Decimal
	Deposits     decimal.Decimal
	Transactions int
}

// RiskCount is the number of users stored under one risk tier
type RiskCount struct {
	RiskLevel RiskLevel
	Count     int
}

// UserProfit pairs a user with their net profit for ranking
type UserProfit struct {
	User      *User
	NetProfit decimal.Decimal
}

// DriftReport compares a user's cached projection with the ledger
type DriftReport struct {
	UserID  uuid.UUID         `json:"userId"`
	Cached  BalanceProjection `json:"cached"`
	Ledger  BalanceProjection `json:"ledger"`
	Drifted bool              `json:"drifted"`
	Applied bool              `json:"applied"`
}

// Bucket is the width of a time series bucket
type Bucket string

const (
	BucketDay  Bucket = "day"
	BucketWeek Bucket = "week"
)
