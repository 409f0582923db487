// Package stats derives player, game, affiliate and platform metrics from
// ledger totals. Every function is pure; the same totals always give the
// same result.
package stats

import (
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// moneyPlaces is the precision money results are rounded to
const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Money rounds an amount to cents, half away from zero
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Fold aggregates transactions in memory. It gives the same totals as the
// SQL aggregation for the same set of entries, in any order.
func Fold(txs []*models.Transaction) models.LedgerTotals {
	totals := models.LedgerTotals{
		Wagered:   decimal.Zero,
		Payout:    decimal.Zero,
		Deposited: decimal.Zero,
		Withdrawn: decimal.Zero,
	}
	bettors := make(map[uuid.UUID]struct{})

	for _, tx := range txs {
		switch {
		case tx.Type == models.TransactionTypeBet:
			totals.BetCount++
			totals.Wagered = totals.Wagered.Add(tx.Amount)
			bettors[tx.UserID] = struct{}{}
		case tx.Type.IsPayout():
			totals.Payout = totals.Payout.Add(tx.Amount)
		case tx.Type == models.TransactionTypeDeposit:
			totals.Deposited = totals.Deposited.Add(tx.Amount)
		case tx.Type == models.TransactionTypeWithdrawal:
			totals.Withdrawn = totals.Withdrawn.Add(tx.Amount)
		}
	}
	totals.DistinctBettors = len(bettors)
	return totals
}

// UserStats computes a player's result. Net profit is positive when the player is ahead.
func UserStats(t models.LedgerTotals) models.UserStats {
	return models.UserStats{
		TotalBets: Money(t.Wagered),
		TotalWins: Money(t.Payout),
		NetProfit: Money(t.Payout.Sub(t.Wagered)),
	}
}

// GameStats computes the performance of a game from the totals of its entries
func GameStats(t models.LedgerTotals) models.GameStats {
	return models.GameStats{
		Plays:         t.BetCount,
		UniquePlayers: t.DistinctBettors,
		Wagered:       Money(t.Wagered),
		Payout:        Money(t.Payout),
		NGR:           Money(t.Wagered.Sub(t.Payout)),
	}
}

// RTP is payout as a percentage of wagered, or 0 when nothing was wagered
func RTP(wagered, payout decimal.Decimal) float64 {
	if wagered.IsZero() {
		return 0
	}
	rtp, _ := rawRTP(wagered, payout).Round(moneyPlaces).Float64()
	return rtp
}

// RTPAbove reports whether the unrounded RTP exceeds threshold
func RTPAbove(wagered, payout decimal.Decimal, threshold float64) bool {
	if wagered.IsZero() {
		return false
	}
	return rawRTP(wagered, payout).GreaterThan(decimal.NewFromFloat(threshold))
}

func rawRTP(wagered, payout decimal.Decimal) decimal.Decimal {
	return payout.Mul(hundred).DivRound(wagered, 8)
}

// HouseEdge is the share of wagers the house keeps, in percent
func HouseEdge(rtp float64) float64 {
	edge, _ := hundred.Sub(decimal.NewFromFloat(rtp)).Round(moneyPlaces).Float64()
	return edge
}

// AffiliateStats computes the revenue an affiliate's referred players generated
func AffiliateStats(referredUsers int, t models.LedgerTotals) models.AffiliateStats {
	return models.AffiliateStats{
		ReferredUsers: referredUsers,
		TotalNGR:      Money(t.Wagered.Sub(t.Payout)),
	}
}

// Commission is the affiliate's share of the NGR it brought in
func Commission(totalNGR, rate decimal.Decimal) decimal.Decimal {
	return Money(totalNGR.Mul(rate))
}

// PlatformStats computes the dashboard summary
func PlatformStats(activeUsers, newSignupsToday int, t models.LedgerTotals, ngrRate decimal.Decimal) models.PlatformStats {
	ggr := t.Wagered.Sub(t.Payout)
	return models.PlatformStats{
		ActiveUsers:     activeUsers,
		TotalGGR:        Money(ggr),
		TotalNGR:        Money(ggr.Mul(ngrRate)),
		NewSignupsToday: newSignupsToday,
	}
}

// ProjectBalance computes the cached user fields the ledger implies
func ProjectBalance(t models.LedgerTotals) models.BalanceProjection {
	return models.BalanceProjection{
		Balance:        Money(t.Deposited.Add(t.Payout).Sub(t.Wagered).Sub(t.Withdrawn)),
		TotalDeposited: Money(t.Deposited),
		TotalWithdrawn: Money(t.Withdrawn),
	}
}

// BalanceDelta is the change one transaction makes to its owner's cached fields.
// The second result is false for an unknown type.
func BalanceDelta(txType models.TransactionType, amount decimal.Decimal) (models.BalanceDelta, bool) {
	delta := models.BalanceDelta{Balance: decimal.Zero, Deposited: decimal.Zero, Withdrawn: decimal.Zero}

	switch txType {
	case models.TransactionTypeDeposit:
		delta.Balance = amount
		delta.Deposited = amount
	case models.TransactionTypeWithdrawal:
		delta.Balance = amount.Neg()
		delta.Withdrawn = amount
	case models.TransactionTypeBet:
		delta.Balance = amount.Neg()
	case models.TransactionTypeWin, models.TransactionTypeJackpot:
		delta.Balance = amount
	default:
		return delta, false
	}
	return delta, true
}

// Drifted reports whether a cached projection differs from the ledger's
func Drifted(cached, ledger models.BalanceProjection) bool {
	return !cached.Balance.Equal(ledger.Balance) ||
		!cached.TotalDeposited.Equal(ledger.TotalDeposited) ||
		!cached.TotalWithdrawn.Equal(ledger.TotalWithdrawn)
}
