// Package risk assigns players to risk tiers.
package risk

import (
	"casinometrics/models"

	"github.com/shopspring/decimal"
)

// Thresholds are the limits the tiers are decided on
type Thresholds struct {
	VIPProfit     decimal.Decimal // net profit above this is VIP
	HighDeposited decimal.Decimal // deposits above this ...
	HighLoss      decimal.Decimal // ... together with net profit below this is High
}

// DefaultThresholds returns the standard limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		VIPProfit:     decimal.NewFromInt(5000),
		HighDeposited: decimal.NewFromInt(20000),
		HighLoss:      decimal.NewFromInt(-10000),
	}
}

// Classify derives a player's tier. Medium is never derived; it is only
// kept when it is already the stored tier.
func Classify(user *models.User, stats models.UserStats, th Thresholds) models.RiskLevel {
	switch {
	case stats.NetProfit.GreaterThan(th.VIPProfit):
		return models.RiskLevelVIP
	case user.TotalDeposited.GreaterThan(th.HighDeposited) && stats.NetProfit.LessThan(th.HighLoss):
		return models.RiskLevelHigh
	case user.RiskLevel == models.RiskLevelMedium:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}
