// Package ranking orders players by net profit.
package ranking

import (
	"sort"

	"casinometrics/models"
)

// Rank orders the population by net profit, highest first, and returns the
// n best as winners and the n worst as losers, worst first. Players with
// equal profit keep their population order. A population smaller than n is
// returned whole on both sides.
func Rank(population []*models.UserProfit, n int) *models.Standings {
	sorted := make([]*models.UserProfit, len(population))
	copy(sorted, population)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NetProfit.GreaterThan(sorted[j].NetProfit)
	})

	if n < 0 {
		n = 0
	}
	size := min(n, len(sorted))

	winners := make([]*models.RankedUser, 0, size)
	for i := 0; i < size; i++ {
		winners = append(winners, &models.RankedUser{
			Rank:      i + 1,
			User:      sorted[i].User,
			NetProfit: sorted[i].NetProfit,
		})
	}

	losers := make([]*models.RankedUser, 0, size)
	for i := 0; i < size; i++ {
		entry := sorted[len(sorted)-1-i]
		losers = append(losers, &models.RankedUser{
			Rank:      i + 1,
			User:      entry.User,
			NetProfit: entry.NetProfit,
		})
	}

	return &models.Standings{TopWinners: winners, TopLosers: losers}
}
