package stats

import (
	"sort"
	"time"

	"casinometrics/models"

	"github.com/shopspring/decimal"
)

// StartOfDay returns midnight of t's calendar day in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns midnight of the Sunday starting t's week in loc
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// Series regroups fine grained buckets into calendar days or weeks of loc.
// Only periods with activity appear, oldest first.
func Series(buckets []*models.SeriesBucket, width models.Bucket, loc *time.Location) []*models.SeriesPoint {
	start := StartOfDay
	if width == models.BucketWeek {
		start = StartOfWeek
	}

	byStart := make(map[int64]*models.SeriesPoint)
	keys := make([]int64, 0)
	for _, b := range buckets {
		periodStart := start(b.Start, loc)
		key := periodStart.Unix()

		point, ok := byStart[key]
		if !ok {
			point = &models.SeriesPoint{
				Start:    periodStart.Format(time.DateOnly),
				Bets:     decimal.Zero,
				Wins:     decimal.Zero,
				Deposits: decimal.Zero,
			}
			byStart[key] = point
			keys = append(keys, key)
		}
		point.Bets = point.Bets.Add(b.Bets)
		point.Wins = point.Wins.Add(b.Wins)
		point.Deposits = point.Deposits.Add(b.Deposits)
		point.Transactions += b.Transactions
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]*models.SeriesPoint, 0, len(keys))
	for _, key := range keys {
		p := byStart[key]
		p.Bets = Money(p.Bets)
		p.Wins = Money(p.Wins)
		p.Deposits = Money(p.Deposits)
		p.GGR = Money(p.Bets.Sub(p.Wins))
		points = append(points, p)
	}
	return points
}

// GameTypeBreakdown sums NGR magnitude and plays per game category. A game
// contributes the absolute value of its own NGR. Categories without games are omitted.
func GameTypeBreakdown(games []*models.GameView) []*models.GameTypeSlice {
	byType := make(map[models.GameType]*models.GameTypeSlice)
	for _, g := range games {
		slice, ok := byType[g.Type]
		if !ok {
			slice = &models.GameTypeSlice{Type: g.Type, NGR: decimal.Zero}
			byType[g.Type] = slice
		}
		slice.NGR = slice.NGR.Add(g.NGR.Abs())
		slice.Plays += g.Plays
	}

	slices := make([]*models.GameTypeSlice, 0, len(byType))
	for _, t := range models.GameTypes {
		if s, ok := byType[t]; ok {
			s.NGR = Money(s.NGR)
			slices = append(slices, s)
		}
	}
	return slices
}

// RiskDistribution lists every risk tier with its user count, zero when absent
func RiskDistribution(counts []*models.RiskCount) []*models.RiskSlice {
	byLevel := make(map[models.RiskLevel]int, len(counts))
	for _, c := range counts {
		byLevel[c.RiskLevel] += c.Count
	}

	slices := make([]*models.RiskSlice, 0, len(models.RiskLevels))
	for _, level := range models.RiskLevels {
		slices = append(slices, &models.RiskSlice{RiskLevel: level, Users: byLevel[level]})
	}
	return slices
}
