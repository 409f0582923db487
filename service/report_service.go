package service

import (
	"context"
	"fmt"
	"time"

	"casinometrics/apperr"
	"casinometrics/config"
	"casinometrics/models"
	"casinometrics/ranking"
	"casinometrics/risk"
	"casinometrics/stats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// dailyPoints is how many days the daily analytics series keeps
const dailyPoints = 14

// reportService implements the ReportService interface. Every read goes
// straight to the pool repositories; nothing is cached between calls.
type reportService struct {
	users      UserRepository
	games      GameRepository
	affiliates AffiliateRepository
	ledger     TransactionRepository
	cfg        *config.Config
	thresholds risk.Thresholds
	loc        *time.Location
	now        Clock
}

// NewReportService creates a new report service
func NewReportService(users UserRepository, games GameRepository, affiliates AffiliateRepository, ledger TransactionRepository, cfg *config.Config) ReportService {
	return &reportService{
		users:      users,
		games:      games,
		affiliates: affiliates,
		ledger:     ledger,
		cfg:        cfg,
		thresholds: riskThresholds(cfg),
		loc:        cfg.Location(),
		now:        SystemClock,
	}
}

// ListUsers returns a page of users with their net profit
func (s *reportService) ListUsers(ctx context.Context, limit, offset int, search string) (rows []*models.UserRow, err error) {
	limit, err = s.pageLimit(limit, s.cfg.DefaultUserLimit)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, apperr.Validation("offset must not be negative")
	}

	ctx, span := startSpan(ctx, "ReportService.ListUsers", attribute.Int("limit", limit), attribute.Int("offset", offset))
	defer func() { endSpan(span, err) }()

	users, err := s.users.List(ctx, limit, offset, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	byUser, err := s.totalsByUser(ctx, users)
	if err != nil {
		return nil, err
	}

	rows = make([]*models.UserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, &models.UserRow{
			User:           *u,
			DisplayBalance: u.DisplayBalance(),
			NetProfit:      stats.UserStats(byUser[u.ID]).NetProfit,
		})
	}
	return rows, nil
}

// GetUser returns one user with stats, classified risk and recent transactions
func (s *reportService) GetUser(ctx context.Context, id uuid.UUID) (detail *models.UserDetail, err error) {
	ctx, span := startSpan(ctx, "ReportService.GetUser", attribute.String("user.id", id.String()))
	defer func() { endSpan(span, err) }()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", id)
	}

	var (
		totals *models.LedgerTotals
		recent []*models.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.ledger.Totals(gctx, models.LedgerScope{UserIDs: []uuid.UUID{id}})
		if err != nil {
			return fmt.Errorf("failed to aggregate user ledger: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = s.ledger.Query(gctx, models.TransactionFilter{UserID: &id, Limit: s.cfg.UserDetailTransactions})
		if err != nil {
			return fmt.Errorf("failed to get recent transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userStats := stats.UserStats(orZero(totals))
	if recent == nil {
		recent = []*models.Transaction{}
	}

	return &models.UserDetail{
		User:               *user,
		DisplayBalance:     user.DisplayBalance(),
		Stats:              userStats,
		ClassifiedRisk:     risk.Classify(user, userStats, s.thresholds),
		RecentTransactions: recent,
	}, nil
}

// ListGames returns every game with its statistics, in catalogue order
func (s *reportService) ListGames(ctx context.Context) (views []*models.GameView, err error) {
	ctx, span := startSpan(ctx, "ReportService.ListGames")
	defer func() { endSpan(span, err) }()

	games, err := s.games.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	views = make([]*models.GameView, len(games))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.StatsConcurrency)
	for i, game := range games {
		g.Go(func() error {
			view, err := s.gameView(gctx, game)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// GetGame returns one game with its statistics
func (s *reportService) GetGame(ctx context.Context, id uuid.UUID) (view *models.GameView, err error) {
	ctx, span := startSpan(ctx, "ReportService.GetGame", attribute.String("game.id", id.String()))
	defer func() { endSpan(span, err) }()

	game, err := s.games.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, apperr.NotFound("game %s not found", id)
	}
	return s.gameView(ctx, game)
}

func (s *reportService) gameView(ctx context.Context, game *models.Game) (*models.GameView, error) {
	totals, err := s.ledger.Totals(ctx, models.LedgerScope{GameID: &game.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate game %s: %w", game.ID, err)
	}

	t := orZero(totals)
	rtp := stats.RTP(t.Wagered, t.Payout)
	view := &models.GameView{
		Game:       *game,
		GameStats:  stats.GameStats(t),
		RTP:        rtp,
		HouseEdge:  stats.HouseEdge(rtp),
		RTPWarning: stats.RTPAbove(t.Wagered, t.Payout, s.cfg.RTPWarningThreshold),
	}
	if view.RTPWarning {
		log.WithFields(log.Fields{
			"gameId": game.ID,
			"name":   game.Name,
			"rtp":    rtp,
		}).Warn("Game RTP above warning threshold")
	}
	return view, nil
}

// ListAffiliates returns every affiliate with its statistics and commission
func (s *reportService) ListAffiliates(ctx context.Context) (views []*models.AffiliateView, err error) {
	ctx, span := startSpan(ctx, "ReportService.ListAffiliates")
	defer func() { endSpan(span, err) }()

	affiliates, err := s.affiliates.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}

	views = make([]*models.AffiliateView, len(affiliates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.StatsConcurrency)
	for i, a := range affiliates {
		g.Go(func() error {
			view, err := s.affiliateView(gctx, a)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// GetAffiliate returns one affiliate with its statistics and referred players
func (s *reportService) GetAffiliate(ctx context.Context, id uuid.UUID) (detail *models.AffiliateDetail, err error) {
	ctx, span := startSpan(ctx, "ReportService.GetAffiliate", attribute.String("affiliate.id", id.String()))
	defer func() { endSpan(span, err) }()

	affiliate, err := s.affiliates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	if affiliate == nil {
		return nil, apperr.NotFound("affiliate %s not found", id)
	}

	var (
		view     *models.AffiliateView
		referred []*models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view, err = s.affiliateView(gctx, affiliate)
		return err
	})
	g.Go(func() error {
		var err error
		referred, err = s.users.ListByAffiliate(gctx, id)
		if err != nil {
			return fmt.Errorf("failed to list referred users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if referred == nil {
		referred = []*models.User{}
	}

	return &models.AffiliateDetail{AffiliateView: *view, Referred: referred}, nil
}

func (s *reportService) affiliateView(ctx context.Context, a *models.Affiliate) (*models.AffiliateView, error) {
	referred, err := s.affiliates.CountReferred(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count referred users of %s: %w", a.ID, err)
	}
	totals, err := s.ledger.Totals(ctx, models.LedgerScope{AffiliateID: &a.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate affiliate %s: %w", a.ID, err)
	}

	affStats := stats.AffiliateStats(referred, orZero(totals))
	return &models.AffiliateView{
		Affiliate:      *a,
		AffiliateStats: affStats,
		Commission:     stats.Commission(affStats.TotalNGR, s.cfg.CommissionRate),
	}, nil
}

// PlatformStats returns the dashboard summary
func (s *reportService) PlatformStats(ctx context.Context) (summary *models.PlatformStats, err error) {
	ctx, span := startSpan(ctx, "ReportService.PlatformStats")
	defer func() { endSpan(span, err) }()

	today := GetCurrentDayStart(s.now(), s.loc)

	var (
		active, signups int
		totals          *models.LedgerTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.users.CountByStatus(gctx, models.UserStatusActive)
		if err != nil {
			return fmt.Errorf("failed to count active users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		signups, err = s.users.CountJoinedSince(gctx, today)
		if err != nil {
			return fmt.Errorf("failed to count signups: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		totals, err = s.ledger.Totals(gctx, models.LedgerScope{})
		if err != nil {
			return fmt.Errorf("failed to aggregate ledger: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := stats.PlatformStats(active, signups, orZero(totals), s.cfg.NGRRate)
	return &result, nil
}

// TopUsers returns the biggest winners and losers among the most recently active users
func (s *reportService) TopUsers(ctx context.Context) (standings *models.Standings, err error) {
	ctx, span := startSpan(ctx, "ReportService.TopUsers")
	defer func() { endSpan(span, err) }()

	return s.standings(ctx, s.cfg.TopUsersPopulation, s.cfg.TopUsersSize)
}

// Leaderboard is TopUsers over a larger population with longer lists
func (s *reportService) Leaderboard(ctx context.Context) (standings *models.Standings, err error) {
	ctx, span := startSpan(ctx, "ReportService.Leaderboard")
	defer func() { endSpan(span, err) }()

	return s.standings(ctx, s.cfg.LeaderboardPopulation, s.cfg.LeaderboardSize)
}

func (s *reportService) standings(ctx context.Context, population, size int) (*models.Standings, error) {
	users, err := s.users.List(ctx, population, 0, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list ranking population: %w", err)
	}

	byUser, err := s.totalsByUser(ctx, users)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.UserProfit, 0, len(users))
	for _, u := range users {
		entries = append(entries, &models.UserProfit{
			User:      u,
			NetProfit: stats.UserStats(byUser[u.ID]).NetProfit,
		})
	}
	return ranking.Rank(entries, size), nil
}

// RecentActivity returns the newest ledger entries with display names
func (s *reportService) RecentActivity(ctx context.Context, limit int) (entries []*models.ActivityEntry, err error) {
	limit, err = s.pageLimit(limit, s.cfg.DefaultActivityLimit)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "ReportService.RecentActivity", attribute.Int("limit", limit))
	defer func() { endSpan(span, err) }()

	entries, err = s.ledger.RecentActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}
	return entries, nil
}

// Analytics returns the time series and breakdowns for [from, to)
func (s *reportService) Analytics(ctx context.Context, from, to time.Time) (report *models.Analytics, err error) {
	if !from.Before(to) {
		return nil, apperr.Validation("from must be before to")
	}

	ctx, span := startSpan(ctx, "ReportService.Analytics")
	defer func() { endSpan(span, err) }()

	var (
		buckets []*models.SeriesBucket
		games   []*models.GameView
		counts  []*models.RiskCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buckets, err = s.ledger.Series(gctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to get ledger series: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		games, err = s.ListGames(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.users.CountByRiskLevel(gctx)
		if err != nil {
			return fmt.Errorf("failed to count users by risk level: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	daily := stats.Series(buckets, models.BucketDay, s.loc)
	if len(daily) > dailyPoints {
		daily = daily[len(daily)-dailyPoints:]
	}

	return &models.Analytics{
		Daily:            daily,
		Weekly:           stats.Series(buckets, models.BucketWeek, s.loc),
		GameTypes:        stats.GameTypeBreakdown(games),
		RiskDistribution: stats.RiskDistribution(counts),
	}, nil
}

// totalsByUser aggregates the ledger for a set of users in one query
func (s *reportService) totalsByUser(ctx context.Context, users []*models.User) (map[uuid.UUID]models.LedgerTotals, error) {
	result := make(map[uuid.UUID]models.LedgerTotals, len(users))
	if len(users) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	byUser, err := s.ledger.TotalsByUser(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user ledgers: %w", err)
	}
	for _, id := range ids {
		result[id] = orZero(byUser[id])
	}
	return result, nil
}

// pageLimit applies the default to a zero limit and clamps it to the maximum
func (s *reportService) pageLimit(limit, def int) (int, error) {
	switch {
	case limit < 0:
		return 0, apperr.Validation("limit must not be negative")
	case limit == 0:
		limit = def
	}
	return min(limit, s.cfg.MaxListLimit), nil
}

// orZero dereferences totals, treating nil as an empty ledger
func orZero(t *models.LedgerTotals) models.LedgerTotals {
	if t == nil {
		return models.LedgerTotals{
			Wagered:   decimal.Zero,
			Payout:    decimal.Zero,
			Deposited: decimal.Zero,
			Withdrawn: decimal.Zero,
		}
	}
	return *t
}
