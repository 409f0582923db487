package service

import (
	"context"
	"fmt"
	"strings"

	"casinometrics/apperr"
	"casinometrics/config"
	"casinometrics/events"
	"casinometrics/models"
	"casinometrics/risk"
	"casinometrics/stats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// registryService implements the RegistryService interface
type registryService struct {
	uowFactory UnitOfWorkFactory
	users      UserRepository
	thresholds risk.Thresholds
	now        Clock
}

// NewRegistryService creates a new registry service
func NewRegistryService(uowFactory UnitOfWorkFactory, users UserRepository, cfg *config.Config) RegistryService {
	return &registryService{
		uowFactory: uowFactory,
		users:      users,
		thresholds: riskThresholds(cfg),
		now:        SystemClock,
	}
}

// riskThresholds reads the risk limits from configuration
func riskThresholds(cfg *config.Config) risk.Thresholds {
	return risk.Thresholds{
		VIPProfit:     cfg.RiskVIPProfit,
		HighDeposited: cfg.RiskHighDeposited,
		HighLoss:      cfg.RiskHighLoss,
	}
}

// CreateUser registers a player with a zero balance
func (s *registryService) CreateUser(ctx context.Context, in models.NewUser) (user *models.User, err error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("email %q is not valid", in.Email)
	}

	level := in.RiskLevel
	if level == "" {
		level = models.RiskLevelLow
	}
	if !level.Valid() {
		return nil, apperr.Validation("unknown risk level %q", in.RiskLevel)
	}
	status := in.Status
	if status == "" {
		status = models.UserStatusActive
	}
	if !status.Valid() {
		return nil, apperr.Validation("unknown user status %q", in.Status)
	}

	ctx, span := startSpan(ctx, "RegistryService.CreateUser", attribute.String("user.username", username))
	defer func() { endSpan(span, err) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if in.AffiliateID != nil {
		affiliate, err := uow.AffiliateRepository().GetByID(ctx, *in.AffiliateID)
		if err != nil {
			return nil, fmt.Errorf("failed to get affiliate: %w", err)
		}
		if affiliate == nil {
			return nil, apperr.Validation("affiliate %s does not exist", *in.AffiliateID)
		}
	}

	now := s.now()
	user = &models.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		JoinDate:       now,
		Balance:        decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		RiskLevel:      level,
		AffiliateID:    in.AffiliateID,
		Status:         status,
		LastActive:     now,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, wrapInfra(err, "failed to create user")
	}

	uow.EventBus().Publish(events.UserCreatedEvent{
		UserID:      user.ID,
		Username:    user.Username,
		AffiliateID: user.AffiliateID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userId":   user.ID,
		"username": user.Username,
	}).Info("Created user")

	return user, nil
}

// CreateGame registers a game in the Active state
func (s *registryService) CreateGame(ctx context.Context, name string, gameType models.GameType) (game *models.Game, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("game name is required")
	}
	if !gameType.Valid() {
		return nil, apperr.Validation("unknown game type %q", gameType)
	}

	ctx, span := startSpan(ctx, "RegistryService.CreateGame")
	defer func() { endSpan(span, err) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game = &models.Game{
		ID:        uuid.New(),
		Name:      name,
		Type:      gameType,
		Status:    models.GameStatusActive,
		CreatedAt: s.now(),
	}
	if err := uow.GameRepository().Create(ctx, game); err != nil {
		return nil, wrapInfra(err, "failed to create game")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return game, nil
}

// CreateAffiliate registers an affiliate in the Active state. Codes are unique.
func (s *registryService) CreateAffiliate(ctx context.Context, name, code string) (affiliate *models.Affiliate, err error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if name == "" {
		return nil, apperr.Validation("affiliate name is required")
	}
	if code == "" {
		return nil, apperr.Validation("affiliate code is required")
	}

	ctx, span := startSpan(ctx, "RegistryService.CreateAffiliate")
	defer func() { endSpan(span, err) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	affiliate = &models.Affiliate{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		Status:    models.AffiliateStatusActive,
		CreatedAt: s.now(),
	}
	if err := uow.AffiliateRepository().Create(ctx, affiliate); err != nil {
		return nil, wrapInfra(err, "failed to create affiliate")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affiliate, nil
}

// GetUserByUsername looks a player up by username
func (s *registryService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %q not found", username)
	}
	return user, nil
}

// RefreshRiskLevel stores the tier the ledger currently implies for a user
func (s *registryService) RefreshRiskLevel(ctx context.Context, userID uuid.UUID) (level models.RiskLevel, err error) {
	ctx, span := startSpan(ctx, "RegistryService.RefreshRiskLevel", attribute.String("user.id", userID.String()))
	defer func() { endSpan(span, err) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", apperr.NotFound("user %s not found", userID)
	}

	totals, err := uow.TransactionRepository().Totals(ctx, models.LedgerScope{UserIDs: []uuid.UUID{userID}})
	if err != nil {
		return "", fmt.Errorf("failed to aggregate ledger: %w", err)
	}

	level = risk.Classify(user, stats.UserStats(*totals), s.thresholds)
	if level == user.RiskLevel {
		return level, nil
	}

	if err := uow.UserRepository().UpdateRiskLevel(ctx, userID, level); err != nil {
		return "", fmt.Errorf("failed to update risk level: %w", err)
	}
	uow.EventBus().Publish(events.RiskLevelChangedEvent{
		UserID:   userID,
		OldLevel: user.RiskLevel,
		NewLevel: level,
	})

	if err := uow.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userId":   userID,
		"oldLevel": user.RiskLevel,
		"newLevel": level,
	}).Info("Risk level changed")

	return level, nil
}
