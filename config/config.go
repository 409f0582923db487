package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"casinometrics/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "text" or "json"

	// Revenue rates
	CommissionRate decimal.Decimal `env:"COMMISSION_RATE" envDefault:"0.30"`
	NGRRate        decimal.Decimal `env:"NGR_RATE" envDefault:"0.85"`

	// Ranking populations and slice sizes
	TopUsersPopulation    int `env:"TOP_USERS_POPULATION" envDefault:"100"`
	TopUsersSize          int `env:"TOP_USERS_SIZE" envDefault:"5"`
	LeaderboardPopulation int `env:"LEADERBOARD_POPULATION" envDefault:"200"`
	LeaderboardSize       int `env:"LEADERBOARD_SIZE" envDefault:"50"`

	// Listing defaults
	DefaultUserLimit       int `env:"DEFAULT_USER_LIMIT" envDefault:"100"`
	MaxListLimit           int `env:"MAX_LIST_LIMIT" envDefault:"1000"`
	DefaultActivityLimit   int `env:"DEFAULT_ACTIVITY_LIMIT" envDefault:"20"`
	UserDetailTransactions int `env:"USER_DETAIL_TRANSACTIONS" envDefault:"50"`
	StatsConcurrency       int `env:"STATS_CONCURRENCY" envDefault:"8"`

	// Game health
	RTPWarningThreshold float64 `env:"RTP_WARNING_THRESHOLD" envDefault:"98"`

	// Risk thresholds
	RiskVIPProfit     decimal.Decimal `env:"RISK_VIP_PROFIT" envDefault:"5000"`
	RiskHighDeposited decimal.Decimal `env:"RISK_HIGH_DEPOSITED" envDefault:"20000"`
	RiskHighLoss      decimal.Decimal `env:"RISK_HIGH_LOSS" envDefault:"-10000"`

	// Calendar used for "today" and time series buckets; empty means server local
	Timezone string `env:"TIMEZONE"`

	// Optional integrations
	NATSServers  string `env:"NATS_SERVERS"`
	NATSToken    string `env:"NATS_TOKEN"`
	OTELEndpoint string `env:"OTEL_ENDPOINT"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the calendar used for day boundaries.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// load loads configuration from the environment, after an optional .env file
func load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Environment != "test" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
		}
	}
	if c.StatsConcurrency < 1 {
		return fmt.Errorf("STATS_CONCURRENCY must be at least 1")
	}
	if c.TopUsersSize < 1 || c.LeaderboardSize < 1 {
		return fmt.Errorf("ranking sizes must be at least 1")
	}
	if c.MaxListLimit < c.DefaultUserLimit {
		return fmt.Errorf("MAX_LIST_LIMIT must not be below DEFAULT_USER_LIMIT")
	}
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a config with the production defaults, suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		CommissionRate:         decimal.RequireFromString("0.30"),
		NGRRate:                decimal.RequireFromString("0.85"),
		TopUsersPopulation:     100,
		TopUsersSize:           5,
		LeaderboardPopulation:  200,
		LeaderboardSize:        50,
		DefaultUserLimit:       100,
		MaxListLimit:           1000,
		DefaultActivityLimit:   20,
		UserDetailTransactions: 50,
		StatsConcurrency:       4,
		RTPWarningThreshold:    98,
		RiskVIPProfit:          decimal.NewFromInt(5000),
		RiskHighDeposited:      decimal.NewFromInt(20000),
		RiskHighLoss:           decimal.NewFromInt(-10000),
		Timezone:               "UTC",
		Environment:            "test",
	}
}
