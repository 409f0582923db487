package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"casinometrics/config"
	"casinometrics/database"
	"casinometrics/events"
	"casinometrics/natsbridge"
	"casinometrics/repository"
	"casinometrics/service"
	"casinometrics/telemetry"

	log "github.com/sirupsen/logrus"
)

const serviceName = "casinometrics"

// Run wires the application and executes one command
func Run(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.Get()
	configureLogging(cfg)

	if len(args) == 0 {
		return errUsage
	}

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}()

	log.Debug("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eventBus := events.NewBus()

	if cfg.NATSServers != "" {
		client := natsbridge.NewClient(cfg.NATSServers, cfg.NATSToken)
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close NATS connection")
			}
		}()
		natsbridge.NewForwarder(client).Attach(eventBus)
		log.WithField("servers", cfg.NATSServers).Debug("Forwarding ledger events to NATS")
	}

	// Handlers must finish before NATS and the database close
	defer eventBus.Wait()

	a := newApp(db, eventBus, cfg)
	return a.dispatch(ctx, args, out)
}

// newApp builds the services over the connection pool
func newApp(db *database.DB, eventBus *events.Bus, cfg *config.Config) *app {
	users := repository.NewUserRepository(db)
	games := repository.NewGameRepository(db)
	affiliates := repository.NewAffiliateRepository(db)
	txs := repository.NewTransactionRepository(db)
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	return &app{
		ledger:    service.NewLedgerService(uowFactory, txs),
		registry:  service.NewRegistryService(uowFactory, users, cfg),
		reports:   service.NewReportService(users, games, affiliates, txs, cfg),
		reconcile: service.NewReconciliationService(uowFactory, users, repository.NewReconciliationRunRepository(db)),
		loc:       cfg.Location(),
		now:       service.SystemClock,
	}
}

// configureLogging applies the level and format from configuration. Logs go
// to stderr so command output on stdout stays machine readable.
func configureLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
