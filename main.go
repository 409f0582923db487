package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"casinometrics/apperr"
	"casinometrics/cmd"
	"casinometrics/config"
	"casinometrics/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling...")
		cancel()
	}()

	if err := cmd.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			log.WithField("code", appErr.Code).Error(err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: casinometrics migrate [up|down|status] [args...]")
	}

	databaseURL := config.Get().GetDatabaseURL()

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil {
				return fmt.Errorf("invalid number of steps %q: %w", os.Args[3], err)
			}
			steps = n
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		status, err := database.MigrateStatus(databaseURL)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"version": status.Version,
			"dirty":   status.Dirty,
			"applied": status.Applied,
		}).Info("Migration status")
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
