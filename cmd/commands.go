package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"casinometrics/apperr"
	"casinometrics/models"
	"casinometrics/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errUsage = errors.New(`usage: casinometrics <command> [args...]

commands:
  migrate up|down [N]|status
  append [-game ID] [-at RFC3339] <userID> <type> <amount>
  query [-user ID] [-game ID] [-type T] [-limit N] [-offset N] [-asc]
  create user [-affiliate ID] [-risk LEVEL] [-status STATUS] <username> <email>
  create game <name> <type>
  create affiliate <name> <code>
  risk <userID>
  reconcile [-apply] [userID]
  reconcile -history N
  report users [-limit N] [-offset N] [-search S]
  report user|game|affiliate <id>
  report games|affiliates|platform|top|leaderboard
  report activity [-limit N]
  report analytics [-days N]`)

// app holds the services the commands run against
type app struct {
	ledger    service.LedgerService
	registry  service.RegistryService
	reports   service.ReportService
	reconcile service.ReconciliationService
	loc       *time.Location
	now       func() time.Time
}

func (a *app) dispatch(ctx context.Context, args []string, out io.Writer) error {
	var (
		result any
		err    error
	)

	switch args[0] {
	case "append":
		result, err = a.appendCmd(ctx, args[1:])
	case "query":
		result, err = a.queryCmd(ctx, args[1:])
	case "create":
		result, err = a.createCmd(ctx, args[1:])
	case "risk":
		result, err = a.riskCmd(ctx, args[1:])
	case "reconcile":
		result, err = a.reconcileCmd(ctx, args[1:])
	case "report":
		result, err = a.reportCmd(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
	if err != nil {
		return err
	}

	return writeJSON(out, result)
}

func (a *app) appendCmd(ctx context.Context, args []string) (any, error) {
	fs := newFlagSet("append")
	gameID := fs.String("game", "", "game the transaction belongs to")
	at := fs.String("at", "", "transaction time, RFC3339 (default now)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 3 {
		return nil, errUsage
	}

	userID, err := parseID("user", fs.Arg(0))
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(fs.Arg(2))
	if err != nil {
		return nil, apperr.Validation("amount %q is not a number", fs.Arg(2))
	}

	tx := &models.Transaction{
		UserID: userID,
		Type:   models.TransactionType(fs.Arg(1)),
		Amount: amount,
	}
	if *gameID != "" {
		id, err := parseID("game", *gameID)
		if err != nil {
			return nil, err
		}
		tx.GameID = &id
	}
	if *at != "" {
		ts, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return nil, apperr.Validation("time %q is not RFC3339", *at)
		}
		tx.Timestamp = ts.UTC()
	}

	return a.ledger.Append(ctx, tx)
}

func (a *app) queryCmd(ctx context.Context, args []string) (any, error) {
	fs := newFlagSet("query")
	userID := fs.String("user", "", "only this user's entries")
	gameID := fs.String("game", "", "only this game's entries")
	types := fs.String("type", "", "comma separated transaction types")
	limit := fs.Int("limit", 50, "maximum entries, 0 for all")
	offset := fs.Int("offset", 0, "entries to skip")
	asc := fs.Bool("asc", false, "oldest first")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	filter := models.TransactionFilter{Limit: *limit, Offset: *offset, Ascending: *asc}
	if *userID != "" {
		id, err := parseID("user", *userID)
		if err != nil {
			return nil, err
		}
		filter.UserID = &id
	}
	if *gameID != "" {
		id, err := parseID("game", *gameID)
		if err != nil {
			return nil, err
		}
		filter.GameID = &id
	}
	if *types != "" {
		for _, t := range strings.Split(*types, ",") {
			filter.Types = append(filter.Types, models.TransactionType(strings.TrimSpace(t)))
		}
	}

	return a.ledger.Query(ctx, filter)
}

func (a *app) createCmd(ctx context.Context, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}

	switch args[0] {
	case "user":
		fs := newFlagSet("create user")
		affiliate := fs.String("affiliate", "", "referring affiliate id")
		riskLevel := fs.String("risk", "", "initial risk level (default Low)")
		status := fs.String("status", "", "account status (default Active)")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
		if fs.NArg() != 2 {
			return nil, errUsage
		}

		newUser := models.NewUser{
			Username:  fs.Arg(0),
			Email:     fs.Arg(1),
			RiskLevel: models.RiskLevel(*riskLevel),
			Status:    models.UserStatus(*status),
		}
		if *affiliate != "" {
			id, err := parseID("affiliate", *affiliate)
			if err != nil {
				return nil, err
			}
			newUser.AffiliateID = &id
		}
		return a.registry.CreateUser(ctx, newUser)
	case "game":
		if len(args) != 3 {
			return nil, errUsage
		}
		return a.registry.CreateGame(ctx, args[1], models.GameType(args[2]))
	case "affiliate":
		if len(args) != 3 {
			return nil, errUsage
		}
		return a.registry.CreateAffiliate(ctx, args[1], args[2])
	default:
		return nil, fmt.Errorf("unknown entity %q\n%w", args[0], errUsage)
	}
}

func (a *app) riskCmd(ctx context.Context, args []string) (any, error) {
	if len(args) != 1 {
		return nil, errUsage
	}
	userID, err := parseID("user", args[0])
	if err != nil {
		return nil, err
	}

	level, err := a.registry.RefreshRiskLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"userId": userID, "riskLevel": level}, nil
}

func (a *app) reconcileCmd(ctx context.Context, args []string) (any, error) {
	fs := newFlagSet("reconcile")
	apply := fs.Bool("apply", false, "overwrite drifted caches with the ledger projection")
	history := fs.Int("history", 0, "show the last N recorded runs instead of reconciling")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *history > 0 {
		return a.reconcile.History(ctx, *history)
	}

	switch fs.NArg() {
	case 0:
		return a.reconcile.ReconcileAll(ctx, *apply)
	case 1:
		userID, err := parseID("user", fs.Arg(0))
		if err != nil {
			return nil, err
		}
		return a.reconcile.Reconcile(ctx, userID, *apply)
	default:
		return nil, errUsage
	}
}

func (a *app) reportCmd(ctx context.Context, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	name, rest := args[0], args[1:]

	switch name {
	case "users":
		fs := newFlagSet("report users")
		limit := fs.Int("limit", 0, "page size (default from configuration)")
		offset := fs.Int("offset", 0, "rows to skip")
		search := fs.String("search", "", "case-insensitive username or email fragment")
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		return a.reports.ListUsers(ctx, *limit, *offset, *search)
	case "user", "game", "affiliate":
		if len(rest) != 1 {
			return nil, errUsage
		}
		id, err := parseID(name, rest[0])
		if err != nil {
			return nil, err
		}
		switch name {
		case "user":
			return a.reports.GetUser(ctx, id)
		case "game":
			return a.reports.GetGame(ctx, id)
		default:
			return a.reports.GetAffiliate(ctx, id)
		}
	case "games":
		return a.reports.ListGames(ctx)
	case "affiliates":
		return a.reports.ListAffiliates(ctx)
	case "platform":
		return a.reports.PlatformStats(ctx)
	case "top":
		return a.reports.TopUsers(ctx)
	case "leaderboard":
		return a.reports.Leaderboard(ctx)
	case "activity":
		fs := newFlagSet("report activity")
		limit := fs.Int("limit", 0, "entries (default from configuration)")
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		return a.reports.RecentActivity(ctx, *limit)
	case "analytics":
		fs := newFlagSet("report analytics")
		days := fs.Int("days", 90, "calendar days to cover, ending today")
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		from, to, err := analyticsRange(a.now(), a.loc, *days)
		if err != nil {
			return nil, err
		}
		return a.reports.Analytics(ctx, from, to)
	default:
		return nil, fmt.Errorf("unknown report %q\n%w", name, errUsage)
	}
}

// analyticsRange covers the last days calendar days of loc, today included
func analyticsRange(now time.Time, loc *time.Location, days int) (time.Time, time.Time, error) {
	if days < 1 {
		return time.Time{}, time.Time{}, apperr.Validation("days must be at least 1")
	}
	today := service.GetCurrentDayStart(now, loc)
	return today.AddDate(0, 0, 1-days), today.AddDate(0, 0, 1), nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("%s id %q is not a UUID", kind, raw)
	}
	return id, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
