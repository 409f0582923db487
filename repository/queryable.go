package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casinometrics/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translateConstraintError turns constraint violations into validation errors
func translateConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return apperr.Wrap(apperr.CodeValidation, fmt.Sprintf("%s already exists", constraintSubject(pgErr.ConstraintName)), err).
			WithMetadata("constraint", pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return apperr.Wrap(apperr.CodeValidation, fmt.Sprintf("%s does not exist", constraintSubject(pgErr.ConstraintName)), err).
			WithMetadata("constraint", pgErr.ConstraintName)
	case pgCheckViolation:
		return apperr.Wrap(apperr.CodeValidation, "value out of range", err).
			WithMetadata("constraint", pgErr.ConstraintName)
	}
	return err
}

// constraintSubject extracts the column from postgres default constraint names
// such as users_username_key or users_affiliate_id_fkey
func constraintSubject(name string) string {
	name = strings.TrimSuffix(strings.TrimSuffix(name, "_key"), "_fkey")
	if _, column, ok := strings.Cut(name, "_"); ok {
		return column
	}
	return name
}

// whereClause accumulates AND-ed conditions with positional arguments
type whereClause struct {
	conds []string
	args  []any
}

// arg registers a value and returns its placeholder
func (w *whereClause) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereClause) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// escapeLike escapes the wildcard characters of a LIKE pattern
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
