// Package postgres implements store.Store on database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/policy"
	"lotmarket/internal/store"
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

type Options struct {
	// LockTimeout bounds how long a bid placement waits for the lot row lock.
	LockTimeout time.Duration
}

func New(db *sql.DB, opts Options) *Store {
	return &Store{db: db, lockTimeout: opts.LockTimeout}
}

func (s *Store) Close() error { return s.db.Close() }

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scopeClause renders a visibility scope as a WHERE clause over the owner
// columns, numbering placeholders after the args already present.
func scopeClause(scope policy.Scope, args []any, cols ...string) (string, []any) {
	switch {
	case scope.Unrestricted:
		return "", args
	case scope.Empty:
		return " WHERE FALSE", args
	}
	value := scope.UserID
	if scope.CompanyID != 0 {
		value = scope.CompanyID
	}
	args = append(args, value)
	ph := fmt.Sprintf("$%d", len(args))
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = c + " = " + ph
	}
	return " WHERE (" + strings.Join(conds, " OR ") + ")", args
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, dberr.Translate(err)
	}
	return res.RowsAffected()
}

func insertReturningID(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, dberr.Translate(err)
	}
	return id, nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// prefixed qualifies every column of a comma separated list with p.
func prefixed(p, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = p + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
