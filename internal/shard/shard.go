package shard

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pollwise/acdash/internal/model"
)

// ErrUnavailable marks a shard database that could not be reached. Results
// derived from it are transient failures and must never be cached.
var ErrUnavailable = errors.New("shard unavailable")

// DB is the subset of pgxpool.Pool used against shard databases.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Shard is a resolved partition handle: one constituency's schema on its
// physical shard database. Handles are cheap to copy once resolved.
type Shard struct {
	AC model.Constituency
	DB DB

	schema string
}

// New binds a constituency to its shard database connection. The schema
// name is derived from the constituency id and never leaves this package.
func New(ac model.Constituency, db DB) *Shard {
	return &Shard{
		AC:     ac,
		DB:     db,
		schema: fmt.Sprintf("ac_%d", ac.ID),
	}
}

// Table returns the schema-qualified name of a table inside this
// constituency's partition. All partition naming goes through here;
// callers never interpolate schema names themselves.
func (s *Shard) Table(name string) string {
	return fmt.Sprintf("%s.%s", s.schema, name)
}

// Count runs a count(*) over table with an optional WHERE clause.
func (s *Shard) Count(ctx context.Context, table, where string, args ...any) (int, error) {
	query := `SELECT count(*) FROM ` + s.Table(table)
	if where != "" {
		query += ` WHERE ` + where
	}

	var n int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
