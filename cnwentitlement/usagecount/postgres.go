package usagecount

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement"
)

// PostgresOption configures a PostgresCounter.
type PostgresOption func(*PostgresCounter)

// WithUserArg passes LimitContext.UserID as $1 to the query, for per-user
// limits such as roomsPerGuest.
func WithUserArg() PostgresOption {
	return func(c *PostgresCounter) {
		c.userArg = true
	}
}

// PostgresCounter counts usage with a single-value SQL query,
// e.g. `SELECT COUNT(*) FROM users WHERE active`.
type PostgresCounter struct {
	pool    *pgxpool.Pool
	query   string
	userArg bool
}

// NewPostgresCounter creates a counter running query on pool.
func NewPostgresCounter(pool *pgxpool.Pool, query string, opts ...PostgresOption) *PostgresCounter {
	c := &PostgresCounter{pool: pool, query: query}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PostgresCounter) Count(ctx context.Context, lc cnwentitlement.LimitContext) (int, error) {
	var args []any
	if c.userArg {
		args = append(args, lc.UserID)
	}
	var count int
	if err := c.pool.QueryRow(ctx, c.query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}
