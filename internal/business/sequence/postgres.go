package sequence

import (
	"context"
	"database/sql"
	"fmt"

	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/platform/tx"
)

// PostgresAllocator persists year counters in the year_counters table.
type PostgresAllocator struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed allocator.
func NewPostgres(db *sql.DB) *PostgresAllocator {
	return &PostgresAllocator{db: db}
}

// Allocate upserts the year's counter and returns the post-increment value in
// one statement. The row lock taken by the upsert serializes concurrent
// callers for the same year; other years are unaffected. When ctx carries a
// transaction the bump commits or rolls back with it.
func (a *PostgresAllocator) Allocate(ctx context.Context, year int) (int64, error) {
	if err := validateYear(year); err != nil {
		return 0, err
	}
	query := `
		INSERT INTO year_counters (year, last_value, created_at, updated_at)
		VALUES ($1, 1, NOW(), NOW())
		ON CONFLICT (year) DO UPDATE SET
			last_value = year_counters.last_value + 1,
			updated_at = NOW()
		RETURNING last_value
	`
	var value int64
	if err := tx.Exec(ctx, a.db).QueryRowContext(ctx, query, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment year counter %d: %w: %w", year, sentinel.ErrUnavailable, err)
	}
	return value, nil
}
