package migrations

import (
	"context"
	"fmt"

	"pump-agent/internal/storage/postgres"
)

// RunPostgres applies the trade store schema. Files are idempotent.
func RunPostgres(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(postgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
