package counter

import (
	"context"
	"database/sql"
	"fmt"
)

func ensureCounterSchema(ctx context.Context, conn *sql.DB, seeded ...string) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS counters (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0 CHECK (value >= 0)
		)`,
	}

	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema exec failed: %w", err)
		}
	}

	for _, name := range seeded {
		if _, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO counters (key, value) VALUES (?, 0)`, name); err != nil {
			return fmt.Errorf("seeding counter %s failed: %w", name, err)
		}
	}
	return nil
}
