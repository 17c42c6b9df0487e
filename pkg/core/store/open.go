package store

import (
	"context"
	"fmt"
)

// OpenLedger returns a Postgres ledger when databaseURL is set (migrating its schema),
// otherwise a SQLite ledger at sqlitePath.
func OpenLedger(ctx context.Context, databaseURL, sqlitePath string) (Ledger, error) {
	if databaseURL != "" {
		if err := InitDB(ctx, databaseURL); err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		l := NewPGLedger(GetPool())
		if err := l.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return l, nil
	}
	l, err := NewSQLiteLedger(sqlitePath)
	if err != nil {
		return nil, err
	}
	return l, nil
}
