package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the shared connection pool. An empty url falls back to DATABASE_URL.
func InitDB(ctx context.Context, url string) error {
	var err error
	once.Do(func() {
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(url)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return
		}
		err = pool.Ping(ctx)
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
