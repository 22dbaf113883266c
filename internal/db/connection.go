package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// Connection holds the checkpoint database connection
type Connection struct {
	DB *sql.DB
}

// PoolOptions bounds the connection pool
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	PingTimeout  time.Duration
}

// DefaultPoolOptions returns the pool settings used when none are configured
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{MaxOpenConns: 20, MaxIdleConns: 10, PingTimeout: 10 * time.Second}
}

// DSNFromEnv builds a DSN from the libpq PG* environment variables
func DSNFromEnv() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "mdm")
	password := getEnvOrDefault("PGPASSWORD", "mdm")
	dbname := getEnvOrDefault("PGDATABASE", "mdm")
	sslmode := getEnvOrDefault("PGSSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// NewConnection opens and pings a database connection. An empty dsn falls
// back to DSNFromEnv.
func NewConnection(ctx context.Context, dsn string, pool PoolOptions) (*Connection, error) {
	if dsn == "" {
		dsn = DSNFromEnv()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.PingTimeout <= 0 {
		pool.PingTimeout = DefaultPoolOptions().PingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}

	return &Connection{DB: db}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
