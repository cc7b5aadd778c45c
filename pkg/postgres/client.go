// Package postgres opens the connection pool backing the build registry.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/resilience"
)

// connectTimeout bounds each connection attempt at startup.
const connectTimeout = 5 * time.Second

type Client struct {
	DB *sql.DB
}

// New opens a pool and waits for the server to answer, retrying while it
// starts up.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	c := &Client{DB: db}
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func() error {
		return c.Ping(ctx)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("postgres connected", "host", cfg.Host, "database", cfg.Database)
	return c, nil
}

// Ping checks the server answers within connectTimeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}
