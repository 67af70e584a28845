package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/hmoradi/banking-saga/internal/config"
	"github.com/jmoiron/sqlx"
)

// OpenClickHouse opens the statements store.
func OpenClickHouse(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: empty ClickHouse DSN")
	}
	conn, err := sqlx.Open("clickhouse", cfg.DSN)
	if err != nil {
		return nil, err
	}
	applyPool(conn, cfg)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
