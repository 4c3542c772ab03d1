// Package db opens the Postgres connection, owns the embedded schema migrations and
// classifies driver errors.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Flopsa/digital-doc/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Pool defaults used when the corresponding config value is zero.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute
)

func New(cfg config.DatabaseConfig) (*bun.DB, error) {
	db, err := NewWithDSN(cfg.DSN())
	if err != nil {
		return nil, err
	}

	pool := poolSettings(cfg)
	db.SetMaxOpenConns(pool.maxOpen)
	db.SetMaxIdleConns(pool.maxIdle)
	db.SetConnMaxLifetime(pool.maxLifetime)
	db.SetConnMaxIdleTime(pool.maxIdleTime)

	slog.Info("database pool configured",
		"host", cfg.Host,
		"database", cfg.DBName,
		"max_open_conns", pool.maxOpen,
		"max_idle_conns", pool.maxIdle,
		"conn_max_lifetime", pool.maxLifetime,
		"conn_max_idle_time", pool.maxIdleTime,
	)
	return db, nil
}

// NewWithDSN opens and pings a bun connection for dsn.
func NewWithDSN(dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

type pool struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

func poolSettings(cfg config.DatabaseConfig) pool {
	p := pool{
		maxOpen:     cfg.MaxOpenConns,
		maxIdle:     cfg.MaxIdleConns,
		maxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
		maxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Second,
	}
	if p.maxOpen == 0 {
		p.maxOpen = defaultMaxOpenConns
	}
	if p.maxIdle == 0 {
		p.maxIdle = defaultMaxIdleConns
	}
	if p.maxIdle > p.maxOpen {
		p.maxIdle = p.maxOpen
	}
	if p.maxLifetime == 0 {
		p.maxLifetime = defaultConnMaxLifetime
	}
	if p.maxIdleTime == 0 {
		p.maxIdleTime = defaultConnMaxIdleTime
	}
	return p
}
