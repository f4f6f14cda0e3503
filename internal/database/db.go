// Package database owns the relational connection handle.  The Manager
// opens it lazily on first use, validates it before every reuse and
// reopens it when validation fails, so a database that comes back after an
// outage is picked up by the next caller without a restart.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Conn after Close has been called.
var ErrClosed = errors.New("connection manager closed")

// Config describes how to reach the relational engine.
type Config struct {
	Driver          string        // database/sql driver name, "mysql" in production
	DSN             string        // driver specific data source name
	MaxOpenConns    int           // pool ceiling; 0 keeps the driver default
	ConnMaxLifetime time.Duration // 0 keeps connections forever
	PingTimeout     time.Duration // validation timeout, defaults to 5s
}

// MySQLDSN builds the DSN used in production.  parseTime=true maps
// DATETIME to time.Time and loc=UTC keeps times consistent.
func MySQLDSN(user, pass, host, port, name string) string {
	c := mysql.NewConfig()
	c.User = user
	c.Passwd = pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, port)
	c.DBName = name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Manager hands out the shared *sql.DB.  All methods are safe for
// concurrent use; open, validate and close are serialized.
type Manager struct {
	cfg  Config
	log  zerolog.Logger
	open func(driver, dsn string) (*sql.DB, error)

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewManager returns a Manager that has not connected yet.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return &Manager{cfg: cfg, log: log.With().Str("component", "database").Logger(), open: sql.Open}
}

// Conn returns a live handle, opening or reopening it when it is absent or
// fails a ping.
func (m *Manager) Conn(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.db != nil {
		err := m.ping(ctx, m.db)
		if err == nil {
			return m.db, nil
		}
		m.log.Warn().Err(err).Msg("connection failed validation, reopening")
		_ = m.db.Close()
		m.db = nil
	}

	db, err := m.open(m.cfg.Driver, m.cfg.DSN)
	if err != nil {
		return nil, err
	}
	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
		db.SetMaxIdleConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}
	if err := m.ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	m.db = db
	m.log.Debug().Str("driver", m.cfg.Driver).Msg("connection opened")
	return db, nil
}

func (m *Manager) ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// Close tears the handle down.  Later calls to Conn return ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
