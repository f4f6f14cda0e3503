// Package storage assembles the payment store used by the server and the
// operator CLI: the MySQL backend as primary and the flat file as secondary,
// behind a failover coordinator.
package storage

import (
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/iliyamo/club-payments/internal/config"
	"github.com/iliyamo/club-payments/internal/database"
	"github.com/iliyamo/club-payments/internal/failover"
	"github.com/iliyamo/club-payments/internal/repository"
)

// Stack is an opened payment store and the connection manager behind it.
type Stack struct {
	*failover.Coordinator
	DB *database.Manager
}

// Close releases the database connection.
func (s *Stack) Close() error { return s.DB.Close() }

// Open builds the store without touching the database; the first
// operation connects lazily and a database that is down only degrades the
// primary.
func Open(cfg config.StorageConfig, log zerolog.Logger, opts ...failover.Option) *Stack {
	db := database.NewManager(database.Config{
		Driver:          "mysql",
		DSN:             database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName),
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: 5 * time.Minute,
	}, log)
	return OpenWith(db, "mysql", cfg.PaymentsFile, log, opts...)
}

// OpenWith builds the store over an existing connection manager.
func OpenWith(db *database.Manager, primaryName, paymentsFile string, log zerolog.Logger, opts ...failover.Option) *Stack {
	opts = append([]failover.Option{failover.WithLogger(log)}, opts...)
	c := failover.New(
		failover.Backend{Name: primaryName, Store: repository.NewPaymentRepo(db)},
		failover.Backend{Name: repository.BackendFile, Store: repository.NewPaymentFileRepo(paymentsFile)},
		opts...,
	)
	return &Stack{Coordinator: c, DB: db}
}
