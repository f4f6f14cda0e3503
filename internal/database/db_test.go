package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteManager(t *testing.T) (*Manager, *int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payments.db")
	m := NewManager(Config{Driver: "sqlite3", DSN: path, MaxOpenConns: 1}, zerolog.Nop())
	opens := 0
	m.open = func(driver, dsn string) (*sql.DB, error) {
		opens++
		return sql.Open(driver, dsn)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, &opens
}

func TestManagerOpensLazilyAndReuses(t *testing.T) {
	m, opens := newSQLiteManager(t)
	require.Equal(t, 0, *opens)

	ctx := context.Background()
	first, err := m.Conn(ctx)
	require.NoError(t, err)
	second, err := m.Conn(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, *opens)
}

func TestManagerReopensAfterFailedValidation(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("server has gone away"))

	path := filepath.Join(t.TempDir(), "payments.db")
	m := NewManager(Config{Driver: "sqlite3", DSN: path}, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })
	calls := 0
	m.open = func(driver, dsn string) (*sql.DB, error) {
		calls++
		if calls == 1 {
			return mockDB, nil
		}
		return sql.Open(driver, dsn)
	}

	ctx := context.Background()
	first, err := m.Conn(ctx)
	require.NoError(t, err)
	require.Same(t, mockDB, first)

	second, err := m.Conn(ctx)
	require.NoError(t, err)
	assert.NotSame(t, mockDB, second)
	assert.Equal(t, 2, calls)
}

func TestManagerKeepsConnectionWhenCallerGivesUp(t *testing.T) {
	m, opens := newSQLiteManager(t)
	first, err := m.Conn(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Conn(ctx)
	require.ErrorIs(t, err, context.Canceled)

	again, err := m.Conn(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, *opens)
}

func TestManagerOpenFailureIsReturned(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	m := NewManager(Config{Driver: "mysql"}, zerolog.Nop())
	m.open = func(string, string) (*sql.DB, error) { return mockDB, nil }

	_, err = m.Conn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerClosed(t *testing.T) {
	m, _ := newSQLiteManager(t)
	_, err := m.Conn(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = m.Conn(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN("club", "secret", "db", "3306", "payments")
	assert.Contains(t, dsn, "club:secret@tcp(db:3306)/payments")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
