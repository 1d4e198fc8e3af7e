package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type migrateOnlyManager struct {
	repomanager.RepositoryManager
	err    error
	called bool
}

func (m *migrateOnlyManager) RunMigrations(context.Context, *sql.DB) error {
	m.called = true
	return m.err
}

func withSQLOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" {
			t.Fatalf("unexpected driver %q", driver)
		}
		return db, err
	}
	t.Cleanup(func() { sqlOpen = orig })
}

func TestOpenDatabase_PingsAndMigrates(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	withSQLOpen(t, db, nil)
	m := &migrateOnlyManager{}

	got, err := OpenDatabase(context.Background(), "postgres://x", m)
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.True(t, m.called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDatabase_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	withSQLOpen(t, db, nil)
	m := &migrateOnlyManager{}

	_, err = OpenDatabase(context.Background(), "postgres://x", m)
	require.ErrorContains(t, err, "db ping error")
	assert.False(t, m.called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDatabase_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	withSQLOpen(t, db, nil)

	_, err = OpenDatabase(context.Background(), "postgres://x", &migrateOnlyManager{err: errors.New("boom")})
	require.ErrorContains(t, err, "migration error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDatabase_OpenFailure(t *testing.T) {
	withSQLOpen(t, nil, errors.New("bad dsn"))

	_, err := OpenDatabase(context.Background(), "::", &migrateOnlyManager{})
	require.ErrorContains(t, err, "db open error")
}

func TestBuildServices(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var c config.Config
	c.LoadDefaults()
	c.PasswordHasher = "bcrypt"

	svc, err := BuildServices(dbx.NewDB(db, nil), repomanager.NewPostgresRepositoryManager(), &c, logging.Nop())
	require.NoError(t, err)
	assert.NotNil(t, svc.Sessions)
	assert.NotNil(t, svc.Limiter)
	assert.NotNil(t, svc.Sweeper)
}

func TestBuildServices_RejectsBadConfig(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var c config.Config
	c.LoadDefaults()
	c.PasswordHasher = "md5"
	_, err = BuildServices(dbx.NewDB(db, nil), repomanager.NewPostgresRepositoryManager(), &c, logging.Nop())
	assert.Error(t, err)

	c.LoadDefaults()
	c.AccessTokenSecret = ""
	_, err = BuildServices(dbx.NewDB(db, nil), repomanager.NewPostgresRepositoryManager(), &c, logging.Nop())
	assert.ErrorContains(t, err, "token codec")

	c.LoadDefaults()
	c.LockoutThreshold = 0
	_, err = BuildServices(dbx.NewDB(db, nil), repomanager.NewPostgresRepositoryManager(), &c, logging.Nop())
	assert.ErrorContains(t, err, "lockout threshold")

	c.LoadDefaults()
	c.LoginRateLimit.Window = 0
	_, err = BuildServices(dbx.NewDB(db, nil), repomanager.NewPostgresRepositoryManager(), &c, logging.Nop())
	assert.ErrorContains(t, err, "login rate limit window")
}
