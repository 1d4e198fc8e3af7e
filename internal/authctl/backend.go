package authctl

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
)

// DBExecutor runs commands against the configured PostgreSQL database.
// OpenDatabase applies migrations, so every command leaves the schema
// current.
type DBExecutor struct {
	db       *sql.DB
	services *server.Services
}

func NewDBExecutor(ctx context.Context, c *config.Config, l logging.Logger) (*DBExecutor, error) {
	m := repomanager.NewPostgresRepositoryManager()

	db, err := server.OpenDatabase(ctx, c.DatabaseDSN, m)
	if err != nil {
		return nil, err
	}

	svc, err := server.BuildServices(dbx.NewDB(db, nil), m, c, l)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DBExecutor{db: db, services: svc}, nil
}

func (e *DBExecutor) Migrate(context.Context) error { return nil }

func (e *DBExecutor) Sweep(ctx context.Context) (*services.SweepResult, error) {
	return e.services.Sweeper.Sweep(ctx)
}

func (e *DBExecutor) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	return e.services.Sessions.Register(ctx, username, email, password)
}

func (e *DBExecutor) Close() error {
	return e.db.Close()
}
