// Package server wires configuration, storage, services and the two
// request boundaries (gRPC and HTTP) into a runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/sessionkeeper/internal/server/grpc"
)

// sqlOpen is replaced in tests.
var sqlOpen = sql.Open

// Services is the set of long-lived domain services built from one config.
type Services struct {
	Sessions *services.SessionService
	Limiter  *services.RateLimiter
	Sweeper  *services.Sweeper
}

// OpenDatabase connects to PostgreSQL through pgx and applies migrations.
func OpenDatabase(ctx context.Context, dsn string, m repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}

// BuildServices assembles the domain services on top of db.
func BuildServices(db dbx.Transactor, m repomanager.RepositoryManager, c *config.Config, l logging.Logger) (*Services, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	hasher, err := cryptox.NewPasswordHasher(c.PasswordHasher)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		Issuer:         c.Issuer,
		AccessSecret:   []byte(c.AccessTokenSecret),
		RememberSecret: []byte(c.RememberTokenSecret),
		AccessTTL:      c.AccessTokenValidity,
		RememberTTL:    c.RememberTokenValidity,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	lockout := services.NewLockout(db, m, c.LockoutThreshold, c.LockoutDuration, l)

	sessions, err := services.NewSessionService(db, m, codec, hasher, lockout,
		services.SessionConfig{PasswordResetValidity: c.PasswordResetValidity}, l)
	if err != nil {
		return nil, err
	}

	return &Services{
		Sessions: sessions,
		Limiter:  services.NewRateLimiter(db, m, l),
		Sweeper:  services.NewSweeper(db, m, c.WidestRateWindow(), l),
	}, nil
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	services *Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.Debug)

	m := repomanager.NewPostgresRepositoryManager()

	db, err := OpenDatabase(ctx, c.DatabaseDSN, m)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	svc, err := BuildServices(dbx.NewDB(db, nil), m, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("service init error: %w", err)
	}

	return &App{config: c, logger: logger, db: db, services: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger,
		app.services.Sessions, app.services.Limiter, app.config.RateLimitPolicy(), app.config.Debug)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	if !app.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	h := httpapi.NewHandler(app.logger, app.services.Sessions, app.services.Limiter,
		app.config.RateLimitPolicy(), app.config.Debug)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, h, app.config.CORSAllowedOrigins)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run serves both boundaries until a signal arrives or one of them fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
