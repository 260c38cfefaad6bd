// Package server wires configuration, storage, services and the gRPC
// endpoint into a runnable GophSync backend and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/server/config"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsync/internal/server/services"

	gs "github.com/dmitrijs2005/gophsync/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	logs   *logging.Handle
	db     *sql.DB

	userService *services.UserService
	itemService *services.ItemService
	hub         *services.Hub
}

// NewApp builds the logger, opens the configured storage and runs
// migrations. Memory storage runs without a database handle.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logs, err := logging.New(c.Log)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)
	switch c.Storage {
	case config.StorageMemory:
		rm = repomanager.NewMemoryRepositoryManager()
	case config.StoragePostgres:
		db, err = repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			logs.Close()
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			db.Close()
			logs.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
	default:
		logs.Close()
		return nil, fmt.Errorf("unknown storage %q", c.Storage)
	}

	hub := services.NewHub(c.SubscriptionBuffer)

	return &App{
		config:      c,
		logger:      logger,
		logs:        logs,
		db:          db,
		userService: services.NewUserService(db, rm, c),
		itemService: services.NewItemService(db, rm, hub, c.ListPageMax, logger.With("module", "items")),
		hub:         hub,
	}, nil
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

// watchConfig applies log level changes from the config file while the
// server runs. Everything else needs a restart.
func (app *App) watchConfig(ctx context.Context) {
	if app.config.ConfigFile == "" {
		return
	}
	w, err := config.Watch(app.config.ConfigFile, app.logger, func(c *config.Config) {
		if err := app.logs.SetLevel(c.Log.Level); err != nil {
			app.logger.Warn(ctx, "bad log level in config", "error", err)
			return
		}
		app.logger.Info(ctx, "log level changed", "level", c.Log.Level)
	})
	if err != nil {
		app.logger.Warn(ctx, "config watch disabled", "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		w.Close()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.itemService, app.hub)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or the server fails, then
// releases storage and flushes the log.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)
	app.watchConfig(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
	app.logger.Info(context.Background(), "Stopped")
	app.logs.Close()
}
