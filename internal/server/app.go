// Package server initializes and runs the memo relay: it opens the configured
// store, starts the HTTP gateway, the gRPC health endpoint and the expiry
// sweeper, and tears everything down on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/cells"
	"github.com/dmitrijs2005/memorelay/internal/server/config"
	"github.com/dmitrijs2005/memorelay/internal/server/httpapi"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
	"github.com/dmitrijs2005/memorelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memorelay/internal/server/services"

	gs "github.com/dmitrijs2005/memorelay/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	manager     repomanager.RepositoryManager
	locator     *cells.Locator
	sweeper     *cells.Sweeper
	memoService *services.MemoService
}

// NewApp opens the store named by c.StorageDriver and runs its migrations.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	m, err := repomanager.New(ctx, repomanager.Options{
		Driver:      c.StorageDriver,
		DatabaseDSN: c.DatabaseDSN,
		S3: memos.S3Options{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return newApp(c, logger, m), nil
}

func newApp(c *config.Config, logger logging.Logger, m repomanager.RepositoryManager) *App {
	repo := m.Memos()
	locator := cells.NewLocator(repo, cells.WithLogger(logger.With("module", "cells")))

	return &App{
		config:      c,
		logger:      logger,
		manager:     m,
		locator:     locator,
		sweeper:     cells.NewSweeper(repo, c.SweepInterval, nil, logger.With("module", "sweeper")),
		memoService: services.NewMemoService(locator, repo, logger.With("module", "memo_service")),
	}
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.memoService, app.config.StaticDir, app.config.MaxBodyBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.memoService, app.config.HealthCheckInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or a server fails, then stops
// expiry timers and closes the store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	app.locator.Stop()
	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "store close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
