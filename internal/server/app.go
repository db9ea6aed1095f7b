// Package server wires the gophdrive process together: configuration,
// logging, the metadata store and its migrations, the storage engine, the
// optional share cache, services, and the HTTP and gRPC servers. Both
// servers stop gracefully on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/cache"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/httpapi"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"

	gs "github.com/dmitrijs2005/gophdrive/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	shareCache *cache.ShareCache
	httpServer *httpapi.Server
	grpcServer *gs.HealthServer
}

// staticRoute returns the URL path the local engine's base URL points at.
func staticRoute(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "/api") || strings.HasPrefix(p, "/share") {
		return ""
	}
	return p
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	engine, err := storage.New(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	logger.Info(ctx, "storage engine ready", "engine", engine.Name())

	app := &App{config: c, logger: logger, db: db}

	var shareCache services.ShareCache
	if c.RedisAddr != "" {
		sc, err := cache.NewShareCache(ctx, c.RedisAddr, "", 0)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("share cache init error: %w", err)
		}
		app.shareCache = sc
		shareCache = sc
	}

	fs := services.NewFileService(db, rm, engine, logger)
	opts := httpapi.Options{
		Users:          services.NewUserService(db, rm, c),
		Uploads:        services.NewUploadService(engine, fs, logger, c.StorageTimeout),
		Files:          fs,
		Folders:        services.NewFolderService(db, rm, fs, logger),
		Shares:         services.NewShareService(db, rm, shareCache, logger),
		Logger:         logger,
		MaxUploadBytes: c.MaxUploadBytes,
	}
	if le, ok := engine.(*storage.LocalEngine); ok {
		if route := staticRoute(c.LocalBaseURL); route != "" {
			opts.StaticPath = route
			opts.StaticDir = le.Dir()
		}
	}

	app.httpServer = httpapi.NewServer(c.HTTPAddr, logger, opts)
	app.grpcServer = gs.NewHealthServer(c.GRPCAddr, logger, db, 0)
	return app, nil
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
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.shareCache != nil {
		if err := app.shareCache.Close(); err != nil {
			app.logger.Warn(ctx, "share cache close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
}
