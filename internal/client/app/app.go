// Package app assembles the BandTrack client: the local store with its seed
// catalog, the sync engine, the versioned shell cache, and the update
// coordinator, exposed through a small local HTTP host.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/config"
	"github.com/mzhdanov/bandtrack/internal/client/seed"
	"github.com/mzhdanov/bandtrack/internal/client/store"
	"github.com/mzhdanov/bandtrack/internal/client/swcache"
	"github.com/mzhdanov/bandtrack/internal/client/syncer"
	"github.com/mzhdanov/bandtrack/internal/client/updater"
	"github.com/mzhdanov/bandtrack/internal/client/workout"
	"github.com/mzhdanov/bandtrack/internal/logging"
)

// shellPrecache lists the assets the first worker warms on install. Misses
// are tolerated; the list only primes the offline experience.
var shellPrecache = []string{"/", "/manifest.webmanifest", "/favicon.png"}

type App struct {
	cfg     *config.Config
	logger  logging.Logger
	store   *store.Store
	sync    *syncer.Syncer
	workout *workout.Service
	host    *ShellHost
}

func NewApp(cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := seed.Apply(ctx, st); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	var userID string
	if cfg.Token != "" {
		userID, err = syncer.UserIDFromToken(cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
	}

	transport := syncer.NewHTTPTransport(cfg.ServerAddr, cfg.Token)
	sync := syncer.New(st, transport, userID, logger, syncer.WithDebounce(cfg.SyncDebounce))

	cache, err := swcache.NewCache(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	upstream := newHTTPUpstream(cfg.ServerAddr)
	host := NewShellHost(cache, upstream, shellPrecache, logger)

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		sync:    sync,
		workout: workout.NewService(st, sync, logger),
		host:    host,
	}, nil
}

// Workout exposes the domain service for embedding callers.
func (app *App) Workout() *workout.Service { return app.workout }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting client...", "server", app.cfg.ServerAddr, "local", app.cfg.LocalAddr)

	app.initSignalHandler(cancelFunc)

	if err := app.host.Start(ctx); err != nil {
		app.logger.Error(ctx, "shell host start failed", "error", err)
		return
	}

	upd := updater.New(
		updater.NewMemorySession(),
		app.host,
		app.host,
		app.host.Version(),
		func() bool { return app.sync.State().Online },
		app.logger,
	)
	upd.ClearUpdating()

	go app.sync.Watch(ctx, app.cfg.OnlineCheckInterval)
	app.sync.TriggerSync()

	go app.watchForUpdates(ctx, upd)

	srv := &http.Server{Addr: app.cfg.LocalAddr, Handler: app.host}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, err.Error())
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	app.logger.Info(ctx, "Client stopped")
}

// watchForUpdates polls the deployment version and hands detected updates to
// the coordinator; it acts at most once per process run.
func (app *App) watchForUpdates(ctx context.Context, upd *updater.Updater) {
	ticker := time.NewTicker(app.cfg.OnlineCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			avail, err := app.host.UpdateAvailable(ctx)
			if err != nil || !avail {
				continue
			}
			upd.OnUpdateAvailable(ctx, true)
		}
	}
}
