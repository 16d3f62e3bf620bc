package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/config"
	"github.com/alfredjeanlab/schoolline/internal/events"
	"github.com/alfredjeanlab/schoolline/internal/provider"
	"github.com/alfredjeanlab/schoolline/internal/provider/fixture"
	"github.com/alfredjeanlab/schoolline/internal/reaper"
	"github.com/alfredjeanlab/schoolline/internal/server"
	"github.com/alfredjeanlab/schoolline/internal/store"
	"github.com/alfredjeanlab/schoolline/internal/store/memory"
	"github.com/alfredjeanlab/schoolline/internal/store/postgres"
	"github.com/alfredjeanlab/schoolline/internal/store/redis"
	slsync "github.com/alfredjeanlab/schoolline/internal/sync"
	"github.com/alfredjeanlab/schoolline/internal/ussd"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthWatchInterval = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the USSD webhook server",
	GroupID: "system",
	Long: `Start the USSD webhook server.

Configuration is read from SL_* environment variables. With no
configuration the server uses the in-memory store and the built-in
fixture school, which is enough to try the menus with 'sl dial'.`,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := setupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// setupLogger builds the process logger from SL_LOG_LEVEL and SL_LOG_FORMAT.
func setupLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("SL_LOG_LEVEL: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("SL_LOG_FORMAT: unknown format %q (must be text or json)", format)
	}
}

// backend is the opened persistence layer plus whatever must be closed and
// health-checked alongside it.
type backend struct {
	store     store.Store
	providers provider.Set
	checks    map[string]server.Pinger
	closers   []io.Closer
}

func (b *backend) Close(logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			logger.Error("error closing backend", "err", err)
		}
	}
}

// openBackend opens the session store selected by SL_STORE and the provider
// selected by SL_PROVIDER. A live provider shares the postgres store's pool
// when both are configured.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{checks: map[string]server.Pinger{}}
	var pg *postgres.PostgresStore

	switch cfg.Store {
	case config.StorePostgres:
		s, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg = s
		b.store = s
		b.checks["postgres"] = s
		b.closers = append(b.closers, s)
	case config.StoreRedis:
		s, err := redis.New(ctx, cfg.RedisURL, redis.Options{SessionTTL: cfg.SessionTTL})
		if err != nil {
			return nil, err
		}
		b.store = s
		b.checks["redis"] = s
		b.closers = append(b.closers, s)
	default:
		b.store = memory.New(memory.Options{
			SessionCapacity: cfg.SessionCacheSize,
			SessionTTL:      cfg.SessionTTL,
		})
		b.closers = append(b.closers, b.store)
	}
	logger.Info("session store opened", "backend", cfg.Store)

	switch cfg.Provider {
	case config.ProviderLive:
		if pg == nil {
			s, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				b.Close(logger)
				return nil, err
			}
			pg = s
			b.checks["postgres"] = s
			b.closers = append(b.closers, s)
		}
		b.providers = provider.FromDirectory(pg.Directory())
	default:
		b.providers = provider.FromDirectory(fixture.New())
	}
	logger.Info("provider ready", "provider", cfg.Provider)

	return b, nil
}

// openPublisher connects to NATS when SL_NATS_URL is set.
func openPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("events disabled (SL_NATS_URL not set)")
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return pub, nil
}

// syncDestinations builds the export targets configured by SL_SYNC_*.
// A destination that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []slsync.Destination {
	var dests []slsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := slsync.NewS3Destination(ctx, slsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync destination enabled", "dest", d.Name())
		}
	}
	if cfg.SyncGitRepo != "" {
		d := slsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
		dests = append(dests, d)
		logger.Info("sync destination enabled", "dest", d.Name())
	}
	return dests
}

// serve runs every configured component until ctx is cancelled, then shuts
// them down in reverse order.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(logger)

	nats, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := nats.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}()
	if p, ok := nats.(server.Pinger); ok {
		b.checks["nats"] = p
	}

	hub := server.NewHub()
	engine, err := ussd.New(ussd.Options{
		Sessions:            b.store,
		Turns:               b.store,
		Providers:           b.providers,
		Publisher:           hub.Publisher(nats),
		Logger:              logger,
		CountryCode:         cfg.CountryCode,
		DefaultOrganization: cfg.DefaultOrganization,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	})
	if err != nil {
		return err
	}

	workers := map[string]server.StatusFunc{}
	var sweeper *reaper.Reaper
	if p, ok := b.store.(store.Purger); ok {
		sweeper = reaper.New(p, reaper.Config{
			SessionTTL:    cfg.SessionTTL,
			SweepInterval: cfg.SweepInterval,
			Logger:        logger,
		})
		workers["reaper"] = func() any { return sweeper.Stats() }
	}
	var scheduler *slsync.Scheduler
	if cfg.SyncInterval > 0 {
		if dests := syncDestinations(ctx, cfg, logger); len(dests) > 0 {
			scheduler = slsync.NewScheduler(b.store, dests, cfg.SyncInterval, 0, logger)
			workers["sync"] = func() any { return scheduler.Status() }
		}
	}

	srv, err := server.New(server.Options{
		Engine:       engine,
		Turns:        b.store,
		Hub:          hub,
		Checks:       b.checks,
		Workers:      workers,
		Logger:       logger,
		AuthToken:    cfg.AuthToken,
		TurnDeadline: cfg.TurnDeadline,
	})
	if err != nil {
		return err
	}

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	var grpcStop func()
	if cfg.GRPCAddr != "" {
		grpcServer, hs := server.NewGRPCServer(logger)
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = httpServer.Close()
			return err
		}
		go func() {
			logger.Info("gRPC health server listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		go server.WatchHealth(watchCtx, hs, b.checks, healthWatchInterval, logger)
		grpcStop = grpcServer.GracefulStop
	}

	if sweeper != nil {
		sweeper.Start()
		logger.Info("session reaper started", "ttl", cfg.SessionTTL, "interval", cfg.SweepInterval)
	}
	if scheduler != nil {
		scheduler.Start()
		logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	}

	logger.Info("schoolline started",
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"store", cfg.Store,
		"provider", cfg.Provider,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", "err", runErr)
	}

	if scheduler != nil {
		scheduler.Stop()
		logger.Info("sync scheduler stopped")
	}
	if sweeper != nil {
		sweeper.Stop()
		st := sweeper.Stats()
		logger.Info("session reaper stopped", "sweeps", st.Sweeps, "purged", st.Purged)
	}
	cancelWatch()
	if grpcStop != nil {
		grpcStop()
		logger.Info("gRPC server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	return runErr
}
