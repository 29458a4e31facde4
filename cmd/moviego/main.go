package main

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

	moviegoembed "github.com/air-gapped/moviego/embed"
	"github.com/air-gapped/moviego/internal/cache"
	"github.com/air-gapped/moviego/internal/config"
	"github.com/air-gapped/moviego/internal/fetch"
	"github.com/air-gapped/moviego/internal/logging"
	"github.com/air-gapped/moviego/internal/offline"
	"github.com/air-gapped/moviego/internal/server"
	"github.com/air-gapped/moviego/internal/tmdb"
)

// Set by linker via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	janitorInterval = time.Minute
	installTimeout  = 30 * time.Second
)

func main() {
	// Check for --version before full flag parsing
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Printf("moviego %s (%s) built %s\n", version, commit, date)
			os.Exit(0)
		}
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "moviego: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, slog.LevelInfo)

	if cfg.APIToken == "" {
		slog.Warn("no API token configured; data requests will fail with an auth error")
	}

	slog.Info("config loaded",
		"listen", cfg.Listen,
		"api_base_url", cfg.APIBaseURL,
		"proxy_prefix", cfg.ProxyPrefix,
		"fetch_timeout", cfg.FetchTimeout.String(),
		"max_retries", cfg.MaxRetries,
		"rate_limit", cfg.RateLimit,
		"query_cache_size", cfg.QueryCacheSize,
		"static_origin", cfg.StaticOrigin,
		"cache_version", cfg.CacheVersion,
		"offline_strategy", cfg.OfflineStrategy,
		"offline_store", cfg.OfflineStore,
		"default_theme", cfg.DefaultTheme,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Media API client
	fetchOpts := []fetch.Option{fetch.WithBearerToken(cfg.APIToken)}
	if cfg.RateLimit > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRateLimit(cfg.RateLimit, int(cfg.RateLimit)+1))
	}
	getter := fetch.NewClient(cfg.FetchTimeout, cfg.MaxBodySize, fetchOpts...)
	api := tmdb.NewClient(cfg.APIBaseURL, getter,
		tmdb.WithCache(cache.New(cfg.QueryCacheSize)),
		tmdb.WithRetrier(&tmdb.Retrier{
			MaxRetries: cfg.MaxRetries,
			Backoff:    tmdb.Backoff{Base: cfg.RetryBaseDelay, Max: cfg.RetryMaxDelay},
		}),
		tmdb.WithLogger(logger),
	)
	go api.RunJanitor(ctx, janitorInterval)

	// Offline cache worker
	storage, err := openStorage(cfg)
	if err != nil {
		slog.Error("open offline storage", "error", err)
		os.Exit(1)
	}

	var network http.RoundTripper = http.DefaultTransport
	if cfg.StaticOrigin == "" {
		network = server.NewAssetTransport(moviegoembed.Assets)
	}
	container := offline.NewContainer(network, logger)
	if err := registerWorker(ctx, cfg, container, storage, network, logger); err != nil {
		// Static requests still pass straight through to the origin.
		slog.Warn("offline worker not registered", "error", err)
	}

	srv, err := server.New(cfg, version, server.Deps{
		API:    api,
		Static: container,
		Logger: logger,
	})
	if err != nil {
		slog.Error("create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Handler(),
	}

	// Start server in background
	go func() {
		slog.Info("server started", "listen", cfg.Listen, "version", version)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")

	// Graceful shutdown with 30s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := container.Close(); err != nil {
		slog.Error("close offline worker", "error", err)
	}
	if err := storage.Close(); err != nil {
		slog.Error("close offline storage", "error", err)
	}

	slog.Info("shutdown complete")
}

func openStorage(cfg *config.Config) (offline.Storage, error) {
	if cfg.OfflineStore == "" {
		return offline.NewMemoryStorage(cfg.OfflineQuota), nil
	}
	return offline.OpenSQLite(cfg.OfflineStore, cfg.OfflineQuota)
}

func registerWorker(ctx context.Context, cfg *config.Config, c *offline.Container, storage offline.Storage, network http.RoundTripper, logger *slog.Logger) error {
	origin, err := server.StaticOrigin(cfg)
	if err != nil {
		return err
	}
	w, err := offline.New(offline.Config{
		Version:      cfg.CacheVersion,
		Origin:       origin,
		Manifest:     cfg.Precache,
		Bypass:       offline.NewHostSet(cfg.APIHost()),
		Strategy:     offline.Strategy(cfg.OfflineStrategy),
		CrossOrigin:  cfg.OfflineCrossOrigin,
		MaxEntrySize: cfg.MaxBodySize,
		Logger:       logger,
	}, storage, network)
	if err != nil {
		return err
	}

	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()
	report, err := c.Register(installCtx, w)
	if err != nil {
		_ = w.Close()
		return err
	}
	for _, f := range report.Failed {
		slog.Warn("precache failed", "path", f.Path, "error", f.Err)
	}
	return nil
}
