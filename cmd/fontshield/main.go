package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/fontshield/internal/config"
	"github.com/Sternrassler/fontshield/pkg/assetproxy"
	"github.com/Sternrassler/fontshield/pkg/cache"
	"github.com/Sternrassler/fontshield/pkg/fontcss"
	"github.com/Sternrassler/fontshield/pkg/logging"
	"github.com/Sternrassler/fontshield/pkg/origin"
	"github.com/Sternrassler/fontshield/pkg/proxy"
	"github.com/Sternrassler/fontshield/pkg/rewriter"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("FONTSHIELD_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fontshield: %v\n", err)
		os.Exit(2)
	}
	logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Config) error {
	srv, cleanup, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("listen", cfg.Listen).
			Str("origin", cfg.Origin).
			Str("cache_backend", cfg.Cache.Backend).
			Msg("Starting fontshield")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newServer assembles the cache, origin client, fetcher and router. The
// cleanup func closes the cache backend.
func newServer(cfg config.Config) (*http.Server, func() error, error) {
	store, err := cache.New(cfg.CacheStoreConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	originCfg := origin.DefaultConfig()
	originCfg.Timeout = cfg.Fetch.Timeout
	originCfg.Retry.MaxAttempts = cfg.Fetch.MaxAttempts
	client := origin.New(originCfg)

	fetcher := fontcss.NewFetcher(store, client, cfg.FetcherConfig())
	assets := assetproxy.New(client, cfg.Assets.Upstream)

	rewriteCfg := rewriter.DefaultConfig()
	rewriteCfg.MaxConcurrency = cfg.Rewrite.MaxConcurrency

	handler, err := proxy.New(proxy.Config{
		Origin:      cfg.Origin,
		MetricsPath: cfg.Metrics.Path,
		Rewrite:     rewriteCfg,
	}, fetcher, assets, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, store.Close, nil
}
