// Command eseasyncd serves the division query surface: the division listing,
// on-demand per-division syncs, and prometheus metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/adapters/http/api"
	"github.com/fwdcp/ESEADivisions/internal/adapters/repository"
	"github.com/fwdcp/ESEADivisions/internal/config"
	"github.com/fwdcp/ESEADivisions/internal/pipeline"
	"github.com/fwdcp/ESEADivisions/pkg/logger"
	"github.com/fwdcp/ESEADivisions/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	connectTimeout    = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal(ctx, "failed to load config", logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	store, err := repository.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		log.Fatal(ctx, "failed to connect to store", logger.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatal(ctx, "failed to ensure indexes", logger.Error(err))
	}

	// On-demand runs triggered by the surface are incremental, so they use
	// the faster targeted rate.
	client := feed.New(cfg.FeedBaseURL,
		feed.WithRate(cfg.IncrementalRate),
		feed.WithConcurrency(cfg.FetchConcurrency),
		feed.WithTimeout(time.Duration(cfg.FetchTimeoutSeconds)*time.Second))

	svc := pipeline.NewService(store, client,
		pipeline.WithStreamConcurrency(cfg.StreamConcurrency))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	api.NewServer(svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
