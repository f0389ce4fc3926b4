// Command eseasync runs one sync pipeline pass and exits: 0 on success, 1 on
// the first unrecovered error.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/adapters/repository"
	"github.com/fwdcp/ESEADivisions/internal/config"
	"github.com/fwdcp/ESEADivisions/internal/pipeline"
	"github.com/fwdcp/ESEADivisions/pkg/logger"
	"github.com/fwdcp/ESEADivisions/pkg/metrics"
)

const connectTimeout = 10 * time.Second

// fetchRate picks the feed rate for a run. Preload crawls every missing
// record in the league and stays at the slow bulk rate; full and incremental
// runs use the faster limit.
func fetchRate(cfg *config.Config, preload bool) float64 {
	if preload {
		return cfg.BulkRate
	}
	return cfg.IncrementalRate
}

func main() {
	incremental := flag.Bool("incremental", false, "only process records that may require an update")
	preload := flag.Bool("preload", false, "only retrieve missing records")
	division := flag.Int64("division", 0, "retrieve records for a specific division")
	skipDivisionTeams := flag.Bool("skip-division-teams", false, "skip retrieving teams from divisions")
	skipTeamHistory := flag.Bool("skip-team-history", false, "skip updating team history")
	skipTeamPlayers := flag.Bool("skip-team-players", false, "skip retrieving players from teams")
	skipPlayerHistory := flag.Bool("skip-player-history", false, "skip updating player history")
	flag.Parse()

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
		_ = logger.SetLevelString("info")
	}

	metrics.Init()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	store, err := repository.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		log.Fatal(ctx, "failed to connect to store", logger.Error(err))
	}
	defer func() { _ = store.Close(context.Background()) }()

	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatal(ctx, "failed to ensure indexes", logger.Error(err))
	}

	client := feed.New(cfg.FeedBaseURL,
		feed.WithRate(fetchRate(cfg, *preload)),
		feed.WithConcurrency(cfg.FetchConcurrency),
		feed.WithTimeout(time.Duration(cfg.FetchTimeoutSeconds)*time.Second))

	opts := []pipeline.Option{
		pipeline.WithStreamConcurrency(cfg.StreamConcurrency),
	}
	switch {
	case *incremental:
		opts = append(opts, pipeline.WithMode(pipeline.ModeIncremental))
	case *preload:
		opts = append(opts, pipeline.WithMode(pipeline.ModePreload))
	}
	if *division != 0 {
		opts = append(opts, pipeline.WithDivision(*division))
	}
	if *skipDivisionTeams {
		opts = append(opts, pipeline.WithSkipDivisionTeams())
	}
	if *skipTeamHistory {
		opts = append(opts, pipeline.WithSkipTeamHistory())
	}
	if *skipTeamPlayers {
		opts = append(opts, pipeline.WithSkipTeamPlayers())
	}
	if *skipPlayerHistory {
		opts = append(opts, pipeline.WithSkipPlayerHistory())
	}

	if err := pipeline.New(store, client, opts...).Run(ctx); err != nil {
		log.Error(ctx, "sync failed", logger.Error(err))
		os.Exit(1)
	}
}
