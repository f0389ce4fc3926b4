package pipeline

import (
	"context"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/adapters/repository"
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	"github.com/fwdcp/ESEADivisions/internal/pipeline/runs"
)

// Service exposes on-demand scoped runs and the reads the query surface
// needs. Concurrent requests for the same division share one in-flight run.
type Service struct {
	store       repository.Store
	fetch       Fetcher
	coordinator *runs.Coordinator
	opts        []Option
}

// NewService constructs a service over the given store and feed. The options
// are applied to every pipeline the service starts.
func NewService(store repository.Store, fetch Fetcher, opts ...Option) *Service {
	return &Service{
		store:       store,
		fetch:       fetch,
		coordinator: runs.New(),
		opts:        opts,
	}
}

// DivisionIndex fetches the division listing from the feed.
func (s *Service) DivisionIndex(ctx context.Context) (*feed.DivisionIndex, error) {
	return s.fetch.DivisionIndex(ctx)
}

// SyncDivision runs an incremental sync scoped to one division, joining an
// in-flight run for the same division if one exists.
func (s *Service) SyncDivision(ctx context.Context, division int64) error {
	_, err := s.coordinator.Division(ctx, division, func(ctx context.Context) error {
		opts := append([]Option{}, s.opts...)
		opts = append(opts, WithMode(ModeIncremental), WithDivision(division))
		return New(s.store, s.fetch, opts...).Run(ctx)
	})
	return err
}

// TeamSeasonsByEvent loads every team season scoped to one event.
func (s *Service) TeamSeasonsByEvent(ctx context.Context, event int64) ([]model.TeamSeason, error) {
	return s.store.TeamSeasonsByEvent(ctx, event)
}
