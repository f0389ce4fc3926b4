// Package pipeline orchestrates a sync run: fetching the division listing,
// refreshing standings, history and rosters under the shared rate limits,
// detecting which entities actually changed, and recomputing derived
// statistics for the affected set in two ordered phases.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/adapters/repository"
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	"github.com/fwdcp/ESEADivisions/internal/domain/stats"
	"github.com/fwdcp/ESEADivisions/internal/pipeline/graph"
	"github.com/fwdcp/ESEADivisions/internal/pipeline/stream"
	"github.com/fwdcp/ESEADivisions/pkg/logger"
	"github.com/fwdcp/ESEADivisions/pkg/metrics"
)

// Mode selects which entities a run's stages process.
type Mode string

// Sync modes.
const (
	// ModeFull processes every entity in scope unconditionally.
	ModeFull Mode = "full"
	// ModeIncremental processes only entities whose snapshot changed or that
	// were created during this run.
	ModeIncremental Mode = "incremental"
	// ModePreload processes only entities missing a stored history snapshot.
	ModePreload Mode = "preload"
)

// Stage names, mirroring the dependency graph of a run.
const (
	stageIndex             = "index"
	stageDivisions         = "divisions"
	stageTeams             = "teams"
	stageTeamHistory       = "teamHistory"
	stageTeamDetails       = "teamDetails"
	stagePlayers           = "players"
	stagePlayerHistory     = "playerHistory"
	stagePlayerDetails     = "playerDetails"
	stageExperienceRatings = "experienceRatings"
	stageScheduleStrengths = "scheduleStrengths"
)

// Fetcher is the feed surface a run draws from. *feed.Client implements it.
type Fetcher interface {
	DivisionIndex(ctx context.Context) (*feed.DivisionIndex, error)
	DivisionDetail(ctx context.Context, divisionID int64) (*feed.DivisionDetail, error)
	TeamHistory(ctx context.Context, team int64, series int) (model.Snapshot, error)
	PlayerHistory(ctx context.Context, player int64) (model.Snapshot, error)
}

// Pipeline runs the sync task graph against a store and a feed.
type Pipeline struct {
	store repository.Store
	fetch Fetcher

	mode              Mode
	division          int64 // 0 means unscoped
	skipDivisionTeams bool
	skipTeamHistory   bool
	skipTeamPlayers   bool
	skipPlayerHistory bool
	streamConcurrency int

	logger logger.Logger
}

// Option applies a configuration option to the pipeline.
type Option func(*Pipeline)

// WithMode selects the sync mode. The default is ModeFull.
func WithMode(m Mode) Option {
	return func(p *Pipeline) {
		switch m {
		case ModeFull, ModeIncremental, ModePreload:
			p.mode = m
		}
	}
}

// WithDivision scopes the run to a single division event id. The division
// listing fetch is replaced by that single id and every persistence filter is
// restricted to the event.
func WithDivision(id int64) Option {
	return func(p *Pipeline) {
		if id > 0 {
			p.division = id
		}
	}
}

// WithSkipDivisionTeams skips the division standings stages.
func WithSkipDivisionTeams() Option {
	return func(p *Pipeline) { p.skipDivisionTeams = true }
}

// WithSkipTeamHistory skips the team history refresh stage.
func WithSkipTeamHistory() Option {
	return func(p *Pipeline) { p.skipTeamHistory = true }
}

// WithSkipTeamPlayers skips the roster player discovery stage.
func WithSkipTeamPlayers() Option {
	return func(p *Pipeline) { p.skipTeamPlayers = true }
}

// WithSkipPlayerHistory skips the player history refresh stage.
func WithSkipPlayerHistory() Option {
	return func(p *Pipeline) { p.skipPlayerHistory = true }
}

// WithStreamConcurrency caps concurrently handled records per stage.
func WithStreamConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.streamConcurrency = n
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New constructs a pipeline over the given store and feed.
func New(store repository.Store, fetch Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:             store,
		fetch:             fetch,
		mode:              ModeFull,
		streamConcurrency: stream.DefaultConcurrency,
		logger:            logger.Get().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runState is the run-local working set: teams whose standings changed and
// players created during the run. It is never persisted; the next run's
// structural diff re-derives it.
type runState struct {
	mu      sync.Mutex
	teams   map[int64]struct{}
	players map[int64]struct{}
}

func newRunState() *runState {
	return &runState{
		teams:   make(map[int64]struct{}),
		players: make(map[int64]struct{}),
	}
}

func (s *runState) touchTeam(id int64) {
	s.mu.Lock()
	s.teams[id] = struct{}{}
	s.mu.Unlock()
}

func (s *runState) touchPlayer(id int64) {
	s.mu.Lock()
	s.players[id] = struct{}{}
	s.mu.Unlock()
}

func (s *runState) teamIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.teams)
}

func (s *runState) playerIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.players)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Run executes one sync run to completion. Writes committed by completed
// stages are retained even when a later stage fails.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.logger
	log.Info(ctx, "run starting",
		logger.String("run", runID),
		logger.String("mode", string(p.mode)),
		logger.Int64("division", p.division))

	state := newRunState()
	s := graph.New(graph.WithLogger(log))

	if err := p.register(s, state); err != nil {
		metrics.RecordRun(string(p.mode), "error")
		return err
	}

	_, err := s.Run(ctx)
	if err != nil {
		metrics.RecordRun(string(p.mode), "error")
		log.Error(ctx, "run failed", logger.String("run", runID), logger.Error(err))
		return err
	}

	metrics.RecordRun(string(p.mode), "ok")
	log.Info(ctx, "run finished",
		logger.String("run", runID),
		logger.Int("touchedTeams", len(state.teamIDs())),
		logger.Int("newPlayers", len(state.playerIDs())))
	return nil
}

func (p *Pipeline) register(s *graph.Scheduler, state *runState) error {
	stages := []struct {
		name string
		deps []string
		fn   graph.TaskFunc
	}{
		{stageIndex, nil, p.runIndex},
		{stageDivisions, []string{stageIndex}, p.runDivisions},
		{stageTeams, []string{stageDivisions}, p.bind(state, p.runTeams)},
		{stageTeamHistory, []string{stageTeams}, p.bind(state, p.runTeamHistory)},
		{stageTeamDetails, []string{stageTeams, stageTeamHistory}, p.bind(state, p.runTeamDetails)},
		{stagePlayers, []string{stageTeamHistory}, p.bind(state, p.runPlayers)},
		{stagePlayerHistory, []string{stagePlayers}, p.bind(state, p.runPlayerHistory)},
		{stagePlayerDetails, []string{stagePlayers, stagePlayerHistory}, p.bind(state, p.runPlayerDetails)},
		{stageExperienceRatings, []string{stagePlayerDetails, stageTeamDetails}, p.bind(state, p.runExperienceRatings)},
		{stageScheduleStrengths, []string{stageTeamDetails, stageExperienceRatings}, p.bind(state, p.runScheduleStrengths)},
	}

	for _, stage := range stages {
		if err := s.Register(stage.name, stage.deps, stage.fn); err != nil {
			return err
		}
	}
	return nil
}

type stageFunc func(ctx context.Context, state *runState, results graph.Results) (interface{}, error)

func (p *Pipeline) bind(state *runState, fn stageFunc) graph.TaskFunc {
	return func(ctx context.Context, results graph.Results) (interface{}, error) {
		return fn(ctx, state, results)
	}
}

// runIndex fetches the division listing. A division-scoped or skipped run
// does not need it.
func (p *Pipeline) runIndex(ctx context.Context, _ graph.Results) (interface{}, error) {
	if p.skipDivisionTeams || p.division != 0 {
		return nil, nil
	}
	return p.fetch.DivisionIndex(ctx)
}

// runDivisions flattens the listing into the division ids the run covers.
func (p *Pipeline) runDivisions(_ context.Context, results graph.Results) (interface{}, error) {
	if p.skipDivisionTeams {
		return []int64(nil), nil
	}
	if p.division != 0 {
		return []int64{p.division}, nil
	}
	index, ok := results[stageIndex].(*feed.DivisionIndex)
	if !ok {
		return []int64(nil), nil
	}
	return index.DivisionIDs(), nil
}

// runTeams fetches standings for every division in scope, diffing each team's
// standings listing against the stored snapshot to build the touched set.
func (p *Pipeline) runTeams(ctx context.Context, state *runState, results graph.Results) (interface{}, error) {
	if p.skipDivisionTeams {
		return nil, nil
	}
	divisions, _ := results[stageDivisions].([]int64)

	completed, err := stream.Process(ctx, stream.FromSlice(divisions), func(ctx context.Context, division int64) error {
		return p.syncDivision(ctx, state, division)
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stageTeams, completed)
	metrics.RecordTouchedTeams(len(state.teamIDs()))
	return nil, err
}

func (p *Pipeline) syncDivision(ctx context.Context, state *runState, division int64) error {
	detail, err := p.fetch.DivisionDetail(ctx, division)
	if err != nil {
		return err
	}

	info := detail.Division
	base := model.TeamSeasonKey{
		Game:     info.GameID,
		Season:   info.Season,
		Series:   info.StemSeriesID,
		Event:    info.StemEventID,
		Region:   info.RegionID,
		Division: info.DivisionLevel,
	}

	for _, tournament := range detail.StemTournaments {
		if tournament.Type != feed.TournamentRegularSeason {
			continue
		}
		for _, group := range tournament.Groups {
			for _, standing := range group.ActiveTeams {
				key := base
				key.Conference = tournament.Location
				key.Group = group.Name
				key.Team = standing.ID()
				if err := p.syncStanding(ctx, state, key, standing); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// syncStanding diffs one team's standings listing against the stored snapshot
// and replaces it. Changed and newly created teams join the touched set.
func (p *Pipeline) syncStanding(ctx context.Context, state *runState, key model.TeamSeasonKey, standing feed.TeamStanding) error {
	var stored model.Snapshot
	existing, err := p.store.FindTeamSeason(ctx, key, bson.M{"raw.standings": 1})
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return err
	default:
		stored = existing.Raw.Standings
	}

	snapshot := model.Snapshot(standing)
	if !SnapshotsEqual(stored, snapshot) {
		state.touchTeam(key.Team)
	}
	return p.store.UpsertTeamSeason(ctx, key, bson.M{"raw.standings": snapshot})
}

// runTeamHistory refreshes history snapshots for every team season in scope.
func (p *Pipeline) runTeamHistory(ctx context.Context, state *runState, _ graph.Results) (interface{}, error) {
	if p.skipTeamHistory {
		return nil, nil
	}

	filter := p.teamFilter()
	p.applyTeamModeFilter(filter, state)

	src, err := p.store.StreamTeamSeasons(ctx, filter, bson.M{"team": 1, "series": 1, "raw.history": 1})
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, ts model.TeamSeason) error {
		if p.mode == ModePreload && ts.Raw.History != nil {
			return nil
		}
		snapshot, err := p.fetch.TeamHistory(ctx, ts.Team, ts.Series)
		if err != nil {
			return err
		}
		return p.store.UpsertTeamSeason(ctx, ts.Key(), bson.M{"raw.history": snapshot})
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stageTeamHistory, completed)
	return nil, err
}

// runTeamDetails rebuilds display fields from the stored snapshots for every
// team season in scope. Not mode-filtered; re-derivation is deterministic.
func (p *Pipeline) runTeamDetails(ctx context.Context, _ *runState, _ graph.Results) (interface{}, error) {
	src, err := p.store.StreamTeamSeasons(ctx, p.teamFilter(), nil)
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, ts model.TeamSeason) error {
		if err := deriveTeam(&ts); err != nil {
			return err
		}
		return p.store.UpsertTeamSeason(ctx, ts.Key(), bson.M{
			"name":     ts.Name,
			"record":   ts.Record,
			"matches":  ts.Matches,
			"forfeits": ts.Forfeits,
		})
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stageTeamDetails, completed)
	return nil, err
}

// runPlayers walks team rosters and creates missing player documents. New
// players join the touched-player set for the history stage.
func (p *Pipeline) runPlayers(ctx context.Context, state *runState, _ graph.Results) (interface{}, error) {
	if p.skipTeamPlayers {
		return nil, nil
	}

	// Discovery walks rosters, so it wants teams that have a history
	// snapshot, not ones missing it.
	filter := p.teamFilter()
	switch p.mode {
	case ModePreload:
		filter["raw.history"] = bson.M{"$exists": true}
	case ModeIncremental:
		filter["team"] = bson.M{"$in": state.teamIDs()}
	}

	src, err := p.store.StreamTeamSeasons(ctx, filter, bson.M{"team": 1, "raw.history": 1})
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, ts model.TeamSeason) error {
		if ts.Raw.History == nil {
			return nil
		}
		var history feed.TeamHistory
		if err := decodeSnapshot(ts.Raw.History, &history); err != nil {
			return err
		}
		for _, entry := range history.TeamRoster {
			_, err := p.store.FindPlayer(ctx, entry.ID, bson.M{"player": 1})
			if errors.Is(err, repository.ErrNotFound) {
				if err := p.store.UpsertPlayer(ctx, entry.ID, bson.M{"player": entry.ID, "alias": entry.Alias}); err != nil {
					return err
				}
				state.touchPlayer(entry.ID)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stagePlayers, completed)
	return nil, err
}

// runPlayerHistory refreshes history snapshots for every player in scope.
func (p *Pipeline) runPlayerHistory(ctx context.Context, state *runState, _ graph.Results) (interface{}, error) {
	if p.skipPlayerHistory {
		return nil, nil
	}

	filter := p.playerFilter()
	switch p.mode {
	case ModePreload:
		filter["raw.history"] = bson.M{"$exists": false}
	case ModeIncremental:
		filter["player"] = bson.M{"$in": state.playerIDs()}
	}

	src, err := p.store.StreamPlayers(ctx, filter, bson.M{"player": 1, "raw.history": 1})
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, player model.Player) error {
		if p.mode == ModePreload && player.Raw.History != nil {
			return nil
		}
		snapshot, err := p.fetch.PlayerHistory(ctx, player.Player)
		if err != nil {
			return err
		}
		return p.store.UpsertPlayer(ctx, player.Player, bson.M{"raw.history": snapshot})
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stagePlayerHistory, completed)
	return nil, err
}

// runPlayerDetails rebuilds alias and membership fields from the stored raw
// history for every player in scope. Not mode-filtered.
func (p *Pipeline) runPlayerDetails(ctx context.Context, _ *runState, _ graph.Results) (interface{}, error) {
	src, err := p.store.StreamPlayers(ctx, p.playerFilter(), nil)
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, player model.Player) error {
		if err := derivePlayer(&player); err != nil {
			return err
		}
		return p.store.UpsertPlayer(ctx, player.Player, bson.M{
			"alias": player.Alias,
			"teams": player.Teams,
		})
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stagePlayerDetails, completed)
	return nil, err
}

// runExperienceRatings is phase one of the derived-statistics recomputation:
// it commits an experience rating for every team season in the recompute set.
// The stage's result is the filter describing that set, consumed by phase two.
func (p *Pipeline) runExperienceRatings(ctx context.Context, state *runState, _ graph.Results) (interface{}, error) {
	filter, err := p.recomputeFilter(ctx, state)
	if err != nil {
		return nil, err
	}

	src, err := p.store.StreamTeamSeasons(ctx, copyFilter(filter), bson.M{
		"team": 1, "game": 1, "season": 1, "series": 1, "event": 1,
		"region": 1, "division": 1, "conference": 1, "group": 1,
	})
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, ts model.TeamSeason) error {
		players, err := p.store.PlayersByMembership(ctx, ts.MembershipKey())
		if err != nil {
			return err
		}
		rating := stats.ExperienceRating(ts.MembershipKey(), players)
		metrics.RecordRecomputation("experience_rating")
		return p.store.UpsertTeamSeason(ctx, ts.Key(), bson.M{"experienceRating": rating})
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stageExperienceRatings, completed)
	if err != nil {
		return nil, err
	}
	return filter, nil
}

// runScheduleStrengths is phase two: with every experience rating committed,
// it sums opponent records and ratings over each team's completed
// regular-season matches.
func (p *Pipeline) runScheduleStrengths(ctx context.Context, _ *runState, results graph.Results) (interface{}, error) {
	filter, ok := results[stageExperienceRatings].(bson.M)
	if !ok {
		filter = p.teamFilter()
	}

	src, err := p.store.StreamTeamSeasons(ctx, copyFilter(filter), bson.M{
		"team": 1, "game": 1, "season": 1, "series": 1, "event": 1,
		"region": 1, "division": 1, "conference": 1, "group": 1,
		"record": 1, "matches": 1,
	})
	if err != nil {
		return nil, err
	}

	completed, err := stream.Process(ctx, src, func(ctx context.Context, ts model.TeamSeason) error {
		selected := stats.SelectRegularSeason(ts.Record, ts.Matches)
		opponents := make([]stats.OpponentStrength, 0, len(selected))
		for _, m := range selected {
			opp, err := p.store.FindSeasonTeam(ctx, ts.Season, m.OpposingTeam, bson.M{"record": 1, "experienceRating": 1})
			if errors.Is(err, repository.ErrNotFound) {
				opponents = append(opponents, stats.OpponentStrength{})
				continue
			}
			if err != nil {
				return err
			}
			opponents = append(opponents, stats.OpponentStrength{
				Record:           opp.Record,
				ExperienceRating: opp.ExperienceRating,
			})
		}
		metrics.RecordRecomputation("schedule_strength")
		return p.store.UpsertTeamSeason(ctx, ts.Key(), bson.M{"scheduleStrength": stats.AccumulateStrength(opponents)})
	}, stream.WithConcurrency(p.streamConcurrency))

	metrics.RecordRecordsProcessed(stageScheduleStrengths, completed)
	return nil, err
}

// recomputeFilter builds the team filter for the derived-statistics phases.
// In incremental mode the set is the touched teams plus their one-hop
// opponents; other modes cover the whole scope.
func (p *Pipeline) recomputeFilter(ctx context.Context, state *runState) (bson.M, error) {
	filter := p.teamFilter()
	if p.mode != ModeIncremental {
		if p.mode == ModePreload {
			filter["raw.history"] = bson.M{"$exists": false}
		}
		return filter, nil
	}

	touched := state.teamIDs()
	lookup := copyFilter(filter)
	lookup["team"] = bson.M{"$in": touched}

	src, err := p.store.StreamTeamSeasons(ctx, lookup, bson.M{"team": 1, "matches": 1})
	if err != nil {
		return nil, err
	}

	matchesByTeam := make(map[int64][]model.Match)
	var mu sync.Mutex
	if _, err := stream.Process(ctx, src, func(_ context.Context, ts model.TeamSeason) error {
		mu.Lock()
		matchesByTeam[ts.Team] = append(matchesByTeam[ts.Team], ts.Matches...)
		mu.Unlock()
		return nil
	}, stream.WithConcurrency(p.streamConcurrency)); err != nil {
		return nil, err
	}

	filter["team"] = bson.M{"$in": sortedIDs(stats.RecomputeSet(touched, matchesByTeam))}
	return filter, nil
}

// teamFilter is the base team-season filter for the run's division scope.
func (p *Pipeline) teamFilter() bson.M {
	filter := bson.M{}
	if p.division != 0 {
		filter["event"] = p.division
	}
	return filter
}

// playerFilter is the base player filter for the run's division scope.
func (p *Pipeline) playerFilter() bson.M {
	filter := bson.M{}
	if p.division != 0 {
		filter["teams.event"] = p.division
	}
	return filter
}

// applyTeamModeFilter narrows a team filter to the run mode's working set.
func (p *Pipeline) applyTeamModeFilter(filter bson.M, state *runState) {
	switch p.mode {
	case ModePreload:
		filter["raw.history"] = bson.M{"$exists": false}
	case ModeIncremental:
		filter["team"] = bson.M{"$in": state.teamIDs()}
	}
}

func copyFilter(filter bson.M) bson.M {
	out := make(bson.M, len(filter))
	for k, v := range filter {
		out[k] = v
	}
	return out
}
