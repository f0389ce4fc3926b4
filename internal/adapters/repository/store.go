// Package repository provides the document-store gateway for team seasons
// and players. Writes are independent per-document upserts keyed on natural
// keys; reads support projections and cursor-backed streaming.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	"github.com/fwdcp/ESEADivisions/internal/pipeline/stream"
	"github.com/fwdcp/ESEADivisions/pkg/logger"
	"github.com/fwdcp/ESEADivisions/pkg/metrics"
)

// Collection names.
const (
	teamSeasonCollection = "teamseasons"
	playerCollection     = "players"
)

// Store is the persistence gateway contract consumed by the pipeline and the
// query surface.
type Store interface {
	// UpsertTeamSeason applies a partial update to the team season with the
	// given natural key, inserting the document if absent.
	UpsertTeamSeason(ctx context.Context, key model.TeamSeasonKey, update bson.M) error

	// FindTeamSeason loads one team season by natural key, restricted to the
	// projection when non-nil. Returns ErrNotFound when absent.
	FindTeamSeason(ctx context.Context, key model.TeamSeasonKey, projection bson.M) (*model.TeamSeason, error)

	// FindSeasonTeam loads a team's season document by (season, team id).
	// Returns ErrNotFound when absent.
	FindSeasonTeam(ctx context.Context, season int, team int64, projection bson.M) (*model.TeamSeason, error)

	// TeamSeasonsByEvent loads every team season scoped to one event.
	TeamSeasonsByEvent(ctx context.Context, event int64) ([]model.TeamSeason, error)

	// StreamTeamSeasons opens a cursor over team seasons matching filter.
	StreamTeamSeasons(ctx context.Context, filter, projection bson.M) (stream.Source[model.TeamSeason], error)

	// UpsertPlayer applies a partial update to the player with the given id,
	// inserting the document if absent.
	UpsertPlayer(ctx context.Context, player int64, update bson.M) error

	// FindPlayer loads one player by id. Returns ErrNotFound when absent.
	FindPlayer(ctx context.Context, player int64, projection bson.M) (*model.Player, error)

	// PlayersByMembership loads every player with a membership matching the
	// given team-season scope.
	PlayersByMembership(ctx context.Context, key model.MembershipKey) ([]model.Player, error)

	// StreamPlayers opens a cursor over players matching filter.
	StreamPlayers(ctx context.Context, filter, projection bson.M) (stream.Source[model.Player], error)
}

// Mongo implements Store on a MongoDB database.
type Mongo struct {
	client      *mongo.Client
	teamSeasons *mongo.Collection
	players     *mongo.Collection
	logger      logger.Logger
}

// Option applies a configuration option to the Mongo store.
type Option func(*Mongo)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(m *Mongo) {
		if l != nil {
			m.logger = l
		}
	}
}

// New connects to MongoDB and returns a Store over the named database.
func New(ctx context.Context, uri, database string, opts ...Option) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:      client,
		teamSeasons: db.Collection(teamSeasonCollection),
		players:     db.Collection(playerCollection),
		logger:      logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// EnsureIndexes creates the unique natural-key indexes.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.teamSeasons.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "team", Value: 1},
			{Key: "game", Value: 1},
			{Key: "season", Value: 1},
			{Key: "series", Value: 1},
			{Key: "event", Value: 1},
			{Key: "region", Value: 1},
			{Key: "division", Value: 1},
			{Key: "conference", Value: 1},
			{Key: "group", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	_, err = m.players.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "player", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Close disconnects from the database.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// keyFilter builds the natural-key equality filter for a team season. The
// equality fields double as the inserted values on upsert.
func keyFilter(key model.TeamSeasonKey) bson.M {
	return bson.M{
		"team":       key.Team,
		"game":       key.Game,
		"season":     key.Season,
		"series":     key.Series,
		"event":      key.Event,
		"region":     key.Region,
		"division":   key.Division,
		"conference": key.Conference,
		"group":      key.Group,
	}
}

func (m *Mongo) UpsertTeamSeason(ctx context.Context, key model.TeamSeasonKey, update bson.M) error {
	_, err := m.teamSeasons.UpdateOne(ctx, keyFilter(key), bson.M{"$set": update}, options.Update().SetUpsert(true))
	if err != nil {
		metrics.RecordPersistenceError()
		return fmt.Errorf("%w: upsert team season %d: %w", ErrPersistence, key.Team, err)
	}
	metrics.RecordUpsert(teamSeasonCollection)
	return nil
}

func (m *Mongo) FindTeamSeason(ctx context.Context, key model.TeamSeasonKey, projection bson.M) (*model.TeamSeason, error) {
	return m.findTeamSeason(ctx, keyFilter(key), projection)
}

func (m *Mongo) FindSeasonTeam(ctx context.Context, season int, team int64, projection bson.M) (*model.TeamSeason, error) {
	return m.findTeamSeason(ctx, bson.M{"season": season, "team": team}, projection)
}

func (m *Mongo) findTeamSeason(ctx context.Context, filter, projection bson.M) (*model.TeamSeason, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}

	var doc model.TeamSeason
	err := m.teamSeasons.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: find team season: %w", ErrPersistence, err)
	}
	return &doc, nil
}

func (m *Mongo) TeamSeasonsByEvent(ctx context.Context, event int64) ([]model.TeamSeason, error) {
	cursor, err := m.teamSeasons.Find(ctx, bson.M{"event": event})
	if err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: find team seasons: %w", ErrPersistence, err)
	}

	var docs []model.TeamSeason
	if err := cursor.All(ctx, &docs); err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: read team seasons: %w", ErrPersistence, err)
	}
	return docs, nil
}

func (m *Mongo) StreamTeamSeasons(ctx context.Context, filter, projection bson.M) (stream.Source[model.TeamSeason], error) {
	return openCursor[model.TeamSeason](ctx, m.teamSeasons, filter, projection)
}

func (m *Mongo) UpsertPlayer(ctx context.Context, player int64, update bson.M) error {
	_, err := m.players.UpdateOne(ctx, bson.M{"player": player}, bson.M{"$set": update}, options.Update().SetUpsert(true))
	if err != nil {
		metrics.RecordPersistenceError()
		return fmt.Errorf("%w: upsert player %d: %w", ErrPersistence, player, err)
	}
	metrics.RecordUpsert(playerCollection)
	return nil
}

func (m *Mongo) FindPlayer(ctx context.Context, player int64, projection bson.M) (*model.Player, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}

	var doc model.Player
	err := m.players.FindOne(ctx, bson.M{"player": player}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: find player: %w", ErrPersistence, err)
	}
	return &doc, nil
}

func (m *Mongo) PlayersByMembership(ctx context.Context, key model.MembershipKey) ([]model.Player, error) {
	filter := bson.M{"teams": bson.M{"$elemMatch": bson.M{
		"id":       key.Team,
		"game":     key.Game,
		"season":   key.Season,
		"series":   key.Series,
		"event":    key.Event,
		"division": key.Division,
	}}}

	cursor, err := m.players.Find(ctx, filter)
	if err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: find players: %w", ErrPersistence, err)
	}

	var docs []model.Player
	if err := cursor.All(ctx, &docs); err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: read players: %w", ErrPersistence, err)
	}
	return docs, nil
}

func (m *Mongo) StreamPlayers(ctx context.Context, filter, projection bson.M) (stream.Source[model.Player], error) {
	return openCursor[model.Player](ctx, m.players, filter, projection)
}

// cursorSource adapts a mongo cursor to stream.Source.
type cursorSource[T any] struct {
	cursor *mongo.Cursor
}

func openCursor[T any](ctx context.Context, coll *mongo.Collection, filter, projection bson.M) (stream.Source[T], error) {
	opts := options.Find()
	if projection != nil {
		opts.SetProjection(projection)
	}
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		metrics.RecordPersistenceError()
		return nil, fmt.Errorf("%w: open cursor: %w", ErrPersistence, err)
	}
	return &cursorSource[T]{cursor: cursor}, nil
}

func (s *cursorSource[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !s.cursor.Next(ctx) {
		if err := s.cursor.Err(); err != nil {
			return zero, false, fmt.Errorf("%w: advance cursor: %w", ErrPersistence, err)
		}
		return zero, false, nil
	}

	var doc T
	if err := s.cursor.Decode(&doc); err != nil {
		return zero, false, fmt.Errorf("%w: decode document: %w", ErrPersistence, err)
	}
	return doc, true, nil
}

func (s *cursorSource[T]) Close(ctx context.Context) error {
	return s.cursor.Close(ctx)
}
