// Package model contains domain models passed between layers.
package model

import "time"

// Match status and outcome values observed on the feed.
const (
	MatchStatusCompleted = "completed"
	OutcomeForfeit       = "forfeit"
)

// Snapshot is an opaque raw feed payload kept only for change detection and
// re-derivation. It is never hand-edited.
type Snapshot = map[string]interface{}

// Record is a team's win/loss line within one season.
type Record struct {
	Wins          int     `bson:"wins" json:"wins"`
	Ties          int     `bson:"ties" json:"ties"`
	Losses        int     `bson:"losses" json:"losses"`
	Percentage    float64 `bson:"percentage" json:"percentage"`
	PointsFor     int     `bson:"pointsFor" json:"pointsFor"`
	PointsAgainst int     `bson:"pointsAgainst" json:"pointsAgainst"`
}

// Played returns the number of regular-season matches the record accounts for.
func (r Record) Played() int {
	return r.Wins + r.Ties + r.Losses
}

// Forfeits counts matches decided by forfeit, split by fault.
type Forfeits struct {
	Wins   int `bson:"wins" json:"wins"`
	Losses int `bson:"losses" json:"losses"`
}

// ScheduleStrength aggregates opponent records and experience across a team's
// completed regular-season matches.
type ScheduleStrength struct {
	Wins             int     `bson:"wins" json:"wins"`
	Ties             int     `bson:"ties" json:"ties"`
	Losses           int     `bson:"losses" json:"losses"`
	Percentage       float64 `bson:"percentage" json:"percentage"`
	PointsFor        int     `bson:"pointsFor" json:"pointsFor"`
	PointsAgainst    int     `bson:"pointsAgainst" json:"pointsAgainst"`
	ExperienceRating float64 `bson:"experienceRating" json:"experienceRating"`
}

// Match is one entry in a team season's match history, derived from the raw
// history snapshot. Read-only once computed.
type Match struct {
	ID            int64     `bson:"id" json:"id"`
	StartTime     time.Time `bson:"startTime" json:"startTime"`
	EndTime       time.Time `bson:"endTime" json:"endTime"`
	OpposingTeam  int64     `bson:"opposingTeam" json:"opposingTeam"`
	Status        string    `bson:"status" json:"status"`
	OutcomeType   string    `bson:"outcomeType" json:"outcomeType"`
	AtFault       bool      `bson:"atFault" json:"atFault"`
	GamesPlayed   int       `bson:"gamesPlayed" json:"gamesPlayed"`
	Map           string    `bson:"map,omitempty" json:"map,omitempty"` // empty when gamesPlayed > 1
	GamesFor      int       `bson:"gamesFor" json:"gamesFor"`
	GamesAgainst  int       `bson:"gamesAgainst" json:"gamesAgainst"`
	PointsFor     int       `bson:"pointsFor" json:"pointsFor"`
	PointsAgainst int       `bson:"pointsAgainst" json:"pointsAgainst"`
	Result        string    `bson:"result" json:"result"`
}

// TeamSeasonKey is the natural key identifying a team's record within one
// division scope for one season.
type TeamSeasonKey struct {
	Team       int64  `bson:"team" json:"team"`
	Game       int    `bson:"game" json:"game"`
	Season     int    `bson:"season" json:"season"`
	Series     int    `bson:"series" json:"series"`
	Event      int64  `bson:"event" json:"event"`
	Region     int    `bson:"region" json:"region"`
	Division   string `bson:"division" json:"division"`
	Conference string `bson:"conference" json:"conference"`
	Group      string `bson:"group" json:"group"`
}

// TeamSeasonRaw holds the last-seen raw feed snapshots for a team season.
type TeamSeasonRaw struct {
	Standings Snapshot `bson:"standings,omitempty" json:"standings,omitempty"`
	History   Snapshot `bson:"history,omitempty" json:"history,omitempty"`
}

// TeamSeason is a team's record within one division scope for one season.
type TeamSeason struct {
	Team       int64  `bson:"team" json:"team"`
	Name       string `bson:"name" json:"name"`
	Game       int    `bson:"game" json:"game"`
	Season     int    `bson:"season" json:"season"`
	Series     int    `bson:"series" json:"series"`
	Event      int64  `bson:"event" json:"event"`
	Region     int    `bson:"region" json:"region"`
	Division   string `bson:"division" json:"division"`
	Conference string `bson:"conference" json:"conference"`
	Group      string `bson:"group" json:"group"`

	Record           Record           `bson:"record" json:"record"`
	Forfeits         Forfeits         `bson:"forfeits" json:"forfeits"`
	ExperienceRating float64          `bson:"experienceRating" json:"experienceRating"`
	ScheduleStrength ScheduleStrength `bson:"scheduleStrength" json:"scheduleStrength"`
	Matches          []Match          `bson:"matches" json:"matches"`

	Raw TeamSeasonRaw `bson:"raw" json:"-"`
}

// Key returns the natural key of the team season.
func (t *TeamSeason) Key() TeamSeasonKey {
	return TeamSeasonKey{
		Team:       t.Team,
		Game:       t.Game,
		Season:     t.Season,
		Series:     t.Series,
		Event:      t.Event,
		Region:     t.Region,
		Division:   t.Division,
		Conference: t.Conference,
		Group:      t.Group,
	}
}

// MembershipKey identifies the team-season scope a player membership refers
// to. It carries the key fields present on player history entries; region,
// conference and group do not appear there.
type MembershipKey struct {
	Team     int64  `bson:"id" json:"id"`
	Game     int    `bson:"game" json:"game"`
	Season   int    `bson:"season" json:"season"`
	Series   int    `bson:"series" json:"series"`
	Event    int64  `bson:"event" json:"event"`
	Division string `bson:"division" json:"division"`
}

// MembershipKey returns the membership scope of the team season.
func (t *TeamSeason) MembershipKey() MembershipKey {
	return MembershipKey{
		Team:     t.Team,
		Game:     t.Game,
		Season:   t.Season,
		Series:   t.Series,
		Event:    t.Event,
		Division: t.Division,
	}
}

// TeamMembership is one season a player spent on a team, with the matches
// they played there.
type TeamMembership struct {
	ID       int64   `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Game     int     `bson:"game" json:"game"`
	Season   int     `bson:"season" json:"season"`
	Series   int     `bson:"series" json:"series"`
	Event    int64   `bson:"event" json:"event"`
	Division string  `bson:"division" json:"division"`
	Matches  []int64 `bson:"matches" json:"matches"`
}

// Matches reports whether the membership refers to the given scope.
func (m TeamMembership) MatchesKey(k MembershipKey) bool {
	return m.ID == k.Team &&
		m.Game == k.Game &&
		m.Season == k.Season &&
		m.Series == k.Series &&
		m.Event == k.Event &&
		m.Division == k.Division
}

// PlayerRaw holds the last-seen raw history snapshot for a player.
type PlayerRaw struct {
	History Snapshot `bson:"history,omitempty" json:"history,omitempty"`
}

// Player is a league participant across seasons. Natural key: player id.
type Player struct {
	Player int64            `bson:"player" json:"player"`
	Alias  string           `bson:"alias" json:"alias"`
	Teams  []TeamMembership `bson:"teams" json:"teams"`

	Raw PlayerRaw `bson:"raw" json:"-"`
}
