package feed

import (
	"sort"
	"strconv"

	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// Tournament types. Only regular-season tournaments carry standings groups.
const TournamentRegularSeason = "regular season"

// DivisionIndex is the division listing keyed season -> region -> division id
// -> division name.
type DivisionIndex struct {
	SelectDivisionID map[string]map[string]map[string]string `json:"select_division_id"`
}

// DivisionRow is a flattened division listing entry.
type DivisionRow struct {
	ID       int64  `json:"id"`
	Season   string `json:"season"`
	Region   string `json:"region"`
	Division string `json:"division"`
}

// Rows flattens the index into listing entries. Entries whose division id is
// not numeric are dropped; the feed has never produced one.
func (d *DivisionIndex) Rows() []DivisionRow {
	var rows []DivisionRow
	for season, regions := range d.SelectDivisionID {
		for region, divisions := range regions {
			for id, name := range divisions {
				parsed, err := strconv.ParseInt(id, 10, 64)
				if err != nil {
					continue
				}
				rows = append(rows, DivisionRow{ID: parsed, Season: season, Region: region, Division: name})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// DivisionIDs returns every division id in the index.
func (d *DivisionIndex) DivisionIDs() []int64 {
	rows := d.Rows()
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

// DivisionInfo is the per-division metadata block.
type DivisionInfo struct {
	GameID        int    `json:"game_id" bson:"game_id"`
	Season        int    `json:"season" bson:"season"`
	StemSeriesID  int    `json:"stem_seriesid" bson:"stem_seriesid"`
	StemEventID   int64  `json:"stem_eventid" bson:"stem_eventid"`
	DivisionLevel string `json:"division_level" bson:"division_level"`
	RegionID      int    `json:"region_id" bson:"region_id"`
}

// TeamStanding is a single team's raw standings listing. It stays an opaque
// map because the whole subtree is stored as the change-detection snapshot;
// accessors pull out the fields the pipeline consumes.
type TeamStanding map[string]interface{}

// ID returns the team id of the listing.
func (s TeamStanding) ID() int64 { return asInt64(s["id"]) }

// Name returns the team display name.
func (s TeamStanding) Name() string { return asString(s["name"]) }

// Record extracts the win/loss line from the listing.
func (s TeamStanding) Record() model.Record {
	return model.Record{
		Wins:          int(asInt64(s["match_win"])),
		Ties:          int(asInt64(s["match_tie"])),
		Losses:        int(asInt64(s["match_loss"])),
		Percentage:    asFloat64(s["match_win_pct"]),
		PointsFor:     int(asInt64(s["point_win"])),
		PointsAgainst: int(asInt64(s["point_loss"])),
	}
}

// TournamentGroup is one standings group inside a tournament.
type TournamentGroup struct {
	Name        string         `json:"name" bson:"name"`
	ActiveTeams []TeamStanding `json:"active_teams" bson:"active_teams"`
}

// Tournament is one conference-level tournament inside a division.
type Tournament struct {
	Type     string            `json:"type" bson:"type"`
	Location string            `json:"location" bson:"location"`
	Groups   []TournamentGroup `json:"groups" bson:"groups"`
}

// DivisionDetail is the per-division standings payload.
type DivisionDetail struct {
	Division        *DivisionInfo `json:"division"`
	StemTournaments []Tournament  `json:"stem_tournaments"`
}

// MatchEntity is one side of a match in team history.
type MatchEntity struct {
	ID int64 `json:"id" bson:"id"`
}

// TeamMatch is one match row in a team history payload.
type TeamMatch struct {
	ID                 int64                  `json:"id" bson:"id"`
	TimeStart          int64                  `json:"time_start" bson:"time_start"`
	TimeEnd            int64                  `json:"time_end" bson:"time_end"`
	State              string                 `json:"state" bson:"state"`
	OutcomeType        string                 `json:"outcome_type" bson:"outcome_type"`
	OutcomeTeamAtFault int64                  `json:"outcome_team_at_fault" bson:"outcome_team_at_fault"`
	Games              int                    `json:"games" bson:"games"`
	MapName            string                 `json:"map_name" bson:"map_name"`
	Result             string                 `json:"result" bson:"result"`
	Entities           map[string]MatchEntity `json:"entities" bson:"entities"`
	Team1Games         int                    `json:"team_1_games" bson:"team_1_games"`
	Team2Games         int                    `json:"team_2_games" bson:"team_2_games"`
	Team1Points        int                    `json:"team_1_points" bson:"team_1_points"`
	Team2Points        int                    `json:"team_2_points" bson:"team_2_points"`
}

// RosterEntry is one roster row in a team history payload.
type RosterEntry struct {
	ID    int64  `json:"id" bson:"id"`
	Alias string `json:"alias" bson:"alias"`
}

// TeamHistory is the typed view of a stored team history snapshot.
type TeamHistory struct {
	TeamMatches []TeamMatch   `json:"team_matches" bson:"team_matches"`
	TeamRoster  []RosterEntry `json:"team_roster" bson:"team_roster"`
}

// AliasEntry is one alias-history row. The current alias has no last_used.
type AliasEntry struct {
	Alias    string `json:"alias" bson:"alias"`
	LastUsed *int64 `json:"last_used,omitempty" bson:"last_used,omitempty"`
}

// HistoryTeam is one team-season membership row in a player history payload.
// Matches is keyed by match id.
type HistoryTeam struct {
	ID            int64                  `json:"id" bson:"id"`
	Name          string                 `json:"name" bson:"name"`
	GameID        int                    `json:"game_id" bson:"game_id"`
	Season        int                    `json:"season" bson:"season"`
	StemSeriesID  int                    `json:"stem_seriesid" bson:"stem_seriesid"`
	StemEventID   int64                  `json:"stem_eventid" bson:"stem_eventid"`
	DivisionLevel string                 `json:"division_level" bson:"division_level"`
	Matches       map[string]interface{} `json:"matches" bson:"matches"`
}

// MatchIDs returns the match ids of the membership in ascending order.
func (h HistoryTeam) MatchIDs() []int64 {
	ids := make([]int64, 0, len(h.Matches))
	for k := range h.Matches {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PlayerHistory is the typed view of a stored player history snapshot.
type PlayerHistory struct {
	AliasHistory []AliasEntry  `json:"alias_history" bson:"alias_history"`
	HistoryTeams []HistoryTeam `json:"history_teams" bson:"history_teams"`
}

// CurrentAlias returns the alias row without a last_used marker, or empty.
func (p PlayerHistory) CurrentAlias() string {
	for _, a := range p.AliasHistory {
		if a.LastUsed == nil {
			return a.Alias
		}
	}
	return ""
}

// asInt64 normalizes the numeric representations seen in decoded JSON and
// BSON snapshots.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
