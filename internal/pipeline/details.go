package pipeline

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// decodeSnapshot converts an opaque raw snapshot into a typed view. The BSON
// round trip accepts both freshly fetched (JSON-decoded) and stored
// (BSON-decoded) snapshots.
func decodeSnapshot(s model.Snapshot, out interface{}) error {
	data, err := bson.Marshal(bson.M(s))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotDecode, err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotDecode, err)
	}
	return nil
}

// deriveTeam rebuilds a team season's display fields from its stored raw
// snapshots: name and record from standings, the match sequence from history,
// and the forfeit counts from the matches. Fields whose snapshot is absent
// keep their stored values.
func deriveTeam(ts *model.TeamSeason) error {
	if ts.Raw.Standings != nil {
		standing := feed.TeamStanding(ts.Raw.Standings)
		ts.Name = standing.Name()
		ts.Record = standing.Record()
	}

	if ts.Raw.History != nil {
		var history feed.TeamHistory
		if err := decodeSnapshot(ts.Raw.History, &history); err != nil {
			return err
		}
		ts.Matches = buildMatches(ts.Team, history.TeamMatches)
	}

	ts.Forfeits = countForfeits(ts.Matches)
	return nil
}

// buildMatches maps raw history rows into match entries oriented from the
// team's perspective. The for/against columns follow whichever entity slot
// carries the team's id.
func buildMatches(team int64, rows []feed.TeamMatch) []model.Match {
	matches := make([]model.Match, 0, len(rows))
	for _, row := range rows {
		m := model.Match{
			ID:          row.ID,
			StartTime:   time.Unix(row.TimeStart, 0),
			EndTime:     time.Unix(row.TimeEnd, 0),
			Status:      row.State,
			OutcomeType: row.OutcomeType,
			AtFault:     row.OutcomeTeamAtFault == team,
			GamesPlayed: row.Games,
			Result:      row.Result,
		}
		if row.Games <= 1 {
			m.Map = row.MapName
		}

		switch {
		case row.Entities["1"].ID == team:
			m.OpposingTeam = row.Entities["2"].ID
			m.GamesFor, m.GamesAgainst = row.Team1Games, row.Team2Games
			m.PointsFor, m.PointsAgainst = row.Team1Points, row.Team2Points
		case row.Entities["2"].ID == team:
			m.OpposingTeam = row.Entities["1"].ID
			m.GamesFor, m.GamesAgainst = row.Team2Games, row.Team1Games
			m.PointsFor, m.PointsAgainst = row.Team2Points, row.Team1Points
		}

		matches = append(matches, m)
	}
	return matches
}

func countForfeits(matches []model.Match) model.Forfeits {
	var f model.Forfeits
	for _, m := range matches {
		if m.OutcomeType != model.OutcomeForfeit {
			continue
		}
		if m.AtFault {
			f.Losses++
		} else {
			f.Wins++
		}
	}
	return f
}

// derivePlayer rebuilds a player's alias and membership list from the stored
// raw history snapshot. A player without a snapshot is left as is.
func derivePlayer(p *model.Player) error {
	if p.Raw.History == nil {
		return nil
	}

	var history feed.PlayerHistory
	if err := decodeSnapshot(p.Raw.History, &history); err != nil {
		return err
	}

	p.Alias = history.CurrentAlias()
	p.Teams = make([]model.TeamMembership, 0, len(history.HistoryTeams))
	for _, ht := range history.HistoryTeams {
		p.Teams = append(p.Teams, model.TeamMembership{
			ID:       ht.ID,
			Name:     ht.Name,
			Game:     ht.GameID,
			Season:   ht.Season,
			Series:   ht.StemSeriesID,
			Event:    ht.StemEventID,
			Division: ht.DivisionLevel,
			Matches:  ht.MatchIDs(),
		})
	}
	return nil
}
