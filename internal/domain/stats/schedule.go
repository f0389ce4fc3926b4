package stats

import (
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// OpponentStrength is an opponent's season record plus its experience rating.
// A zero value stands in for opponents missing from the store.
type OpponentStrength struct {
	Record           model.Record
	ExperienceRating float64
}

// SelectRegularSeason scans matches in stored order and selects completed
// matches until the record's played count is reached. Non-completed matches
// encountered before that point are skipped; scanning stops once enough
// completed matches are found.
func SelectRegularSeason(record model.Record, matches []model.Match) []model.Match {
	played := record.Played()
	selected := make([]model.Match, 0, played)
	for _, m := range matches {
		if len(selected) >= played {
			break
		}
		if m.Status == model.MatchStatusCompleted {
			selected = append(selected, m)
		}
	}
	return selected
}

// AccumulateStrength sums opponent records and experience ratings into a
// schedule strength aggregate.
func AccumulateStrength(opponents []OpponentStrength) model.ScheduleStrength {
	var total model.ScheduleStrength
	for _, o := range opponents {
		total.Wins += o.Record.Wins
		total.Ties += o.Record.Ties
		total.Losses += o.Record.Losses
		total.PointsFor += o.Record.PointsFor
		total.PointsAgainst += o.Record.PointsAgainst
		total.ExperienceRating += o.ExperienceRating
	}
	return total
}
