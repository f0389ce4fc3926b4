// Package stats computes the derived statistics for team seasons: the roster
// experience rating and the schedule strength aggregate. Everything here is
// pure computation; callers supply the already-loaded documents.
package stats

import (
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// Division weights used when scoring competitive experience.
var divisionWeights = map[string]int{
	"open":         1,
	"intermediate": 2,
	"main":         3,
	"premier":      4,
	"invite":       5,
}

// DivisionWeight returns the experience weight of a division level.
// Unknown levels weigh the same as open.
func DivisionWeight(division string) int {
	if w, ok := divisionWeights[division]; ok {
		return w
	}
	return 1
}

// PlayerGameExperience is a player's per-game experience score: the sum over
// all memberships in the given game, up to and including the given season, of
// division weight times matches played in that membership.
func PlayerGameExperience(p model.Player, game, season int) float64 {
	var total float64
	for _, m := range p.Teams {
		if m.Game == game && m.Season <= season {
			total += float64(DivisionWeight(m.Division) * len(m.Matches))
		}
	}
	return total
}

// ExperienceRating computes a team season's experience rating from its roster.
// Each player contributes their per-game experience score weighted by the
// matches they played in this membership; the weighted sum is divided by the
// number of distinct match ids played by the roster in this membership.
// The rating is 0 when the roster played no matches.
func ExperienceRating(key model.MembershipKey, players []model.Player) float64 {
	var weighted float64
	distinct := make(map[int64]struct{})

	for _, p := range players {
		for _, m := range p.Teams {
			if !m.MatchesKey(key) {
				continue
			}
			weighted += float64(len(m.Matches)) * PlayerGameExperience(p, key.Game, key.Season)
			for _, id := range m.Matches {
				distinct[id] = struct{}{}
			}
			break
		}
	}

	if len(distinct) == 0 {
		return 0
	}
	return weighted / float64(len(distinct))
}
