package stats

import (
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// RecomputeSet returns the set of team ids whose derived statistics must be
// recomputed after the given teams were touched: the touched teams plus every
// team appearing as an opponent in a touched team's match list. A single hop,
// not a transitive closure.
func RecomputeSet(touched []int64, matchesByTeam map[int64][]model.Match) map[int64]struct{} {
	set := make(map[int64]struct{}, len(touched))
	for _, id := range touched {
		set[id] = struct{}{}
		for _, m := range matchesByTeam[id] {
			set[m.OpposingTeam] = struct{}{}
		}
	}
	return set
}
