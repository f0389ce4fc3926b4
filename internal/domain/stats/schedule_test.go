package stats_test

import (
	"testing"

	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	"github.com/fwdcp/ESEADivisions/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSelectRegularSeason(t *testing.T) {
	Convey("Given a 1-0-1 record and a mixed match sequence", t, func() {
		record := model.Record{Wins: 1, Ties: 0, Losses: 1}
		matches := []model.Match{
			{ID: 1, Status: "scheduled", OpposingTeam: 99},
			{ID: 2, Status: model.MatchStatusCompleted, OpposingTeam: 2},
			{ID: 3, Status: model.MatchStatusCompleted, OpposingTeam: 3},
			{ID: 4, Status: model.MatchStatusCompleted, OpposingTeam: 4},
		}

		selected := stats.SelectRegularSeason(record, matches)

		Convey("Only the first N completed matches are selected", func() {
			So(len(selected), ShouldEqual, 2)
			So(selected[0].OpposingTeam, ShouldEqual, 2)
			So(selected[1].OpposingTeam, ShouldEqual, 3)
		})
	})

	Convey("Given fewer completed matches than the record claims", t, func() {
		record := model.Record{Wins: 3, Losses: 2}
		matches := []model.Match{
			{ID: 1, Status: model.MatchStatusCompleted, OpposingTeam: 2},
			{ID: 2, Status: "in-progress", OpposingTeam: 3},
		}

		Convey("Everything completed is selected", func() {
			So(len(stats.SelectRegularSeason(record, matches)), ShouldEqual, 1)
		})
	})

	Convey("Given an empty record", t, func() {
		matches := []model.Match{{ID: 1, Status: model.MatchStatusCompleted}}

		Convey("Nothing is selected", func() {
			So(stats.SelectRegularSeason(model.Record{}, matches), ShouldBeEmpty)
		})
	})
}

func TestAccumulateStrength(t *testing.T) {
	Convey("Given opponent strengths including a missing opponent", t, func() {
		opponents := []stats.OpponentStrength{
			{Record: model.Record{Wins: 4, Ties: 1, Losses: 2, PointsFor: 50, PointsAgainst: 30}, ExperienceRating: 2.5},
			{}, // unknown opponent contributes an all-zero record
			{Record: model.Record{Wins: 1, Losses: 6, PointsFor: 20, PointsAgainst: 70}, ExperienceRating: 1.25},
		}

		total := stats.AccumulateStrength(opponents)

		Convey("Fields are summed across opponents", func() {
			So(total.Wins, ShouldEqual, 5)
			So(total.Ties, ShouldEqual, 1)
			So(total.Losses, ShouldEqual, 8)
			So(total.PointsFor, ShouldEqual, 70)
			So(total.PointsAgainst, ShouldEqual, 100)
			So(total.ExperienceRating, ShouldEqual, 3.75)
		})

		Convey("Percentage is never derived here", func() {
			So(total.Percentage, ShouldEqual, 0)
		})
	})
}

func TestRecomputeSet(t *testing.T) {
	Convey("Given a touched team with two opponents", t, func() {
		matches := map[int64][]model.Match{
			1: {
				{ID: 10, OpposingTeam: 2, Status: model.MatchStatusCompleted},
				{ID: 11, OpposingTeam: 3, Status: "scheduled"},
			},
			2: {
				{ID: 12, OpposingTeam: 4, Status: model.MatchStatusCompleted},
			},
		}

		set := stats.RecomputeSet([]int64{1}, matches)

		Convey("The set is the touched team plus its direct opponents only", func() {
			So(set, ShouldContainKey, int64(1))
			So(set, ShouldContainKey, int64(2))
			So(set, ShouldContainKey, int64(3))
			So(len(set), ShouldEqual, 3)

			Convey("Teams two hops away are excluded", func() {
				So(set, ShouldNotContainKey, int64(4))
			})
		})
	})

	Convey("Given no touched teams", t, func() {
		So(stats.RecomputeSet(nil, nil), ShouldBeEmpty)
	})
}
