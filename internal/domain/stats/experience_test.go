package stats_test

import (
	"testing"

	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	"github.com/fwdcp/ESEADivisions/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDivisionWeight(t *testing.T) {
	Convey("Division weights follow the league ladder", t, func() {
		So(stats.DivisionWeight("open"), ShouldEqual, 1)
		So(stats.DivisionWeight("intermediate"), ShouldEqual, 2)
		So(stats.DivisionWeight("main"), ShouldEqual, 3)
		So(stats.DivisionWeight("premier"), ShouldEqual, 4)
		So(stats.DivisionWeight("invite"), ShouldEqual, 5)

		Convey("Unknown levels weigh the same as open", func() {
			So(stats.DivisionWeight("amateur"), ShouldEqual, 1)
		})
	})
}

func TestPlayerGameExperience(t *testing.T) {
	Convey("Given a player with open and invite memberships in one game", t, func() {
		p := model.Player{
			Player: 1,
			Teams: []model.TeamMembership{
				{ID: 10, Game: 1, Season: 8, Division: "open", Matches: []int64{1, 2, 3}},
				{ID: 20, Game: 1, Season: 9, Division: "invite", Matches: []int64{4, 5}},
			},
		}

		Convey("The per-game score weighs each membership by division", func() {
			// 1x3 + 5x2
			So(stats.PlayerGameExperience(p, 1, 9), ShouldEqual, 13)
		})

		Convey("Memberships after the target season are excluded", func() {
			So(stats.PlayerGameExperience(p, 1, 8), ShouldEqual, 3)
		})

		Convey("Memberships in other games are excluded", func() {
			So(stats.PlayerGameExperience(p, 2, 9), ShouldEqual, 0)
		})
	})
}

func TestExperienceRating(t *testing.T) {
	key := model.MembershipKey{Team: 20, Game: 1, Season: 9, Series: 3, Event: 500, Division: "invite"}

	Convey("Given a roster with one matching player", t, func() {
		p := model.Player{
			Player: 1,
			Teams: []model.TeamMembership{
				{ID: 10, Game: 1, Season: 8, Division: "open", Matches: []int64{1, 2, 3}},
				{ID: 20, Game: 1, Season: 9, Series: 3, Event: 500, Division: "invite", Matches: []int64{4, 5}},
			},
		}

		Convey("The rating is the weighted sum over distinct matches played", func() {
			// weighted = 2 matches x per-game score 13; distinct ids = {4, 5}
			So(stats.ExperienceRating(key, []model.Player{p}), ShouldEqual, 13.0)
		})

		Convey("A second roster player widens the distinct match set", func() {
			q := model.Player{
				Player: 2,
				Teams: []model.TeamMembership{
					{ID: 20, Game: 1, Season: 9, Series: 3, Event: 500, Division: "invite", Matches: []int64{4, 6, 7}},
				},
			}
			// weighted = 2x13 + 3x15 = 71; distinct = {4,5,6,7}
			So(stats.ExperienceRating(key, []model.Player{p, q}), ShouldEqual, 71.0/4.0)
		})

		Convey("Players without a matching membership contribute nothing", func() {
			q := model.Player{
				Player: 3,
				Teams: []model.TeamMembership{
					{ID: 99, Game: 1, Season: 9, Division: "main", Matches: []int64{8, 9}},
				},
			}
			So(stats.ExperienceRating(key, []model.Player{p, q}), ShouldEqual, 13.0)
		})
	})

	Convey("Given a roster that played no matches", t, func() {
		p := model.Player{
			Player: 1,
			Teams: []model.TeamMembership{
				{ID: 20, Game: 1, Season: 9, Series: 3, Event: 500, Division: "invite", Matches: nil},
			},
		}

		Convey("The rating is zero, not a division by zero", func() {
			So(stats.ExperienceRating(key, []model.Player{p}), ShouldEqual, 0)
		})
	})

	Convey("Given an empty roster", t, func() {
		So(stats.ExperienceRating(key, nil), ShouldEqual, 0)
	})
}
