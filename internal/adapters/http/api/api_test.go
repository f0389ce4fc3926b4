package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/adapters/http/api"
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeDeps struct {
	index     *feed.DivisionIndex
	indexErr  error
	syncErr   error
	syncCalls int
	synced    []int64
	teams     map[int64][]model.TeamSeason
}

func (f *fakeDeps) DivisionIndex(_ context.Context) (*feed.DivisionIndex, error) {
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	return f.index, nil
}

func (f *fakeDeps) SyncDivision(_ context.Context, division int64) error {
	f.syncCalls++
	f.synced = append(f.synced, division)
	return f.syncErr
}

func (f *fakeDeps) TeamSeasonsByEvent(_ context.Context, event int64) ([]model.TeamSeason, error) {
	return f.teams[event], nil
}

func newTestServer(deps *fakeDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(mux)
	return httptest.NewServer(mux)
}

func TestDivisionList(t *testing.T) {
	Convey("Given a feed with two divisions", t, func() {
		deps := &fakeDeps{
			index: &feed.DivisionIndex{SelectDivisionID: map[string]map[string]map[string]string{
				"18": {"1": {"500": "Open", "501": "Invite"}},
			}},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("The listing flattens into rows", func() {
			resp, err := http.Get(srv.URL + "/divisions/list.json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var rows []feed.DivisionRow
			So(json.NewDecoder(resp.Body).Decode(&rows), ShouldBeNil)
			So(len(rows), ShouldEqual, 2)
			So(rows[0].ID, ShouldEqual, 500)
			So(rows[0].Season, ShouldEqual, "18")
			So(rows[0].Division, ShouldEqual, "Open")
		})

		Convey("A feed failure maps to a 500", func() {
			deps.indexErr = errors.New("feed down")
			resp, err := http.Get(srv.URL + "/divisions/list.json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestDivisionDetail(t *testing.T) {
	Convey("Given a store with one synced division", t, func() {
		deps := &fakeDeps{
			teams: map[int64][]model.TeamSeason{
				500: {{
					Team:     42,
					Name:     "Quakers",
					Event:    500,
					Division: "open",
					Raw: model.TeamSeasonRaw{
						Standings: model.Snapshot{"secret": "snapshot"},
					},
				}},
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("The detail request syncs the division and returns its teams", func() {
			resp, err := http.Get(srv.URL + "/divisions/500.json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(deps.syncCalls, ShouldEqual, 1)
			So(deps.synced, ShouldResemble, []int64{500})

			var teams []map[string]interface{}
			So(json.NewDecoder(resp.Body).Decode(&teams), ShouldBeNil)
			So(len(teams), ShouldEqual, 1)
			So(teams[0]["name"], ShouldEqual, "Quakers")

			Convey("Raw snapshots are stripped from the payload", func() {
				_, leaked := teams[0]["raw"]
				So(leaked, ShouldBeFalse)
			})
		})

		Convey("A failed run maps to a 500 with no partial payload", func() {
			deps.syncErr = errors.New("run failed")
			resp, err := http.Get(srv.URL + "/divisions/500.json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)

			var body map[string]interface{}
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["code"], ShouldEqual, "sync_failed")
			_, partial := body["name"]
			So(partial, ShouldBeFalse)
		})

		Convey("A non-numeric division id maps to a 400", func() {
			resp, err := http.Get(srv.URL + "/divisions/abc.json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(deps.syncCalls, ShouldEqual, 0)
		})
	})
}
