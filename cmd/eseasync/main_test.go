package main

import (
	"testing"

	"github.com/fwdcp/ESEADivisions/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFetchRate(t *testing.T) {
	Convey("Given configured bulk and incremental rates", t, func() {
		cfg := &config.Config{BulkRate: 1, IncrementalRate: 10}

		Convey("Preload runs draw at the bulk rate", func() {
			So(fetchRate(cfg, true), ShouldEqual, 1.0)
		})

		Convey("Full and incremental runs draw at the incremental rate", func() {
			So(fetchRate(cfg, false), ShouldEqual, 10.0)
		})
	})
}
