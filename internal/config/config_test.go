package config_test

import (
	"context"
	"testing"

	"github.com/fwdcp/ESEADivisions/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	Convey("Given a default config", t, func() {
		c := config.New()

		Convey("It carries sane defaults", func() {
			So(c.Addr, ShouldEqual, ":8080")
			So(c.MongoDatabase, ShouldEqual, "eseadivisions")
			So(c.FeedBaseURL, ShouldEqual, "http://play.esea.net")
			So(c.FetchConcurrency, ShouldEqual, 10)
			So(c.StreamConcurrency, ShouldEqual, 10)
			So(c.BulkRate, ShouldEqual, 1)
			So(c.IncrementalRate, ShouldEqual, 10)
		})

		Convey("Options override fields", func() {
			c = config.New(
				config.WithAddr(":9999"),
				config.WithMongoURI("mongodb://db:27017"),
				config.WithFeedBaseURL("http://example.test"),
			)
			So(c.Addr, ShouldEqual, ":9999")
			So(c.MongoURI, ShouldEqual, "mongodb://db:27017")
			So(c.FeedBaseURL, ShouldEqual, "http://example.test")
		})
	})
}

func TestConfigLoad(t *testing.T) {
	Convey("Given the environment provides overrides", t, func() {
		t.Setenv("ESEA_ADDR", ":7070")
		t.Setenv("ESEA_INCREMENTAL_RATE", "25")

		cfg, err := config.Load(context.Background())

		Convey("Load layers env over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.IncrementalRate, ShouldEqual, 25.0)
			So(cfg.MongoDatabase, ShouldEqual, "eseadivisions")
		})
	})

	Convey("Given an invalid rate", t, func() {
		t.Setenv("ESEA_BULK_RATE", "-1")

		_, err := config.Load(context.Background())

		Convey("Load rejects the config", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "rates must be positive")
		})
	})
}
