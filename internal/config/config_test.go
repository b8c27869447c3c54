package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/riskwatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.Confidence7Day, convey.ShouldEqual, 0.85)
			convey.So(cfg.Confidence30Day, convey.ShouldEqual, 0.75)
			convey.So(cfg.TargetAccuracy, convey.ShouldEqual, 70.0)
			convey.So(cfg.DemoData, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_AllowedOrigins(t *testing.T) {
	convey.Convey("Given a comma separated origin list", t, func() {
		cfg := config.New()
		cfg.CORSAllowedOrigins = " https://a.example , ,https://b.example"
		convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})

		cfg.CORSAllowedOrigins = ""
		convey.So(cfg.AllowedOrigins(), convey.ShouldBeEmpty)
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given an invalid config", t, func() {
		cfg := config.New()
		cfg.StoreDriver = "sqlite"
		cfg.SQLitePath = ""
		cfg.Confidence7Day = 1.5
		cfg.LogFormat = "xml"

		err := cfg.Validate()

		convey.Convey("Then every problem is reported", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "sqlite_path")
			convey.So(err.Error(), convey.ShouldContainSubstring, "confidence_7_day")
			convey.So(err.Error(), convey.ShouldContainSubstring, "log_format")
		})
	})
}
