package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/versus/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.KFactor, convey.ShouldEqual, 32.0)
			convey.So(cfg.InitialRating, convey.ShouldEqual, 1500.0)
			convey.So(cfg.TopFraction, convey.ShouldEqual, 0.15)
			convey.So(cfg.TopPickProbability, convey.ShouldEqual, 0.3)
			convey.So(cfg.ExclusionWindow, convey.ShouldEqual, 3)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.EnrichTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid field each", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":           func(c *config.Config) { c.Addr = "" },
			"zero k factor":        func(c *config.Config) { c.KFactor = 0 },
			"negative rating":      func(c *config.Config) { c.InitialRating = -1 },
			"top fraction above 1": func(c *config.Config) { c.TopFraction = 1.5 },
			"negative probability": func(c *config.Config) { c.TopPickProbability = -0.1 },
			"negative window":      func(c *config.Config) { c.ExclusionWindow = -1 },
			"negative pool sample": func(c *config.Config) { c.PoolSampleSize = -5 },
			"unknown driver":       func(c *config.Config) { c.StoreDriver = "redis" },
			"sqlite without path": func(c *config.Config) {
				c.StoreDriver = config.StoreSQLite
				c.SQLitePath = ""
			},
		}

		for name, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given the boundary values of the sampler fractions", t, func() {
		cfg := config.New(context.Background())
		cfg.TopFraction = 0
		cfg.TopPickProbability = 1
		cfg.ExclusionWindow = 0

		convey.Convey("Then they are accepted", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
