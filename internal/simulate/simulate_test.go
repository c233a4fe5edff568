package simulate_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/versus/internal/adapters/http/api"
	service "github.com/okian/versus/internal/app"
	"github.com/okian/versus/internal/simulate"
	"github.com/okian/versus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := service.New(service.WithSamplerSeed(3))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 100).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func TestSpearman(t *testing.T) {
	Convey("Given two series", t, func() {
		Convey("When they are in the same order", func() {
			So(simulate.Spearman([]float64{1, 2, 3, 4}, []float64{10, 40, 90, 1000}), ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("When they are in opposite order", func() {
			So(simulate.Spearman([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}), ShouldAlmostEqual, -1.0, 1e-9)
		})

		Convey("When one side is constant", func() {
			So(simulate.Spearman([]float64{1, 2, 3}, []float64{5, 5, 5}), ShouldEqual, 0)
		})

		Convey("When the lengths differ", func() {
			So(simulate.Spearman([]float64{1, 2}, []float64{1}), ShouldEqual, 0)
		})

		Convey("When there are ties they share the average rank", func() {
			got := simulate.Spearman([]float64{1, 2, 2, 3}, []float64{1, 2, 3, 4})
			So(got, ShouldBeGreaterThan, 0.9)
			So(got, ShouldBeLessThan, 1.0)
			So(math.IsNaN(got), ShouldBeFalse)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := simulate.DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("Then a single profile is rejected", func() {
			cfg.Profiles = 1
			So(errors.Is(cfg.Validate(), simulate.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Then a missing base url is rejected", func() {
			cfg.BaseURL = ""
			So(errors.Is(cfg.Validate(), simulate.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Then zero concurrency is rejected", func() {
			cfg.Concurrency = 0
			So(errors.Is(cfg.Validate(), simulate.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running versus API", t, func() {
		srv := newServer(t)
		cfg := simulate.Config{
			BaseURL:        srv.URL,
			Prefix:         "sim-",
			Profiles:       8,
			Voters:         4,
			VotesPerVoter:  40,
			Concurrency:    2,
			Seed:           42,
			Timeout:        5 * time.Second,
			MinCorrelation: 0.3,
		}

		Convey("When the simulation runs", func() {
			report, err := simulate.Run(context.Background(), cfg)

			Convey("Then every vote is applied and the hidden order shows", func() {
				So(err, ShouldBeNil)
				So(report.Created, ShouldEqual, 8)
				So(report.Skipped, ShouldEqual, 0)
				So(report.Applied, ShouldEqual, 160)
				So(report.Duplicates, ShouldEqual, 0)
				So(report.Correlation, ShouldBeGreaterThanOrEqualTo, 0.3)
				So(report.Top, ShouldHaveLength, 8)
				So(report.Top[0].Rank, ShouldEqual, 1)
			})

			Convey("And a second run reuses the profiles", func() {
				again, err := simulate.Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(again.Created, ShouldEqual, 0)
				So(again.Skipped, ShouldEqual, 8)
			})
		})
	})
}

func TestRunUnreachable(t *testing.T) {
	Convey("Given no server behind the base url", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		cfg := simulate.DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Timeout = time.Second

		Convey("Then the health check fails", func() {
			_, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestClientErrors(t *testing.T) {
	Convey("Given a running versus API", t, func() {
		srv := newServer(t)
		client := simulate.NewClient(srv.URL, time.Second)

		Convey("When a pair is requested from an empty pool", func() {
			_, err := client.NextPair(context.Background(), "")

			Convey("Then the error carries the API code", func() {
				var se *simulate.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status, ShouldEqual, http.StatusServiceUnavailable)
				So(simulate.IsCode(err, "insufficient_pool"), ShouldBeTrue)
			})
		})

		Convey("When an unknown profile is ranked", func() {
			_, err := client.Rank(context.Background(), "ghost")
			So(simulate.IsCode(err, "not_found"), ShouldBeTrue)
		})
	})
}
