package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("duel"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithMetricsEnabled(true),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.votes.WithLabelValues("left").Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make(map[string]bool)
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_duel_votes_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When votes are recorded", func() {
			before := testutil.ToFloat64(globalManager.votes.WithLabelValues("draw"))
			RecordVote("draw")
			RecordVote("draw")

			Convey("Then the outcome counter moves", func() {
				So(testutil.ToFloat64(globalManager.votes.WithLabelValues("draw")), ShouldEqual, before+2)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateTotalProfiles(42)
			UpdateActiveSessions(3)
			UpdateQueueSize(7)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.totalProfiles), ShouldEqual, float64(42))
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, float64(3))
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, float64(7))
			})
		})

		Convey("When predictions and sampling are recorded", func() {
			beforeTrue := testutil.ToFloat64(globalManager.predictions.WithLabelValues("true"))
			beforeTop := testutil.ToFloat64(globalManager.pairsSampled.WithLabelValues("1"))
			RecordPrediction(true)
			RecordPairSampled(1)

			Convey("Then the labelled counters move", func() {
				So(testutil.ToFloat64(globalManager.predictions.WithLabelValues("true")), ShouldEqual, beforeTrue+1)
				So(testutil.ToFloat64(globalManager.pairsSampled.WithLabelValues("1")), ShouldEqual, beforeTop+1)
			})
		})

		Convey("When the remaining helpers are called", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordSamplerFallback("exclusion")
					RecordInsufficientPool()
					RecordVoteRejected("pair_mismatch")
					RecordVoteDuplicate()
					RecordRatingDelta(-16)
					RecordVoteApplyLatency(1.5)
					RecordHTTPRequest("pair", "GET", "200")
					RecordHTTPRequestDuration("pair", "GET", "200", 2)
					RecordRepositoryUpdateLatency(1)
					RecordRepositoryQueryLatency(1)
					RecordRepositoryError("insert_vote")
					UpdateQueueCapacity(10)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerCount(2)
					RecordEnrichment("ok")
					RecordEnrichmentLatency(12)
					RecordEnrichmentCache(false)
					RecordErrorByComponent("api", "bad_request")
					RecordErrorByType("client_error", "medium")
					RecordErrorByEndpoint("votes", "POST", "client_error")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
			})
		})

		Convey("When the registry is requested", func() {
			Convey("Then it is the custom registry", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
