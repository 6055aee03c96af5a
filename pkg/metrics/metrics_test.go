package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then every metric is registered under the zonetrack namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.trialsSubmitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				found := false
				for _, f := range families {
					if f.GetName() == "zonetrack_analyzer_trials_submitted_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("lab"),
				WithSubsystem("epm"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"arena": "plus-maze"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and constant labels follow the options", func() {
				manager.trialsAnalyzed.Add(2)
				So(testutil.ToFloat64(manager.trialsAnalyzed), ShouldEqual, 2)
				n, err := testutil.GatherAndCount(registry, "lab_epm_trials_analyzed_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording trial metrics", func() {
			before := testutil.ToFloat64(globalManager.trialsSubmitted)
			RecordTrialSubmitted()
			RecordTrialSubmitted()
			RecordTrialDuplicate()
			RecordTrialAnalyzed()
			RecordTrialFailed("invalid_trial")
			RecordAnalysisLatency(12.5)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.trialsSubmitted)-before, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.trialsFailed.WithLabelValues("invalid_trial")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording frame and zone metrics", func() {
			total := testutil.ToFloat64(globalManager.framesTotal)
			undef := testutil.ToFloat64(globalManager.framesUndefined)
			RecordFrames(250, 10)
			RecordZoneEntries("center", 3)
			RecordZoneEntries("ignored", 0)
			UpdateArenaZones(4)

			Convey("Then totals accumulate", func() {
				So(testutil.ToFloat64(globalManager.framesTotal)-total, ShouldEqual, 250)
				So(testutil.ToFloat64(globalManager.framesUndefined)-undef, ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.zoneEntries.WithLabelValues("center")), ShouldBeGreaterThanOrEqualTo, 3)
				So(testutil.ToFloat64(globalManager.arenaZones), ShouldEqual, 4)
			})
		})

		Convey("When recording operational metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(3)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(8)
				RecordWorkerError()
				RecordHTTPRequest("/trials", "POST", "202")
				RecordHTTPRequestDuration("/trials", "POST", "202", 1.5)
				RecordErrorByComponent("worker", "analysis_failed")
				RecordErrorByType("analysis_failed", "error")
				UpdateStoreRecords(7)
				RecordStoreWriteLatency(0.4)
				RecordStoreQueryLatency(0.2)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.storeRecords), ShouldEqual, 7)
			})
		})

		Convey("When gathering the custom registry", func() {
			_, err := GetRegistry().Gather()

			Convey("Then it succeeds", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
