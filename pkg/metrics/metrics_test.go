package metrics

import (
	"strings"
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

			Convey("Then the league namespace is used", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "league")
				manager.snapshotsWritten.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "league_tracker_snapshots_written_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("fam"),
				WithSubsystem("test"),
				WithMetricPrefix("x_"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithFetchBuckets([]float64{100, 1000}),
				WithConstLabels(map[string]string{"family": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names carry the namespace, subsystem and prefix", func() {
				manager.reportsGenerated.WithLabelValues("weekly").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "fam_test_x_reports_generated_total")
				So(manager.latencyBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.fetchBuckets, ShouldResemble, []float64{100, 1000})
				So(manager.constLabels, ShouldResemble, map[string]string{"family": "test"})
			})
		})

		Convey("When empty options are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithLatencyBuckets(nil),
				WithFetchBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "league")
				So(manager.latencyBuckets, ShouldNotBeEmpty)
				So(manager.fetchBuckets[0], ShouldEqual, 50)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording snapshot writes", func() {
			before := testutil.ToFloat64(globalManager.snapshotsWritten)
			RecordSnapshotWritten()
			RecordSnapshotWritten()

			Convey("Then the counter increases", func() {
				So(testutil.ToFloat64(globalManager.snapshotsWritten)-before, ShouldEqual, 2)
			})
		})

		Convey("When recording store operations", func() {
			RecordStoreOperation("json", "put", "ok", 3.5)
			RecordStoreOperation("json", "put", "error", 1)

			Convey("Then outcomes are split by label", func() {
				So(testutil.ToFloat64(globalManager.storeOps.WithLabelValues("json", "put", "error")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording prune counts", func() {
			before := testutil.ToFloat64(globalManager.snapshotsPruned)
			RecordSnapshotsPruned(0)
			RecordSnapshotsPruned(-3)
			RecordSnapshotsPruned(4)

			Convey("Then only positive counts are added", func() {
				So(testutil.ToFloat64(globalManager.snapshotsPruned)-before, ShouldEqual, 4)
			})
		})

		Convey("When recording a report", func() {
			RecordReport("weekly", 3, 1, 2, 12)

			Convey("Then the headline gauges reflect it", func() {
				So(testutil.ToFloat64(globalManager.leaderboardSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.lowConfidenceUsers), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.missingUsers), ShouldEqual, 2)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordFetch("ok", 120)
				RecordMigrationCopied(5)
				RecordEmail("sent")
				UpdateCircuitBreakerState("gist", 2)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 1.2)
				RecordErrorByComponent("store", "read")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.circuitBreakerState.WithLabelValues("gist")), ShouldEqual, 2)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
