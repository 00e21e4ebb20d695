package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors should be registered under the default names", func() {
				So(manager, ShouldNotBeNil)

				manager.runsStarted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make(map[string]bool)
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["flightrisk_engine_runs_started_total"], ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors should be registered under the custom names", func() {
				manager.runsStarted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make(map[string]bool)
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_namespace_test_subsystem_test_prefix_runs_started_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then duplicate registration should panic", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestRunMetrics(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording run lifecycle metrics", func() {
			startedBefore := testutil.ToFloat64(globalManager.runsStarted)
			completedBefore := testutil.ToFloat64(globalManager.runsCompleted)
			failedBefore := testutil.ToFloat64(globalManager.runsFailed)
			supersededBefore := testutil.ToFloat64(globalManager.runsSuperseded)

			RecordRunStarted()
			RecordRunStarted()
			RecordRunCompleted(42)
			RecordRunFailed()
			RecordRunSuperseded()

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.runsStarted)-startedBefore, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.runsCompleted)-completedBefore, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.runsFailed)-failedBefore, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.runsSuperseded)-supersededBefore, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.lastRunUnix), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recording population and exclusion metrics", func() {
			UpdatePeopleConsidered(12)
			UpdatePeopleEligible(7)
			before := testutil.ToFloat64(globalManager.exclusions.WithLabelValues("insufficient_history"))
			RecordExclusion("insufficient_history")
			UpdateAssessments("High", 3)

			Convey("Then gauges and counters should reflect the values", func() {
				So(testutil.ToFloat64(globalManager.peopleConsidered), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.peopleEligible), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.exclusions.WithLabelValues("insufficient_history"))-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.assessments.WithLabelValues("High")), ShouldEqual, 3)
			})
		})

		Convey("When recording scorer metrics", func() {
			before := testutil.ToFloat64(globalManager.scoringErrors.WithLabelValues("timeout"))
			RecordScoringLatency(120)
			RecordScoringError("timeout")

			Convey("Then the error counter should be labelled by kind", func() {
				So(testutil.ToFloat64(globalManager.scoringErrors.WithLabelValues("timeout"))-before, ShouldEqual, 1)
			})
		})
	})
}

func TestOperationalMetrics(t *testing.T) {
	Convey("Given operational recorders", t, func() {
		Convey("When recording queue and worker metrics", func() {
			UpdateQueueCapacity(16)
			UpdateQueueSize(4)
			UpdateQueueUtilization(0.25)
			UpdateWorkerCount(2)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 16)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 2)
			})

			Convey("And counters should not panic", func() {
				So(func() {
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordWorkerProcessingLatency(10)
					RecordWorkerError()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordHTTPRequest("risk", "GET", "200")
					RecordHTTPRequestDuration("risk", "GET", "200", 5.0)
					RecordErrorByComponent("engine", "timeout")
					RecordErrorByType("timeout", "medium")
					RecordErrorByEndpoint("analyze", "POST", "rate_limit")
					RecordErrorLatency("http", "client_error", 3.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording system metrics", func() {
			UpdateSystemMemoryUsage(1024)
			UpdateSystemGoroutineCount(9)
			RecordSystemGCPauseTime(0.5)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.systemMemoryUsage), ShouldEqual, 1024)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 9)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it should be the custom one", func() {
				So(GetRegistry(), ShouldPointTo, customRegistry)
			})
		})
	})
}
