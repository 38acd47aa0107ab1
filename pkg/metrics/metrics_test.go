package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a single-series counter or gauge.
func value(c prometheus.Collector) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var pb dto.Metric
	if err := (<-ch).Write(&pb); err != nil {
		return -1
	}
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	return -1
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every metric is registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.sessionsStarted.Inc()
				manager.roundsTotal.WithLabelValues("a_wins").Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "test_unit_"), ShouldBeTrue)
				}
			})
		})

		Convey("When registering the same names twice on one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording session metrics", func() {
			before := value(globalManager.sessionsStarted)
			RecordSessionStarted()
			RecordSessionCompleted("converged", 7.4)
			RecordSessionAborted()
			RecordSessionsReaped(2)
			UpdateActiveSessions(3)
			RecordRound("too_tough")
			RecordPersistenceFailure()

			Convey("Then the counters move", func() {
				So(value(globalManager.sessionsStarted), ShouldEqual, before+1)
				So(value(globalManager.sessionsCompleted.WithLabelValues("converged")), ShouldBeGreaterThanOrEqualTo, 1)
				So(value(globalManager.activeSessions), ShouldEqual, 3)
				So(value(globalManager.roundsTotal.WithLabelValues("too_tough")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording infrastructure metrics", func() {
			So(func() {
				RecordHTTPRequest("/v1/sessions", "POST", "201")
				RecordHTTPRequestDuration("/v1/sessions", "POST", "201", 3)
				UpdateRepositoryRecordsTotal(10)
				UpdateRepositoryItemsPerCategory("movie", 10)
				RecordRepositoryUpdateLatency(1)
				RecordRepositoryQueryLatency(1)
				UpdateQueueSize(1)
				UpdateQueueCapacity(8)
				UpdateQueueUtilization(12.5)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordWriterLatency(2)
				RecordWriterError()
				RecordErrorByComponent("api", "bad_request")
			}, ShouldNotPanic)

			Convey("Then they are exposed by the custom registry", func() {
				So(value(globalManager.repositoryItemsPerCategory.WithLabelValues("movie")), ShouldEqual, 10)
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["flickrank_rating_write_queue_capacity"], ShouldBeTrue)
				So(names["flickrank_rating_http_requests_total"], ShouldBeTrue)
			})
		})
	})
}
