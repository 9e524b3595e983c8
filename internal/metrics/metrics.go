package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "run_planner"

var (
	plansCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plans",
		Name:      "created_total",
		Help:      "Plans stored, by source (generated or imported).",
	}, []string{"source"})
	planReflows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plans",
		Name:      "reflows_total",
		Help:      "Missed-session reflows, by carry-over outcome.",
	}, []string{"outcome"})
	planWriteConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plans",
		Name:      "write_conflicts_total",
		Help:      "Plan updates rejected because another write landed first.",
	})
	linksCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "links",
		Name:      "created_total",
		Help:      "Session-activity links written, by source (manual or auto).",
	}, []string{"source"})
	activitiesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "ingested_total",
		Help:      "Activities written, by source.",
	}, []string{"source"})
	activitySyncedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful activity sync.",
	})
	httpRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		plansCreated,
		planReflows,
		planWriteConflicts,
		linksCreated,
		activitiesIngested,
		activitySyncedGauge,
		httpRequests,
	)
}

func RecordPlanCreated(source string) {
	plansCreated.WithLabelValues(source).Inc()
}

// RecordReflow counts a reflow as "carried", "dropped" or "none".
func RecordReflow(outcome string) {
	planReflows.WithLabelValues(outcome).Inc()
}

func RecordPlanConflict() {
	planWriteConflicts.Inc()
}

func RecordLinks(source string, n int) {
	if n <= 0 {
		return
	}
	linksCreated.WithLabelValues(source).Add(float64(n))
}

func RecordActivitiesIngested(source string, n int) {
	if n <= 0 {
		return
	}
	activitiesIngested.WithLabelValues(source).Add(float64(n))
}

// RecordActivitySynced updates the sync watermark gauge.
func RecordActivitySynced(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activitySyncedGauge.Set(float64(ts.Unix()))
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
