package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "fleetguard/core/metrics"
)

// PromSink records scheduling events in Prometheus metrics.
type PromSink struct {
	scheduled *prometheus.CounterVec
	failed    *prometheus.CounterVec
	flags     prometheus.Counter
	batchDur  prometheus.Histogram
}

// NewPromSink registers scheduling metrics on the default Prometheus
// registerer. The metrics server is started separately.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	scheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_bookings_total",
		Help: "Total bookings committed by the allocator",
	}, []string{"center_id", "severity_level"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_failures_total",
		Help: "Total vehicles the allocator could not schedule",
	}, []string{"reason"})
	flags := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_flags_total",
		Help: "Total maintenance flags raised by telemetry evaluation",
	})
	batchDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_batch_duration_seconds",
		Help:    "Wall time of one scheduleBatch invocation",
		Buckets: prometheus.DefBuckets,
	})

	s := &PromSink{scheduled: scheduled, failed: failed, flags: flags, batchDur: batchDur}
	for _, c := range []prometheus.Collector{scheduled, failed, flags, batchDur} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordScheduleResult increments per-vehicle outcome counters.
func (s *PromSink) RecordScheduleResult(res []coremetrics.ScheduleResult) error {
	for _, r := range res {
		if r.Scheduled {
			s.scheduled.WithLabelValues(r.CenterID, r.SeverityLevel).Inc()
		} else {
			s.failed.WithLabelValues(r.FailReason).Inc()
		}
	}
	return nil
}

// RecordBatch observes the batch duration.
func (s *PromSink) RecordBatch(_, _ int, d time.Duration) error {
	s.batchDur.Observe(d.Seconds())
	return nil
}

// RecordFlag counts a raised maintenance flag.
func (s *PromSink) RecordFlag(string, float64) error {
	s.flags.Inc()
	return nil
}
