// Package metrics defines the sink interfaces used to record scheduling
// activity. Concrete sinks live under infra/metrics.
package metrics

import "time"

// ScheduleResult captures the outcome of one vehicle within a batch.
type ScheduleResult struct {
	VehicleID     string
	CenterID      string
	BookingID     string
	PriorityScore float64
	SeverityLevel string
	Scheduled     bool
	FailReason    string
	SlotStart     time.Time
	At            time.Time
}

// Sink records scheduling metrics.
type Sink interface {
	RecordScheduleResult(res []ScheduleResult) error
	RecordBatch(scheduled, failed int, d time.Duration) error
}

// FlagRecorder is an optional extension for sinks tracking flag creation.
type FlagRecorder interface {
	RecordFlag(vehicleID string, severity float64) error
}

// Config selects the enabled sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordScheduleResult([]ScheduleResult) error { return nil }
func (NopSink) RecordBatch(int, int, time.Duration) error   { return nil }

// MultiSink fans records out to several sinks, returning the first error.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordScheduleResult(res []ScheduleResult) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordScheduleResult(res); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordBatch(scheduled, failed int, d time.Duration) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordBatch(scheduled, failed, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
