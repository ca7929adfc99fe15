// Package forecast estimates regional maintenance demand. It is a pluggable
// input to capacity planning; the scheduler itself never depends on it.
package forecast

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"fleetguard/core/model"
)

// HistorySource supplies daily flag counts per region.
type HistorySource interface {
	FlagCountsByDay(ctx context.Context, region string, days int, now time.Time) ([]int, error)
}

// CapacitySource supplies the open-booking load per center.
type CapacitySource interface {
	ListActiveCenters(ctx context.Context) ([]model.ServiceCenter, error)
	CountOverlapping(ctx context.Context, centerID string, start, end time.Time) (int, error)
}

// Config tunes the estimation window.
type Config struct {
	HistoryDays  int     `json:"history_days"`
	HorizonDays  int     `json:"horizon_days"`
	DemandFactor float64 `json:"demand_factor"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.HistoryDays == 0 {
		c.HistoryDays = 30
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = 7
	}
	if c.DemandFactor == 0 {
		c.DemandFactor = 1.2
	}
}

// Forecast is a demand estimate for one region and window.
type Forecast struct {
	Region              string    `json:"region"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	EstimatedRequests   int       `json:"estimated_requests"`
	Confidence          float64   `json:"confidence_level"`
	CapacityUtilization float64   `json:"capacity_utilization"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Engine produces demand forecasts from flag history and booking load.
type Engine struct {
	cfg     Config
	history HistorySource
	load    CapacitySource
	now     func() time.Time
}

// NewEngine creates a forecast engine. A nil now function defaults to
// time.Now.
func NewEngine(cfg Config, history HistorySource, load CapacitySource, now func() time.Time) *Engine {
	cfg.SetDefaults()
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, history: history, load: load, now: now}
}

// Estimate projects flag demand for the region over the configured horizon.
// A least-squares trend over the daily history is extrapolated day by day,
// floored at zero; confidence degrades with the fit's residual spread.
func (e *Engine) Estimate(ctx context.Context, region string) (*Forecast, error) {
	return e.EstimateHorizon(ctx, region, e.cfg.HorizonDays)
}

// EstimateHorizon is Estimate with a per-call horizon override. A
// non-positive horizon falls back to the configured one.
func (e *Engine) EstimateHorizon(ctx context.Context, region string, horizonDays int) (*Forecast, error) {
	if horizonDays <= 0 {
		horizonDays = e.cfg.HorizonDays
	}
	now := e.now()
	counts, err := e.history.FlagCountsByDay(ctx, region, e.cfg.HistoryDays, now)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, errors.New("forecast: no flag history")
	}

	xs := make([]float64, len(counts))
	ys := make([]float64, len(counts))
	for i, c := range counts {
		xs[i] = float64(i)
		ys[i] = float64(c)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	mean := stat.Mean(ys, nil)

	var total float64
	for d := 1; d <= horizonDays; d++ {
		est := alpha + beta*float64(len(counts)-1+d)
		if est < 0 {
			est = 0
		}
		total += est
	}
	// A flat history makes the regression no better than the mean; keep the
	// mean as the floor so a quiet trend never forecasts below recent load.
	if floor := mean * float64(horizonDays); total < floor {
		total = floor
	}
	total *= e.cfg.DemandFactor

	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	confidence := 0.5 + 0.5*clamp01(r2)

	util, err := e.utilization(ctx, region, now, horizonDays)
	if err != nil {
		return nil, err
	}

	return &Forecast{
		Region:              region,
		WindowStart:         now,
		WindowEnd:           now.AddDate(0, 0, horizonDays),
		EstimatedRequests:   int(math.Ceil(total)),
		Confidence:          confidence,
		CapacityUtilization: util,
		GeneratedAt:         now,
	}, nil
}

// utilization compares open bookings against total bay-hours for the
// region's centers over the next horizon.
func (e *Engine) utilization(ctx context.Context, region string, now time.Time, horizonDays int) (float64, error) {
	centers, err := e.load.ListActiveCenters(ctx)
	if err != nil {
		return 0, err
	}
	end := now.AddDate(0, 0, horizonDays)
	var booked, capacity float64
	for _, c := range centers {
		if region != "" && c.Region != region {
			continue
		}
		n, err := e.load.CountOverlapping(ctx, c.ID, now, end)
		if err != nil {
			return 0, err
		}
		booked += float64(n)
		hoursPerDay := c.CloseHour - c.OpenHour
		capacity += float64(c.CapacityBays * hoursPerDay * horizonDays)
	}
	if capacity == 0 {
		return 0, nil
	}
	return clamp01(booked / capacity), nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
