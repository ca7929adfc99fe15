// Package simulator publishes synthetic vehicle telemetry to the broker.
// A share of the simulated fleet carries a degradation bias so the
// evaluator has something to flag.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"fleetguard/core/telemetry"
	"fleetguard/infra/logger"
)

// Config holds parameters for the simulator.
type Config struct {
	VehicleCount    int     `json:"vehicle_count"`
	IntervalSeconds int     `json:"interval_seconds"`
	DegradedShare   float64 `json:"degraded_share"`
	TopicPrefix     string  `json:"topic_prefix"`
	Seed            int64   `json:"seed"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.VehicleCount == 0 {
		c.VehicleCount = 20
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 5
	}
	if c.DegradedShare == 0 {
		c.DegradedShare = 0.3
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fleet/telemetry"
	}
}

type simVehicle struct {
	id       string
	mileage  int
	degraded bool
}

// Simulator emits telemetry readings for a synthetic fleet.
type Simulator struct {
	cfg      Config
	client   paho.Client
	vehicles []simVehicle
	rng      *rand.Rand
	log      logger.Logger
}

// New builds a simulator over a connected client. A zero seed falls back to
// the wall clock.
func New(cfg Config, client paho.Client, log logger.Logger) *Simulator {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	vehicles := make([]simVehicle, cfg.VehicleCount)
	for i := range vehicles {
		vehicles[i] = simVehicle{
			id:       fmt.Sprintf("VEH-%03d", i+1),
			mileage:  20000 + rng.Intn(120000),
			degraded: rng.Float64() < cfg.DegradedShare,
		}
	}
	return &Simulator{cfg: cfg, client: client, vehicles: vehicles, rng: rng, log: log}
}

// Run publishes one reading per vehicle every interval until the context is
// cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Infof("simulating %d vehicles every %s", len(s.vehicles), interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for i := range s.vehicles {
				s.publish(&s.vehicles[i])
			}
		}
	}
}

func (s *Simulator) publish(v *simVehicle) {
	v.mileage += 5 + s.rng.Intn(40)
	r := s.reading(v)
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Errorf("marshal reading for %s: %v", v.id, err)
		return
	}
	topic := s.cfg.TopicPrefix + "/" + v.id
	tok := s.client.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(5 * time.Second) {
		s.log.Warnf("publish timeout for %s", v.id)
		return
	}
	if err := tok.Error(); err != nil {
		s.log.Errorf("publish for %s: %v", v.id, err)
	}
}

func (s *Simulator) reading(v *simVehicle) telemetry.Reading {
	r := telemetry.Reading{
		VehicleID:       v.id,
		Timestamp:       time.Now().UTC(),
		Mileage:         v.mileage,
		EngineLoad:      0.3 + 0.5*s.rng.Float64(),
		OilQuality:      6 + 4*s.rng.Float64(),
		BatteryPercent:  75 + 25*s.rng.Float64(),
		BrakeCondition:  telemetry.BrakeGood,
		BrakeTempC:      60 + 40*s.rng.Float64(),
		TirePressurePSI: 30 + 4*s.rng.Float64(),
		FuelConsumption: 5 + 5*s.rng.Float64(),
	}
	if !v.degraded {
		return r
	}
	// Degraded vehicles drift toward the evaluator thresholds; not every
	// reading trips a rule, which keeps flag timing uneven.
	if s.rng.Float64() < 0.6 {
		r.OilQuality = 1 + 4*s.rng.Float64()
	}
	if s.rng.Float64() < 0.4 {
		r.BatteryPercent = 35 + 35*s.rng.Float64()
	}
	switch n := s.rng.Float64(); {
	case n < 0.2:
		r.BrakeCondition = telemetry.BrakePoor
	case n < 0.5:
		r.BrakeCondition = telemetry.BrakeWarning
	}
	if s.rng.Float64() < 0.3 {
		r.TirePressurePSI = 24 + 3*s.rng.Float64()
	}
	if s.rng.Float64() < 0.25 {
		r.BrakeTempC = 115 + 30*s.rng.Float64()
	}
	return r
}
