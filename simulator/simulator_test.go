package simulator

import (
	"testing"

	"fleetguard/core/telemetry"
)

func TestHealthyVehicleNeverFlags(t *testing.T) {
	cfg := Config{VehicleCount: 1, DegradedShare: 0, Seed: 7}
	s := New(cfg, nil, nil)
	eval := telemetry.NewEvaluator(telemetry.DefaultThresholds())

	v := &s.vehicles[0]
	for i := 0; i < 500; i++ {
		v.mileage += 10
		r := s.reading(v)
		if a := eval.Evaluate(r); a.Flagged {
			t.Fatalf("healthy vehicle flagged on iteration %d: %+v", i, a)
		}
	}
}

func TestDegradedShareApplied(t *testing.T) {
	cfg := Config{VehicleCount: 100, DegradedShare: 0.3, Seed: 7}
	s := New(cfg, nil, nil)

	degraded := 0
	for _, v := range s.vehicles {
		if v.degraded {
			degraded++
		}
	}
	if degraded < 15 || degraded > 45 {
		t.Fatalf("expected roughly 30%% degraded, got %d of 100", degraded)
	}
}

func TestDegradedVehicleEventuallyFlags(t *testing.T) {
	cfg := Config{VehicleCount: 1, DegradedShare: 1, Seed: 7}
	s := New(cfg, nil, nil)
	eval := telemetry.NewEvaluator(telemetry.DefaultThresholds())

	v := &s.vehicles[0]
	if !v.degraded {
		t.Fatal("expected a degraded vehicle with share 1.0")
	}
	for i := 0; i < 200; i++ {
		if a := eval.Evaluate(s.reading(v)); a.Flagged {
			return
		}
	}
	t.Fatal("degraded vehicle never tripped the evaluator in 200 readings")
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.VehicleCount != 20 || cfg.IntervalSeconds != 5 || cfg.DegradedShare != 0.3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TopicPrefix != "fleet/telemetry" {
		t.Fatalf("unexpected topic prefix %s", cfg.TopicPrefix)
	}
}
