// Package telemetry holds the vehicle telemetry types and the threshold
// evaluator that turns readings into maintenance flags. Severity itself is
// supplied by this collaborator, never computed by the scheduler.
package telemetry

import "time"

// BrakeCondition is the discrete brake wear classification reported by the
// vehicle.
type BrakeCondition string

const (
	BrakeGood    BrakeCondition = "Good"
	BrakeWarning BrakeCondition = "Warning"
	BrakePoor    BrakeCondition = "Poor"
)

// Reading is one telemetry sample for a vehicle.
type Reading struct {
	VehicleID       string         `json:"vehicle_id"`
	Timestamp       time.Time      `json:"timestamp"`
	Mileage         int            `json:"mileage"`
	EngineLoad      float64        `json:"engine_load"`      // 0.0 to 1.0
	OilQuality      float64        `json:"oil_quality"`      // 0 to 10
	BatteryPercent  float64        `json:"battery_percent"`  // 0 to 100
	BrakeCondition  BrakeCondition `json:"brake_condition"`
	BrakeTempC      float64        `json:"brake_temp"`
	TirePressurePSI float64        `json:"tire_pressure"`
	FuelConsumption float64        `json:"fuel_consumption"` // L/100km
}
