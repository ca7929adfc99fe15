// Package events defines the typed domain events published on the bus.
package events

import (
	"time"

	"fleetguard/core/model"
)

// FlagCreated is published when telemetry evaluation raises a new
// maintenance flag.
type FlagCreated struct {
	VehicleID   string
	Severity    float64
	RiskFactors []string
	At          time.Time
}

// BookingCreated is published when the allocator commits a provisional
// booking.
type BookingCreated struct {
	Booking model.Booking
}

// BookingConfirmed is published after a successful provisional->confirmed
// transition. The notifier reacts to this event.
type BookingConfirmed struct {
	Booking model.Booking
}

// BatchCompleted summarizes one allocation run.
type BatchCompleted struct {
	Scheduled int
	Failed    int
	Duration  time.Duration
}
