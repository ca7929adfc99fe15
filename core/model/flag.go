package model

import "time"

// MaintenanceFlag marks a vehicle identified as needing maintenance by the
// prediction collaborator. Flags are never deleted; a scheduled flag is
// superseded by a new one after the booking completes.
type MaintenanceFlag struct {
	ID          int64     `json:"flag_id"`
	VehicleID   string    `json:"vehicle_id"`
	FlaggedAt   time.Time `json:"flagged_at"`
	Severity    float64   `json:"severity_score"` // 0-100, continuous
	RiskFactors []string  `json:"risk_factors"`
	Confidence  float64   `json:"confidence"`
	Scheduled   bool      `json:"is_scheduled"`
	BookingID   string    `json:"scheduled_booking_id,omitempty"`
}

// WaitDays returns the whole days elapsed since the flag was raised.
func (f MaintenanceFlag) WaitDays(now time.Time) int {
	if now.Before(f.FlaggedAt) {
		return 0
	}
	return int(now.Sub(f.FlaggedAt).Hours() / 24)
}
