package model

import "time"

// CustomerTier classifies the service contract attached to a vehicle.
type CustomerTier int

const (
	TierStandard CustomerTier = iota
	TierPremium
	TierFleet
)

// String returns a human-readable representation of the tier.
func (t CustomerTier) String() string {
	switch t {
	case TierFleet:
		return "fleet"
	case TierPremium:
		return "premium"
	default:
		return "standard"
	}
}

// ParseTier maps a stored tier label to its enum value. Unknown labels fall
// back to the standard tier.
func ParseTier(s string) CustomerTier {
	switch s {
	case "fleet":
		return TierFleet
	case "premium":
		return TierPremium
	default:
		return TierStandard
	}
}

// Vehicle represents a fleet vehicle tracked by the maintenance pipeline.
// Vehicle records are read-only during a scheduling run; only the
// maintenance-flag link changes.
type Vehicle struct {
	ID              string       `json:"vehicle_id"`
	VIN             string       `json:"vin"`
	Model           string       `json:"model"`
	Year            int          `json:"year"`
	OwnerName       string       `json:"owner_name"`
	OwnerContact    string       `json:"owner_contact"`
	Region          string       `json:"region"`
	Mileage         int          `json:"mileage"`
	LastServiceDate time.Time    `json:"last_service_date"`
	Tier            CustomerTier `json:"customer_tier"`
}
