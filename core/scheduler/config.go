package scheduler

import (
	"errors"
	"time"
)

// Config defines the allocation parameters loaded from configuration.
type Config struct {
	Score               ScoreConfig `json:"score"`
	SlotDurationMinutes int         `json:"slot_duration_minutes"`
	SlotSearchLimit     int         `json:"slot_search_limit"`
	MaxConflictRetries  int         `json:"max_conflict_retries"`
	RequireTechnician   bool        `json:"require_technician"`
	DefaultProximity    float64     `json:"default_proximity"`
	// Seed initializes the center-shuffle random source. Zero means
	// time-seeded; tests pass a fixed seed for determinism.
	Seed int64 `json:"seed"`
}

// SetDefaults fills unset fields with the documented defaults.
func (c *Config) SetDefaults() {
	c.Score.SetDefaults()
	if c.SlotDurationMinutes == 0 {
		c.SlotDurationMinutes = 60
	}
	if c.SlotSearchLimit == 0 {
		c.SlotSearchLimit = 5
	}
	if c.MaxConflictRetries == 0 {
		c.MaxConflictRetries = 3
	}
	if c.DefaultProximity == 0 {
		c.DefaultProximity = 75
	}
}

// Validate checks the configuration for coherence.
func (c Config) Validate() error {
	if c.SlotDurationMinutes <= 0 {
		return errors.New("scheduler: slot_duration_minutes must be positive")
	}
	if c.SlotDurationMinutes > 24*60 {
		return errors.New("scheduler: slot_duration_minutes longer than a day")
	}
	if c.SlotSearchLimit <= 0 {
		return errors.New("scheduler: slot_search_limit must be positive")
	}
	if c.MaxConflictRetries < 0 {
		return errors.New("scheduler: max_conflict_retries must not be negative")
	}
	return c.Score.Validate()
}

// SlotDuration returns the configured slot length.
func (c Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMinutes) * time.Minute
}
