package scheduler

import (
	"errors"
	"time"

	"fleetguard/core/model"
)

// TierScores holds the unnormalized sub-scale per customer tier. The values
// are not on a 0-100 scale; renormalize the tier weight before changing them.
type TierScores struct {
	Fleet    float64 `json:"fleet"`
	Premium  float64 `json:"premium"`
	Standard float64 `json:"standard"`
}

// ScoreConfig holds the priority-score weights. The wait penalty subtracts
// from the composite score: a vehicle waiting longer scores lower. That sign
// is kept deliberately; deployments wanting wait time to raise priority set
// a negative WaitPenaltyWeight.
type ScoreConfig struct {
	SeverityWeight    float64    `json:"severity_weight"`
	TierWeight        float64    `json:"tier_weight"`
	ProximityWeight   float64    `json:"proximity_weight"`
	WaitPenaltyWeight float64    `json:"wait_penalty_weight"`
	WaitDaysCap       int        `json:"wait_days_cap"`
	Tiers             TierScores `json:"tier_scores"`
}

// SetDefaults fills unset weights with the documented defaults.
func (c *ScoreConfig) SetDefaults() {
	if c.SeverityWeight == 0 && c.TierWeight == 0 && c.ProximityWeight == 0 && c.WaitPenaltyWeight == 0 {
		c.SeverityWeight = 0.40
		c.TierWeight = 0.20
		c.ProximityWeight = 0.25
		c.WaitPenaltyWeight = 0.15
	}
	if c.WaitDaysCap == 0 {
		c.WaitDaysCap = 30
	}
	if c.Tiers == (TierScores{}) {
		c.Tiers = TierScores{Fleet: 30, Premium: 20, Standard: 10}
	}
}

// Validate checks the weight configuration.
func (c ScoreConfig) Validate() error {
	if c.SeverityWeight < 0 || c.TierWeight < 0 || c.ProximityWeight < 0 {
		return errors.New("scheduler: score weights must not be negative")
	}
	if c.Tiers.Fleet < c.Tiers.Premium || c.Tiers.Premium < c.Tiers.Standard {
		return errors.New("scheduler: tier scores must rank fleet >= premium >= standard")
	}
	return nil
}

// Scorer computes the composite priority score used to order vehicles when
// slots are scarce. Deterministic; no side effects.
type Scorer struct {
	cfg ScoreConfig
}

// NewScorer returns a scorer with the given weights.
func NewScorer(cfg ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes
//
//	severity*Wsev + tierScore*Wtier + proximity*Wprox - min(waitDays,cap)*Wwait
//
// clamped to [0, 100]. Proximity is a 0-100 placeholder signal supplied by
// the caller; higher means closer.
func (s *Scorer) Score(v model.Vehicle, f model.MaintenanceFlag, proximity float64, now time.Time) float64 {
	wait := f.WaitDays(now)
	if wait > s.cfg.WaitDaysCap {
		wait = s.cfg.WaitDaysCap
	}
	score := clamp(f.Severity, 0, 100)*s.cfg.SeverityWeight +
		s.tierScore(v.Tier)*s.cfg.TierWeight +
		clamp(proximity, 0, 100)*s.cfg.ProximityWeight -
		float64(wait)*s.cfg.WaitPenaltyWeight
	return clamp(score, 0, 100)
}

func (s *Scorer) tierScore(t model.CustomerTier) float64 {
	switch t {
	case model.TierFleet:
		return s.cfg.Tiers.Fleet
	case model.TierPremium:
		return s.cfg.Tiers.Premium
	default:
		return s.cfg.Tiers.Standard
	}
}

// SeverityLevel classifies a severity score for display purposes only.
func SeverityLevel(severity float64) string {
	switch {
	case severity >= 80:
		return "critical"
	case severity >= 60:
		return "high"
	case severity >= 40:
		return "medium"
	default:
		return "low"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
