package telemetry

// Thresholds configure the rule-based risk evaluation. The defaults mirror
// the tuning of the deployed prediction rules.
type Thresholds struct {
	OilCritical     float64 `json:"oil_critical"`
	OilLow          float64 `json:"oil_low"`
	BatteryCritical float64 `json:"battery_critical"`
	BatteryLow      float64 `json:"battery_low"`
	TireMinPSI      float64 `json:"tire_min_psi"`
	TireMaxPSI      float64 `json:"tire_max_psi"`
	BrakeTempMaxC   float64 `json:"brake_temp_max_c"`
	FlagSeverity    float64 `json:"flag_severity"`
}

// DefaultThresholds returns the standard rule set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OilCritical:     3.0,
		OilLow:          5.0,
		BatteryCritical: 50,
		BatteryLow:      70,
		TireMinPSI:      28,
		TireMaxPSI:      36,
		BrakeTempMaxC:   110,
		FlagSeverity:    40,
	}
}

// Assessment is the outcome of evaluating one reading.
type Assessment struct {
	Severity    float64
	RiskFactors []string
	Flagged     bool
}

// Evaluator applies threshold rules to telemetry readings.
type Evaluator struct {
	cfg Thresholds
}

// NewEvaluator returns an evaluator with the given thresholds.
func NewEvaluator(cfg Thresholds) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate scores a reading. Severity accumulates per violated rule and is
// capped at 100; a reading is flagged once severity reaches FlagSeverity.
func (e *Evaluator) Evaluate(r Reading) Assessment {
	var a Assessment
	add := func(points float64, factor string) {
		a.Severity += points
		a.RiskFactors = append(a.RiskFactors, factor)
	}

	switch {
	case r.OilQuality < e.cfg.OilCritical:
		add(40, "critical oil quality")
	case r.OilQuality < e.cfg.OilLow:
		add(20, "degraded oil quality")
	}
	switch {
	case r.BatteryPercent < e.cfg.BatteryCritical:
		add(30, "battery critically low")
	case r.BatteryPercent < e.cfg.BatteryLow:
		add(15, "battery low")
	}
	switch r.BrakeCondition {
	case BrakePoor:
		add(35, "brake condition poor")
	case BrakeWarning:
		add(20, "brake condition warning")
	}
	if r.TirePressurePSI < e.cfg.TireMinPSI || r.TirePressurePSI > e.cfg.TireMaxPSI {
		add(15, "tire pressure out of range")
	}
	if r.BrakeTempC > e.cfg.BrakeTempMaxC {
		add(20, "brake temperature high")
	}

	if a.Severity > 100 {
		a.Severity = 100
	}
	a.Flagged = a.Severity >= e.cfg.FlagSeverity
	return a
}
