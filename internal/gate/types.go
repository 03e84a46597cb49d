package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoNonFinite   VetoType = "non_finite_strength"
	VetoStrengthCap VetoType = "strength_cap"
	VetoTheta       VetoType = "invalid_theta"
	VetoGood        VetoType = "invalid_good"
	VetoShape       VetoType = "population_shape"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for snapshot gating.
type GateConfig struct {
	MaxAbsStrength float64 // reject snapshots with any |strength| above this (0 = disabled)
}

// DefaultGateConfig returns a cap well above any strength reachable with
// utilities of order one.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxAbsStrength: 1e6,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	Coverage    float64      // share of classifiers selected at least once (for logging)
}

// #endregion gate-decision
