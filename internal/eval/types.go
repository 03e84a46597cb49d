package eval

// #region eval-config
// EvalConfig holds parameters for scoring an agent against recorded choices.
type EvalConfig struct {
	// LikelihoodFloor is the probability assigned to a choice the agent did
	// not make, keeping the log-likelihood finite.
	LikelihoodFloor float64
	// FreeParameters is the degrees of freedom charged by BIC (b11, b12, b21, b22).
	FreeParameters int
	// MinAgreement fails the evaluation below this agreement rate (0 = informational).
	MinAgreement float64
}

// DefaultEvalConfig returns the fitting defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		LikelihoodFloor: 0.001,
		FreeParameters:  4,
	}
}

// #endregion eval-config

// #region choice
// Choice pairs the agent's exchange decision with the recorded one.
type Choice struct {
	Predicted bool
	Observed  bool
}

// #endregion choice

// #region eval-metric
// EvalMetric captures a single fit statistic.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a fit evaluation.
type EvalResult struct {
	Passed        bool
	Metrics       []EvalMetric
	Reason        string
	Trials        int
	Agreement     float64
	LogLikelihood float64
	BIC           float64
}

// #endregion eval-result
