package eval

import (
	"fmt"
	"math"
)

// #region eval-harness
// EvalHarness scores how well an agent's decisions reproduce recorded ones.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run computes agreement, log-likelihood and BIC over a sequence of choices.
// The agent is deterministic given its state, so a matching choice has
// likelihood 1 and a mismatch gets the configured floor.
func (h *EvalHarness) Run(choices []Choice) EvalResult {
	n := len(choices)
	if n == 0 {
		return EvalResult{Passed: true, Reason: "no trials"}
	}

	var agreed int
	var ll float64
	for _, c := range choices {
		if c.Predicted == c.Observed {
			agreed++
			continue
		}
		ll += math.Log(h.config.LikelihoodFloor)
	}
	agreement := float64(agreed) / float64(n)
	bic := BIC(ll, n, h.config.FreeParameters)

	agreementPass := agreement >= h.config.MinAgreement
	metrics := []EvalMetric{
		{Name: "agreement", Value: agreement, Pass: agreementPass},
		{Name: "log_likelihood", Value: ll, Pass: true},
		{Name: "bic", Value: bic, Pass: true},
	}

	reason := "all checks passed"
	if !agreementPass {
		reason = fmt.Sprintf("eval failed: agreement %.4f below %.4f", agreement, h.config.MinAgreement)
	}

	return EvalResult{
		Passed:        agreementPass,
		Metrics:       metrics,
		Reason:        reason,
		Trials:        n,
		Agreement:     agreement,
		LogLikelihood: ll,
		BIC:           bic,
	}
}

// #endregion eval-harness

// #region helpers
// BIC is -2*logLikelihood + ln(trials)*freeParameters.
func BIC(logLikelihood float64, trials, freeParameters int) float64 {
	if trials <= 0 {
		return -2 * logLikelihood
	}
	return -2*logLikelihood + math.Log(float64(trials))*float64(freeParameters)
}

// #endregion helpers
