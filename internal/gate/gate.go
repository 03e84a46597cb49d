package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
)

// #region gate
// Gate decides whether an agent snapshot is fit to be persisted.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate runs the hard veto pass over a snapshot; any veto rejects it.
func (g *Gate) Evaluate(snap agent.Snapshot) GateDecision {
	var vetoes []VetoSignal

	// 1. Population shape
	if len(snap.Exchange) != classifier.ExchangeSize || len(snap.Consumption) != classifier.ConsumptionSize {
		vetoes = append(vetoes, VetoSignal{
			Type: VetoShape,
			Reason: fmt.Sprintf("populations have %d/%d classifiers, want %d/%d",
				len(snap.Exchange), len(snap.Consumption), classifier.ExchangeSize, classifier.ConsumptionSize),
		})
	}

	// 2. Goods in range
	for _, gd := range []goods.Good{snap.Held, snap.PreviousHeld} {
		if err := goods.Validate(gd); err != nil {
			vetoes = append(vetoes, VetoSignal{Type: VetoGood, Reason: err.Error()})
		}
	}

	// 3. Strengths and thetas
	check := func(tag classifier.Tag, states []classifier.State) {
		for i, st := range states {
			switch {
			case math.IsNaN(st.Strength) || math.IsInf(st.Strength, 0):
				vetoes = append(vetoes, VetoSignal{
					Type:   VetoNonFinite,
					Reason: fmt.Sprintf("%s#%d strength %v", tag, i, st.Strength),
				})
			case g.config.MaxAbsStrength > 0 && math.Abs(st.Strength) > g.config.MaxAbsStrength:
				vetoes = append(vetoes, VetoSignal{
					Type:   VetoStrengthCap,
					Reason: fmt.Sprintf("%s#%d |strength| %.4f exceeds cap %.4f", tag, i, math.Abs(st.Strength), g.config.MaxAbsStrength),
				})
			}
			if st.Theta < 1 {
				vetoes = append(vetoes, VetoSignal{
					Type:   VetoTheta,
					Reason: fmt.Sprintf("%s#%d theta %d < 1", tag, i, st.Theta),
				})
			}
		}
	}
	check(classifier.TagExchange, snap.Exchange)
	check(classifier.TagConsumption, snap.Consumption)

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	coverage := computeCoverage(snap)
	return GateDecision{
		Action:   "commit",
		Reason:   fmt.Sprintf("passed gate: coverage=%.4f", coverage),
		Coverage: coverage,
	}
}

// #endregion gate

// #region helpers
// computeCoverage is the share of classifiers that have won at least once.
func computeCoverage(snap agent.Snapshot) float64 {
	total := len(snap.Exchange) + len(snap.Consumption)
	if total == 0 {
		return 0
	}
	used := 0
	for _, st := range snap.Exchange {
		if st.Theta > 1 {
			used++
		}
	}
	for _, st := range snap.Consumption {
		if st.Theta > 1 {
			used++
		}
	}
	return float64(used) / float64(total)
}

// #endregion helpers
