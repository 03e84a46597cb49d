package classifier

import (
	"math/rand"

	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
)

// ConsumptionSize is the number of consumption classifiers: 6 rows x 2 decisions.
const ConsumptionSize = goods.Rows * len(Decisions)

// #region consumption-system
// ConsumptionSystem holds every consumption classifier.
type ConsumptionSystem struct {
	Population[*ConsumptionClassifier]
}

// NewConsumptionSystem enumerates row x decision.
func NewConsumptionSystem(b21, b22, initialStrength float64, rng *rand.Rand) *ConsumptionSystem {
	items := make([]*ConsumptionClassifier, 0, ConsumptionSize)
	for i := 0; i < goods.Rows; i++ {
		for _, d := range Decisions {
			items = append(items, NewConsumptionClassifier(goods.Encode(i), d, initialStrength, b21, b22))
		}
	}
	return &ConsumptionSystem{Population: newPopulation(TagConsumption, items, rng)}
}

// PotentialBidders returns the indices of classifiers matching the held good.
func (s *ConsumptionSystem) PotentialBidders(own goods.Good) []int {
	return s.match(func(c *ConsumptionClassifier) bool { return c.Matches(own) })
}

// #endregion consumption-system
