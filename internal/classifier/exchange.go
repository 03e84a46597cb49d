package classifier

import (
	"math/rand"

	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
)

// ExchangeSize is the number of exchange classifiers: 6 own rows x 6 partner rows x 2 decisions.
const ExchangeSize = goods.Rows * goods.Rows * len(Decisions)

// #region exchange-system
// ExchangeSystem holds every exchange classifier.
type ExchangeSystem struct {
	Population[*ExchangeClassifier]
}

// NewExchangeSystem enumerates own x partner x decision, in that nesting order.
func NewExchangeSystem(b11, b12, initialStrength float64, rng *rand.Rand) *ExchangeSystem {
	items := make([]*ExchangeClassifier, 0, ExchangeSize)
	for i := 0; i < goods.Rows; i++ {
		for j := 0; j < goods.Rows; j++ {
			for _, d := range Decisions {
				items = append(items, NewExchangeClassifier(goods.Encode(i), goods.Encode(j), d, initialStrength, b11, b12))
			}
		}
	}
	return &ExchangeSystem{Population: newPopulation(TagExchange, items, rng)}
}

// PotentialBidders returns the indices of classifiers matching (own, partner).
func (s *ExchangeSystem) PotentialBidders(own, partner goods.Good) []int {
	return s.match(func(c *ExchangeClassifier) bool { return c.Matches(own, partner) })
}

// #endregion exchange-system
