package classifier

import (
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"github.com/danielpatrickdp/mkw-classifier/internal/update"
)

// #region interface
// Classifier is a strength-bearing condition-action rule.
type Classifier interface {
	Strength() float64
	Decision() Decision
	Theta() int
	BidWeight() float64
	Bid() float64
	IncrementTheta()
	UpdateStrength(c Credit) update.Result
	State() State
	SetState(s State)
}

// #endregion interface

// #region base
type base struct {
	strength  float64
	decision  Decision
	theta     int
	bidWeight float64
}

func newBase(strength float64, decision Decision, bidWeight float64) base {
	return base{strength: strength, decision: decision, theta: 1, bidWeight: bidWeight}
}

func (b *base) Strength() float64  { return b.strength }
func (b *base) Decision() Decision { return b.decision }
func (b *base) Theta() int         { return b.theta }
func (b *base) BidWeight() float64 { return b.bidWeight }

// Bid is bidWeight * strength.
func (b *base) Bid() float64 { return update.Bid(b.bidWeight, b.strength) }

// IncrementTheta records one more selection as winner.
func (b *base) IncrementTheta() { b.theta++ }

func (b *base) State() State { return State{Strength: b.strength, Theta: b.theta} }

func (b *base) SetState(s State) {
	b.strength = s.Strength
	b.theta = s.Theta
}

// #endregion base

// #region exchange-classifier
// ExchangeClassifier conditions on the agent's own good and the partner's good.
type ExchangeClassifier struct {
	base
	own     goods.Condition
	partner goods.Condition
	sigma   float64
}

// NewExchangeClassifier builds an exchange rule with bid weight b11 + b12*sigma,
// where sigma = 1/(1 + negatives(own) + negatives(partner)).
func NewExchangeClassifier(own, partner goods.Condition, decision Decision, strength, b11, b12 float64) *ExchangeClassifier {
	sigma := 1 / float64(1+own.Negatives()+partner.Negatives())
	return &ExchangeClassifier{
		base:    newBase(strength, decision, b11+b12*sigma),
		own:     own,
		partner: partner,
		sigma:   sigma,
	}
}

func (c *ExchangeClassifier) Own() goods.Condition     { return c.own }
func (c *ExchangeClassifier) Partner() goods.Condition { return c.partner }
func (c *ExchangeClassifier) Sigma() float64           { return c.sigma }

// Matches reports whether both sub-conditions accept the situation.
func (c *ExchangeClassifier) Matches(own, partner goods.Good) bool {
	return c.own.Matches(own) && c.partner.Matches(partner)
}

// UpdateStrength credits the classifier with the consumption classifier's bid
// (c.Payment). c.Reward is ignored.
func (c *ExchangeClassifier) UpdateStrength(cr Credit) update.Result {
	r := update.ExchangeStrength(update.ExchangeInput{
		Strength:       c.strength,
		Theta:          c.theta,
		BidWeight:      c.bidWeight,
		ConsumptionBid: cr.Payment,
	})
	c.strength = r.Strength
	return r
}

// #endregion exchange-classifier

// #region consumption-classifier
// ConsumptionClassifier conditions on the good held after the exchange.
type ConsumptionClassifier struct {
	base
	own   goods.Condition
	sigma float64
}

// NewConsumptionClassifier builds a consumption rule with bid weight b21 + b22*sigma,
// where sigma = 1/(1 + negatives(own)).
func NewConsumptionClassifier(own goods.Condition, decision Decision, strength, b21, b22 float64) *ConsumptionClassifier {
	sigma := 1 / float64(1+own.Negatives())
	return &ConsumptionClassifier{
		base:  newBase(strength, decision, b21+b22*sigma),
		own:   own,
		sigma: sigma,
	}
}

func (c *ConsumptionClassifier) Own() goods.Condition { return c.own }
func (c *ConsumptionClassifier) Sigma() float64       { return c.sigma }

// Matches reports whether the condition accepts the held good.
func (c *ConsumptionClassifier) Matches(own goods.Good) bool {
	return c.own.Matches(own)
}

// UpdateStrength credits the classifier with the exchange bid (c.Payment) and
// the realised utility (c.Reward). No-op while theta <= 1.
func (c *ConsumptionClassifier) UpdateStrength(cr Credit) update.Result {
	r := update.ConsumptionStrength(update.ConsumptionInput{
		Strength:    c.strength,
		Theta:       c.theta,
		BidWeight:   c.bidWeight,
		ExchangeBid: cr.Payment,
		Utility:     cr.Reward,
	})
	c.strength = r.Strength
	return r
}

// #endregion consumption-classifier
