package agent

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"github.com/danielpatrickdp/mkw-classifier/internal/update"
)

// #region agent
// Agent is a Marimon-style learning agent: one exchange decision and one
// consumption decision per turn, both taken by classifier systems whose
// strengths are chained by a bucket brigade.
//
// An Agent is not safe for concurrent use. Callers that share one across
// goroutines must serialise whole turns.
type Agent struct {
	cfg         Config
	exchange    *classifier.ExchangeSystem
	consumption *classifier.ConsumptionSystem

	held            goods.Good
	previousHeld    goods.Good
	consumptionFlag int
	turn            int

	offered           goods.Good
	exchangeWinner    *classifier.Ref
	consumptionWinner *classifier.Ref
}

// NewRNG returns a seeded generator; seed 0 seeds from the clock.
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// New builds an agent holding its production good. rng drives tie-breaks in
// both populations; nil builds one from cfg.Seed.
func New(cfg Config, rng *rand.Rand) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRNG(cfg.Seed)
	}
	return &Agent{
		cfg:          cfg,
		exchange:     classifier.NewExchangeSystem(cfg.B11, cfg.B12, cfg.InitialStrength, rng),
		consumption:  classifier.NewConsumptionSystem(cfg.B21, cfg.B22, cfg.InitialStrength, rng),
		held:         cfg.ProductionGood,
		previousHeld: cfg.ProductionGood,
	}, nil
}

// Restore rebuilds an agent from a snapshot taken with the same config.
func Restore(cfg Config, rng *rand.Rand, snap Snapshot) (*Agent, error) {
	a, err := New(cfg, rng)
	if err != nil {
		return nil, err
	}
	if err := a.exchange.Restore(snap.Exchange); err != nil {
		return nil, fmt.Errorf("restore exchange: %w", err)
	}
	if err := a.consumption.Restore(snap.Consumption); err != nil {
		return nil, fmt.Errorf("restore consumption: %w", err)
	}
	for _, g := range []goods.Good{snap.Held, snap.PreviousHeld, snap.Offered} {
		if err := goods.Validate(g); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
	}
	a.turn = snap.Turn
	a.held = snap.Held
	a.previousHeld = snap.PreviousHeld
	a.consumptionFlag = snap.ConsumptionFlag
	a.offered = snap.Offered
	if snap.ExchangeWinner != nil {
		if _, err := a.exchange.Get(*snap.ExchangeWinner); err != nil {
			return nil, fmt.Errorf("restore exchange winner: %w", err)
		}
		r := *snap.ExchangeWinner
		a.exchangeWinner = &r
	}
	if snap.ConsumptionWinner != nil {
		if _, err := a.consumption.Get(*snap.ConsumptionWinner); err != nil {
			return nil, fmt.Errorf("restore consumption winner: %w", err)
		}
		r := *snap.ConsumptionWinner
		a.consumptionWinner = &r
	}
	return a, nil
}

// #endregion agent

// #region accessors
func (a *Agent) Config() Config               { return a.cfg }
func (a *Agent) HeldGood() goods.Good         { return a.held }
func (a *Agent) PreviousHeldGood() goods.Good { return a.previousHeld }
func (a *Agent) ConsumptionFlag() int         { return a.consumptionFlag }
func (a *Agent) Turn() int                    { return a.turn }

// ExchangeSystem exposes the exchange population for inspection.
func (a *Agent) ExchangeSystem() *classifier.ExchangeSystem { return a.exchange }

// ConsumptionSystem exposes the consumption population for inspection.
func (a *Agent) ConsumptionSystem() *classifier.ConsumptionSystem { return a.consumption }

// SetHeldGood aligns the held good with an externally observed one, e.g. the
// good a recorded subject actually held at the start of a turn.
func (a *Agent) SetHeldGood(g goods.Good) error {
	if err := goods.Validate(g); err != nil {
		return err
	}
	a.held = g
	return nil
}

// Snapshot captures the agent's full mutable state.
func (a *Agent) Snapshot() Snapshot {
	s := Snapshot{
		Turn:            a.turn,
		Held:            a.held,
		PreviousHeld:    a.previousHeld,
		ConsumptionFlag: a.consumptionFlag,
		Offered:         a.offered,
		Exchange:        a.exchange.States(),
		Consumption:     a.consumption.States(),
	}
	if a.exchangeWinner != nil {
		r := *a.exchangeWinner
		s.ExchangeWinner = &r
	}
	if a.consumptionWinner != nil {
		r := *a.consumptionWinner
		s.ConsumptionWinner = &r
	}
	return s
}

// #endregion accessors

// #region decide-exchange
// DecideExchange selects the strongest exchange classifier matching
// (held good, proposed good) and returns whether it accepts the trade.
func (a *Agent) DecideExchange(proposed goods.Good) (bool, error) {
	if err := goods.Validate(proposed); err != nil {
		return false, fmt.Errorf("proposed good: %w", err)
	}

	candidates := a.exchange.PotentialBidders(a.held, proposed)
	best, err := a.exchange.SelectBest(candidates)
	if err != nil {
		return false, fmt.Errorf("exchange decision: %w", err)
	}

	ref := a.exchange.Ref(best)
	a.exchangeWinner = &ref
	a.offered = proposed
	return a.exchange.At(best).Decision() == classifier.Accept, nil
}

// #endregion decide-exchange

// #region consumption-phase
// RunConsumptionPhase settles the turn once the market has decided whether the
// trade went through: it credits the previous consumption classifier, picks
// this turn's consumption classifier, credits the exchange classifier and
// applies the consumption decision. Each exchange decision settles exactly
// once; a second call returns ErrNoExchangeDecision. On error the agent is
// left untouched.
func (a *Agent) RunConsumptionPhase(tradeExecuted bool) (Outcome, error) {
	if a.exchangeWinner == nil {
		return Outcome{}, ErrNoExchangeDecision
	}
	exch := a.exchange.At(a.exchangeWinner.Index)

	heldAfterTrade := a.held
	if tradeExecuted {
		heldAfterTrade = a.offered
	}
	// Matching ignores strengths, so the candidate set is known before any update.
	candidates := a.consumption.PotentialBidders(heldAfterTrade)
	if len(candidates) == 0 {
		return Outcome{}, fmt.Errorf("consumption decision: %w", classifier.ErrEmptyCandidateSet)
	}

	out := Outcome{
		Turn:           a.turn + 1,
		HeldAtExchange: a.held,
		Offered:        a.offered,
		Exchange:       *a.exchangeWinner,
		Accepted:       exch.Decision() == classifier.Accept,
		TradeExecuted:  tradeExecuted,
	}
	a.held = heldAfterTrade

	// Literal rule: a rejecting classifier is always validated; an accepting
	// one only when the trade executed.
	winning := exch.Decision() == classifier.Reject || tradeExecuted
	out.WinningExchange = winning

	exchangeBid := 0.0
	if winning {
		exchangeBid = exch.Bid()
	}
	out.ExchangeBid = exchangeBid

	out.Utility = update.Utility(a.cfg.UtilityPerConsumption, a.consumptionFlag, a.cfg.StoringCosts[a.previousHeld])
	if a.consumptionWinner != nil {
		prev := a.consumption.At(a.consumptionWinner.Index)
		r := prev.UpdateStrength(classifier.Credit{Payment: exchangeBid, Reward: out.Utility})
		ref := *a.consumptionWinner
		out.PreviousConsumption = &ref
		out.PreviousConsumptionUpdate = &r
	}

	a.consumptionFlag = 0

	best, err := a.consumption.SelectBest(candidates)
	if err != nil {
		return Outcome{}, fmt.Errorf("consumption decision: %w", err)
	}
	cons := a.consumption.At(best)
	cons.IncrementTheta()
	ref := a.consumption.Ref(best)
	a.consumptionWinner = &ref
	out.Consumption = ref
	out.ConsumptionBid = cons.Bid()

	if winning {
		exch.IncrementTheta()
		r := exch.UpdateStrength(classifier.Credit{Payment: out.ConsumptionBid})
		out.ExchangeUpdate = &r
	}

	if cons.Decision() == classifier.Accept {
		out.ConsumeChosen = true
		if a.held == a.cfg.ConsumptionGood {
			a.consumptionFlag = 1
			out.Consumed = true
		}
		a.held = a.cfg.ProductionGood
	}

	a.previousHeld = a.held
	a.exchangeWinner = nil
	a.turn++
	out.HeldAfter = a.held
	return out, nil
}

// #endregion consumption-phase
