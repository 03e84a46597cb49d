package agent

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"github.com/danielpatrickdp/mkw-classifier/internal/update"
)

// #region errors
var (
	// ErrNoExchangeDecision is returned when the consumption phase runs before
	// any exchange decision was made.
	ErrNoExchangeDecision = errors.New("consumption phase before exchange decision")

	// ErrInvalidConfig wraps config validation failures.
	ErrInvalidConfig = errors.New("invalid agent config")
)

// #endregion errors

// #region config
// Config holds the construction-time parameters of a learning agent.
type Config struct {
	B11                   float64              `yaml:"b11" json:"b11"`
	B12                   float64              `yaml:"b12" json:"b12"`
	B21                   float64              `yaml:"b21" json:"b21"`
	B22                   float64              `yaml:"b22" json:"b22"`
	InitialStrength       float64              `yaml:"initial_strength" json:"initial_strength"`
	ProductionGood        goods.Good           `yaml:"production_good" json:"production_good"`
	ConsumptionGood       goods.Good           `yaml:"consumption_good" json:"consumption_good"`
	UtilityPerConsumption float64              `yaml:"utility_per_consumption" json:"utility_per_consumption"`
	StoringCosts          [goods.Count]float64 `yaml:"storing_costs" json:"storing_costs"`
	Seed                  int64                `yaml:"seed" json:"seed"` // 0 = seed from clock
}

// DefaultConfig returns a Kiyotaki-Wright model A agent of type 1: produces
// good 1, consumes good 0, storing costs increasing with the good index.
func DefaultConfig() Config {
	return Config{
		B11:                   0.25,
		B12:                   0.25,
		B21:                   0.25,
		B22:                   0.25,
		InitialStrength:       0,
		ProductionGood:        goods.Good1,
		ConsumptionGood:       goods.Good0,
		UtilityPerConsumption: 1.0,
		StoringCosts:          [goods.Count]float64{0.01, 0.04, 0.09},
	}
}

// Validate checks the goods and that production and consumption goods differ.
func (c Config) Validate() error {
	if err := goods.Validate(c.ProductionGood); err != nil {
		return fmt.Errorf("%w: production good: %w", ErrInvalidConfig, err)
	}
	if err := goods.Validate(c.ConsumptionGood); err != nil {
		return fmt.Errorf("%w: consumption good: %w", ErrInvalidConfig, err)
	}
	if c.ProductionGood == c.ConsumptionGood {
		return fmt.Errorf("%w: production and consumption good are both %s", ErrInvalidConfig, c.ProductionGood)
	}
	return nil
}

// ThirdGood is the good the agent neither produces nor consumes.
func (c Config) ThirdGood() goods.Good {
	return goods.Good(goods.Count - int(c.ProductionGood) - int(c.ConsumptionGood))
}

// #endregion config

// #region outcome
// Outcome records everything that happened during one turn.
type Outcome struct {
	Turn int `json:"turn"`

	HeldAtExchange goods.Good `json:"held_at_exchange"`
	Offered        goods.Good `json:"offered"`
	HeldAfter      goods.Good `json:"held_after"`

	Exchange        classifier.Ref `json:"exchange"`
	Accepted        bool           `json:"accepted"`
	TradeExecuted   bool           `json:"trade_executed"`
	WinningExchange bool           `json:"winning_exchange"`
	ExchangeBid     float64        `json:"exchange_bid"`
	ExchangeUpdate  *update.Result `json:"exchange_update,omitempty"`

	// Credit paid to the previous turn's consumption classifier.
	PreviousConsumption       *classifier.Ref `json:"previous_consumption,omitempty"`
	Utility                   float64         `json:"utility"`
	PreviousConsumptionUpdate *update.Result  `json:"previous_consumption_update,omitempty"`

	Consumption    classifier.Ref `json:"consumption"`
	ConsumeChosen  bool           `json:"consume_chosen"`
	Consumed       bool           `json:"consumed"`
	ConsumptionBid float64        `json:"consumption_bid"`
}

// #endregion outcome

// #region snapshot
// Snapshot is the full mutable state of an agent.
type Snapshot struct {
	Turn              int                `json:"turn"`
	Held              goods.Good         `json:"held"`
	PreviousHeld      goods.Good         `json:"previous_held"`
	ConsumptionFlag   int                `json:"consumption_flag"`
	ExchangeWinner    *classifier.Ref    `json:"exchange_winner,omitempty"`
	Offered           goods.Good         `json:"offered"`
	ConsumptionWinner *classifier.Ref    `json:"consumption_winner,omitempty"`
	Exchange          []classifier.State `json:"exchange"`
	Consumption       []classifier.State `json:"consumption"`
}

// #endregion snapshot
