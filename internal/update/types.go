package update

// #region exchange-input
// ExchangeInput carries everything the exchange-classifier update reads.
type ExchangeInput struct {
	Strength       float64
	Theta          int     // selection counter, already incremented for this turn
	BidWeight      float64 // b11 + b12*sigma
	ConsumptionBid float64 // bid of the consumption classifier chosen this turn
}

// #endregion exchange-input

// #region consumption-input
// ConsumptionInput carries everything the consumption-classifier update reads.
type ConsumptionInput struct {
	Strength    float64
	Theta       int     // selection counter of the previous winner
	BidWeight   float64 // b21 + b22*sigma
	ExchangeBid float64 // 0 unless the current exchange classifier is winning
	Utility     float64 // u*consumed - storing cost of the previously held good
}

// #endregion consumption-input

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// #endregion decision

// #region result
// Result bundles the new strength with the applied correction.
type Result struct {
	Strength float64
	Delta    float64 // new - old
	Decision Decision
}

// #endregion result
