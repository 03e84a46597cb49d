package update

import "fmt"

// #region bid
// Bid is what a classifier pays out of its strength when it wins.
func Bid(bidWeight, strength float64) float64 {
	return bidWeight * strength
}

// #endregion bid

// #region utility
// Utility is the payoff realised over one turn: u if the agent consumed its
// consumption good, minus the storing cost of the good it carried.
func Utility(perConsumption float64, consumptionFlag int, storingCost float64) float64 {
	return perConsumption*float64(consumptionFlag) - storingCost
}

// #endregion utility

// #region exchange-strength
// ExchangeStrength applies the exchange-classifier bucket-brigade correction:
//
//	s <- s - (1/theta) * (bid + s - consumptionBid)
//
// theta must be >= 1; the agent increments it before calling.
func ExchangeStrength(in ExchangeInput) Result {
	if in.Theta < 1 {
		return Result{
			Strength: in.Strength,
			Decision: Decision{Action: "no_op", Reason: fmt.Sprintf("theta %d < 1", in.Theta)},
		}
	}
	bid := Bid(in.BidWeight, in.Strength)
	delta := -(1 / float64(in.Theta)) * (bid + in.Strength - in.ConsumptionBid)
	return Result{
		Strength: in.Strength + delta,
		Delta:    delta,
		Decision: Decision{
			Action: "commit",
			Reason: fmt.Sprintf("bid=%.6f consumption_bid=%.6f theta=%d", bid, in.ConsumptionBid, in.Theta),
		},
	}
}

// #endregion exchange-strength

// #region consumption-strength
// ConsumptionStrength applies the consumption-classifier correction:
//
//	s <- s - (1/(theta-1)) * (bid + s - exchangeBid - utility)
//
// A classifier that has been selected only once (theta <= 1) has nothing to be
// credited for yet and is returned unchanged.
func ConsumptionStrength(in ConsumptionInput) Result {
	if in.Theta <= 1 {
		return Result{
			Strength: in.Strength,
			Decision: Decision{Action: "no_op", Reason: fmt.Sprintf("theta %d: no prior selection", in.Theta)},
		}
	}
	bid := Bid(in.BidWeight, in.Strength)
	delta := -(1 / float64(in.Theta-1)) * (bid + in.Strength - in.ExchangeBid - in.Utility)
	return Result{
		Strength: in.Strength + delta,
		Delta:    delta,
		Decision: Decision{
			Action: "commit",
			Reason: fmt.Sprintf("bid=%.6f exchange_bid=%.6f utility=%.6f theta=%d", bid, in.ExchangeBid, in.Utility, in.Theta),
		},
	}
}

// #endregion consumption-strength
