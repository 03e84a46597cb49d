package classifier

import (
	"errors"
	"fmt"
)

// #region errors
var (
	// ErrEmptyCandidateSet means SelectBest got no candidates. Every well-formed
	// situation matches classifiers of both decisions, so this is an enumeration bug.
	ErrEmptyCandidateSet = errors.New("empty candidate set")

	// ErrStateMismatch is returned when restoring a population from a state
	// slice of the wrong length.
	ErrStateMismatch = errors.New("classifier state length mismatch")
)

// #endregion errors

// #region tag
// Tag names the decision type a population serves.
type Tag int

const (
	TagExchange Tag = iota
	TagConsumption
)

func (t Tag) String() string {
	switch t {
	case TagExchange:
		return "exchange"
	case TagConsumption:
		return "consumption"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// #endregion tag

// #region ref
// Ref addresses a classifier by population and index. Populations never
// resize, so a Ref stays valid for the lifetime of its population.
type Ref struct {
	Tag   Tag `json:"tag"`
	Index int `json:"index"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Tag, r.Index)
}

// #endregion ref

// #region decision
// Decision is the action bit carried by a classifier: accept the trade, or consume.
type Decision int

const (
	Reject Decision = 0
	Accept Decision = 1
)

// Decisions lists both action bits in enumeration order.
var Decisions = [2]Decision{Reject, Accept}

// #endregion decision

// #region credit
// Credit is what flows into a strength update. Payment is the bid of the
// classifier on the other side of the chain; Reward is external utility
// (consumption classifiers only).
type Credit struct {
	Payment float64
	Reward  float64
}

// #endregion credit

// #region state
// State is the mutable part of a classifier, used for snapshots.
type State struct {
	Strength float64 `json:"strength"`
	Theta    int     `json:"theta"`
}

// #endregion state
