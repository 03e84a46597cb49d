package goods

import (
	"errors"
	"fmt"
)

// #region good
// Good identifies one of the three goods of the economy.
type Good int

const (
	Good0 Good = iota
	Good1
	Good2
)

// Count is the number of distinct goods.
const Count = 3

// ErrInvalidGood is returned for a good index outside {0,1,2}.
var ErrInvalidGood = errors.New("invalid good index")

// Validate rejects goods outside the modeled domain.
func Validate(g Good) error {
	if g < Good0 || g > Good2 {
		return fmt.Errorf("%w: %d", ErrInvalidGood, int(g))
	}
	return nil
}

// String returns "good<k>".
func (g Good) String() string {
	return fmt.Sprintf("good%d", int(g))
}

// #endregion good

// #region encoding
// Condition is one row of the encoding table. Zero entries are "don't care";
// nonzero entries (+1 or -1) require the corresponding good.
type Condition [Count]int8

// Rows is the number of condition rows: 3 goods + 3 complements.
const Rows = 2 * Count

var encoding = [Rows]Condition{
	{1, 0, 0},   // good 0
	{0, 1, 0},   // good 1
	{0, 0, 1},   // good 2
	{0, -1, -1}, // not good 0
	{-1, 0, -1}, // not good 1
	{-1, -1, 0}, // not good 2
}

// Encode returns the condition row at index row (0..5).
// Rows 0..2 encode good k, rows 3..5 encode "not good k".
func Encode(row int) Condition {
	return encoding[row]
}

// Table returns a copy of the full encoding table.
func Table() [Rows]Condition {
	return encoding
}

// Not returns the condition row for "not g".
func Not(g Good) Condition {
	return encoding[Count+int(g)]
}

// Matches reports whether the condition accepts good g.
func (c Condition) Matches(g Good) bool {
	return c[g] != 0
}

// Negatives counts the -1 entries of the condition.
func (c Condition) Negatives() int {
	n := 0
	for _, v := range c {
		if v == -1 {
			n++
		}
	}
	return n
}

// #endregion encoding
