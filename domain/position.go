package domain

// Position bounds for board ordering. Lower positions sort first within a
// column. The step leaves gaps between neighbours, though the board
// renormalizes the whole affected column on every move rather than
// exploiting them.
const (
	PositionStep = 1000
	MinPosition  = 1000
	MaxPosition  = 1_000_000
)

// PositionFor returns the position value for the card at index i (0-based)
// within its column. Positions grow in PositionStep increments and cap at
// MaxPosition, so columns longer than MaxPosition/PositionStep cards
// produce duplicate capped positions.
func PositionFor(i int) int {
	p := (i + 1) * PositionStep
	if p > MaxPosition {
		return MaxPosition
	}
	return p
}

// ValidPosition reports whether p is inside the accepted position range.
func ValidPosition(p int) bool {
	return p >= MinPosition && p <= MaxPosition
}

// ColumnSaturated reports whether a column of n cards overflows the
// position range, i.e. whether tail cards share the capped MaxPosition.
func ColumnSaturated(n int) bool {
	return n > MaxPosition/PositionStep
}
