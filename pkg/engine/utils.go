package engine

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

const (
	stackSize     = 128
	maxHeight     = stackSize - 1
	valueDraw     = 0
	valueMate     = 32000
	valueInfinity = valueMate + 1
	valueWin      = valueMate - 2*maxHeight
	valueLoss     = -valueWin
)

// Exported score bounds used by sample generation and training.
const (
	ValueMate     = valueMate
	ValueInfinite = valueInfinity
	ValueKnownWin = 10000
	ValueWin      = valueWin
)

func winIn(height int) int {
	return valueMate - height
}

func lossIn(height int) int {
	return -valueMate + height
}

// Mate scores are stored in the hash table relative to the node, not the root.
func valueToTT(v, height int) int {
	switch {
	case v >= valueWin:
		return v + height
	case v <= valueLoss:
		return v - height
	}
	return v
}

func valueFromTT(v, height int) int {
	switch {
	case v >= valueWin:
		return v - height
	case v <= valueLoss:
		return v + height
	}
	return v
}

// IsMateScore reports whether v encodes a forced mate for either side.
func IsMateScore(v int) bool {
	return v >= valueWin || v <= valueLoss
}

// Static evaluations never reach the mate range.
func clampEval(v int) int {
	return Max(valueLoss+1, Min(valueWin-1, v))
}

// isDraw covers the fifty move rule and bare kings with at most one minor.
func isDraw(p *Position) bool {
	return p.Rule50 > 100 ||
		(p.Pawns|p.Rooks|p.Queens) == 0 && !MoreThanOne(p.Knights|p.Bishops)
}
