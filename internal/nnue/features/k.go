package features

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

// K encodes both king squares.
type K struct{}

func NewK() *K { return &K{} }

func (f *K) Name() string                 { return "K" }
func (f *K) Hash() uint32                 { return 0xD3CEE169 }
func (f *K) Dimensions() int              { return 64 * 2 }
func (f *K) MaxActiveDimensions() int     { return 2 }
func (f *K) RefreshTrigger() TriggerEvent { return TriggerNone }

func kIndex(perspective, sq int, kingWhite bool) int {
	var index = orient(perspective, sq)
	if colourOf(kingWhite) != perspective {
		index += 64
	}
	return index
}

func (f *K) AppendActiveIndices(pos *Position, perspective int, active []int) []int {
	for _, side := range [...]bool{true, false} {
		active = append(active, kIndex(perspective, pos.KingSquare(side), side))
	}
	return active
}

func (f *K) AppendChangedIndices(pos *Position, dirty *DirtyPiece, perspective int,
	removed, added []int) ([]int, []int) {
	for i := 0; i < dirty.Num; i++ {
		var pieceType, side = SplitPiece(dirty.Piece[i])
		if pieceType != King {
			continue
		}
		removed = append(removed, kIndex(perspective, dirty.From[i], side))
		added = append(added, kIndex(perspective, dirty.To[i], side))
	}
	return removed, added
}
