package features

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

// CastlingRight has one index per castling right, own rights first.
type CastlingRight struct{}

func NewCastlingRight() *CastlingRight { return &CastlingRight{} }

func (f *CastlingRight) Name() string                 { return "CastlingRight" }
func (f *CastlingRight) Hash() uint32                 { return 0x913968AA }
func (f *CastlingRight) Dimensions() int              { return 4 }
func (f *CastlingRight) MaxActiveDimensions() int     { return 4 }
func (f *CastlingRight) RefreshTrigger() TriggerEvent { return TriggerNone }

func relativeCastleRights(rights, perspective int) int {
	if perspective == SideWhite {
		return rights
	}
	return (rights&3)<<2 | (rights>>2)&3
}

func (f *CastlingRight) AppendActiveIndices(pos *Position, perspective int, active []int) []int {
	var rights = relativeCastleRights(pos.CastleRights, perspective)
	for i := 0; i < f.Dimensions(); i++ {
		if rights&(1<<i) != 0 {
			active = append(active, i)
		}
	}
	return active
}

// Castling rights are only ever lost, so there is nothing to add.
func (f *CastlingRight) AppendChangedIndices(pos *Position, dirty *DirtyPiece, perspective int,
	removed, added []int) ([]int, []int) {
	var previous = relativeCastleRights(dirty.PreviousCastleRights, perspective)
	var current = relativeCastleRights(pos.CastleRights, perspective)
	for i := 0; i < f.Dimensions(); i++ {
		if previous&(1<<i) != 0 && current&(1<<i) == 0 {
			removed = append(removed, i)
		}
	}
	return removed, added
}
