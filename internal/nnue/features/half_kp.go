package features

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

// piece-square block size for one king square: 10 non-king piece kinds plus index 0
const psEnd = 10*64 + 1

// HalfKP indexes every non-king piece relative to one king.
type HalfKP struct {
	side Side
}

func NewHalfKP(side Side) *HalfKP {
	return &HalfKP{side: side}
}

func (f *HalfKP) Name() string {
	if f.side == Friend {
		return "HalfKP(Friend)"
	}
	return "HalfKP(Enemy)"
}

func (f *HalfKP) Hash() uint32 {
	if f.side == Friend {
		return 0x5D69D5B9 ^ 1
	}
	return 0x5D69D5B9
}

func (f *HalfKP) Dimensions() int          { return 64 * psEnd }
func (f *HalfKP) MaxActiveDimensions() int { return 30 }

func (f *HalfKP) RefreshTrigger() TriggerEvent {
	if f.side == Friend {
		return TriggerFriendKingMoved
	}
	return TriggerEnemyKingMoved
}

func (f *HalfKP) kingSquare(pos *Position, perspective int) int {
	var kingWhite = perspective == SideWhite
	if f.side == Enemy {
		kingWhite = !kingWhite
	}
	return orient(perspective, pos.KingSquare(kingWhite))
}

func halfKPIndex(perspective, sq, piece, ksq int) int {
	var pieceType, side = SplitPiece(piece)
	var block = 2 * (pieceType - Pawn)
	if colourOf(side) != perspective {
		block++
	}
	return orient(perspective, sq) + 1 + block*64 + psEnd*ksq
}

func (f *HalfKP) AppendActiveIndices(pos *Position, perspective int, active []int) []int {
	var ksq = f.kingSquare(pos, perspective)
	for bb := pos.AllPieces() &^ pos.Kings; bb != 0; bb &= bb - 1 {
		var sq = FirstOne(bb)
		var pieceType, side = pos.GetPieceTypeAndSide(sq)
		active = append(active, halfKPIndex(perspective, sq, MakePiece(pieceType, side), ksq))
	}
	return active
}

func (f *HalfKP) AppendChangedIndices(pos *Position, dirty *DirtyPiece, perspective int,
	removed, added []int) ([]int, []int) {
	var ksq = f.kingSquare(pos, perspective)
	for i := 0; i < dirty.Num; i++ {
		var piece = dirty.Piece[i]
		if pieceType, _ := SplitPiece(piece); pieceType == King {
			continue
		}
		if dirty.From[i] != SquareNone {
			removed = append(removed, halfKPIndex(perspective, dirty.From[i], piece, ksq))
		}
		if dirty.To[i] != SquareNone {
			added = append(added, halfKPIndex(perspective, dirty.To[i], piece, ksq))
		}
	}
	return removed, added
}
