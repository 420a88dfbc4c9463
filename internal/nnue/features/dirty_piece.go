package features

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

// DirtyPiece lists the pieces a move touched. Piece codes come from
// common.MakePiece. Entry 0 is always the moving piece; a removed piece has
// To == SquareNone and an added piece has From == SquareNone.
type DirtyPiece struct {
	Num                  int
	Piece                [3]int
	From                 [3]int
	To                   [3]int
	PreviousCastleRights int
}

// NewDirtyPiece describes move made from parent. A null move leaves the list empty.
func NewDirtyPiece(parent *Position, move Move) DirtyPiece {
	var dp = DirtyPiece{PreviousCastleRights: parent.CastleRights}
	if move == MoveEmpty {
		return dp
	}
	var side = parent.WhiteMove
	var from, to = move.From(), move.To()
	var movingPiece = move.MovingPiece()

	if rookFrom, rookTo, ok := CastlingRook(move); ok {
		dp.add(MakePiece(King, side), from, to)
		dp.add(MakePiece(Rook, side), rookFrom, rookTo)
		return dp
	}

	var promotion = move.Promotion()
	if promotion != Empty {
		dp.add(MakePiece(Pawn, side), from, SquareNone)
	} else {
		dp.add(MakePiece(movingPiece, side), from, to)
	}
	if captured := move.CapturedPiece(); captured != Empty {
		var capSq = to
		if movingPiece == Pawn && to == parent.EpSquare {
			if side {
				capSq = to - 8
			} else {
				capSq = to + 8
			}
		}
		dp.add(MakePiece(captured, !side), capSq, SquareNone)
	}
	if promotion != Empty {
		dp.add(MakePiece(promotion, side), SquareNone, to)
	}
	return dp
}

func (dp *DirtyPiece) add(piece, from, to int) {
	dp.Piece[dp.Num] = piece
	dp.From[dp.Num] = from
	dp.To[dp.Num] = to
	dp.Num++
}
