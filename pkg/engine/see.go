package engine

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

var seeValues = [King + 1]int{Pawn: 100, Knight: 320, Bishop: 330, Rook: 500, Queen: 950, King: 20000}

// staticExchange returns the material balance of the capture sequence on the
// destination square of m, both sides always recapturing with the least
// valuable piece and allowed to stop when continuing would lose material.
// https://www.chessprogramming.org/SEE_-_The_Swap_Algorithm
func staticExchange(p *Position, m Move) int {
	var from, to = m.From(), m.To()
	var occ = p.AllPieces() &^ SquareMask[from]
	var onSquare = m.MovingPiece()

	var gain [32]int
	gain[0] = seeValues[m.CapturedPiece()]
	if promotion := m.Promotion(); promotion != Empty {
		gain[0] += seeValues[promotion] - seeValues[Pawn]
		onSquare = promotion
	}
	if m.MovingPiece() == Pawn && to == p.EpSquare {
		occ &^= SquareMask[MakeSquare(File(to), Rank(from))]
	}

	var diagonal = p.Bishops | p.Queens
	var straight = p.Rooks | p.Queens
	var attackers = attackersTo(p, to, occ) & occ
	var white = !p.WhiteMove
	var n = 1
	for ; n < len(gain); n++ {
		var own = attackers & p.PiecesByColor(white)
		if own == 0 {
			break
		}
		var pt, sq = leastValuable(p, own)
		gain[n] = seeValues[onSquare] - gain[n-1]
		onSquare = pt
		occ &^= SquareMask[sq]
		// x-rays behind the piece that just captured
		attackers |= BishopAttacks(to, occ)&diagonal | RookAttacks(to, occ)&straight
		attackers &= occ
		white = !white
	}
	for n--; n > 0; n-- {
		gain[n-1] = -Max(-gain[n-1], gain[n])
	}
	return gain[0]
}

func attackersTo(p *Position, sq int, occ uint64) uint64 {
	return PawnAttacks(sq, false)&p.Pawns&p.White |
		PawnAttacks(sq, true)&p.Pawns&p.Black |
		KnightAttacks[sq]&p.Knights |
		KingAttacks[sq]&p.Kings |
		BishopAttacks(sq, occ)&(p.Bishops|p.Queens) |
		RookAttacks(sq, occ)&(p.Rooks|p.Queens)
}

func leastValuable(p *Position, attackers uint64) (pieceType, sq int) {
	for pt := Pawn; pt <= King; pt++ {
		if b := p.PiecesByType(pt) & attackers; b != 0 {
			return pt, FirstOne(b)
		}
	}
	return Empty, SquareNone
}
