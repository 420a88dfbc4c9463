package common

type castling struct {
	right            int
	white            bool
	kingFrom, kingTo int
	rookFrom, rookTo int
	// must be vacant
	path uint64
	// crossed by the king, must not be attacked
	transit int
}

var castlings = [...]castling{
	{WhiteKingSide, true, SquareE1, SquareG1, SquareH1, SquareF1,
		squares(SquareF1, SquareG1), SquareF1},
	{WhiteQueenSide, true, SquareE1, SquareC1, SquareA1, SquareD1,
		squares(SquareB1, SquareC1, SquareD1), SquareD1},
	{BlackKingSide, false, SquareE8, SquareG8, SquareH8, SquareF8,
		squares(SquareF8, SquareG8), SquareF8},
	{BlackQueenSide, false, SquareE8, SquareC8, SquareA8, SquareD8,
		squares(SquareB8, SquareC8, SquareD8), SquareD8},
}

// castleRightsKept[sq] clears the rights lost when a piece leaves or lands on sq.
var castleRightsKept [64]int

func squares(list ...int) uint64 {
	var result uint64
	for _, sq := range list {
		result |= 1 << uint(sq)
	}
	return result
}

// CastlingRook returns the rook relocation of a castling move.
func CastlingRook(m Move) (from, to int, ok bool) {
	if m.MovingPiece() != King {
		return SquareNone, SquareNone, false
	}
	for i := range castlings {
		var c = &castlings[i]
		if m.From() == c.kingFrom && m.To() == c.kingTo {
			return c.rookFrom, c.rookTo, true
		}
	}
	return SquareNone, SquareNone, false
}

// possibleCastleRights keeps the rights whose king and rook still stand at home.
func (p *Position) possibleCastleRights() int {
	var result = 0
	for i := range castlings {
		var c = &castlings[i]
		var own = p.PiecesByColor(c.white)
		if p.Kings&own&SquareMask[c.kingFrom] != 0 &&
			p.Rooks&own&SquareMask[c.rookFrom] != 0 {
			result |= c.right
		}
	}
	return result
}

func init() {
	for sq := range castleRightsKept {
		castleRightsKept[sq] = allCastleRights
	}
	for i := range castlings {
		var c = &castlings[i]
		castleRightsKept[c.kingFrom] &^= c.right
		castleRightsKept[c.rookFrom] &^= c.right
	}
}
