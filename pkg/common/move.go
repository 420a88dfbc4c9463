package common

import "strings"

const promotionChars = "nbrq"

func newMove(from, to, moving, captured, promotion int) Move {
	return Move(from | to<<6 | moving<<12 | captured<<15 | promotion<<18)
}

func (m Move) From() int {
	return int(m & 63)
}

func (m Move) To() int {
	return int(m>>6) & 63
}

func (m Move) MovingPiece() int {
	return int(m>>12) & 7
}

func (m Move) CapturedPiece() int {
	return int(m>>15) & 7
}

func (m Move) Promotion() int {
	return int(m>>18) & 7
}

func (m Move) IsCaptureOrPromotion() bool {
	return m.CapturedPiece() != Empty || m.Promotion() != Empty
}

// String returns the move in long algebraic notation, e.g. "e7e8q".
func (m Move) String() string {
	if m == MoveEmpty {
		return "0000"
	}
	var result = SquareName(m.From()) + SquareName(m.To())
	if promotion := m.Promotion(); promotion != Empty {
		result += string(promotionChars[promotion-Knight])
	}
	return result
}

// FindMove returns the legal move matching from, to and promotion.
func (p *Position) FindMove(from, to, promotion int) Move {
	var buffer [MaxMoves]OrderedMove
	var child Position
	for _, om := range p.GenerateMoves(buffer[:]) {
		var m = om.Move
		if m.From() == from && m.To() == to && m.Promotion() == promotion &&
			p.MakeMove(m, &child) {
			return m
		}
	}
	return MoveEmpty
}

func (p *Position) ParseMoveLAN(lan string) Move {
	lan = strings.ToLower(lan)
	if len(lan) != 4 && len(lan) != 5 {
		return MoveEmpty
	}
	var from, to = ParseSquare(lan[0:2]), ParseSquare(lan[2:4])
	if from == SquareNone || to == SquareNone {
		return MoveEmpty
	}
	var promotion = Empty
	if len(lan) == 5 {
		var i = strings.IndexByte(promotionChars, lan[4])
		if i < 0 {
			return MoveEmpty
		}
		promotion = Knight + i
	}
	return p.FindMove(from, to, promotion)
}

func (p *Position) MakeMoveLAN(lan string) (Position, bool) {
	var m = p.ParseMoveLAN(lan)
	if m == MoveEmpty {
		return Position{}, false
	}
	var child Position
	p.MakeMove(m, &child)
	return child, true
}
