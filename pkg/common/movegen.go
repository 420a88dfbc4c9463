package common

type moveGen struct {
	p     *Position
	ml    []OrderedMove
	count int
}

func (g *moveGen) add(m Move) {
	g.ml[g.count].Move = m
	g.count++
}

// GenerateMoves fills ml with pseudo-legal moves. MakeMove rejects the illegal ones.
// ml must have room for MaxMoves entries.
func (p *Position) GenerateMoves(ml []OrderedMove) []OrderedMove {
	var g = moveGen{p: p, ml: ml}
	var own = p.PiecesByColor(p.WhiteMove)
	var target = ^own
	if p.Checkers != 0 {
		// capture the checker or block it; double checks leave only king moves legal
		target = p.Checkers | Between(FirstOne(p.Checkers), p.KingSquare(p.WhiteMove))
	}
	g.pawnMoves(target, true)
	g.pieceMoves(target)
	g.kingMoves(^own)
	if p.Checkers == 0 {
		g.castlings()
	}
	return ml[:g.count]
}

// GenerateCaptures fills ml with captures and queen promotions.
func (p *Position) GenerateCaptures(ml []OrderedMove) []OrderedMove {
	var g = moveGen{p: p, ml: ml}
	var enemy = p.PiecesByColor(!p.WhiteMove)
	g.pawnMoves(enemy, false)
	g.pieceMoves(enemy)
	g.kingMoves(enemy)
	return ml[:g.count]
}

// pawnMoves adds pawn moves landing on target. Without quiets only
// captures and queen promotions are produced.
func (g *moveGen) pawnMoves(target uint64, quiets bool) {
	var p = g.p
	var white = p.WhiteMove
	var pawns = p.Pawns & p.PiecesByColor(white)
	var enemy = p.PiecesByColor(!white)
	var empty = ^p.AllPieces()

	var lastRank, doublePushRank, forward = Rank8Mask, Rank3Mask, 8
	if !white {
		lastRank, doublePushRank, forward = Rank1Mask, Rank6Mask, -8
	}

	var pushes = pushUp(pawns, white) & empty
	var doublePushes = pushUp(pushes&doublePushRank, white) & empty & target
	if quiets {
		pushes &= target
	} else {
		pushes &= lastRank
	}
	for b := pushes; b != 0; b &= b - 1 {
		var to = FirstOne(b)
		g.addPawnMove(to-forward, to, Empty, quiets)
	}
	if quiets {
		for b := doublePushes; b != 0; b &= b - 1 {
			var to = FirstOne(b)
			g.add(newMove(to-2*forward, to, Pawn, Empty, Empty))
		}
	}

	for b := pawns; b != 0; b &= b - 1 {
		var from = FirstOne(b)
		for t := PawnAttacks(from, white) & enemy & target; t != 0; t &= t - 1 {
			var to = FirstOne(t)
			g.addPawnMove(from, to, p.WhatPiece(to), quiets)
		}
	}

	if p.EpSquare != SquareNone {
		for b := PawnAttacks(p.EpSquare, !white) & pawns; b != 0; b &= b - 1 {
			g.add(newMove(FirstOne(b), p.EpSquare, Pawn, Pawn, Empty))
		}
	}
}

func (g *moveGen) addPawnMove(from, to, captured int, underPromotions bool) {
	if rank := Rank(to); rank != Rank8 && rank != Rank1 {
		g.add(newMove(from, to, Pawn, captured, Empty))
		return
	}
	g.add(newMove(from, to, Pawn, captured, Queen))
	if underPromotions {
		g.add(newMove(from, to, Pawn, captured, Rook))
		g.add(newMove(from, to, Pawn, captured, Bishop))
		g.add(newMove(from, to, Pawn, captured, Knight))
	}
}

func pieceAttacks(pieceType, sq int, occ uint64) uint64 {
	switch pieceType {
	case Knight:
		return KnightAttacks[sq]
	case Bishop:
		return BishopAttacks(sq, occ)
	case Rook:
		return RookAttacks(sq, occ)
	case Queen:
		return QueenAttacks(sq, occ)
	case King:
		return KingAttacks[sq]
	}
	return 0
}

func (g *moveGen) pieceMoves(target uint64) {
	var p = g.p
	var own = p.PiecesByColor(p.WhiteMove)
	var occ = p.AllPieces()
	for pt := Knight; pt <= Queen; pt++ {
		for b := p.PiecesByType(pt) & own; b != 0; b &= b - 1 {
			var from = FirstOne(b)
			for t := pieceAttacks(pt, from, occ) & target; t != 0; t &= t - 1 {
				var to = FirstOne(t)
				g.add(newMove(from, to, pt, p.WhatPiece(to), Empty))
			}
		}
	}
}

func (g *moveGen) kingMoves(target uint64) {
	var p = g.p
	var from = p.KingSquare(p.WhiteMove)
	for t := KingAttacks[from] & target; t != 0; t &= t - 1 {
		var to = FirstOne(t)
		g.add(newMove(from, to, King, p.WhatPiece(to), Empty))
	}
}

func (g *moveGen) castlings() {
	var p = g.p
	for i := range castlings {
		var c = &castlings[i]
		if c.white == p.WhiteMove &&
			p.CastleRights&c.right != 0 &&
			p.AllPieces()&c.path == 0 &&
			!p.isAttackedBySide(c.transit, !p.WhiteMove) {
			g.add(newMove(c.kingFrom, c.kingTo, King, Empty, Empty))
		}
	}
}

func (p *Position) GenerateLegalMoves() []Move {
	var buffer [MaxMoves]OrderedMove
	var child Position
	var result []Move
	for _, om := range p.GenerateMoves(buffer[:]) {
		if p.MakeMove(om.Move, &child) {
			result = append(result, om.Move)
		}
	}
	return result
}

func (p *Position) HasLegalMove() bool {
	var buffer [MaxMoves]OrderedMove
	var child Position
	for _, om := range p.GenerateMoves(buffer[:]) {
		if p.MakeMove(om.Move, &child) {
			return true
		}
	}
	return false
}
