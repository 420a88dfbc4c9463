package common

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const pieceChars = " PNBRQK pnbrqk"

var zobrist struct {
	piece     [2][King + 1][64]uint64
	castle    [allCastleRights + 1]uint64
	enPassant [8]uint64
	blackMove uint64
}

func colorIndex(white bool) int {
	if white {
		return 0
	}
	return 1
}

// NewPositionFromPieces builds a position from a board of MakePiece values (0 is empty).
// Castle rights without the king and rook at home and an impossible en
// passant square are dropped.
func NewPositionFromPieces(pieces [64]int, whiteMove bool,
	castleRights, ep, rule50, gamePly int) (Position, error) {
	var p = Position{
		WhiteMove: whiteMove,
		EpSquare:  ep,
		Rule50:    rule50,
		GamePly:   gamePly,
	}
	for sq, piece := range pieces {
		if piece == Empty {
			continue
		}
		var pt, white = SplitPiece(piece)
		if pt < Pawn || pt > King {
			return Position{}, fmt.Errorf("bad piece %v on %v", piece, SquareName(sq))
		}
		p.togglePiece(pt, white, sq)
	}
	if PopCount(p.Kings&p.White) != 1 || PopCount(p.Kings&p.Black) != 1 {
		return Position{}, fmt.Errorf("each side needs exactly one king")
	}
	p.CastleRights = castleRights & p.possibleCastleRights()
	if !p.validEpSquare() {
		p.EpSquare = SquareNone
	}
	if !p.isLegal() {
		return Position{}, fmt.Errorf("side to move can capture the king")
	}
	p.Key = p.computeKey()
	p.Checkers = p.computeCheckers()
	return p, nil
}

func (p *Position) validEpSquare() bool {
	var ep = p.EpSquare
	if ep < 0 || ep >= 64 || p.AllPieces()&SquareMask[ep] != 0 {
		return false
	}
	var enemyPawns = p.Pawns & p.PiecesByColor(!p.WhiteMove)
	if p.WhiteMove {
		return Rank(ep) == Rank6 && enemyPawns&SquareMask[ep-8] != 0
	}
	return Rank(ep) == Rank3 && enemyPawns&SquareMask[ep+8] != 0
}

func NewPositionFromFEN(fen string) (Position, error) {
	var fields = strings.Fields(fen)
	if len(fields) < 4 {
		return Position{}, fmt.Errorf("parse fen failed %v", fen)
	}

	var pieces [64]int
	var rows = strings.Split(fields[0], "/")
	if len(rows) != 8 {
		return Position{}, fmt.Errorf("parse fen failed %v", fen)
	}
	for i, row := range rows {
		var rank = Rank8 - i
		var file = FileA
		for _, ch := range row {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			var piece = strings.IndexRune(pieceChars, ch)
			if ch == ' ' || piece <= 0 || file > FileH {
				return Position{}, fmt.Errorf("parse fen failed %v", fen)
			}
			pieces[MakeSquare(file, rank)] = piece
			file++
		}
		if file != FileH+1 {
			return Position{}, fmt.Errorf("parse fen failed %v", fen)
		}
	}

	var whiteMove bool
	switch fields[1] {
	case "w":
		whiteMove = true
	case "b":
		whiteMove = false
	default:
		return Position{}, fmt.Errorf("parse fen failed %v", fen)
	}

	var castleRights = 0
	for i, ch := range "KQkq" {
		if strings.ContainsRune(fields[2], ch) {
			castleRights |= 1 << uint(i)
		}
	}

	var rule50, fullMove = 0, 1
	if len(fields) > 4 {
		rule50, _ = strconv.Atoi(fields[4])
	}
	if len(fields) > 5 {
		fullMove, _ = strconv.Atoi(fields[5])
	}
	var gamePly = 2 * Max(fullMove-1, 0)
	if !whiteMove {
		gamePly++
	}

	var p, err = NewPositionFromPieces(pieces, whiteMove, castleRights,
		ParseSquare(fields[3]), rule50, gamePly)
	if err != nil {
		return Position{}, fmt.Errorf("parse fen failed %v: %w", fen, err)
	}
	return p, nil
}

func (p *Position) String() string {
	var sb strings.Builder
	for rank := Rank8; rank >= Rank1; rank-- {
		var gap = 0
		for file := FileA; file <= FileH; file++ {
			var pt, white = p.GetPieceTypeAndSide(MakeSquare(file, rank))
			if pt == Empty {
				gap++
				continue
			}
			if gap > 0 {
				sb.WriteString(strconv.Itoa(gap))
				gap = 0
			}
			sb.WriteByte(pieceChars[MakePiece(pt, white)])
		}
		if gap > 0 {
			sb.WriteString(strconv.Itoa(gap))
		}
		if rank != Rank1 {
			sb.WriteByte('/')
		}
	}

	if p.WhiteMove {
		sb.WriteString(" w ")
	} else {
		sb.WriteString(" b ")
	}

	if p.CastleRights == 0 {
		sb.WriteByte('-')
	}
	for i, ch := range "KQkq" {
		if p.CastleRights&(1<<uint(i)) != 0 {
			sb.WriteRune(ch)
		}
	}

	fmt.Fprintf(&sb, " %v %v %v", SquareName(p.EpSquare), p.Rule50, p.FullMoveNumber())
	return sb.String()
}

func (p *Position) FullMoveNumber() int {
	return 1 + p.GamePly/2
}

func (p *Position) typeBoard(pieceType int) *uint64 {
	switch pieceType {
	case Pawn:
		return &p.Pawns
	case Knight:
		return &p.Knights
	case Bishop:
		return &p.Bishops
	case Rook:
		return &p.Rooks
	case Queen:
		return &p.Queens
	case King:
		return &p.Kings
	}
	panic(fmt.Errorf("bad piece type %v", pieceType))
}

// PiecesByType returns the pieces of both colours of one type.
func (p *Position) PiecesByType(pieceType int) uint64 {
	return *p.typeBoard(pieceType)
}

func (p *Position) PiecesByColor(white bool) uint64 {
	if white {
		return p.White
	}
	return p.Black
}

func (p *Position) AllPieces() uint64 {
	return p.White | p.Black
}

// togglePiece adds or removes one piece and keeps the hash key in step.
func (p *Position) togglePiece(pieceType int, white bool, sq int) {
	var b = SquareMask[sq]
	*p.typeBoard(pieceType) ^= b
	if white {
		p.White ^= b
	} else {
		p.Black ^= b
	}
	p.Key ^= zobrist.piece[colorIndex(white)][pieceType][sq]
}

func (p *Position) WhatPiece(sq int) int {
	var b = SquareMask[sq]
	if p.AllPieces()&b == 0 {
		return Empty
	}
	for pt := Pawn; pt <= King; pt++ {
		if *p.typeBoard(pt)&b != 0 {
			return pt
		}
	}
	return Empty
}

func (p *Position) GetPieceTypeAndSide(sq int) (pieceType int, white bool) {
	return p.WhatPiece(sq), p.White&SquareMask[sq] != 0
}

func (p *Position) KingSquare(white bool) int {
	return FirstOne(p.Kings & p.PiecesByColor(white))
}

// MakeMove plays a pseudo-legal move into result and reports whether it was legal.
func (p *Position) MakeMove(move Move, result *Position) bool {
	var from, to = move.From(), move.To()
	var moving, captured = move.MovingPiece(), move.CapturedPiece()
	var us = p.WhiteMove

	*result = *p
	result.WhiteMove = !us
	result.GamePly++
	result.Key ^= zobrist.blackMove
	if moving == Pawn || captured != Empty {
		result.Rule50 = 0
	} else {
		result.Rule50++
	}
	if p.EpSquare != SquareNone {
		result.EpSquare = SquareNone
		result.Key ^= zobrist.enPassant[File(p.EpSquare)]
	}
	result.CastleRights &= castleRightsKept[from] & castleRightsKept[to]
	result.Key ^= zobrist.castle[p.CastleRights] ^ zobrist.castle[result.CastleRights]

	if captured != Empty {
		var victimSq = to
		if moving == Pawn && to == p.EpSquare {
			victimSq = MakeSquare(File(to), Rank(from))
		}
		result.togglePiece(captured, !us, victimSq)
	}
	result.togglePiece(moving, us, from)
	if promotion := move.Promotion(); promotion != Empty {
		result.togglePiece(promotion, us, to)
	} else {
		result.togglePiece(moving, us, to)
	}

	if moving == Pawn && (to-from == 16 || from-to == 16) {
		result.EpSquare = (from + to) / 2
		result.Key ^= zobrist.enPassant[File(from)]
	} else if rookFrom, rookTo, ok := CastlingRook(move); ok {
		result.togglePiece(Rook, us, rookFrom)
		result.togglePiece(Rook, us, rookTo)
	}

	if !result.isLegal() {
		return false
	}
	result.Checkers = result.computeCheckers()
	result.LastMove = move
	return true
}

// attackersTo returns the pieces of both colours attacking sq through occ.
func (p *Position) attackersTo(sq int, occ uint64) uint64 {
	return PawnAttacks(sq, false)&p.Pawns&p.White |
		PawnAttacks(sq, true)&p.Pawns&p.Black |
		KnightAttacks[sq]&p.Knights |
		KingAttacks[sq]&p.Kings |
		BishopAttacks(sq, occ)&(p.Bishops|p.Queens) |
		RookAttacks(sq, occ)&(p.Rooks|p.Queens)
}

func (p *Position) isAttackedBySide(sq int, white bool) bool {
	return p.attackersTo(sq, p.AllPieces())&p.PiecesByColor(white) != 0
}

func (p *Position) computeCheckers() uint64 {
	var us = p.WhiteMove
	return p.attackersTo(p.KingSquare(us), p.AllPieces()) & p.PiecesByColor(!us)
}

// isLegal reports that the side which just moved left its king safe.
func (p *Position) isLegal() bool {
	return !p.isAttackedBySide(p.KingSquare(!p.WhiteMove), p.WhiteMove)
}

func (p *Position) IsCheck() bool {
	return p.Checkers != 0
}

// HasInsufficientMaterial reports that side cannot mate with its own pieces.
func (p *Position) HasInsufficientMaterial(white bool) bool {
	var own = p.PiecesByColor(white)
	if (p.Pawns|p.Rooks|p.Queens)&own != 0 {
		return false
	}
	return !MoreThanOne((p.Knights | p.Bishops) & own)
}

func (p *Position) computeKey() uint64 {
	var key = zobrist.castle[p.CastleRights]
	if !p.WhiteMove {
		key ^= zobrist.blackMove
	}
	if p.EpSquare != SquareNone {
		key ^= zobrist.enPassant[File(p.EpSquare)]
	}
	for b := p.AllPieces(); b != 0; b &= b - 1 {
		var sq = FirstOne(b)
		var pt, white = p.GetPieceTypeAndSide(sq)
		key ^= zobrist.piece[colorIndex(white)][pt][sq]
	}
	return key
}

func init() {
	var r = rand.New(rand.NewSource(20200717))
	for color := range zobrist.piece {
		for pt := Pawn; pt <= King; pt++ {
			for sq := range zobrist.piece[color][pt] {
				zobrist.piece[color][pt][sq] = r.Uint64()
			}
		}
	}
	for i := range zobrist.enPassant {
		zobrist.enPassant[i] = r.Uint64()
	}
	zobrist.blackMove = r.Uint64()

	var rightKeys [4]uint64
	for i := range rightKeys {
		rightKeys[i] = r.Uint64()
	}
	for rights := range zobrist.castle {
		for i, key := range rightKeys {
			if rights&(1<<uint(i)) != 0 {
				zobrist.castle[rights] ^= key
			}
		}
	}
}
