package sfen

import (
	"github.com/pkg/errors"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

var (
	ErrIllegalPosition = errors.New("sfen: illegal position")
	ErrIllegalMove     = errors.New("sfen: illegal move")
	errOverrun         = errors.Wrap(ErrIllegalPosition, "bit stream overrun")
)

// PackedSfen is a Huffman coded position. Layout, least significant bit of
// byte 0 first: side to move, white and black king squares (6 bits each),
// the other 62 squares from a8 to h1 (ranks downwards, files a to h),
// castling rights, en passant flag and square, halfmove clock low 6 bits,
// fullmove number (16 bits), halfmove clock bit 6.
type PackedSfen [32]byte

type huffmanCode struct {
	code uint32
	bits int
}

var huffmanTable = [King]huffmanCode{
	Empty:  {0x0, 1},
	Pawn:   {0x1, 4},
	Knight: {0x3, 4},
	Bishop: {0x5, 4},
	Rook:   {0x7, 4},
	Queen:  {0x9, 4},
}

type bitStream struct {
	data   *PackedSfen
	cursor int
}

func (bs *bitStream) writeOneBit(b uint32) {
	if b != 0 {
		bs.data[bs.cursor/8] |= 1 << (bs.cursor & 7)
	}
	bs.cursor++
}

func (bs *bitStream) writeBits(d uint32, n int) {
	for i := 0; i < n; i++ {
		bs.writeOneBit(d & (1 << i))
	}
}

func (bs *bitStream) readOneBit() (uint32, error) {
	if bs.cursor >= 8*len(bs.data) {
		return 0, errOverrun
	}
	var b = uint32(bs.data[bs.cursor/8]>>(bs.cursor&7)) & 1
	bs.cursor++
	return b, nil
}

func (bs *bitStream) readBits(n int) (uint32, error) {
	var result uint32
	for i := 0; i < n; i++ {
		var b, err = bs.readOneBit()
		if err != nil {
			return 0, err
		}
		result |= b << i
	}
	return result, nil
}

// board squares in packing order
var packOrder = func() []int {
	var result []int
	for rank := Rank8; rank >= Rank1; rank-- {
		for file := FileA; file <= FileH; file++ {
			result = append(result, MakeSquare(file, rank))
		}
	}
	return result
}()

func Pack(p *Position) PackedSfen {
	var sfen PackedSfen
	var bs = bitStream{data: &sfen}

	bs.writeOneBit(boolBit(!p.WhiteMove))
	bs.writeBits(uint32(p.KingSquare(true)), 6)
	bs.writeBits(uint32(p.KingSquare(false)), 6)

	for _, sq := range packOrder {
		var pieceType, side = p.GetPieceTypeAndSide(sq)
		if pieceType == King {
			continue
		}
		var c = huffmanTable[pieceType]
		bs.writeBits(c.code, c.bits)
		if pieceType != Empty {
			bs.writeOneBit(boolBit(!side))
		}
	}

	for _, right := range [...]int{WhiteKingSide, WhiteQueenSide, BlackKingSide, BlackQueenSide} {
		bs.writeOneBit(boolBit(p.CastleRights&right != 0))
	}

	if p.EpSquare != SquareNone {
		bs.writeOneBit(1)
		bs.writeBits(uint32(p.EpSquare), 6)
	} else {
		bs.writeOneBit(0)
	}

	bs.writeBits(uint32(p.Rule50), 6)
	bs.writeBits(uint32(p.FullMoveNumber()), 16)
	bs.writeBits(uint32(p.Rule50>>6), 1)
	return sfen
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func readPiece(bs *bitStream) (int, error) {
	var code uint32
	for bits := 1; bits <= 4; bits++ {
		var b, err = bs.readOneBit()
		if err != nil {
			return Empty, err
		}
		code |= b << (bits - 1)
		for pieceType, c := range huffmanTable {
			if c.bits == bits && c.code == code {
				return pieceType, nil
			}
		}
	}
	return Empty, errors.Wrap(ErrIllegalPosition, "bad piece code")
}

// Unpack decodes and validates a packed position.
func Unpack(sfen *PackedSfen) (Position, error) {
	var bs = bitStream{data: sfen}
	var pieces [64]int

	var blackToMove, err = bs.readOneBit()
	if err != nil {
		return Position{}, err
	}
	for _, side := range [...]bool{true, false} {
		var sq, err = bs.readBits(6)
		if err != nil {
			return Position{}, err
		}
		if pieces[sq] != Empty {
			return Position{}, errors.Wrap(ErrIllegalPosition, "kings share a square")
		}
		pieces[sq] = MakePiece(King, side)
	}

	var count, pawns [2]int
	for _, sq := range packOrder {
		if pieces[sq] != Empty {
			continue
		}
		var pieceType, err = readPiece(&bs)
		if err != nil {
			return Position{}, err
		}
		if pieceType == Empty {
			continue
		}
		black, err := bs.readOneBit()
		if err != nil {
			return Position{}, err
		}
		if pieceType == Pawn && (Rank(sq) == Rank1 || Rank(sq) == Rank8) {
			return Position{}, errors.Wrap(ErrIllegalPosition, "pawn on back rank")
		}
		count[black]++
		if pieceType == Pawn {
			pawns[black]++
		}
		pieces[sq] = MakePiece(pieceType, black == 0)
	}
	for side := range count {
		if count[side] > 15 || pawns[side] > 8 {
			return Position{}, errors.Wrap(ErrIllegalPosition, "too many pieces")
		}
	}

	var castleRights int
	for _, right := range [...]int{WhiteKingSide, WhiteQueenSide, BlackKingSide, BlackQueenSide} {
		var b, err = bs.readOneBit()
		if err != nil {
			return Position{}, err
		}
		if b != 0 {
			castleRights |= right
		}
	}

	var ep = SquareNone
	hasEp, err := bs.readOneBit()
	if err != nil {
		return Position{}, err
	}
	if hasEp != 0 {
		var sq, err = bs.readBits(6)
		if err != nil {
			return Position{}, err
		}
		ep = int(sq)
	}

	rule50, err := bs.readBits(6)
	if err != nil {
		return Position{}, err
	}
	fullMove, err := bs.readBits(16)
	if err != nil {
		return Position{}, err
	}
	rule50High, err := bs.readBits(1)
	if err != nil {
		return Position{}, err
	}
	rule50 |= rule50High << 6

	var whiteMove = blackToMove == 0
	var gamePly = 2 * Max(int(fullMove)-1, 0)
	if !whiteMove {
		gamePly++
	}
	p, err := NewPositionFromPieces(pieces, whiteMove, castleRights, ep, int(rule50), gamePly)
	if err != nil {
		return Position{}, errors.Wrap(ErrIllegalPosition, err.Error())
	}
	if p.CastleRights != castleRights {
		return Position{}, errors.Wrap(ErrIllegalPosition, "castling rights without king and rook")
	}
	if p.EpSquare != ep {
		return Position{}, errors.Wrap(ErrIllegalPosition, "bad en passant square")
	}
	return p, nil
}
