package sfen

import (
	"encoding/binary"

	"github.com/pkg/errors"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

// RecordSize is the on-disk size of a PackedSfenValue.
const RecordSize = 40

// Game results from the point of view of the side to move.
const (
	ResultLoss = -1
	ResultDraw = 0
	ResultWin  = 1
)

// PackedSfenValue is one training sample.
type PackedSfenValue struct {
	Sfen       PackedSfen
	Score      int16
	Move       uint16
	GamePly    uint16
	GameResult int8
	Padding    uint8
}

func (v *PackedSfenValue) MarshalBinary() ([]byte, error) {
	var b = make([]byte, RecordSize)
	v.put(b)
	return b, nil
}

func (v *PackedSfenValue) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return errors.Errorf("sfen: record is %d bytes, want %d", len(b), RecordSize)
	}
	v.get(b)
	return nil
}

func (v *PackedSfenValue) put(b []byte) {
	copy(b[:32], v.Sfen[:])
	binary.LittleEndian.PutUint16(b[32:], uint16(v.Score))
	binary.LittleEndian.PutUint16(b[34:], v.Move)
	binary.LittleEndian.PutUint16(b[36:], v.GamePly)
	b[38] = byte(v.GameResult)
	b[39] = v.Padding
}

func (v *PackedSfenValue) get(b []byte) {
	copy(v.Sfen[:], b[:32])
	v.Score = int16(binary.LittleEndian.Uint16(b[32:]))
	v.Move = binary.LittleEndian.Uint16(b[34:])
	v.GamePly = binary.LittleEndian.Uint16(b[36:])
	v.GameResult = int8(b[38])
	v.Padding = b[39]
}

// Position unpacks the stored position.
func (v *PackedSfenValue) Position() (Position, error) {
	return Unpack(&v.Sfen)
}

// EncodeMove packs a move as from | to<<6 | promotion<<12,
// with promotion 1..4 for knight..queen.
func EncodeMove(m Move) uint16 {
	if m == MoveEmpty {
		return 0
	}
	var promotion = 0
	if m.Promotion() != Empty {
		promotion = m.Promotion() - Knight + 1
	}
	return uint16(m.From() | m.To()<<6 | promotion<<12)
}

// DecodeMove returns the legal move in p matching the encoded one.
func DecodeMove(p *Position, m uint16) (Move, error) {
	var from = int(m & 63)
	var to = int(m>>6) & 63
	var promotion = Empty
	if code := int(m>>12) & 7; code != 0 {
		if code > 4 {
			return MoveEmpty, errors.Wrapf(ErrIllegalMove, "promotion code %d", code)
		}
		promotion = code - 1 + Knight
	}
	var move = p.FindMove(from, to, promotion)
	if move == MoveEmpty {
		return MoveEmpty, errors.Wrapf(ErrIllegalMove, "%s%s", SquareName(from), SquareName(to))
	}
	return move, nil
}
