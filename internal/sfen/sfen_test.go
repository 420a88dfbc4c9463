package sfen

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

func randomGames(t *testing.T, seed int64, games, plies int) []Position {
	var rnd = rand.New(rand.NewSource(seed))
	var result []Position
	for i := 0; i < games; i++ {
		var p, err = NewPositionFromFEN(InitialPositionFen)
		require.NoError(t, err)
		for ply := 0; ply < plies; ply++ {
			result = append(result, p)
			var ml = p.GenerateLegalMoves()
			if len(ml) == 0 {
				break
			}
			var child Position
			p.MakeMove(ml[rnd.Intn(len(ml))], &child)
			p = child
		}
	}
	return result
}

func TestPackRoundTrip(t *testing.T) {
	var fens = []string{
		InitialPositionFen,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 b - - 99 40",
		"4k3/8/8/8/8/8/8/4K2R b K - 120 300",
	}
	for _, fen := range fens {
		var p, err = NewPositionFromFEN(fen)
		require.NoError(t, err)
		var sfen = Pack(&p)
		q, err := Unpack(&sfen)
		require.NoError(t, err, fen)
		assert.Equal(t, fen, q.String())
		assert.Equal(t, p.Key, q.Key)
	}
}

// Unpacked positions of random games have the legal moves an independent generator sees.
func TestPackRandomGames(t *testing.T) {
	for i, p := range randomGames(t, 1, 10, 150) {
		var sfen = Pack(&p)
		var q, err = Unpack(&sfen)
		require.NoError(t, err, p.String())
		require.Equal(t, p.String(), q.String())
		require.Equal(t, p.Key, q.Key)

		if i%7 != 0 {
			continue
		}
		fenOption, err := chess.FEN(q.String())
		require.NoError(t, err)
		var oracle = chess.NewGame(fenOption)
		assert.Equal(t, len(oracle.ValidMoves()), len(q.GenerateLegalMoves()), q.String())
	}
}

func TestMoveRoundTrip(t *testing.T) {
	var fens = []string{
		InitialPositionFen,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"n1n5/PPPk4/8/8/8/8/4Kppp/5N1N b - - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
	}
	for _, fen := range fens {
		var p, err = NewPositionFromFEN(fen)
		require.NoError(t, err)
		for _, m := range p.GenerateLegalMoves() {
			var decoded, err = DecodeMove(&p, EncodeMove(m))
			require.NoError(t, err, m.String())
			assert.Equal(t, m, decoded)
		}
	}
}

func TestDecodeIllegalMove(t *testing.T) {
	var p, err = NewPositionFromFEN(InitialPositionFen)
	require.NoError(t, err)
	_, err = DecodeMove(&p, uint16(MakeSquare(FileE, Rank2)|MakeSquare(FileE, Rank5)<<6))
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = DecodeMove(&p, uint16(MakeSquare(FileE, Rank2)|MakeSquare(FileE, Rank4)<<6|7<<12))
	assert.ErrorIs(t, err, ErrIllegalMove)
}

// packBoard encodes a board without any legality checks.
func packBoard(pieces map[int]int, blackToMove bool, castleRights, ep int) PackedSfen {
	var sfen PackedSfen
	var bs = bitStream{data: &sfen}
	var kings [2]int
	for sq, piece := range pieces {
		if piece == MakePiece(King, true) {
			kings[0] = sq
		} else if piece == MakePiece(King, false) {
			kings[1] = sq
		}
	}
	bs.writeOneBit(boolBit(blackToMove))
	bs.writeBits(uint32(kings[0]), 6)
	bs.writeBits(uint32(kings[1]), 6)
	for _, sq := range packOrder {
		var pieceType, side = SplitPiece(pieces[sq])
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
		bs.writeOneBit(boolBit(castleRights&right != 0))
	}
	if ep != SquareNone {
		bs.writeOneBit(1)
		bs.writeBits(uint32(ep), 6)
	} else {
		bs.writeOneBit(0)
	}
	bs.writeBits(0, 6)
	bs.writeBits(1, 16)
	bs.writeBits(0, 1)
	return sfen
}

func TestUnpackRejects(t *testing.T) {
	var wk, bk = MakePiece(King, true), MakePiece(King, false)
	var wp, bp = MakePiece(Pawn, true), MakePiece(Pawn, false)
	var wr = MakePiece(Rook, true)

	var ninePawns = map[int]int{SquareE1: wk, SquareE8: bk}
	for sq := MakeSquare(FileA, Rank2); sq <= MakeSquare(FileH, Rank2); sq++ {
		ninePawns[sq] = wp
	}
	ninePawns[MakeSquare(FileA, Rank3)] = wp

	var tests = []struct {
		name   string
		pieces map[int]int
		black  bool
		castle int
		ep     int
	}{
		{"pawn on back rank", map[int]int{SquareE1: wk, SquareE8: bk, SquareA8: wp}, false, 0, SquareNone},
		{"pawn on first rank", map[int]int{SquareE1: wk, SquareE8: bk, SquareA1: bp}, false, 0, SquareNone},
		{"nine pawns", ninePawns, false, 0, SquareNone},
		{"side not to move in check", map[int]int{SquareE1: wk, SquareE8: bk, MakeSquare(FileE, Rank4): wr}, false, 0, SquareNone},
		{"adjacent kings", map[int]int{MakeSquare(FileE, Rank4): wk, MakeSquare(FileE, Rank5): bk}, false, 0, SquareNone},
		{"castling without rook", map[int]int{SquareE1: wk, SquareE8: bk}, false, WhiteKingSide, SquareNone},
		{"bad en passant", map[int]int{SquareE1: wk, SquareE8: bk, MakeSquare(FileD, Rank5): bp}, false, 0, MakeSquare(FileE, Rank6)},
	}
	for _, test := range tests {
		var sfen = packBoard(test.pieces, test.black, test.castle, test.ep)
		var _, err = Unpack(&sfen)
		assert.ErrorIs(t, err, ErrIllegalPosition, test.name)
	}
}

func TestUnpackOverrun(t *testing.T) {
	var sfen PackedSfen
	var bs = bitStream{data: &sfen}
	bs.writeOneBit(0)
	bs.writeBits(SquareE1, 6)
	bs.writeBits(SquareE8, 6)
	for bs.cursor+5 <= 8*len(sfen) {
		bs.writeBits(huffmanTable[Queen].code, huffmanTable[Queen].bits)
		bs.writeOneBit(0)
	}
	var _, err = Unpack(&sfen)
	assert.ErrorIs(t, err, ErrIllegalPosition)

	var kingsTogether PackedSfen
	for i := range kingsTogether {
		kingsTogether[i] = 0xFF
	}
	_, err = Unpack(&kingsTogether)
	assert.ErrorIs(t, err, ErrIllegalPosition)
}

func makeRecords(t *testing.T, n int) []PackedSfenValue {
	var rnd = rand.New(rand.NewSource(2))
	var positions []Position
	for _, p := range randomGames(t, 3, 4, 80) {
		if p.HasLegalMove() {
			positions = append(positions, p)
		}
	}
	var result = make([]PackedSfenValue, n)
	for i := range result {
		var p = positions[i%len(positions)]
		var ml = p.GenerateLegalMoves()
		result[i] = PackedSfenValue{
			Sfen:       Pack(&p),
			Score:      int16(rnd.Intn(2001) - 1000),
			Move:       EncodeMove(ml[rnd.Intn(len(ml))]),
			GamePly:    uint16(p.GamePly),
			GameResult: int8(rnd.Intn(3) - 1),
		}
	}
	return result
}

func TestRecordLayout(t *testing.T) {
	var v = PackedSfenValue{Score: -2, Move: 0x1234, GamePly: 300, GameResult: -1}
	v.Sfen[0] = 0xAB
	var b, err = v.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, RecordSize)
	assert.Equal(t, byte(0xAB), b[0])
	assert.Equal(t, []byte{0xFE, 0xFF, 0x34, 0x12, 0x2C, 0x01, 0xFF, 0x00}, b[32:])

	var w PackedSfenValue
	require.NoError(t, w.UnmarshalBinary(b))
	assert.Equal(t, v, w)
	assert.Error(t, w.UnmarshalBinary(b[:39]))
}

func readAll(t *testing.T, path string) []PackedSfenValue {
	var r, err = OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var result []PackedSfenValue
	var buf = make([]PackedSfenValue, 1000)
	for {
		var n, err = r.Read(buf)
		result = append(result, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if !r.HasMore() {
			n, err = r.Read(buf)
			assert.Equal(t, 0, n)
			assert.Equal(t, io.EOF, err)
			break
		}
	}
	return result
}

func TestStreams(t *testing.T) {
	var records = makeRecords(t, BlockSize+1500)
	for _, format := range []Format{FormatBin, FormatPack} {
		var path = filepath.Join(t.TempDir(), "data"+format.Ext())

		var w, err = CreateWriter(path, format, false)
		require.NoError(t, err)
		require.NoError(t, w.Write(records[:1000]))
		require.NoError(t, w.Close())

		w, err = CreateWriter(path, format, true)
		require.NoError(t, err)
		require.NoError(t, w.Write(records[1000:]))
		require.NoError(t, w.Close())

		assert.Equal(t, records, readAll(t, path), format.String())
		count, err := Count(path)
		require.NoError(t, err)
		assert.Equal(t, int64(len(records)), count)
	}
}

func TestPackShards(t *testing.T) {
	var records = makeRecords(t, BlockSize+10)
	var path = filepath.Join(t.TempDir(), "data.pack")
	var w, err = CreateWriter(path, FormatPack, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(records))
	require.NoError(t, w.Close())

	shards, err := listShards(path)
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.Equal(t, "000000.bin.zst", filepath.Base(shards[0]))
	assert.Equal(t, "000001.bin.zst", filepath.Base(shards[1]))
}

func TestPackAppendAfterGap(t *testing.T) {
	var records = makeRecords(t, BlockSize+10)
	var path = filepath.Join(t.TempDir(), "data.pack")
	var w, err = CreateWriter(path, FormatPack, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(records))
	require.NoError(t, w.Close())

	// shards 000001 and 000002, nothing at 000000
	require.NoError(t, os.Rename(shardName(path, 0), shardName(path, 2)))

	w, err = CreateWriter(path, FormatPack, true)
	require.NoError(t, err)
	require.NoError(t, w.Write(records[:20]))
	require.NoError(t, w.Close())

	shards, err := listShards(path)
	require.NoError(t, err)
	require.Len(t, shards, 3)
	assert.Equal(t, "000003.bin.zst", filepath.Base(shards[2]))

	count, err := Count(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(records)+20), count)

	var got = readAll(t, path)
	require.Len(t, got, len(records)+20)
	assert.Equal(t, records[BlockSize:], got[:10])
	assert.Equal(t, records[:BlockSize], got[10:10+BlockSize])
	assert.Equal(t, records[:20], got[10+BlockSize:])
}

func TestTruncatedBin(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "data.bin")
	var records = makeRecords(t, 3)
	var w, err = CreateWriter(path, FormatBin, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(records))
	require.NoError(t, w.Close())
	require.NoError(t, os.Truncate(path, 2*RecordSize+10))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var buf = make([]PackedSfenValue, 10)
	n, err := r.Read(buf)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPlainRoundTrip(t *testing.T) {
	var records = makeRecords(t, 50)
	var buf bytes.Buffer
	for i := range records {
		require.NoError(t, WritePlain(&buf, &records[i]))
	}
	var r = NewPlainReader(&buf)
	for i := range records {
		var v, err = r.Next()
		require.NoError(t, err, i)
		assert.Equal(t, records[i], v)
	}
	var _, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestPlainRejects(t *testing.T) {
	var inputs = []string{
		"fen 8/8/8/8/8/8/8/8 w - - 0 1\nmove e2e4\nscore 0\nply 0\nresult 0\ne\n",
		"fen " + InitialPositionFen + "\nmove e2e5\nscore 0\nply 0\nresult 0\ne\n",
		"fen " + InitialPositionFen + "\nmove e2e4\nscore 0\nply 0\nresult 2\ne\n",
		"fen " + InitialPositionFen + "\nmove e2e4\n",
	}
	for _, input := range inputs {
		var _, err = NewPlainReader(bytes.NewBufferString(input)).Next()
		assert.Error(t, err, input)
	}
}

func TestPlainResumesAfterBadRecord(t *testing.T) {
	var input = "fen 8/8/8/8/8/8/8/8 w - - 0 1\nmove e2e4\nscore 0\nply 0\nresult 0\ne\n" +
		"fen " + InitialPositionFen + "\nmove e2e5\nscore 0\nply 0\nresult 0\ne\n" +
		"fen " + InitialPositionFen + "\nmove e2e4\nscore 15\nply 3\nresult 1\ne\n"
	var r = NewPlainReader(bytes.NewBufferString(input))

	var _, err = r.Next()
	assert.ErrorIs(t, err, ErrIllegalPosition)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrIllegalMove)
	v, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int16(15), v.Score)
	assert.Equal(t, uint16(3), v.GamePly)
	assert.Equal(t, int8(ResultWin), v.GameResult)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}
