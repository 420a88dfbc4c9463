package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ianfab/variant-nnue/pkg/common"
	"github.com/ianfab/variant-nnue/pkg/eval/material"
)

func newTestSearcher() *Searcher {
	return NewSearcher(material.NewEvaluationService(), 1)
}

func mustFEN(t *testing.T, fen string) Position {
	t.Helper()
	var p, err = NewPositionFromFEN(fen)
	require.NoError(t, err, fen)
	return p
}

func TestSearchFindsMateInOne(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	var result = s.Search(SearchParams{Position: p, Depth: 3})
	require.NotEmpty(t, result.PV)
	assert.Equal(t, "a1a8", result.PV[0].String())
	assert.Equal(t, winIn(1), result.Score)
	assert.True(t, IsMateScore(result.Score))
}

func TestSearchWinsHangingQueen(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, "4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1")
	var result = s.Search(SearchParams{Position: p, Depth: 2})
	require.NotEmpty(t, result.PV)
	assert.Equal(t, "d2d5", result.PV[0].String())
	assert.Equal(t, 600, result.Score)
}

func TestSearchNoLegalMoves(t *testing.T) {
	var s = newTestSearcher()

	var stalemate = mustFEN(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	var result = s.Search(SearchParams{Position: stalemate, Depth: 3})
	assert.Empty(t, result.PV)
	assert.Equal(t, 0, result.Score)

	var mated = mustFEN(t, "R5k1/5ppp/8/8/8/8/8/6K1 b - - 0 1")
	result = s.Search(SearchParams{Position: mated, Depth: 3})
	assert.Empty(t, result.PV)
	assert.Equal(t, lossIn(0), result.Score)
}

func TestSearchMultiPV(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, InitialPositionFen)
	var result = s.Search(SearchParams{Position: p, Depth: 2, MultiPV: 4})
	require.Len(t, result.RootMoves, 20)
	for i := 1; i < len(result.RootMoves); i++ {
		assert.GreaterOrEqual(t, result.RootMoves[i-1].Score, result.RootMoves[i].Score)
	}
	for _, rm := range result.RootMoves[:4] {
		assert.Greater(t, rm.Score, -valueInfinity)
		assert.NotEmpty(t, rm.PV)
	}
}

func TestSearchPVIsLegal(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3")
	var result = s.Search(SearchParams{Position: p, Depth: 4})
	require.NotEmpty(t, result.PV)
	var cur = p
	for _, move := range result.PV {
		var child Position
		require.True(t, cur.MakeMove(move, &child), move.String())
		cur = child
	}
}

func TestSearchNodeLimit(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, InitialPositionFen)
	var result = s.Search(SearchParams{Position: p, Depth: 64, Nodes: 2000})
	require.NotEmpty(t, result.PV)
	assert.LessOrEqual(t, result.Nodes, int64(2000))
}

func TestSearchRepetitionFromHistory(t *testing.T) {
	var s = newTestSearcher()
	// white is a rook down but can repeat the position by Kh1-g1
	var p = mustFEN(t, "6k1/8/8/8/8/8/r7/7K w - - 4 40")
	var afterKg1, ok = p.MakeMoveLAN("h1g1")
	require.True(t, ok)
	var result = s.Search(SearchParams{
		Position: p,
		History:  []uint64{afterKg1.Key},
		Depth:    1,
	})
	assert.Equal(t, "h1g1", result.PV[0].String())
	assert.Equal(t, 0, result.Score)
}

func TestQSearchResolvesCaptures(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, "4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1")
	var score, line = s.QSearch(&p)
	require.Len(t, line, 1)
	assert.Equal(t, "d2d5", line[0].String())
	assert.Equal(t, 600, score)

	var quiet = mustFEN(t, InitialPositionFen)
	score, line = s.QSearch(&quiet)
	assert.Empty(t, line)
	assert.Equal(t, 0, score)
}

func TestSearchNodeLimitBeforeFirstIteration(t *testing.T) {
	var s = newTestSearcher()
	var p = mustFEN(t, InitialPositionFen)
	var result = s.Search(SearchParams{Position: p, Depth: 5, Nodes: 2})
	assert.Equal(t, 0, result.Depth)
	require.NotEmpty(t, result.PV)
	assert.Less(t, abs(result.Score), ValueKnownWin)
	require.Len(t, result.RootMoves, 20)
	for _, rm := range result.RootMoves {
		assert.Greater(t, rm.Score, -ValueKnownWin, rm.PV[0].String())
	}

	// a budget that runs out in the first iteration still finds the free queen
	var q = mustFEN(t, "4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1")
	result = s.Search(SearchParams{Position: q, Depth: 5, Nodes: 2})
	assert.Equal(t, "d2d5", result.PV[0].String())
	assert.Equal(t, 600, result.Score)
}

func TestMovePickerYieldsEveryMove(t *testing.T) {
	var s = newTestSearcher()
	var fens = []string{
		InitialPositionFen,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1",
	}
	for _, fen := range fens {
		var p = mustFEN(t, fen)
		var buffer [MaxMoves]OrderedMove
		var want = len(p.GenerateMoves(buffer[:]))
		s.prepare(&p, nil, 0)

		var picker = s.newMovePicker(0, MoveEmpty)
		var got = 0
		var lastKey = int32(hashMoveKey)
		for m := picker.Next(); m != MoveEmpty; m = picker.Next() {
			assert.LessOrEqual(t, picker.moves[picker.next-1].Key, lastKey)
			lastKey = picker.moves[picker.next-1].Key
			got++
		}
		assert.Equal(t, want, got, fen)

		var qs = s.newQuiescencePicker(0)
		var captures = 0
		for m := qs.Next(); m != MoveEmpty; m = qs.Next() {
			assert.True(t, m.IsCaptureOrPromotion(), m.String())
			captures++
		}
		assert.Equal(t, len(p.GenerateCaptures(buffer[:])), captures, fen)
	}
}

func TestStaticExchange(t *testing.T) {
	var tests = []struct {
		fen  string
		move string
		want int
	}{
		// pawn defends
		{"4k3/8/2p5/3p4/8/8/3R4/4K3 w - - 0 1", "d2d5", 100 - 500},
		{"4k3/8/8/3p4/8/8/3R4/4K3 w - - 0 1", "d2d5", 100},
		// the second rook wins the exchange back
		{"4k3/8/2p5/3p4/8/3R4/3R4/4K3 w - - 0 1", "d3d5", 100 - 500 + 100},
		// queen behind the rook is an x-ray attacker
		{"3rk3/8/8/3p4/8/8/3R4/3QK3 w - - 0 1", "d2d5", 100},
		{"4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 1", "e5d6", 100},
	}
	for _, test := range tests {
		var p = mustFEN(t, test.fen)
		var move = p.ParseMoveLAN(test.move)
		require.NotEqual(t, MoveEmpty, move, test.move)
		assert.Equal(t, test.want, staticExchange(&p, move), test.fen)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
