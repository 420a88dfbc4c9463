package common

import (
	"math/rand"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenRoundTrip(t *testing.T) {
	var fens = []string{
		InitialPositionFen,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 b - - 12 40",
	}
	for _, fen := range fens {
		var p, err = NewPositionFromFEN(fen)
		require.NoError(t, err)
		assert.Equal(t, fen, p.String())
	}
}

func TestFenSanitizesCastleRights(t *testing.T) {
	var p, err = NewPositionFromFEN("4k3/8/8/8/8/8/8/4K2R w KQkq - 0 1")
	require.NoError(t, err)
	assert.Equal(t, WhiteKingSide, p.CastleRights)
}

func TestFenRejectsBadPositions(t *testing.T) {
	var fens = []string{
		"8/8/8/8/8/8/8/8 w - - 0 1",
		"4k3/8/8/8/8/8/8/4K3/8 w - - 0 1",
		"4k3/4R3/8/8/8/8/8/4K3 w - - 0 1",
		"4k3/8/8 w - -",
	}
	for _, fen := range fens {
		var _, err = NewPositionFromFEN(fen)
		assert.Error(t, err, fen)
	}
}

func TestGamePlyFollowsMoves(t *testing.T) {
	var p, err = NewPositionFromFEN(InitialPositionFen)
	require.NoError(t, err)
	for _, lan := range []string{"e2e4", "e7e5", "g1f3"} {
		var ok bool
		p, ok = p.MakeMoveLAN(lan)
		require.True(t, ok, lan)
	}
	assert.Equal(t, 3, p.GamePly)
	assert.Equal(t, "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2", p.String())
}

// Legal move counts along random games agree with an independent move generator.
func TestLegalMovesAgainstOracle(t *testing.T) {
	var rnd = rand.New(rand.NewSource(1))
	for game := 0; game < 20; game++ {
		var p, err = NewPositionFromFEN(InitialPositionFen)
		require.NoError(t, err)
		for ply := 0; ply < 120; ply++ {
			var fenOption, err = chess.FEN(p.String())
			require.NoError(t, err)
			var oracle = chess.NewGame(fenOption)
			var ml = p.GenerateLegalMoves()
			require.Equal(t, len(oracle.ValidMoves()), len(ml), p.String())
			if len(ml) == 0 {
				break
			}
			var child Position
			require.True(t, p.MakeMove(ml[rnd.Intn(len(ml))], &child))
			p = child
			assert.Equal(t, p.Key, p.computeKey(), p.String())
		}
	}
}

func TestInsufficientMaterial(t *testing.T) {
	var tests = []struct {
		fen   string
		white bool
		black bool
	}{
		{"4k3/8/8/8/8/8/8/4K3 w - - 0 1", true, true},
		{"4k3/8/8/8/8/8/8/3BK3 w - - 0 1", true, true},
		{"4k3/8/8/8/8/8/8/2NBK3 w - - 0 1", false, true},
		{"4k3/4p3/8/8/8/8/8/4K3 w - - 0 1", true, false},
	}
	for _, test := range tests {
		var p, err = NewPositionFromFEN(test.fen)
		require.NoError(t, err)
		assert.Equal(t, test.white, p.HasInsufficientMaterial(true), test.fen)
		assert.Equal(t, test.black, p.HasInsufficientMaterial(false), test.fen)
	}
}
