package features

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

func testFeatureSets() []*FeatureSet {
	return []*FeatureSet{
		NewFeatureSet(NewHalfKP(Friend)),
		NewFeatureSet(NewHalfKP(Friend), NewCastlingRight()),
		NewFeatureSet(NewK(), NewHalfKP(Friend)),
		NewFeatureSet(NewHalfKP(Enemy), NewK(), NewCastlingRight()),
	}
}

func TestFeatureSetComposition(t *testing.T) {
	for _, fs := range testFeatureSets() {
		var dims, maxActive int
		for _, m := range fs.Members() {
			dims += m.Dimensions()
			maxActive += m.MaxActiveDimensions()
		}
		assert.Equal(t, dims, fs.Dimensions(), fs.Name())
		assert.Equal(t, maxActive, fs.MaxActiveDimensions(), fs.Name())
		assert.True(t, sort.SliceIsSorted(fs.RefreshTriggers(), func(i, j int) bool {
			return fs.RefreshTriggers()[i] < fs.RefreshTriggers()[j]
		}))
	}

	var single = NewFeatureSet(NewHalfKP(Friend))
	assert.Equal(t, "HalfKP(Friend)", single.Name())
	assert.Equal(t, uint32(0x5D69D5B8), single.Hash())
	assert.Equal(t, 64*641, single.Dimensions())

	var pair = NewFeatureSet(NewK(), NewHalfKP(Friend))
	var tail = uint32(0x5D69D5B8)
	assert.Equal(t, uint32(0xD3CEE169)^(tail<<1)^(tail>>31), pair.Hash())
	assert.Equal(t, "K+HalfKP(Friend)", pair.Name())
	assert.Equal(t, []TriggerEvent{TriggerNone, TriggerFriendKingMoved}, pair.RefreshTriggers())

	var cr = NewFeatureSet(NewHalfKP(Friend), NewCastlingRight(), NewK())
	assert.Equal(t, []TriggerEvent{TriggerNone, TriggerFriendKingMoved}, cr.RefreshTriggers())
}

func TestFeatureSetOffsets(t *testing.T) {
	var p, err = NewPositionFromFEN(InitialPositionFen)
	require.NoError(t, err)
	var fs = NewFeatureSet(NewHalfKP(Friend), NewCastlingRight())
	var active = fs.ActiveIndices(&p)
	for perspective := range active {
		// 30 non-king pieces plus 4 castling rights
		assert.Len(t, active[perspective], 34)
		var castling int
		for _, index := range active[perspective] {
			require.True(t, index >= 0 && index < fs.Dimensions())
			if index < 4 {
				castling++
			}
		}
		assert.Equal(t, 4, castling)
	}
}

func TestIncrementalMatchesFull(t *testing.T) {
	var fixed = []struct {
		fen  string
		move string
	}{
		{"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "e1g1"},
		{"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "e1c1"},
		{"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "a1a8"},
		{"r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1", "e8c8"},
		{"4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 1", "e5d6"},
		{"1n2k3/P7/8/8/8/8/8/4K3 w - - 0 1", "a7b8q"},
		{"4k3/8/8/8/8/8/p7/4K3 b - - 0 1", "a2a1n"},
	}
	for _, fs := range testFeatureSets() {
		for _, test := range fixed {
			var p, err = NewPositionFromFEN(test.fen)
			require.NoError(t, err, test.fen)
			var move = p.ParseMoveLAN(test.move)
			require.NotEqual(t, MoveEmpty, move, test.move)
			checkIncremental(t, fs, &p, move)
		}

		var r = rand.New(rand.NewSource(1))
		for game := 0; game < 4; game++ {
			var p, _ = NewPositionFromFEN(InitialPositionFen)
			for ply := 0; ply < 150; ply++ {
				var moves = p.GenerateLegalMoves()
				if len(moves) == 0 {
					break
				}
				var move = moves[r.Intn(len(moves))]
				var child = checkIncremental(t, fs, &p, move)
				p = child
			}
		}
	}
}

func checkIncremental(t *testing.T, fs *FeatureSet, parent *Position, move Move) Position {
	t.Helper()
	var child Position
	require.True(t, parent.MakeMove(move, &child))
	var dirty = NewDirtyPiece(parent, move)
	for _, trigger := range fs.RefreshTriggers() {
		var before, after [2][]int
		fs.AppendActiveIndices(parent, trigger, &before)
		fs.AppendActiveIndices(&child, trigger, &after)

		var removed, added [2][]int
		var reset [2]bool
		fs.AppendChangedIndices(&child, &dirty, trigger, &removed, &added, &reset)

		for perspective := 0; perspective < 2; perspective++ {
			var got []int
			if reset[perspective] {
				got = added[perspective]
			} else {
				got = applyDelta(before[perspective], removed[perspective], added[perspective])
			}
			assert.Equal(t, sorted(after[perspective]), sorted(got),
				"%v %v %v trigger %v perspective %v", fs.Name(), parent.String(), move, trigger, perspective)
		}
	}
	return child
}

func applyDelta(base, removed, added []int) []int {
	var counts = make(map[int]int)
	for _, i := range base {
		counts[i]++
	}
	for _, i := range removed {
		counts[i]--
	}
	for _, i := range added {
		counts[i]++
	}
	var result []int
	for index, n := range counts {
		for ; n > 0; n-- {
			result = append(result, index)
		}
	}
	return result
}

func sorted(indices []int) []int {
	var result = append([]int{}, indices...)
	sort.Ints(result)
	return result
}

func TestDirtyPieceCastling(t *testing.T) {
	var p, err = NewPositionFromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)
	var dp = NewDirtyPiece(&p, p.ParseMoveLAN("e1g1"))
	assert.Equal(t, 2, dp.Num)
	assert.Equal(t, MakePiece(King, true), dp.Piece[0])
	assert.Equal(t, MakePiece(Rook, true), dp.Piece[1])
	assert.Equal(t, SquareH1, dp.From[1])
	assert.Equal(t, SquareF1, dp.To[1])
	assert.Equal(t, p.CastleRights, dp.PreviousCastleRights)

	var null = NewDirtyPiece(&p, MoveEmpty)
	assert.Equal(t, 0, null.Num)
}
