package gensfen

import (
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianfab/variant-nnue/internal/sfen"
	. "github.com/ianfab/variant-nnue/pkg/common"
	"github.com/ianfab/variant-nnue/pkg/engine"
	"github.com/ianfab/variant-nnue/pkg/eval/material"
)

func newMaterial() engine.Evaluator {
	return material.NewEvaluationService()
}

func testConfig(t *testing.T) Config {
	var config = DefaultConfig()
	config.HashMB = 1
	config.Depth = 2
	config.WriteMinPly = 1
	config.WriteMaxPly = 40
	config.RandomMoveMaxPly = 10
	config.DedupHashSize = 1 << 12
	config.Seed = 1
	config.OutputFileName = filepath.Join(t.TempDir(), "gen")
	require.NoError(t, config.normalize())
	return config
}

func newTestWorker(t *testing.T, config Config) *worker {
	var gen = &Generator{config: config, newEvaluator: newMaterial}
	return gen.newWorker(0)
}

func TestBackfillAlternatesSign(t *testing.T) {
	var records = make([]sfen.PackedSfenValue, 6)
	for i := range records {
		records[i].GamePly = uint16(10 + i)
	}
	// a gap left by the duplicate filter
	records[5].GamePly = 16

	backfill(records, sfen.ResultWin, 17)
	var want = []int8{-1, 1, -1, 1, -1, -1}
	for i := range records {
		assert.Equal(t, want[i], records[i].GameResult, i)
	}

	backfill(records, sfen.ResultDraw, 17)
	for i := range records {
		assert.Equal(t, int8(0), records[i].GameResult)
	}
}

func TestAdjudicateMaxPly(t *testing.T) {
	var config = DefaultConfig()
	config.WriteMaxPly = 10
	var p, err = NewPositionFromFEN(InitialPositionFen)
	require.NoError(t, err)
	var scores = []int{500, 500, 500, 500, 500, 500, 500, 500, 500, 500}

	var _, done = config.adjudicate(&p, nil, scores[:9], 9)
	assert.False(t, done)
	result, done := config.adjudicate(&p, nil, scores, 10)
	assert.True(t, done)
	assert.Equal(t, sfen.ResultDraw, result)
}

func TestAdjudicateConsecutiveLowScores(t *testing.T) {
	var config = DefaultConfig()
	var p, err = NewPositionFromFEN("r3k3/8/8/8/8/8/8/4K2R w - - 0 50")
	require.NoError(t, err)

	var scores = make([]int, 88)
	for i := 0; i < 80; i++ {
		scores[i] = 50
	}
	result, done := config.adjudicate(&p, nil, scores, 88)
	assert.True(t, done)
	assert.Equal(t, sfen.ResultDraw, result)

	_, done = config.adjudicate(&p, nil, scores[:87], 87)
	assert.False(t, done, "seven low scores")

	var early = make([]int, 70)
	_, done = config.adjudicate(&p, nil, early, 70)
	assert.False(t, done, "before adjudication ply")

	config.DetectDrawByConsecutiveLowScore = false
	_, done = config.adjudicate(&p, nil, scores, 88)
	assert.False(t, done)
}

func TestAdjudicateRules(t *testing.T) {
	var config = DefaultConfig()
	var tests = []struct {
		fen    string
		result int
		done   bool
	}{
		{"R5k1/5ppp/8/8/8/8/8/6K1 b - - 0 1", sfen.ResultLoss, true},
		{"7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", sfen.ResultDraw, true},
		{"4k3/8/8/8/8/8/8/3NK3 w - - 0 1", sfen.ResultDraw, true},
		{"4k3/8/8/8/8/8/8/3QK3 w - - 100 80", sfen.ResultDraw, true},
		{"4k3/8/8/8/8/8/8/3QK3 w - - 0 1", 0, false},
	}
	for _, test := range tests {
		var p, err = NewPositionFromFEN(test.fen)
		require.NoError(t, err)
		var result, done = config.adjudicate(&p, nil, nil, 1)
		assert.Equal(t, test.done, done, test.fen)
		assert.Equal(t, test.result, result, test.fen)
	}
}

func TestRepetition(t *testing.T) {
	var p, err = NewPositionFromFEN(InitialPositionFen)
	require.NoError(t, err)
	var history []uint64
	for _, lan := range []string{"g1f3", "g8f6", "f3g1", "f6g8"} {
		history = append(history, p.Key)
		var ok bool
		p, ok = p.MakeMoveLAN(lan)
		require.True(t, ok)
	}
	assert.True(t, isRepetition(&p, history))
	assert.False(t, isRepetition(&p, history[:1]))
}

func TestRandomMoveFlags(t *testing.T) {
	var config = DefaultConfig()
	config.RandomMoveMinPly = 3
	config.RandomMoveMaxPly = 10
	config.RandomMoveCount = 4
	var w = &worker{config: &config, rnd: rand.New(rand.NewSource(1))}
	for i := 0; i < 20; i++ {
		var flags = w.randomMoveFlags()
		var n = 0
		for ply, flag := range flags {
			if flag {
				n++
				assert.True(t, ply >= 2 && ply < 10, ply)
			}
		}
		assert.Equal(t, 4, n)
	}
}

func TestMultiPVRandomMove(t *testing.T) {
	var config = testConfig(t)
	config.RandomMultiPV = 4
	config.RandomMultiPVDiff = 50
	config.RandomMultiPVDepth = 2
	config.RandomMoveMinPly = -1
	config.RandomMoveCount = 1
	var w = newTestWorker(t, config)

	// only taking the queen is within 50 of the best move
	var p, err = NewPositionFromFEN("4k3/8/8/3q4/8/8/8/3RK3 w - - 0 1")
	require.NoError(t, err)
	var flags []bool
	var count = 0
	move, ok := w.chooseRandomMove(&p, &flags, 0, &count)
	require.True(t, ok)
	assert.Equal(t, "d1d5", move.String())

	_, ok = w.chooseRandomMove(&p, &flags, 1, &count)
	assert.False(t, ok)
}

// A game cut at write_maxply is committed as a draw.
func TestPlayGameMaxPly(t *testing.T) {
	var config = testConfig(t)
	config.WriteMaxPly = 10
	config.RandomMoveCount = 0
	var w = newTestWorker(t, config)
	var records, result, ok = w.playGame(context.Background())
	require.True(t, ok)
	assert.Equal(t, sfen.ResultDraw, result)
	assert.NotEmpty(t, records)
	for i, r := range records {
		assert.Equal(t, int8(0), r.GameResult)
		assert.Less(t, int(r.GamePly), 10)
		var p, err = r.Position()
		require.NoError(t, err, i)
		_, err = sfen.DecodeMove(&p, r.Move)
		assert.NoError(t, err, i)
	}
}

func TestCommitStopsAtLoop(t *testing.T) {
	var config = testConfig(t)
	config.Loop = 5
	var writer, err = NewSfenWriter(config.OutputFileName, config.Format, 1, config.SaveEvery)
	require.NoError(t, err)
	var gen = &Generator{config: config, newEvaluator: newMaterial, writer: writer}
	var w = gen.newWorker(0)

	var records = make([]sfen.PackedSfenValue, 3)
	for i := range records {
		records[i].GamePly = uint16(i)
	}
	assert.False(t, w.commit(records, sfen.ResultDraw))
	assert.True(t, w.commit(records, sfen.ResultDraw))
	writer.Finalize(0)
	writer.Close()
	require.NoError(t, writer.Run())
	assert.Equal(t, int64(5), writer.Written())
}

func TestRun(t *testing.T) {
	var config = testConfig(t)
	config.Threads = 2
	config.Loop = 300
	config.SaveEvery = 200
	require.NoError(t, Run(context.Background(), config, newMaterial))

	var total = 0
	for _, name := range []string{"gen.bin", "gen_1.bin"} {
		var r, err = sfen.OpenReader(filepath.Join(filepath.Dir(config.OutputFileName), name))
		require.NoError(t, err, name)
		var buf = make([]sfen.PackedSfenValue, 100)
		for {
			var n, err = r.Read(buf)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			for _, v := range buf[:n] {
				var p, err = v.Position()
				require.NoError(t, err)
				_, err = sfen.DecodeMove(&p, v.Move)
				require.NoError(t, err)
				assert.Contains(t, []int8{-1, 0, 1}, v.GameResult)
			}
			total += n
		}
		require.NoError(t, r.Close())
	}
	assert.Equal(t, 300, total)
}
