package nnue

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianfab/variant-nnue/internal/nnue/features"
	"github.com/ianfab/variant-nnue/internal/nnue/layers"
	"github.com/ianfab/variant-nnue/pkg/common"
	"github.com/ianfab/variant-nnue/pkg/engine"
)

func smallNetwork(body Body) *Network {
	var fs = features.NewFeatureSet(features.NewHalfKP(features.Friend), features.NewCastlingRight())
	return Build("test", fs, 8, body)
}

func randomize(n *Network, seed int64) {
	var tr = n.NewTrainer()
	tr.Initialize(rand.New(rand.NewSource(seed)))
	var output = n.Output.(*layers.AffineTransform)
	for i := range output.Weights {
		output.Weights[i] = float32(i%7)*0.1 - 0.3
	}
	output.Biases[0] = 0.02
}

func TestArchitectures(t *testing.T) {
	assert.Equal(t, []string{
		"halfkp-cr_384x2-32-32",
		"halfkp_384x2-32-32",
		"halfkp_384x2-32-32-sum",
		"k-p_256x2-32-32",
	}, Architectures())

	var _, err = NewNetwork("no-such-net")
	assert.ErrorIs(t, err, ErrUnknownArchitecture)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	var src = smallNetwork(stackBody)
	randomize(src, 1)
	var path = filepath.Join(t.TempDir(), "nn.bin")
	require.NoError(t, src.Save(path))

	var dst = smallNetwork(stackBody)
	require.NoError(t, dst.Load(path))
	assert.Equal(t, src.parameters(), dst.parameters())
	assert.Equal(t, src.Hash(), dst.Hash())
}

func TestLoadRejectsOtherStructure(t *testing.T) {
	var src = smallNetwork(stackBody)
	randomize(src, 1)
	var buf bytes.Buffer
	require.NoError(t, src.Write(&buf))

	var dst = smallNetwork(sumBody)
	randomize(dst, 2)
	var before = dst.Clone()
	require.NotEqual(t, src.Hash(), dst.Hash())

	var err = dst.Read(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, layers.ErrHashMismatch)
	assert.Equal(t, before.parameters(), dst.parameters())

	net, err := ReadNetwork(bytes.NewReader(buf.Bytes()), "halfkp_384x2-32-32-sum")
	assert.Error(t, err)
	assert.Nil(t, net)
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	var src = smallNetwork(stackBody)
	randomize(src, 1)
	var buf bytes.Buffer
	require.NoError(t, src.Write(&buf))

	var dst = smallNetwork(stackBody)
	var before = dst.Clone()
	var err = dst.Read(bytes.NewReader(buf.Bytes()[:buf.Len()-10]))
	assert.Error(t, err)
	assert.Equal(t, before.parameters(), dst.parameters())

	err = dst.Read(bytes.NewReader(append(buf.Bytes(), 0)))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestIncrementalEvaluatorMatchesRefresh(t *testing.T) {
	for _, body := range []Body{stackBody, sumBody} {
		var net = smallNetwork(body)
		randomize(net, 3)
		var incremental = NewEvaluator(net)
		var fresh = NewEvaluator(net)

		var r = rand.New(rand.NewSource(5))
		var p, err = common.NewPositionFromFEN("r3k2r/pppq1ppp/2np1n2/2b1p3/2B1P3/2NP1N2/PPPQ1PPP/R3K2R w KQkq - 0 1")
		require.NoError(t, err)
		incremental.Init(&p)
		for ply := 0; ply < 60; ply++ {
			var moves = p.GenerateLegalMoves()
			if len(moves) == 0 {
				break
			}
			var move = moves[r.Intn(len(moves))]
			var child common.Position
			require.True(t, p.MakeMove(move, &child))
			incremental.MakeMove(&p, &child, move)
			p = child

			fresh.Init(&p)
			for perspective := 0; perspective < 2; perspective++ {
				assert.InDeltaSlice(t, fresh.stack[0][perspective], incremental.stack[incremental.height][perspective], 1e-3)
			}
			assert.InDelta(t, fresh.EvaluateQuick(&p), incremental.EvaluateQuick(&p), 1)
		}
		for incremental.height > 0 {
			incremental.UnmakeMove()
		}
	}
}

func TestSearchWithNetwork(t *testing.T) {
	var net = smallNetwork(sumBody)
	randomize(net, 6)
	var s = engine.NewSearcher(NewEvaluator(net), 1)
	var p, err = common.NewPositionFromFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	require.NoError(t, err)
	var result = s.Search(engine.SearchParams{Position: p, Depth: 3})
	require.NotEmpty(t, result.PV)
	assert.Equal(t, "a1a8", result.PV[0].String())
	assert.True(t, engine.IsMateScore(result.Score))
}
