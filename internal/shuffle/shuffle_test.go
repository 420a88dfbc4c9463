package shuffle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianfab/variant-nnue/internal/sfen"
)

func writeInputs(t *testing.T, dir string, sizes ...int) []string {
	var names []string
	var score = 0
	for i, size := range sizes {
		var records = make([]sfen.PackedSfenValue, size)
		for j := range records {
			records[j].Score = int16(score)
			score++
		}
		var name = filepath.Join(dir, "in"+string(rune('a'+i))+".bin")
		require.NoError(t, writeAll(name, sfen.FormatBin, records))
		names = append(names, name)
	}
	return names
}

func readScores(t *testing.T, path string) []int {
	var r, err = sfen.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var result []int
	var buf = make([]sfen.PackedSfenValue, 16)
	for {
		var n, err = r.Read(buf)
		for _, v := range buf[:n] {
			result = append(result, int(v.Score))
		}
		if err == io.EOF {
			return result
		}
		require.NoError(t, err)
	}
}

func assertPermutation(t *testing.T, total int, scores []int) {
	require.Len(t, scores, total)
	var sorted = append([]int(nil), scores...)
	sort.Ints(sorted)
	for i := range sorted {
		require.Equal(t, i, sorted[i])
	}
	var inOrder = true
	for i := range scores {
		if scores[i] != i {
			inOrder = false
			break
		}
	}
	assert.False(t, inOrder)
}

func testConfig(t *testing.T) Config {
	var dir = t.TempDir()
	var config = DefaultConfig()
	config.Files = writeInputs(t, dir, 50, 13, 0, 37)
	config.Output = filepath.Join(dir, "out.bin")
	config.Seed = 1
	return config
}

func TestShuffle(t *testing.T) {
	var config = testConfig(t)
	config.BufferSize = 7
	require.NoError(t, Shuffle(context.Background(), config))
	assertPermutation(t, 100, readScores(t, config.Output))

	var entries, err = os.ReadDir(filepath.Join(filepath.Dir(config.Output), "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShuffleQuick(t *testing.T) {
	var config = testConfig(t)
	require.NoError(t, ShuffleQuick(context.Background(), config))
	var scores = readScores(t, config.Output)
	assertPermutation(t, 100, scores)

	// records of one file keep their relative order
	var last = -1
	for _, score := range scores {
		if score < 50 {
			assert.Greater(t, score, last)
			last = score
		}
	}
}

func TestShuffleInMemoryToPack(t *testing.T) {
	var config = testConfig(t)
	config.Output = filepath.Join(filepath.Dir(config.Output), "out.pack")
	config.Format = sfen.FormatPack
	require.NoError(t, ShuffleInMemory(context.Background(), config))
	assertPermutation(t, 100, readScores(t, config.Output))
}

func TestShuffleMissingInput(t *testing.T) {
	var config = testConfig(t)
	config.Files = append(config.Files, filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, ShuffleQuick(context.Background(), config))
	assert.Error(t, ShuffleInMemory(context.Background(), config))

	config.Files = nil
	assert.Error(t, Shuffle(context.Background(), config))
}

func TestShuffleCanceled(t *testing.T) {
	var config = testConfig(t)
	config.BufferSize = 7
	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Shuffle(ctx, config), context.Canceled)
}
