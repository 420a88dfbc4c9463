package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianfab/variant-nnue/internal/learn"
	"github.com/ianfab/variant-nnue/internal/sfen"
)

func TestParseSettings(t *testing.T) {
	var config, settings, err = parseSettings([]string{
		"-mode", "learn",
		"-threads", "2",
		"-lr", "0.5",
		"-lambda", "0.7",
		"-batchsize", "10000",
		"-newbob_decay", "0.25",
		"-eval_save_dir", "nets",
		"-use_draw_games_in_training=false",
		"-resume",
		"a.bin", "b.binpack",
	})
	require.NoError(t, err)
	assert.Equal(t, "learn", settings.Mode)
	assert.Equal(t, 2, config.Threads)
	assert.Equal(t, 0.5, config.LearningRate)
	assert.Equal(t, 0.7, config.Lambda)
	assert.Equal(t, int64(10000), config.BatchSize)
	assert.Equal(t, 0.25, config.NewbobDecay)
	assert.Equal(t, "nets", config.OutputDir)
	assert.False(t, config.UseDrawGamesInTraining)
	assert.True(t, config.Resume)
	assert.Equal(t, []string{"a.bin", "b.binpack"}, config.Files)

	var defaults = learn.DefaultConfig()
	assert.Equal(t, defaults.Architecture, config.Architecture)
	assert.Equal(t, defaults.NewbobNumTrials, config.NewbobNumTrials)
	assert.Equal(t, sfen.FormatBin, settings.SfenFormat)
}

func TestParseSettingsModes(t *testing.T) {
	var _, settings, err = parseSettings([]string{
		"-mode", "convert_bin",
		"-sfen_format", "pack",
		"-output_file_name", "out",
		"-ply_minimum", "10",
		"-ply_maximum", "200",
		"in.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "convert_bin", settings.Mode)
	assert.Equal(t, sfen.FormatPack, settings.SfenFormat)
	assert.Equal(t, "out", settings.OutputFileName)
	assert.Equal(t, 10, settings.PlyMinimum)
	assert.Equal(t, 200, settings.PlyMaximum)

	_, settings, err = parseSettings([]string{"-mode", "shuffleq", "-buffer_size", "77"})
	require.NoError(t, err)
	assert.Equal(t, 77, settings.BufferSize)
}

func TestParseSettingsErrors(t *testing.T) {
	var tests = []struct {
		name string
		args []string
	}{
		{"mode", []string{"-mode", "gensfen"}},
		{"format", []string{"-sfen_format", "zip"}},
		{"flag", []string{"-no_such_flag"}},
		{"value", []string{"-lr", "fast"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var _, _, err = parseSettings(test.args)
			assert.Error(t, err)
		})
	}
}
