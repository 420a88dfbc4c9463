package learn

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ianfab/variant-nnue/internal/nnue"
)

type Config struct {
	Threads int
	Seed    int64

	Files     []string
	BaseDir   string
	TargetDir string
	// number of passes over Files
	Loop int

	Architecture   string
	InitialNetwork string
	OutputDir      string
	// comma separated name=value trainer messages, e.g. "momentum=0.9"
	NNOptions string

	BatchSize    int64
	NNBatchSize  int
	LearningRate float64

	Lambda      float64
	Lambda2     float64
	LambdaLimit float64

	ReductionGamePly int
	EvalLimit        int
	SaveOnlyOnce     bool
	NoShuffle        bool

	NewbobDecay        float64
	NewbobNumTrials    int
	AutoLRDrop         int64
	EvalSaveInterval   int64
	LossOutputInterval int64

	ValidationSetFileName string
	SfenForMSESize        int

	UseDrawGamesInTraining            bool
	UseDrawGamesInValidation          bool
	SkipDuplicatedPositionsInTraining bool

	WinningProbabilityCoefficient float64
	UseWDL                        bool
	SrcScoreMinValue              float64
	SrcScoreMaxValue              float64
	DestScoreMinValue             float64
	DestScoreMaxValue             float64

	// records read from files at once and shuffled together
	ReadSize         int
	ThreadBufferSize int
	DedupHashSize    int
	HashMB           int

	// restore the best checkpoint recorded in the ledger
	Resume bool
}

func DefaultConfig() Config {
	return Config{
		Threads:                           1,
		Loop:                              1,
		Architecture:                      nnue.DefaultArchitecture,
		OutputDir:                         "evalsave",
		BatchSize:                         1_000_000,
		NNBatchSize:                       1000,
		LearningRate:                      1.0,
		Lambda:                            1.0,
		Lambda2:                           1.0,
		LambdaLimit:                       32000,
		ReductionGamePly:                  1,
		EvalLimit:                         32000,
		NewbobDecay:                       0.5,
		NewbobNumTrials:                   4,
		EvalSaveInterval:                  1_000_000_000,
		LossOutputInterval:                1_000_000,
		SfenForMSESize:                    2000,
		UseDrawGamesInTraining:            true,
		UseDrawGamesInValidation:          true,
		SkipDuplicatedPositionsInTraining: true,
		WinningProbabilityCoefficient:     math.Ln10 / 400,
		SrcScoreMinValue:                  0,
		SrcScoreMaxValue:                  1,
		DestScoreMinValue:                 0,
		DestScoreMaxValue:                 1,
		ReadSize:                          10_000_000,
		ThreadBufferSize:                  10_000,
		DedupHashSize:                     1 << 24,
		HashMB:                            1,
	}
}

func (c *Config) normalize() error {
	if c.ReductionGamePly < 1 {
		c.ReductionGamePly = 1
	}
	if c.LossOutputInterval <= 0 {
		c.LossOutputInterval = c.BatchSize
	}
	if c.Loop < 1 {
		c.Loop = 1
	}
	if c.Threads < 1 {
		return errors.Errorf("learn: bad threads %d", c.Threads)
	}
	if c.BatchSize <= 0 || c.NNBatchSize <= 0 {
		return errors.New("learn: batch sizes must be positive")
	}
	if c.ThreadBufferSize <= 0 || c.ReadSize < c.ThreadBufferSize {
		return errors.Errorf("learn: read size %d smaller than thread buffer %d",
			c.ReadSize, c.ThreadBufferSize)
	}
	if c.DedupHashSize <= 0 || c.DedupHashSize&(c.DedupHashSize-1) != 0 {
		return errors.Errorf("learn: dedup hash size %d is not a power of two", c.DedupHashSize)
	}
	if c.SrcScoreMaxValue == c.SrcScoreMinValue {
		return errors.New("learn: empty source score range")
	}
	return nil
}

// inputFiles lists the training files in reading order, Loop times over.
func (c *Config) inputFiles() ([]string, error) {
	var names = append([]string(nil), c.Files...)
	if c.TargetDir != "" {
		var entries, err = os.ReadDir(filepath.Join(c.BaseDir, c.TargetDir))
		if err != nil {
			return nil, errors.Wrap(err, "learn: targetdir")
		}
		for _, e := range entries {
			if e.Type().IsRegular() || e.IsDir() && filepath.Ext(e.Name()) == ".pack" {
				names = append(names, filepath.Join(c.TargetDir, e.Name()))
			}
		}
	}
	if len(names) == 0 {
		return nil, errors.New("learn: no training files")
	}
	var result []string
	for i := 0; i < c.Loop; i++ {
		for _, name := range names {
			result = append(result, filepath.Join(c.BaseDir, name))
		}
	}
	return result, nil
}
