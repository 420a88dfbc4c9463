package gensfen

import (
	"github.com/pkg/errors"

	"github.com/ianfab/variant-nnue/internal/sfen"
	"github.com/ianfab/variant-nnue/pkg/engine"
)

type Config struct {
	Threads int
	HashMB  int
	Seed    int64
	// total number of samples to write
	Loop   int64
	Depth  int
	Depth2 int
	Nodes  int64

	EvalLimit int

	// 1-based ply window for random moves; RandomMoveMinPly == -1 plays
	// the first RandomMoveCount moves at random.
	RandomMoveMinPly    int
	RandomMoveMaxPly    int
	RandomMoveCount     int
	RandomMoveLikeApery int
	RandomMultiPV       int
	RandomMultiPVDiff   int
	RandomMultiPVDepth  int

	WriteMinPly int
	WriteMaxPly int

	OutputFileName string
	Format         sfen.Format
	RandomFileName bool
	SaveEvery      int64

	WriteDrawGames                   bool
	DetectDrawByConsecutiveLowScore  bool
	DetectDrawByInsufficientMaterial bool

	AdjDrawPly   int
	AdjDrawCount int
	AdjDrawScore int
	ResignPlies  int

	// entries in the per worker duplicate filter, a power of two
	DedupHashSize int
}

func DefaultConfig() Config {
	return Config{
		Threads:                          1,
		HashMB:                           16,
		Loop:                             8_000_000_000,
		Depth:                            3,
		EvalLimit:                        3000,
		RandomMoveMinPly:                 1,
		RandomMoveMaxPly:                 24,
		RandomMoveCount:                  5,
		RandomMultiPVDiff:                32000,
		WriteMinPly:                      16,
		WriteMaxPly:                      400,
		OutputFileName:                   "generated_kifu",
		Format:                           sfen.FormatBin,
		WriteDrawGames:                   true,
		DetectDrawByConsecutiveLowScore:  true,
		DetectDrawByInsufficientMaterial: true,
		AdjDrawPly:                       80,
		AdjDrawCount:                     8,
		AdjDrawScore:                     0,
		ResignPlies:                      4,
		DedupHashSize:                    1 << 22,
	}
}

// normalize fills dependent defaults and checks the ranges.
func (c *Config) normalize() error {
	if c.Depth2 < c.Depth {
		c.Depth2 = c.Depth
	}
	if c.RandomMultiPVDepth <= 0 {
		c.RandomMultiPVDepth = c.Depth2
	}
	if c.EvalLimit > engine.ValueMate-2 {
		c.EvalLimit = engine.ValueMate - 2
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = 1<<63 - 1
	}
	if c.Threads < 1 {
		return errors.Errorf("gensfen: bad threads %d", c.Threads)
	}
	if c.Depth < 1 {
		return errors.Errorf("gensfen: bad depth %d", c.Depth)
	}
	if c.DedupHashSize <= 0 || c.DedupHashSize&(c.DedupHashSize-1) != 0 {
		return errors.Errorf("gensfen: dedup hash size %d is not a power of two", c.DedupHashSize)
	}
	if c.WriteMaxPly <= 0 {
		return errors.Errorf("gensfen: bad write_maxply %d", c.WriteMaxPly)
	}
	return nil
}
