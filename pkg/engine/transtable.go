package engine

import (
	"math/bits"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

const (
	boundLower = 1 << iota
	boundUpper
	boundExact = boundLower | boundUpper
)

type transEntry struct {
	key        uint64
	move       Move
	score      int16
	depth      int8
	bound      uint8
	generation uint8
}

// transTable is a direct mapped hash table owned by one Searcher.
type transTable struct {
	entries    []transEntry
	mask       uint64
	generation uint8
}

const transEntrySize = 24

func newTransTable(megabytes int) *transTable {
	var count = uint64(Max(1, megabytes)) << 20 / transEntrySize
	// round down to a power of two
	count = 1 << (63 - bits.LeadingZeros64(count))
	return &transTable{
		entries: make([]transEntry, count),
		mask:    count - 1,
	}
}

// NewSearch ages the stored entries so the next search may overwrite them.
func (tt *transTable) NewSearch() {
	tt.generation++
}

func (tt *transTable) Clear() {
	clear(tt.entries)
	tt.generation = 0
}

func (tt *transTable) Read(key uint64) (entry transEntry, ok bool) {
	entry = tt.entries[key&tt.mask]
	return entry, entry.key == key && key != 0
}

func (tt *transTable) Update(key uint64, depth, score, bound int, move Move) {
	var entry = &tt.entries[key&tt.mask]
	if entry.key == key {
		if move == MoveEmpty {
			move = entry.move
		}
		if depth < int(entry.depth)-2 && bound != boundExact {
			return
		}
	} else if entry.generation == tt.generation && depth < int(entry.depth) {
		return
	}
	*entry = transEntry{
		key:        key,
		move:       move,
		score:      int16(score),
		depth:      int8(depth),
		bound:      uint8(bound),
		generation: tt.generation,
	}
}
