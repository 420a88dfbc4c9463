package common

import "math/bits"

const (
	Rank1Mask uint64 = 0xFF
	Rank3Mask        = Rank1Mask << (8 * Rank3)
	Rank6Mask        = Rank1Mask << (8 * Rank6)
	Rank8Mask        = Rank1Mask << (8 * Rank8)
)

// Ray directions. Rays before south run towards higher square numbers,
// which decides how the nearest blocker is found.
const (
	north = iota
	east
	northEast
	northWest
	south
	west
	southWest
	southEast
	directionCount
)

var directionSteps = [directionCount][2]int{
	north:     {0, 1},
	east:      {1, 0},
	northEast: {1, 1},
	northWest: {-1, 1},
	south:     {0, -1},
	west:      {-1, 0},
	southWest: {-1, -1},
	southEast: {1, -1},
}

var (
	SquareMask    [64]uint64
	KnightAttacks [64]uint64
	KingAttacks   [64]uint64
	pawnAttacks   [2][64]uint64
	rays          [directionCount][64]uint64
	betweenMask   [64][64]uint64
)

func PopCount(b uint64) int {
	return bits.OnesCount64(b)
}

// FirstOne returns the lowest set square of b.
func FirstOne(b uint64) int {
	return bits.TrailingZeros64(b)
}

func lastOne(b uint64) int {
	return 63 - bits.LeadingZeros64(b)
}

func MoreThanOne(b uint64) bool {
	return b&(b-1) != 0
}

// Between returns the squares strictly between two aligned squares.
func Between(sq1, sq2 int) uint64 {
	return betweenMask[sq1][sq2]
}

// PawnAttacks returns the squares a pawn of the given side attacks from sq.
func PawnAttacks(sq int, white bool) uint64 {
	if white {
		return pawnAttacks[0][sq]
	}
	return pawnAttacks[1][sq]
}

func pushUp(b uint64, white bool) uint64 {
	if white {
		return b << 8
	}
	return b >> 8
}

func rayAttacks(dir, sq int, occ uint64) uint64 {
	var ray = rays[dir][sq]
	var blockers = ray & occ
	if blockers == 0 {
		return ray
	}
	var nearest int
	if dir < south {
		nearest = FirstOne(blockers)
	} else {
		nearest = lastOne(blockers)
	}
	return ray ^ rays[dir][nearest]
}

func BishopAttacks(sq int, occ uint64) uint64 {
	return rayAttacks(northEast, sq, occ) | rayAttacks(northWest, sq, occ) |
		rayAttacks(southWest, sq, occ) | rayAttacks(southEast, sq, occ)
}

func RookAttacks(sq int, occ uint64) uint64 {
	return rayAttacks(north, sq, occ) | rayAttacks(east, sq, occ) |
		rayAttacks(south, sq, occ) | rayAttacks(west, sq, occ)
}

func QueenAttacks(sq int, occ uint64) uint64 {
	return BishopAttacks(sq, occ) | RookAttacks(sq, occ)
}

// leaperMask collects the on-board targets of fixed (file, rank) offsets.
func leaperMask(sq int, offsets [][2]int) uint64 {
	var result uint64
	for _, d := range offsets {
		var f, r = File(sq) + d[0], Rank(sq) + d[1]
		if onBoard(f, r) {
			result |= 1 << uint(MakeSquare(f, r))
		}
	}
	return result
}

func init() {
	var knightOffsets = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	var kingOffsets = directionSteps[:]

	for sq := 0; sq < 64; sq++ {
		SquareMask[sq] = 1 << uint(sq)
		KnightAttacks[sq] = leaperMask(sq, knightOffsets)
		KingAttacks[sq] = leaperMask(sq, kingOffsets)
		pawnAttacks[0][sq] = leaperMask(sq, [][2]int{{-1, 1}, {1, 1}})
		pawnAttacks[1][sq] = leaperMask(sq, [][2]int{{-1, -1}, {1, -1}})

		for dir, step := range directionSteps {
			var path uint64
			var f, r = File(sq) + step[0], Rank(sq) + step[1]
			for ; onBoard(f, r); f, r = f+step[0], r+step[1] {
				var target = MakeSquare(f, r)
				betweenMask[sq][target] = path
				path |= 1 << uint(target)
			}
			rays[dir][sq] = path
		}
	}
}
