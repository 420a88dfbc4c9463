package common

import "strings"

const (
	FileA = iota
	FileB
	FileC
	FileD
	FileE
	FileF
	FileG
	FileH
)

const (
	Rank1 = iota
	Rank2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
)

// Squares are numbered a1=0, b1=1, ..., h8=63.
const SquareNone = -1

// Named squares are limited to the ones castling needs.
const (
	SquareA1 = FileA + 8*Rank1
	SquareB1 = FileB + 8*Rank1
	SquareC1 = FileC + 8*Rank1
	SquareD1 = FileD + 8*Rank1
	SquareE1 = FileE + 8*Rank1
	SquareF1 = FileF + 8*Rank1
	SquareG1 = FileG + 8*Rank1
	SquareH1 = FileH + 8*Rank1

	SquareA8 = FileA + 8*Rank8
	SquareB8 = FileB + 8*Rank8
	SquareC8 = FileC + 8*Rank8
	SquareD8 = FileD + 8*Rank8
	SquareE8 = FileE + 8*Rank8
	SquareF8 = FileF + 8*Rank8
	SquareG8 = FileG + 8*Rank8
	SquareH8 = FileH + 8*Rank8
)

func MakeSquare(file, rank int) int {
	return rank*8 + file
}

func File(sq int) int {
	return sq % 8
}

func Rank(sq int) int {
	return sq / 8
}

// FlipSquare mirrors sq vertically (a1 <-> a8).
func FlipSquare(sq int) int {
	return MakeSquare(File(sq), Rank8-Rank(sq))
}

func onBoard(file, rank int) bool {
	return file >= FileA && file <= FileH && rank >= Rank1 && rank <= Rank8
}

func SquareName(sq int) string {
	if sq < 0 || sq >= 64 {
		return "-"
	}
	return string([]byte{byte('a' + File(sq)), byte('1' + Rank(sq))})
}

// ParseSquare accepts algebraic names like "e4" and returns SquareNone otherwise.
func ParseSquare(s string) int {
	s = strings.ToLower(s)
	if len(s) != 2 {
		return SquareNone
	}
	var file, rank = int(s[0]) - 'a', int(s[1]) - '1'
	if !onBoard(file, rank) {
		return SquareNone
	}
	return MakeSquare(file, rank)
}
