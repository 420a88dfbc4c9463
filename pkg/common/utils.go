package common

func Min(l, r int) int {
	if l < r {
		return l
	}
	return r
}

func Max(l, r int) int {
	if l > r {
		return l
	}
	return r
}

// MakePiece packs piece type and colour into 1..6 (white) or 8..13 (black).
func MakePiece(pieceType int, white bool) int {
	if white {
		return pieceType
	}
	return pieceType + 7
}

func SplitPiece(piece int) (pieceType int, white bool) {
	if piece < 7 {
		return piece, true
	}
	return piece - 7, false
}
