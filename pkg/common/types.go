package common

// Castling rights bits.
const (
	WhiteKingSide = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide
)

const allCastleRights = WhiteKingSide | WhiteQueenSide | BlackKingSide | BlackQueenSide

// Position is a bitboard chess position. Positions are values: MakeMove
// writes the successor into a caller owned Position.
type Position struct {
	Pawns, Knights, Bishops, Rooks, Queens, Kings uint64
	White, Black                                  uint64
	Checkers                                      uint64
	WhiteMove                                     bool
	CastleRights                                  int
	Rule50                                        int
	EpSquare                                      int
	GamePly                                       int
	Key                                           uint64
	LastMove                                      Move
}

const InitialPositionFen = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Piece types.
const (
	Empty int = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// Perspectives used by feature extraction.
const (
	SideWhite = 0
	SideBlack = 1
)

const MaxMoves = 256

// Move packs from (6 bits), to (6), moving piece (3), captured piece (3)
// and promotion (3).
type Move int32

const MoveEmpty Move = 0

type OrderedMove struct {
	Move Move
	Key  int32
}
