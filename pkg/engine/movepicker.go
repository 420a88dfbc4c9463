package engine

import . "github.com/ianfab/variant-nnue/pkg/common"

// Ordering keys. Quiet moves use their history score, which stays below killerKey.
const (
	hashMoveKey    = 1 << 30
	goodCaptureKey = 1 << 29
	killerKey      = 1 << 28
	badCaptureKey  = -(1 << 28)
)

// movePicker hands out the generated moves best key first, selecting lazily
// because most nodes cut off after a few moves.
type movePicker struct {
	moves []OrderedMove
	next  int
}

func (mp *movePicker) Next() Move {
	if mp.next >= len(mp.moves) {
		return MoveEmpty
	}
	var best = mp.next
	for i := mp.next + 1; i < len(mp.moves); i++ {
		if mp.moves[i].Key > mp.moves[best].Key {
			best = i
		}
	}
	mp.moves[mp.next], mp.moves[best] = mp.moves[best], mp.moves[mp.next]
	mp.next++
	return mp.moves[mp.next-1].Move
}

func (s *Searcher) newMovePicker(height int, hashMove Move) movePicker {
	var frame = &s.stack[height]
	var p = &frame.position
	var moves = p.GenerateMoves(frame.moveList[:])
	for i := range moves {
		var m = moves[i].Move
		var key int
		switch {
		case m == hashMove:
			key = hashMoveKey
		case m.IsCaptureOrPromotion():
			key = mvvlva(m)
			if staticExchange(p, m) >= 0 {
				key += goodCaptureKey
			} else {
				key += badCaptureKey
			}
		case m == frame.killers[0]:
			key = killerKey + 1
		case m == frame.killers[1]:
			key = killerKey
		default:
			key = s.history.Read(p.WhiteMove, m)
		}
		moves[i].Key = int32(key)
	}
	return movePicker{moves: moves}
}

// newQuiescencePicker generates evasions when in check, captures otherwise.
func (s *Searcher) newQuiescencePicker(height int) movePicker {
	var frame = &s.stack[height]
	var p = &frame.position
	var moves []OrderedMove
	if p.IsCheck() {
		moves = p.GenerateMoves(frame.moveList[:])
	} else {
		moves = p.GenerateCaptures(frame.moveList[:])
	}
	for i := range moves {
		var m = moves[i].Move
		if m.IsCaptureOrPromotion() {
			moves[i].Key = int32(goodCaptureKey + mvvlva(m))
		} else {
			moves[i].Key = 0
		}
	}
	return movePicker{moves: moves}
}

// mvvlva prefers the most valuable victim, then the least valuable attacker.
func mvvlva(m Move) int {
	return 8*(m.CapturedPiece()+m.Promotion()) - m.MovingPiece()
}
