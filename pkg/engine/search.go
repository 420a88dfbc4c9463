package engine

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

func (s *Searcher) alphaBeta(alpha, beta, depth, height int) int {
	var fr = &s.stack[height]
	fr.pv.clear()
	if depth <= 0 {
		return s.quiescence(alpha, beta, height)
	}
	var p = &fr.position
	if isDraw(p) || s.isRepeat(height) {
		return valueDraw
	}
	if height >= maxHeight {
		return s.evaluate(p)
	}

	// mate distance pruning
	alpha = Max(alpha, lossIn(height))
	beta = Min(beta, winIn(height+1))
	if alpha >= beta {
		return alpha
	}

	var pvNode = beta-alpha > 1
	var hashMove Move
	var entry, hit = s.transTable.Read(p.Key)
	if hit {
		hashMove = entry.move
	}
	if hit && !pvNode && int(entry.depth) >= depth {
		var score = valueFromTT(int(entry.score), height)
		if score >= beta && entry.bound&boundLower != 0 {
			if entry.move != MoveEmpty && !entry.move.IsCaptureOrPromotion() {
				s.updateKiller(entry.move, height)
			}
			return score
		}
		if score <= alpha && entry.bound&boundUpper != 0 {
			return score
		}
	}

	if height+2 < stackSize {
		s.stack[height+2].killers = [2]Move{}
	}

	var isCheck = p.IsCheck()
	var picker = s.newMovePicker(height, hashMove)
	var quiets = fr.quiets[:0]
	var best, bestMove = -valueInfinity, MoveEmpty
	var oldAlpha = alpha
	var legal = 0

	for m := picker.Next(); m != MoveEmpty; m = picker.Next() {
		if !s.makeMove(height, m) {
			continue
		}
		legal++
		var quiet = !m.IsCaptureOrPromotion()
		if quiet {
			quiets = append(quiets, m)
		}

		var newDepth = depth - 1
		var givesCheck = s.stack[height+1].position.IsCheck()
		if givesCheck && depth >= 2 {
			newDepth++
		}

		var score int
		if legal == 1 {
			score = -s.alphaBeta(-beta, -alpha, newDepth, height+1)
		} else {
			var reduction = 0
			if quiet && depth >= 3 && legal > 4 && !isCheck && !givesCheck &&
				m != fr.killers[0] && m != fr.killers[1] {
				reduction = 1
			}
			score = -s.alphaBeta(-alpha-1, -alpha, newDepth-reduction, height+1)
			if score > alpha && (reduction > 0 || score < beta) {
				score = -s.alphaBeta(-beta, -alpha, newDepth, height+1)
			}
		}
		s.unmakeMove()

		if score > best {
			best, bestMove = score, m
		}
		if score > alpha {
			alpha = score
			fr.pv.assign(m, &s.stack[height+1].pv)
			if alpha >= beta {
				break
			}
		}
	}

	if legal == 0 {
		if isCheck {
			return lossIn(height)
		}
		return valueDraw
	}

	var bound = boundUpper
	if best >= beta {
		bound = boundLower
		if !bestMove.IsCaptureOrPromotion() {
			s.history.Update(p.WhiteMove, quiets, bestMove, depth)
			s.updateKiller(bestMove, height)
		}
	} else if best > oldAlpha {
		bound = boundExact
	}
	s.transTable.Update(p.Key, depth, valueToTT(best, height), bound, bestMove)
	return best
}

// quiescence resolves captures until the position is quiet. In check every
// evasion is tried and a position without one is mate.
func (s *Searcher) quiescence(alpha, beta, height int) int {
	var fr = &s.stack[height]
	fr.pv.clear()
	var p = &fr.position
	if isDraw(p) || s.isRepeat(height) {
		return valueDraw
	}
	if height >= maxHeight {
		return s.evaluate(p)
	}

	var isCheck = p.IsCheck()
	var best = -valueInfinity
	if !isCheck {
		best = s.evaluate(p)
		if best >= beta {
			return best
		}
		alpha = Max(alpha, best)
	}

	var picker = s.newQuiescencePicker(height)
	var legal = false
	for m := picker.Next(); m != MoveEmpty; m = picker.Next() {
		if !isCheck && staticExchange(p, m) < 0 {
			continue
		}
		if !s.makeMove(height, m) {
			continue
		}
		legal = true
		var score = -s.quiescence(-beta, -alpha, height+1)
		s.unmakeMove()
		if score > best {
			best = score
			if score > alpha {
				alpha = score
				fr.pv.assign(m, &s.stack[height+1].pv)
				if alpha >= beta {
					break
				}
			}
		}
	}
	if isCheck && !legal {
		return lossIn(height)
	}
	return best
}

func (s *Searcher) evaluate(p *Position) int {
	if s.incremental != nil {
		return clampEval(s.incremental.EvaluateQuick(p))
	}
	return clampEval(s.evaluator.Evaluate(p))
}

// makeMove plays m from the frame at height into the next frame.
func (s *Searcher) makeMove(height int, m Move) bool {
	var parent = &s.stack[height].position
	var child = &s.stack[height+1].position
	if !parent.MakeMove(m, child) {
		return false
	}
	if s.incremental != nil {
		s.incremental.MakeMove(parent, child, m)
	}
	s.nodes++
	if s.nodeLimit > 0 && s.nodes >= s.nodeLimit {
		panic(errSearchAborted)
	}
	return true
}

func (s *Searcher) unmakeMove() {
	if s.incremental != nil {
		s.incremental.UnmakeMove()
	}
}

// isRepeat looks for the position at height among the reversible plies of
// the search stack and the game history.
func (s *Searcher) isRepeat(height int) bool {
	var p = &s.stack[height].position
	if p.Rule50 == 0 || p.LastMove == MoveEmpty {
		return false
	}
	for i := height - 1; i >= 0 && height-i <= p.Rule50; i-- {
		if s.stack[i].position.Key == p.Key {
			return true
		}
	}
	if height < p.Rule50 {
		var _, found = s.gameKeys[p.Key]
		return found
	}
	return false
}

func (s *Searcher) updateKiller(m Move, height int) {
	var killers = &s.stack[height].killers
	if killers[0] != m {
		killers[1] = killers[0]
		killers[0] = m
	}
}
