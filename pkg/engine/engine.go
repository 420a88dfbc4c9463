package engine

import (
	"errors"
	"sort"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

var errSearchAborted = errors.New("search aborted")

type Evaluator interface {
	Evaluate(p *Position) int
}

// IncrementalEvaluator follows the search tree instead of evaluating every
// node from scratch.
type IncrementalEvaluator interface {
	Evaluator
	Init(p *Position)
	MakeMove(parent, child *Position, m Move)
	UnmakeMove()
	EvaluateQuick(p *Position) int
}

type RootMove struct {
	Score int
	PV    []Move
}

type SearchParams struct {
	Position Position
	// keys of the game positions before Position, oldest first
	History []uint64
	Depth   int
	MultiPV int
	Nodes   int64
}

type SearchResult struct {
	Score     int
	PV        []Move
	RootMoves []RootMove
	// last completed iteration, 0 when the node budget ran out during the first
	Depth int
	Nodes int64
}

// Searcher is a single threaded alpha-beta search. One per worker.
type Searcher struct {
	evaluator   Evaluator
	incremental IncrementalEvaluator
	transTable  *transTable
	history     historyTable
	gameKeys    map[uint64]struct{}
	nodes       int64
	nodeLimit   int64
	stack       [stackSize]frame
}

type frame struct {
	position Position
	moveList [MaxMoves]OrderedMove
	quiets   [MaxMoves]Move
	pv       line
	killers  [2]Move
}

type line struct {
	moves [stackSize]Move
	size  int
}

func NewSearcher(evaluator Evaluator, hashMegabytes int) *Searcher {
	var s = &Searcher{
		evaluator:  evaluator,
		transTable: newTransTable(hashMegabytes),
		gameKeys:   make(map[uint64]struct{}),
	}
	s.incremental, _ = evaluator.(IncrementalEvaluator)
	return s
}

// Clear forgets the hash table and move ordering statistics.
func (s *Searcher) Clear() {
	s.transTable.Clear()
	s.history.Clear()
}

func (s *Searcher) Nodes() int64 {
	return s.nodes
}

// Search runs iterative deepening up to params.Depth.
// Scores are from the point of view of the side to move.
func (s *Searcher) Search(params SearchParams) SearchResult {
	s.prepare(&params.Position, params.History, params.Nodes)

	var rootMoves = s.rootMoves()
	if len(rootMoves) == 0 {
		if params.Position.IsCheck() {
			return SearchResult{Score: lossIn(0)}
		}
		return SearchResult{Score: valueDraw}
	}
	if params.Depth <= 0 {
		var score, pv = s.QSearch(&params.Position)
		return SearchResult{Score: score, PV: pv, RootMoves: rootMoves}
	}

	var multiPV = Max(1, params.MultiPV)
	var result SearchResult
	for depth := 1; depth <= Min(params.Depth, maxHeight-1); depth++ {
		if !s.searchRoot(rootMoves, depth, multiPV) {
			break
		}
		result = SearchResult{
			Score:     rootMoves[0].Score,
			PV:        cloneMoves(rootMoves[0].PV),
			RootMoves: cloneRootMoves(rootMoves),
			Depth:     depth,
		}
	}
	var nodes = s.nodes
	if result.Depth == 0 {
		result = s.quiescenceRoot(rootMoves)
	}
	result.Nodes = nodes
	return result
}

// QSearch returns the quiescence score and the capture line leading to its leaf.
func (s *Searcher) QSearch(p *Position) (int, []Move) {
	s.prepare(p, nil, 0)
	var score = s.quiescence(-valueInfinity, valueInfinity, 0)
	return score, s.stack[0].pv.slice()
}

func (s *Searcher) prepare(p *Position, history []uint64, nodeLimit int64) {
	s.transTable.NewSearch()
	s.nodes = 0
	s.nodeLimit = nodeLimit
	clear(s.gameKeys)
	for _, key := range history {
		s.gameKeys[key] = struct{}{}
	}
	for i := range s.stack {
		s.stack[i].killers = [2]Move{}
	}
	s.stack[0].position = *p
	if s.incremental != nil {
		s.incremental.Init(p)
	}
}

// searchRoot searches every root move to depth and sorts them best first.
// It reports false when the node budget ran out.
func (s *Searcher) searchRoot(rootMoves []RootMove, depth, multiPV int) (completed bool) {
	defer func() {
		if r := recover(); r != nil {
			if r != errSearchAborted {
				panic(r)
			}
			completed = false
		}
	}()

	var alpha = -valueInfinity
	for i := range rootMoves {
		var rm = &rootMoves[i]
		s.makeMove(0, rm.PV[0])
		var score int
		if i == 0 || multiPV > 1 {
			score = -s.alphaBeta(-valueInfinity, valueInfinity, depth-1, 1)
		} else {
			score = -s.alphaBeta(-alpha-1, -alpha, depth-1, 1)
			if score > alpha {
				score = -s.alphaBeta(-valueInfinity, -alpha, depth-1, 1)
			}
		}
		s.unmakeMove()

		if i == 0 || multiPV > 1 || score > alpha {
			rm.Score = score
			rm.PV = append(rm.PV[:1], s.stack[1].pv.slice()...)
			alpha = Max(alpha, score)
		} else {
			// only an upper bound is known
			rm.Score = -valueInfinity
		}
	}
	sortRootMoves(rootMoves)
	return true
}

// quiescenceRoot scores each root move by a quiescence search of its
// successor. It stands in for an iteration when even depth 1 did not fit
// into the node budget, so the result never carries the placeholder scores.
func (s *Searcher) quiescenceRoot(rootMoves []RootMove) SearchResult {
	s.nodeLimit = 0
	if s.incremental != nil {
		// an aborted iteration leaves the accumulator stack mid tree
		s.incremental.Init(&s.stack[0].position)
	}
	for i := range rootMoves {
		var rm = &rootMoves[i]
		s.makeMove(0, rm.PV[0])
		rm.Score = -s.quiescence(-valueInfinity, valueInfinity, 1)
		rm.PV = append(rm.PV[:1], s.stack[1].pv.slice()...)
		s.unmakeMove()
	}
	sortRootMoves(rootMoves)
	return SearchResult{
		Score:     rootMoves[0].Score,
		PV:        cloneMoves(rootMoves[0].PV),
		RootMoves: cloneRootMoves(rootMoves),
	}
}

func (s *Searcher) rootMoves() []RootMove {
	var hashMove Move
	if entry, hit := s.transTable.Read(s.stack[0].position.Key); hit {
		hashMove = entry.move
	}
	var picker = s.newMovePicker(0, hashMove)
	var p = &s.stack[0].position
	var child Position
	var result []RootMove
	for m := picker.Next(); m != MoveEmpty; m = picker.Next() {
		if p.MakeMove(m, &child) {
			result = append(result, RootMove{Score: -valueInfinity, PV: []Move{m}})
		}
	}
	return result
}

func sortRootMoves(rootMoves []RootMove) {
	sort.SliceStable(rootMoves, func(i, j int) bool {
		return rootMoves[i].Score > rootMoves[j].Score
	})
}

func (l *line) clear() {
	l.size = 0
}

func (l *line) assign(m Move, child *line) {
	l.moves[0] = m
	l.size = 1 + copy(l.moves[1:], child.moves[:child.size])
}

func (l *line) slice() []Move {
	return cloneMoves(l.moves[:l.size])
}

func cloneMoves(ml []Move) []Move {
	var result = make([]Move, len(ml))
	copy(result, ml)
	return result
}

func cloneRootMoves(rootMoves []RootMove) []RootMove {
	var result = make([]RootMove, len(rootMoves))
	for i, rm := range rootMoves {
		result[i] = RootMove{Score: rm.Score, PV: cloneMoves(rm.PV)}
	}
	return result
}
