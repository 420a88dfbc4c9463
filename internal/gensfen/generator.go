package gensfen

import (
	"context"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ianfab/variant-nnue/internal/sfen"
	. "github.com/ianfab/variant-nnue/pkg/common"
	"github.com/ianfab/variant-nnue/pkg/engine"
)

// Generator plays self-play games and writes scored positions.
type Generator struct {
	config       Config
	newEvaluator func() engine.Evaluator
	writer       *SfenWriter
	count        int64
}

// Run generates config.Loop samples. newEvaluator is called once per worker.
func Run(ctx context.Context, config Config, newEvaluator func() engine.Evaluator) error {
	if err := config.normalize(); err != nil {
		return err
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	var name = config.OutputFileName
	if config.RandomFileName {
		name += "_" + strconv.FormatUint(rand.New(rand.NewSource(config.Seed)).Uint64(), 16)
	}
	log.Printf("%+v", config)

	var writer, err = NewSfenWriter(name, config.Format, config.Threads, config.SaveEvery)
	if err != nil {
		return err
	}
	var gen = &Generator{
		config:       config,
		newEvaluator: newEvaluator,
		writer:       writer,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(writer.Run)

	var wg = &sync.WaitGroup{}
	for i := 0; i < config.Threads; i++ {
		var id = i
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			defer writer.Finalize(id)
			return gen.newWorker(id).run(ctx)
		})
	}
	g.Go(func() error {
		wg.Wait()
		writer.Close()
		return nil
	})

	err = g.Wait()
	log.Println("gensfen finished", "written", writer.Written())
	return err
}

type worker struct {
	id       int
	gen      *Generator
	config   *Config
	searcher *engine.Searcher
	rnd      *rand.Rand
	hash     []uint64
}

func (gen *Generator) newWorker(id int) *worker {
	return &worker{
		id:       id,
		gen:      gen,
		config:   &gen.config,
		searcher: engine.NewSearcher(gen.newEvaluator(), gen.config.HashMB),
		rnd:      rand.New(rand.NewSource(gen.config.Seed + int64(id)*7919)),
		hash:     make([]uint64, gen.config.DedupHashSize),
	}
}

func (w *worker) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var records, result, ok = w.playGame(ctx)
		if !ok {
			continue
		}
		if w.commit(records, result) {
			return nil
		}
	}
}

// commit writes a finished game. It reports whether the sample limit is reached.
func (w *worker) commit(records []sfen.PackedSfenValue, result int) bool {
	if result == sfen.ResultDraw && !w.config.WriteDrawGames {
		return false
	}
	var total = atomic.AddInt64(&w.gen.count, int64(len(records)))
	var quit = false
	if over := total - w.config.Loop; over >= 0 {
		quit = true
		if over > int64(len(records)) {
			over = int64(len(records))
		}
		// keep the end of the game
		records = records[over:]
	}
	for i := range records {
		w.gen.writer.Write(w.id, records[i])
	}
	return quit
}

// backfill sets game results from the result at terminalPly,
// seen from the side to move there.
func backfill(records []sfen.PackedSfenValue, result, terminalPly int) {
	for i := len(records) - 1; i >= 0; i-- {
		var r = result
		if (terminalPly-int(records[i].GamePly))%2 != 0 {
			r = -r
		}
		records[i].GameResult = int8(r)
	}
}

// playGame returns the recorded positions and the result. ok is false when
// the game was abandoned.
func (w *worker) playGame(ctx context.Context) (records []sfen.PackedSfenValue, result int, ok bool) {
	var config = w.config
	var p, err = NewPositionFromFEN(InitialPositionFen)
	if err != nil {
		panic(err)
	}
	var history []uint64
	var scores []int
	var flags = w.randomMoveFlags()
	var randomMoves = 0
	var resignCounter = 0
	var shouldResign = w.rnd.Intn(10) > 1

	for ply := 0; ; ply++ {
		if ctx.Err() != nil {
			return nil, 0, false
		}
		if result, done := config.adjudicate(&p, history, scores, ply); done {
			backfill(records, result, ply)
			return records, result, true
		}

		var depth = config.Depth + w.rnd.Intn(config.Depth2-config.Depth+1)
		var searchResult = w.searcher.Search(engine.SearchParams{
			Position: p,
			History:  history,
			Depth:    depth,
			Nodes:    config.Nodes,
		})
		var score = searchResult.Score

		if abs(score) >= config.EvalLimit {
			resignCounter++
			if (shouldResign && resignCounter >= config.ResignPlies) || abs(score) >= engine.ValueKnownWin {
				var result = sfen.ResultLoss
				if score >= config.EvalLimit {
					result = sfen.ResultWin
				}
				backfill(records, result, ply)
				return records, result, true
			}
		} else {
			resignCounter = 0
		}
		if len(searchResult.PV) == 0 {
			return nil, 0, false
		}
		scores = append(scores, score)

		if ply < config.WriteMinPly-1 {
			records = records[:0]
		} else if w.firstSeen(p.Key) {
			records = append(records, sfen.PackedSfenValue{
				Sfen:    sfen.Pack(&p),
				Score:   int16(score),
				Move:    sfen.EncodeMove(searchResult.PV[0]),
				GamePly: uint16(ply),
			})
		}

		var move = searchResult.PV[0]
		if randomMove, ok := w.chooseRandomMove(&p, &flags, ply, &randomMoves); ok {
			move = randomMove
		}
		history = append(history, p.Key)
		var child Position
		if !p.MakeMove(move, &child) {
			return nil, 0, false
		}
		p = child
	}
}

// firstSeen records key in the duplicate filter and reports whether it was new.
func (w *worker) firstSeen(key uint64) bool {
	var index = key & uint64(len(w.hash)-1)
	if w.hash[index] == key {
		return false
	}
	w.hash[index] = key
	return true
}

// adjudicate decides the game result before the move at ply, from the point
// of view of the side to move.
func (c *Config) adjudicate(p *Position, history []uint64, scores []int, ply int) (int, bool) {
	if ply >= c.WriteMaxPly || p.Rule50 >= 100 || isRepetition(p, history) {
		return sfen.ResultDraw, true
	}
	if !p.HasLegalMove() {
		if p.IsCheck() {
			return sfen.ResultLoss, true
		}
		return sfen.ResultDraw, true
	}
	if c.DetectDrawByConsecutiveLowScore && ply >= c.AdjDrawPly {
		var n = 0
		for i := len(scores) - 1; i >= 0 && abs(scores[i]) <= c.AdjDrawScore; i-- {
			n++
			if n >= c.AdjDrawCount {
				return sfen.ResultDraw, true
			}
		}
	}
	if c.DetectDrawByInsufficientMaterial &&
		p.HasInsufficientMaterial(true) && p.HasInsufficientMaterial(false) {
		return sfen.ResultDraw, true
	}
	return 0, false
}

// isRepetition reports whether the position occurred before since the last
// irreversible move.
func isRepetition(p *Position, history []uint64) bool {
	for i := len(history) - 2; i >= 0 && i >= len(history)-p.Rule50; i -= 2 {
		if history[i] == p.Key {
			return true
		}
	}
	return false
}

// randomMoveFlags marks RandomMoveCount plies of the random move window.
func (w *worker) randomMoveFlags() []bool {
	var config = w.config
	var plies []int
	for i := Max(config.RandomMoveMinPly-1, 0); i < config.RandomMoveMaxPly; i++ {
		plies = append(plies, i)
	}
	var flags = make([]bool, Max(config.RandomMoveMaxPly, 0)+config.RandomMoveCount)
	for i := 0; i < Min(config.RandomMoveCount, len(plies)); i++ {
		var j = i + w.rnd.Intn(len(plies)-i)
		plies[i], plies[j] = plies[j], plies[i]
		flags[plies[i]] = true
	}
	return flags
}

func (w *worker) chooseRandomMove(p *Position, flags *[]bool, ply int, count *int) (Move, bool) {
	var config = w.config
	var enabled bool
	if config.RandomMoveMinPly == -1 {
		enabled = *count < config.RandomMoveCount
	} else {
		enabled = ply < len(*flags) && (*flags)[ply]
	}
	if !enabled {
		return MoveEmpty, false
	}
	*count++

	if config.RandomMultiPV > 0 {
		var result = w.searcher.Search(engine.SearchParams{
			Position: *p,
			Depth:    config.RandomMultiPVDepth,
			MultiPV:  config.RandomMultiPV,
		})
		var rootMoves = result.RootMoves
		if len(rootMoves) == 0 {
			return MoveEmpty, false
		}
		var n = Min(len(rootMoves), config.RandomMultiPV)
		for i := 1; i < n; i++ {
			if rootMoves[0].Score > rootMoves[i].Score+config.RandomMultiPVDiff {
				n = i
				break
			}
		}
		return rootMoves[w.rnd.Intn(n)].PV[0], true
	}

	var ml = p.GenerateLegalMoves()
	if len(ml) == 0 {
		return MoveEmpty, false
	}
	if config.RandomMoveLikeApery != 0 && w.rnd.Intn(config.RandomMoveLikeApery) == 0 {
		var kingMoves []Move
		for _, m := range ml {
			if m.MovingPiece() == King {
				kingMoves = append(kingMoves, m)
			}
		}
		if len(kingMoves) != 0 {
			if w.rnd.Intn(2) == 0 && ply+1 <= len(*flags) {
				// the opponent answers with a random move too
				*flags = append((*flags)[:ply+1], append([]bool{true}, (*flags)[ply+1:]...)...)
			}
			return kingMoves[w.rnd.Intn(len(kingMoves))], true
		}
	}
	return ml[w.rnd.Intn(len(ml))], true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
