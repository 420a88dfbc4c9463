package learn

import (
	"context"
	"io"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/ianfab/variant-nnue/internal/nnue"
	"github.com/ianfab/variant-nnue/internal/nnue/trainer"
	"github.com/ianfab/variant-nnue/internal/sfen"
	. "github.com/ianfab/variant-nnue/pkg/common"
	"github.com/ianfab/variant-nnue/pkg/engine"
)

var ErrConverged = errors.New("learn: converged")

const networkFileName = "nn.bin"

type example struct {
	input trainer.Example
	// +1 when the leaf side to move is the root side to move, else -1
	sign float64
	psv  sfen.PackedSfenValue
}

// Learner trains a network from packed samples with a pool of workers.
// Workers evaluate samples under the read lock; worker 0 applies the
// accumulated mini-batch under the write lock.
type Learner struct {
	config  Config
	net     *nnue.Network
	trainer trainer.Trainer
	reader  *SfenReader
	ledger  *Ledger
	rnd     *rand.Rand
	workers []*worker

	rw sync.RWMutex

	mu         sync.Mutex
	cond       *sync.Cond
	tasks      []func(w *worker)
	stopped    bool
	nextUpdate int64

	totalDone int64
	epoch     int64
	lastDone  int64

	examplesMu sync.Mutex
	examples   []example

	dedup          []uint64
	validation     []sfen.PackedSfenValue
	validationKeys map[uint64]struct{}

	learningRate    float64
	bestLoss        float64
	bestDir         string
	trials          int
	lastLRDrop      int64
	checkpoint      int
	saveCount       int64
	lossOutputCount int64
	latestLossSum   float64
	latestLossCount int64
	start           time.Time
}

// Run trains according to config and saves the final network.
func Run(ctx context.Context, config Config) error {
	var l, err = New(config)
	if err != nil {
		return err
	}
	if l.ledger != nil {
		defer l.ledger.Close()
	}
	return l.Run(ctx)
}

func New(config Config) (*Learner, error) {
	var net, err = nnue.NewNetwork(config.Architecture)
	if err != nil {
		return nil, err
	}
	return newLearner(config, net)
}

func newLearner(config Config, net *nnue.Network) (*Learner, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	var files, err = config.inputFiles()
	if err != nil {
		return nil, err
	}
	var l = &Learner{
		config:         config,
		net:            net,
		trainer:        net.NewTrainer(),
		rnd:            rand.New(rand.NewSource(config.Seed)),
		dedup:          make([]uint64, config.DedupHashSize),
		validationKeys: make(map[uint64]struct{}),
		learningRate:   config.LearningRate,
		bestLoss:       math.Inf(1),
		trials:         config.NewbobNumTrials,
	}
	l.cond = sync.NewCond(&l.mu)
	l.reader = NewSfenReader(files, config.Threads, &config, rand.New(rand.NewSource(config.Seed+1)))

	if config.InitialNetwork != "" {
		if err := net.Load(config.InitialNetwork); err != nil {
			return nil, err
		}
		l.trainer.SendMessage(trainer.NewMessage("reset", ""))
	} else {
		l.trainer.Initialize(rand.New(rand.NewSource(config.Seed + 2)))
	}
	if err := l.sendOptions(config.NNOptions); err != nil {
		return nil, err
	}

	l.ledger, err = OpenLedger(filepath.Join(config.OutputDir, "ledger"))
	if err != nil {
		return nil, err
	}
	if config.Resume {
		if err := l.resume(); err != nil {
			l.ledger.Close()
			return nil, err
		}
	}
	for i := 0; i < config.Threads; i++ {
		l.workers = append(l.workers, l.newWorker(i))
	}
	return l, nil
}

func (l *Learner) Network() *nnue.Network { return l.net }

func (l *Learner) LearningRate() float64 { return l.learningRate }

func (l *Learner) sendOptions(options string) error {
	for _, option := range strings.Split(options, ",") {
		if option = strings.TrimSpace(option); option == "" {
			continue
		}
		var name, value, _ = strings.Cut(option, "=")
		var m = trainer.NewMessage(name, value)
		l.trainer.SendMessage(m)
		if m.NumReceivers == 0 {
			return errors.Errorf("learn: no trainer accepts option %q", name)
		}
		log.Println("nn option", "name", name, "value", value, "receivers", m.NumReceivers)
	}
	return nil
}

func (l *Learner) resume() error {
	var best, found, err = l.ledger.Best()
	if err != nil {
		return err
	}
	if !found {
		log.Println("resume", "no checkpoint")
		return nil
	}
	if err := l.net.Load(filepath.Join(best.Dir, networkFileName)); err != nil {
		return err
	}
	checkpoints, err := l.ledger.Checkpoints()
	if err != nil {
		return err
	}
	for _, c := range checkpoints {
		l.checkpoint = max(l.checkpoint, c.Index+1)
	}
	l.learningRate = best.LearningRate
	l.bestLoss = best.Loss
	l.bestDir = best.Dir
	l.trainer.SendMessage(trainer.NewMessage("reset", ""))
	log.Println("resume", "dir", best.Dir, "loss", best.Loss, "lr", best.LearningRate)
	return nil
}

func (l *Learner) newbob() bool {
	return l.config.NewbobDecay != 1
}

func (l *Learner) Run(ctx context.Context) error {
	log.Printf("%+v", l.config)
	l.start = time.Now()

	var readerDone = make(chan error, 1)
	go func() {
		readerDone <- l.reader.Run()
	}()
	defer func() {
		l.reader.Stop()
		<-readerDone
	}()

	if err := l.loadValidation(); err != nil {
		return err
	}
	if l.newbob() && l.bestDir == "" {
		var dir = filepath.Join(l.config.OutputDir, "original")
		if err := l.net.Save(filepath.Join(dir, networkFileName)); err != nil {
			return err
		}
		l.calcLoss(l.workers[0], 0)
		if l.latestLossCount > 0 {
			l.bestLoss = l.latestLossSum / float64(l.latestLossCount)
		}
		l.latestLossSum, l.latestLossCount = 0, 0
		l.bestDir = dir
		log.Println("initial loss", l.bestLoss)
		if err := l.ledger.Record(Checkpoint{Index: l.nextCheckpoint(), Dir: dir,
			Loss: l.bestLoss, LearningRate: l.learningRate, Accepted: true}); err != nil {
			return err
		}
	}

	var stop = context.AfterFunc(ctx, l.stop)
	defer stop()

	var g, gctx = errgroup.WithContext(ctx)
	var converged int32
	for _, w := range l.workers {
		w := w
		g.Go(func() error {
			var err = w.run(gctx)
			if errors.Is(err, ErrConverged) {
				atomic.StoreInt32(&converged, 1)
				err = nil
			}
			l.stop()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if atomic.LoadInt32(&converged) != 0 {
		log.Println("converged")
	} else if n := l.pendingExamples(); n > 0 {
		// the data ran out in the middle of a mini-batch
		l.rw.Lock()
		l.updateParameters()
		l.rw.Unlock()
		atomic.AddInt64(&l.epoch, 1)
		log.Println("final update", "examples", n)
	}
	l.trainer.SendMessage(trainer.NewMessage("clear_unobserved_feature_weights", ""))
	_, err := l.save(true)
	log.Println("learn finished", "total done", atomic.LoadInt64(&l.totalDone), "epoch", l.epoch)
	return err
}

func (l *Learner) loadValidation() error {
	if l.config.ValidationSetFileName == "" {
		// the first records of the training stream
		for len(l.validation) < l.config.SfenForMSESize {
			var v, ok = l.reader.Read(0)
			if !ok {
				log.Println("validation", "training data exhausted", "size", len(l.validation))
				break
			}
			l.addValidation(v)
		}
		return nil
	}
	var r, err = sfen.OpenReader(l.config.ValidationSetFileName)
	if err != nil {
		return err
	}
	defer r.Close()
	var buf = make([]sfen.PackedSfenValue, 4096)
	for {
		var n, err = r.Read(buf)
		for _, v := range buf[:n] {
			if l.config.EvalLimit < abs(int(v.Score)) {
				continue
			}
			if !l.config.UseDrawGamesInValidation && v.GameResult == sfen.ResultDraw {
				continue
			}
			l.addValidation(v)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	log.Println("validation", "file", l.config.ValidationSetFileName, "size", len(l.validation))
	return nil
}

func (l *Learner) addValidation(v sfen.PackedSfenValue) {
	l.validation = append(l.validation, v)
	if p, err := v.Position(); err == nil {
		l.validationKeys[p.Key] = struct{}{}
	}
}

func (l *Learner) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.cond.Broadcast()
	l.reader.Stop()
}

func (l *Learner) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Learner) updateDue() bool {
	return atomic.LoadInt64(&l.totalDone) >= atomic.LoadInt64(&l.nextUpdate)
}

func (l *Learner) advanceUpdate() {
	l.mu.Lock()
	atomic.AddInt64(&l.nextUpdate, l.config.BatchSize)
	l.mu.Unlock()
	l.cond.Broadcast()
}

// waitForUpdate runs loss tasks until worker 0 has applied the update.
// It returns false when training stops.
func (l *Learner) waitForUpdate(w *worker) bool {
	l.mu.Lock()
	for {
		if l.stopped {
			l.mu.Unlock()
			return false
		}
		if len(l.tasks) != 0 {
			var task = l.tasks[0]
			l.tasks = l.tasks[1:]
			l.mu.Unlock()
			task(w)
			l.mu.Lock()
			continue
		}
		if !l.updateDue() {
			l.mu.Unlock()
			return true
		}
		l.cond.Wait()
	}
}

func (l *Learner) pushTasks(tasks []func(w *worker)) {
	l.mu.Lock()
	l.tasks = append(l.tasks, tasks...)
	l.mu.Unlock()
	l.cond.Broadcast()
}

func (l *Learner) popTask() func(w *worker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil
	}
	var task = l.tasks[0]
	l.tasks = l.tasks[1:]
	return task
}

func (l *Learner) firstSeen(key uint64) bool {
	var slot = &l.dedup[key&uint64(len(l.dedup)-1)]
	if atomic.LoadUint64(slot) == key {
		return false
	}
	atomic.StoreUint64(slot, key)
	return true
}

func (l *Learner) addExample(e example) {
	l.examplesMu.Lock()
	l.examples = append(l.examples, e)
	l.examplesMu.Unlock()
	atomic.AddInt64(&l.totalDone, 1)
}

func (l *Learner) pendingExamples() int {
	l.examplesMu.Lock()
	defer l.examplesMu.Unlock()
	return len(l.examples)
}

// update is run by worker 0 once a mini-batch worth of samples is done.
func (l *Learner) update(w *worker) error {
	if atomic.LoadInt64(&l.nextUpdate) == 0 {
		l.advanceUpdate()
		return nil
	}

	l.rw.Lock()
	l.updateParameters()
	l.rw.Unlock()
	atomic.AddInt64(&l.epoch, 1)

	l.saveCount++
	if l.saveCount*l.config.BatchSize >= l.config.EvalSaveInterval {
		l.saveCount = 0
		var converged, err = l.save(false)
		if err != nil {
			return err
		}
		if converged {
			return ErrConverged
		}
	}

	l.lossOutputCount++
	if l.lossOutputCount*l.config.BatchSize >= l.config.LossOutputInterval {
		l.lossOutputCount = 0
		var totalDone = atomic.LoadInt64(&l.totalDone)
		l.calcLoss(w, totalDone-l.lastDone)
		l.trainer.SendMessage(trainer.NewMessage("check_health", ""))
		l.lastDone = totalDone
	}

	l.advanceUpdate()
	return nil
}

// updateParameters feeds the collected examples through the trainer in
// batches of NNBatchSize.
func (l *Learner) updateParameters() {
	l.examplesMu.Lock()
	var examples = l.examples
	l.examples = nil
	l.examplesMu.Unlock()

	l.rnd.Shuffle(len(examples), func(i, j int) {
		examples[i], examples[j] = examples[j], examples[i]
	})
	var inputs = make([]trainer.Example, 0, l.config.NNBatchSize)
	var gradients = make([]float32, 0, l.config.NNBatchSize)
	for len(examples) > 0 {
		var batch = examples[:min(l.config.NNBatchSize, len(examples))]
		examples = examples[len(batch):]

		inputs = inputs[:0]
		for i := range batch {
			inputs = append(inputs, batch[i].input)
		}
		var outputs = l.trainer.Propagate(inputs)
		gradients = gradients[:0]
		for i := range batch {
			var e = &batch[i]
			var shallow = math.Round(e.sign * float64(outputs[i]) * nnue.OutputScale)
			var grad = e.sign * l.config.calcGrad(float64(e.psv.Score), shallow, &e.psv)
			gradients = append(gradients, float32(grad))
		}
		l.trainer.Backpropagate(gradients, float32(l.learningRate/float64(len(batch))))
	}
}

func (l *Learner) nextCheckpoint() int {
	var index = l.checkpoint
	l.checkpoint++
	return index
}

// save writes the network and runs the newbob schedule. It reports
// convergence.
func (l *Learner) save(final bool) (bool, error) {
	if l.config.SaveOnlyOnce {
		return false, l.net.Save(filepath.Join(l.config.OutputDir, networkFileName))
	}
	if final {
		var path = filepath.Join(l.config.OutputDir, "final", networkFileName)
		log.Println("save", "path", path)
		return true, l.net.Save(path)
	}

	var index = l.nextCheckpoint()
	var dir = filepath.Join(l.config.OutputDir, strconv.Itoa(index))
	if err := l.net.Save(filepath.Join(dir, networkFileName)); err != nil {
		return false, err
	}
	log.Println("save", "dir", dir)
	if !l.newbob() || l.latestLossCount == 0 {
		return false, nil
	}

	var loss = l.latestLossSum / float64(l.latestLossCount)
	l.latestLossSum, l.latestLossCount = 0, 0
	var accepted = l.config.AutoLRDrop > 0 || loss < l.bestLoss
	if accepted {
		log.Println("loss", loss, "best", l.bestLoss, "accepted")
		l.bestLoss = loss
		l.bestDir = dir
		l.trials = l.config.NewbobNumTrials
		if totalDone := atomic.LoadInt64(&l.totalDone); l.config.AutoLRDrop > 0 &&
			totalDone >= l.lastLRDrop+l.config.AutoLRDrop {
			l.lastLRDrop = totalDone
			l.learningRate *= l.config.NewbobDecay
		}
	} else {
		log.Println("loss", loss, "best", l.bestLoss, "rejected")
		l.trials--
		if l.trials > 0 {
			var lr = l.learningRate * l.config.NewbobDecay
			log.Println("reducing learning rate", "from", l.learningRate, "to", lr, "trials left", l.trials)
			l.learningRate = lr
		}
	}

	var err = l.ledger.Record(Checkpoint{
		Index:        index,
		Dir:          dir,
		Epoch:        atomic.LoadInt64(&l.epoch),
		TotalDone:    atomic.LoadInt64(&l.totalDone),
		Loss:         loss,
		LearningRate: l.learningRate,
		Accepted:     accepted,
	})
	if err != nil {
		return false, err
	}
	return l.trials <= 0, nil
}

// calcLoss evaluates the validation set with the help of idle workers and
// logs test and training losses. done is the number of training samples
// since the last call.
func (l *Learner) calcLoss(w *worker, done int64) {
	var totalDone = atomic.LoadInt64(&l.totalDone)
	var elapsed = time.Since(l.start).Seconds() + 1e-3
	var startPos, _ = NewPositionFromFEN(InitialPositionFen)
	log.Println("progress",
		"sfens", totalDone,
		"per second", int64(float64(totalDone)/elapsed),
		"epoch", atomic.LoadInt64(&l.epoch),
		"lr", l.learningRate,
		"startpos eval", w.evaluator.Evaluate(&startPos))

	var stats = &validationStats{}
	var wg sync.WaitGroup
	var tasks = make([]func(w *worker), len(l.validation))
	for i := range l.validation {
		var v = &l.validation[i]
		wg.Add(1)
		tasks[i] = func(w *worker) {
			defer wg.Done()
			w.validate(v, stats)
		}
	}
	l.pushTasks(tasks)
	for task := l.popTask(); task != nil; task = l.popTask() {
		task(w)
	}
	wg.Wait()

	var scored = len(l.validation) - stats.illegal
	if scored == 0 {
		log.Println("loss", "empty validation set")
		return
	}
	var n = float64(scored)
	l.latestLossSum += stats.sums[ceTotal] - stats.sums[entropyTotal]
	l.latestLossCount += int64(scored)
	log.Println("test",
		"cross_entropy_eval", stats.sums[ceEval]/n,
		"cross_entropy_win", stats.sums[ceWin]/n,
		"entropy_eval", stats.sums[entropyEval]/n,
		"entropy_win", stats.sums[entropyWin]/n,
		"cross_entropy", stats.sums[ceTotal]/n,
		"entropy", stats.sums[entropyTotal]/n,
		"norm", stats.norm,
		"move accuracy", float64(stats.moveAccord)*100/n,
		"skipped", stats.illegal)

	var learnSums [numLossTerms]float64
	l.rw.Lock()
	for _, worker := range l.workers {
		floats.Add(learnSums[:], worker.learnSums[:])
		worker.learnSums = [numLossTerms]float64{}
	}
	l.rw.Unlock()
	if done > 0 {
		var d = float64(done)
		log.Println("learn",
			"cross_entropy_eval", learnSums[ceEval]/d,
			"cross_entropy_win", learnSums[ceWin]/d,
			"entropy_eval", learnSums[entropyEval]/d,
			"entropy_win", learnSums[entropyWin]/d,
			"cross_entropy", learnSums[ceTotal]/d,
			"entropy", learnSums[entropyTotal]/d)
	}
}

type validationStats struct {
	mu         sync.Mutex
	sums       [numLossTerms]float64
	norm       float64
	moveAccord int
	illegal    int
}

func (s *validationStats) add(terms [numLossTerms]float64, shallow int, moveAccord bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	floats.Add(s.sums[:], terms[:])
	s.norm += math.Abs(float64(shallow))
	if moveAccord {
		s.moveAccord++
	}
}

type worker struct {
	id        int
	l         *Learner
	evaluator *nnue.Evaluator
	searcher  *engine.Searcher
	rnd       *rand.Rand
	epoch     int64
	learnSums [numLossTerms]float64
	skipped   int64
}

func (l *Learner) newWorker(id int) *worker {
	var evaluator = nnue.NewEvaluator(l.net)
	return &worker{
		id:        id,
		l:         l,
		evaluator: evaluator,
		searcher:  engine.NewSearcher(evaluator, l.config.HashMB),
		rnd:       rand.New(rand.NewSource(l.config.Seed + 100 + int64(id))),
	}
}

func (w *worker) run(ctx context.Context) error {
	var l = w.l
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.isStopped() {
			return nil
		}
		if l.updateDue() {
			if w.id != 0 {
				if !l.waitForUpdate(w) {
					return nil
				}
				continue
			}
			if err := l.update(w); err != nil {
				return err
			}
			continue
		}

		l.rw.RLock()
		var ok = w.learnOne()
		l.rw.RUnlock()
		if !ok {
			return nil
		}
	}
}

// learnOne adds one training example. It returns false at end of data.
func (w *worker) learnOne() bool {
	var l = w.l
	var config = &l.config
	for {
		var psv, ok = l.reader.Read(w.id)
		if !ok {
			return false
		}
		if config.EvalLimit < abs(int(psv.Score)) {
			continue
		}
		if !config.UseDrawGamesInTraining && psv.GameResult == sfen.ResultDraw {
			continue
		}
		if int(psv.GamePly) < w.rnd.Intn(config.ReductionGamePly) {
			continue
		}
		var p, err = psv.Position()
		if err != nil {
			w.skip(err)
			continue
		}
		if _, found := l.validationKeys[p.Key]; found {
			continue
		}
		if config.SkipDuplicatedPositionsInTraining && !l.firstSeen(p.Key) {
			continue
		}
		move, err := sfen.DecodeMove(&p, psv.Move)
		if err != nil {
			w.skip(err)
			continue
		}
		var child Position
		p.MakeMove(move, &child)
		if !child.HasLegalMove() {
			continue
		}

		leaf, ok := w.leaf(&child)
		if !ok {
			w.skip(sfen.ErrIllegalMove)
			continue
		}
		var sign = 1.0
		if leaf.WhiteMove != p.WhiteMove {
			sign = -1
		}
		var shallow = sign * float64(w.evaluator.Evaluate(&leaf))
		var terms = config.lossTerms(float64(psv.Score), shallow, &psv)
		floats.Add(w.learnSums[:], terms[:])

		l.addExample(example{input: l.net.Example(&leaf), sign: sign, psv: psv})
		return true
	}
}

// leaf follows the quiescence PV from p. It fails when the PV holds an
// illegal move.
func (w *worker) leaf(p *Position) (Position, bool) {
	var _, pv = w.searcher.QSearch(p)
	var leaf = *p
	for _, m := range pv {
		var child Position
		if !leaf.MakeMove(m, &child) {
			return Position{}, false
		}
		leaf = child
	}
	return leaf, true
}

func (w *worker) skip(err error) {
	w.skipped++
	if w.skipped&(w.skipped-1) == 0 {
		log.Println("skip sample", "worker", w.id, "count", w.skipped, "err", err)
	}
}

// validate scores one validation record.
func (w *worker) validate(v *sfen.PackedSfenValue, stats *validationStats) {
	if epoch := atomic.LoadInt64(&w.l.epoch); epoch != w.epoch {
		w.epoch = epoch
		w.searcher.Clear()
	}
	var p, err = v.Position()
	if err != nil {
		stats.mu.Lock()
		stats.illegal++
		stats.mu.Unlock()
		return
	}
	var leaf, ok = w.leaf(&p)
	if !ok {
		stats.mu.Lock()
		stats.illegal++
		stats.mu.Unlock()
		return
	}
	var shallow = w.evaluator.Evaluate(&leaf)
	if leaf.WhiteMove != p.WhiteMove {
		shallow = -shallow
	}
	var terms = w.l.config.lossTerms(float64(v.Score), float64(shallow), v)

	var result = w.searcher.Search(engine.SearchParams{Position: p, Depth: 1})
	var moveAccord = len(result.PV) != 0 && sfen.EncodeMove(result.PV[0]) == v.Move
	stats.add(terms, shallow, moveAccord)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
