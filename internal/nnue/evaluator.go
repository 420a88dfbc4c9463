package nnue

import (
	"github.com/chewxy/math32"

	"github.com/ianfab/variant-nnue/internal/nnue/features"
	. "github.com/ianfab/variant-nnue/pkg/common"
)

type accumulator [2][]float32

// Evaluator runs a network for one search thread. It follows the search
// tree with Init, MakeMove and UnmakeMove and updates its accumulators from
// the changed features; Evaluate always refreshes from scratch.
type Evaluator struct {
	net          *Network
	stack        []accumulator
	height       int
	transformed  []float32
	buffer       []float32
	active       [2][]int
	removed      [2][]int
	added        [2][]int
	parentActive [2][]int
}

func NewEvaluator(net *Network) *Evaluator {
	return &Evaluator{
		net:         net,
		transformed: make([]float32, net.Transformer.OutputDimensions()),
		buffer:      make([]float32, net.Output.BufferSize()),
	}
}

func (e *Evaluator) Network() *Network { return e.net }

func (e *Evaluator) Evaluate(p *Position) int {
	e.Init(p)
	return e.EvaluateQuick(p)
}

func (e *Evaluator) Init(p *Position) {
	e.height = 0
	var acc = e.accumulator(0)
	e.active[0], e.active[1] = e.active[0][:0], e.active[1][:0]
	for _, trigger := range e.net.FeatureSet.RefreshTriggers() {
		e.net.FeatureSet.AppendActiveIndices(p, trigger, &e.active)
	}
	for perspective := range acc {
		e.net.Transformer.Accumulate(e.active[perspective], acc[perspective])
	}
}

func (e *Evaluator) accumulator(height int) accumulator {
	for len(e.stack) <= height {
		var half = e.net.Transformer.HalfDimensions()
		e.stack = append(e.stack, accumulator{make([]float32, half), make([]float32, half)})
	}
	return e.stack[height]
}

func (e *Evaluator) MakeMove(parent, child *Position, m Move) {
	var prev = e.accumulator(e.height)
	e.height++
	var acc = e.accumulator(e.height)
	copy(acc[0], prev[0])
	copy(acc[1], prev[1])

	var fs = e.net.FeatureSet
	var ft = e.net.Transformer
	var dirty = features.NewDirtyPiece(parent, m)
	for _, trigger := range fs.RefreshTriggers() {
		e.removed[0], e.removed[1] = e.removed[0][:0], e.removed[1][:0]
		e.added[0], e.added[1] = e.added[0][:0], e.added[1][:0]
		var reset [2]bool
		fs.AppendChangedIndices(child, &dirty, trigger, &e.removed, &e.added, &reset)
		if reset[0] || reset[1] {
			e.parentActive[0], e.parentActive[1] = e.parentActive[0][:0], e.parentActive[1][:0]
			fs.AppendActiveIndices(parent, trigger, &e.parentActive)
		}
		for perspective := range acc {
			var removed = e.removed[perspective]
			if reset[perspective] {
				removed = e.parentActive[perspective]
			}
			for _, index := range removed {
				ft.RemoveFeature(index, acc[perspective])
			}
			for _, index := range e.added[perspective] {
				ft.AddFeature(index, acc[perspective])
			}
		}
	}
}

func (e *Evaluator) UnmakeMove() {
	e.height--
}

// EvaluateQuick scores p from the accumulator at the current height, from
// the point of view of the side to move.
func (e *Evaluator) EvaluateQuick(p *Position) int {
	var acc = e.stack[e.height]
	e.net.Transformer.Transform((*[2][]float32)(&acc), sideToMove(p), e.transformed)
	var output = e.net.Output.Propagate(e.transformed, e.buffer)[0]
	return int(math32.Round(output * OutputScale))
}

// Output is the raw network output for p.
func (e *Evaluator) Output(p *Position) float32 {
	e.Init(p)
	var acc = e.stack[0]
	e.net.Transformer.Transform((*[2][]float32)(&acc), sideToMove(p), e.transformed)
	return e.net.Output.Propagate(e.transformed, e.buffer)[0]
}
