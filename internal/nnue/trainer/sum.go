package trainer

import (
	"math/rand"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ianfab/variant-nnue/internal/nnue/layers"
)

type sumTrainer struct {
	layer    *layers.Sum
	summands []Trainer
	output   []float32
}

func newSumTrainer(layer *layers.Sum, summands []Trainer) *sumTrainer {
	return &sumTrainer{layer: layer, summands: summands}
}

func (t *sumTrainer) SendMessage(m *Message) {
	for i := len(t.summands) - 1; i >= 0; i-- {
		t.summands[i].SendMessage(m)
	}
}

func (t *sumTrainer) Initialize(rng *rand.Rand) {
	for i := len(t.summands) - 1; i >= 0; i-- {
		t.summands[i].Initialize(rng)
	}
}

func (t *sumTrainer) Propagate(batch []Example) []float32 {
	t.output = resize(t.output, len(batch)*t.layer.OutputDimensions())
	for i := range t.output {
		t.output[i] = 0
	}
	for i := len(t.summands) - 1; i >= 0; i-- {
		blas32.Axpy(1, vector(t.summands[i].Propagate(batch)), vector(t.output))
	}
	return t.output
}

// d(sum)/d(summand) is 1, so every summand gets the same gradient.
func (t *sumTrainer) Backpropagate(gradients []float32, learningRate float32) {
	for i := len(t.summands) - 1; i >= 0; i-- {
		t.summands[i].Backpropagate(gradients, learningRate)
	}
}
