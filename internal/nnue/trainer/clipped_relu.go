package trainer

import (
	"log"
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/ianfab/variant-nnue/internal/nnue/layers"
)

type clippedReLUTrainer struct {
	layer     *layers.ClippedReLU
	previous  Trainer
	output    []float32
	gradients []float32
	minInput  float32
	maxInput  float32
}

func newClippedReLUTrainer(layer *layers.ClippedReLU, previous Trainer) *clippedReLUTrainer {
	var t = &clippedReLUTrainer{layer: layer, previous: previous}
	t.resetStats()
	return t
}

func (t *clippedReLUTrainer) resetStats() {
	t.minInput = math32.MaxFloat32
	t.maxInput = -math32.MaxFloat32
}

func (t *clippedReLUTrainer) SendMessage(m *Message) {
	t.previous.SendMessage(m)
	if m.receive("check_health") {
		log.Println("check_health", "layer", "ClippedReLU",
			"outputs", t.layer.OutputDimensions(), "min_input", t.minInput, "max_input", t.maxInput)
		t.resetStats()
	}
}

func (t *clippedReLUTrainer) Initialize(rng *rand.Rand) {
	t.previous.Initialize(rng)
}

func (t *clippedReLUTrainer) Propagate(batch []Example) []float32 {
	var input = t.previous.Propagate(batch)
	t.output = resize(t.output, len(input))
	for i, x := range input {
		t.minInput = math32.Min(t.minInput, x)
		t.maxInput = math32.Max(t.maxInput, x)
		t.output[i] = layers.Clip(x)
	}
	return t.output
}

func (t *clippedReLUTrainer) Backpropagate(gradients []float32, learningRate float32) {
	t.gradients = resize(t.gradients, len(gradients))
	for i, g := range gradients {
		if t.output[i] > 0 && t.output[i] < 1 {
			t.gradients[i] = g
		} else {
			t.gradients[i] = 0
		}
	}
	t.previous.Backpropagate(t.gradients, learningRate)
}
