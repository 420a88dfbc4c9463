package trainer

import (
	"log"
	"math/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ianfab/variant-nnue/internal/nnue/layers"
)

type affineTransformTrainer struct {
	layer             *layers.AffineTransform
	previous          Trainer
	input             []float32
	output            []float32
	gradients         []float32
	biasesDiff        []float32
	weightsDiff       []float32
	momentum          float32
	learningRateScale float32
}

func newAffineTransformTrainer(layer *layers.AffineTransform, previous Trainer) *affineTransformTrainer {
	return &affineTransformTrainer{
		layer:             layer,
		previous:          previous,
		biasesDiff:        make([]float32, len(layer.Biases)),
		weightsDiff:       make([]float32, len(layer.Weights)),
		momentum:          0.2,
		learningRateScale: 1,
	}
}

func (t *affineTransformTrainer) isOutputLayer() bool {
	return t.layer.OutputDimensions() == 1
}

func (t *affineTransformTrainer) SendMessage(m *Message) {
	t.previous.SendMessage(m)
	switch {
	case m.receive("momentum"):
		t.momentum = m.float32Value()
	case m.receive("learning_rate_scale"):
		t.learningRateScale = m.float32Value()
	case m.receive("reset"):
		t.clearDiffs()
	case m.receive("check_health"):
		t.checkHealth()
	}
}

func (t *affineTransformTrainer) Initialize(rng *rand.Rand) {
	t.previous.Initialize(rng)
	var in = t.layer.InputDimensions()
	if t.isOutputLayer() {
		for i := range t.layer.Biases {
			t.layer.Biases[i] = 0
		}
		for i := range t.layer.Weights {
			t.layer.Weights[i] = 0
		}
	} else {
		var sigma = 1 / math32.Sqrt(float32(in))
		for i := range t.layer.Biases {
			var sum float32
			for j := 0; j < in; j++ {
				var w = sigma * float32(rng.NormFloat64())
				t.layer.Weights[i*in+j] = w
				sum += w
			}
			t.layer.Biases[i] = 0.5 - 0.5*sum
		}
	}
	t.clearDiffs()
}

func (t *affineTransformTrainer) clearDiffs() {
	for i := range t.biasesDiff {
		t.biasesDiff[i] = 0
	}
	for i := range t.weightsDiff {
		t.weightsDiff[i] = 0
	}
}

func (t *affineTransformTrainer) Propagate(batch []Example) []float32 {
	t.input = t.previous.Propagate(batch)
	var n, in, out = len(batch), t.layer.InputDimensions(), t.layer.OutputDimensions()
	t.output = resize(t.output, n*out)
	for b := 0; b < n; b++ {
		copy(t.output[b*out:(b+1)*out], t.layer.Biases)
	}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		general(n, in, t.input), general(out, in, t.layer.Weights),
		1, general(n, out, t.output))
	return t.output
}

func (t *affineTransformTrainer) Backpropagate(gradients []float32, learningRate float32) {
	var in, out = t.layer.InputDimensions(), t.layer.OutputDimensions()
	var n = len(gradients) / out
	var localLearningRate = learningRate * t.learningRateScale

	t.gradients = resize(t.gradients, n*in)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(n, out, gradients), general(out, in, t.layer.Weights),
		0, general(n, in, t.gradients))

	blas32.Scal(t.momentum, vector(t.biasesDiff))
	for b := 0; b < n; b++ {
		blas32.Axpy(1, vector(gradients[b*out:(b+1)*out]), vector(t.biasesDiff))
	}
	blas32.Axpy(-localLearningRate, vector(t.biasesDiff), vector(t.layer.Biases))

	blas32.Gemm(blas.Trans, blas.NoTrans, 1,
		general(n, out, gradients), general(n, in, t.input),
		t.momentum, general(out, in, t.weightsDiff))
	blas32.Axpy(-localLearningRate, vector(t.weightsDiff), vector(t.layer.Weights))

	t.previous.Backpropagate(t.gradients, learningRate)
}

func (t *affineTransformTrainer) checkHealth() {
	var maxWeight float32
	for _, w := range t.layer.Weights {
		maxWeight = math32.Max(maxWeight, math32.Abs(w))
	}
	log.Println("check_health", "layer", "AffineTransform",
		"outputs", t.layer.OutputDimensions(), "max_abs_weight", maxWeight)
}

func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data[:rows*cols]}
}
