package trainer

import (
	"log"
	"math/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ianfab/variant-nnue/internal/nnue/layers"
)

type featureTransformerTrainer struct {
	ft                *layers.FeatureTransformer
	batch             []Example
	output            []float32
	gradients         []float32
	biasesDiff        []float32
	observed          []bool
	momentum          float32
	learningRateScale float32
	minPreActivation  float32
	maxPreActivation  float32
}

func newFeatureTransformerTrainer(ft *layers.FeatureTransformer) *featureTransformerTrainer {
	var t = &featureTransformerTrainer{
		ft:                ft,
		biasesDiff:        make([]float32, ft.HalfDimensions()),
		observed:          make([]bool, ft.InputDimensions()),
		momentum:          0.2,
		learningRateScale: 1,
	}
	t.resetStats()
	return t
}

func (t *featureTransformerTrainer) resetStats() {
	t.minPreActivation = math32.MaxFloat32
	t.maxPreActivation = -math32.MaxFloat32
}

func (t *featureTransformerTrainer) SendMessage(m *Message) {
	switch {
	case m.receive("momentum"):
		t.momentum = m.float32Value()
	case m.receive("learning_rate_scale"):
		t.learningRateScale = m.float32Value()
	case m.receive("reset"):
		for i := range t.biasesDiff {
			t.biasesDiff[i] = 0
		}
	case m.receive("clear_unobserved_feature_weights"):
		t.clearUnobservedFeatureWeights()
	case m.receive("check_health"):
		t.checkHealth()
	}
}

func (t *featureTransformerTrainer) Initialize(rng *rand.Rand) {
	var sigma = 0.1 / math32.Sqrt(float32(t.ft.FeatureSet.MaxActiveDimensions()))
	for i := range t.ft.Biases {
		t.ft.Biases[i] = 0.5
	}
	for i := range t.ft.Weights {
		t.ft.Weights[i] = sigma * float32(rng.NormFloat64())
	}
	for i := range t.biasesDiff {
		t.biasesDiff[i] = 0
	}
}

func (t *featureTransformerTrainer) Propagate(batch []Example) []float32 {
	t.batch = batch
	var half = t.ft.HalfDimensions()
	t.output = resize(t.output, len(batch)*2*half)
	for b := range batch {
		var e = &batch[b]
		var perspectives = [2]int{e.SideToMove, e.SideToMove ^ 1}
		for p, perspective := range perspectives {
			var acc = t.output[(2*b+p)*half : (2*b+p+1)*half]
			t.ft.Accumulate(e.Features[perspective], acc)
			for _, index := range e.Features[perspective] {
				t.observed[index] = true
			}
			for i, x := range acc {
				t.minPreActivation = math32.Min(t.minPreActivation, x)
				t.maxPreActivation = math32.Max(t.maxPreActivation, x)
				acc[i] = layers.Clip(x)
			}
		}
	}
	return t.output
}

// Biases use momentum; weights get a plain sparse update of the rows that
// were active in the batch.
func (t *featureTransformerTrainer) Backpropagate(gradients []float32, learningRate float32) {
	var half = t.ft.HalfDimensions()
	var localLearningRate = learningRate * t.learningRateScale
	t.gradients = resize(t.gradients, len(gradients))
	for i, g := range gradients {
		if t.output[i] > 0 && t.output[i] < 1 {
			t.gradients[i] = g
		} else {
			t.gradients[i] = 0
		}
	}

	blas32.Scal(t.momentum, vector(t.biasesDiff))
	for row := 0; row < 2*len(t.batch); row++ {
		blas32.Axpy(1, vector(t.gradients[row*half:(row+1)*half]), vector(t.biasesDiff))
	}
	blas32.Axpy(-localLearningRate, vector(t.biasesDiff), vector(t.ft.Biases))

	for b := range t.batch {
		var e = &t.batch[b]
		var perspectives = [2]int{e.SideToMove, e.SideToMove ^ 1}
		for p, perspective := range perspectives {
			var g = vector(t.gradients[(2*b+p)*half : (2*b+p+1)*half])
			for _, index := range e.Features[perspective] {
				blas32.Axpy(-localLearningRate, g, vector(t.ft.Weights[index*half:(index+1)*half]))
			}
		}
	}
}

func (t *featureTransformerTrainer) clearUnobservedFeatureWeights() {
	var half = t.ft.HalfDimensions()
	var cleared int
	for index, seen := range t.observed {
		if seen {
			continue
		}
		cleared++
		var row = t.ft.Weights[index*half : (index+1)*half]
		for i := range row {
			row[i] = 0
		}
	}
	log.Println("clear_unobserved_feature_weights", "cleared", cleared, "features", len(t.observed))
}

func (t *featureTransformerTrainer) checkHealth() {
	var observed int
	for _, seen := range t.observed {
		if seen {
			observed++
		}
	}
	log.Println("check_health", "layer", "FeatureTransformer",
		"observed_features", observed, "features", len(t.observed),
		"min_pre_activation", t.minPreActivation, "max_pre_activation", t.maxPreActivation)
	t.resetStats()
}
