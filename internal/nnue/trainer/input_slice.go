package trainer

import (
	"math/rand"

	"github.com/ianfab/variant-nnue/internal/nnue/layers"
)

type inputSliceTrainer struct {
	layer     *layers.InputSlice
	shared    *SharedInputTrainer
	inputDims int
	output    []float32
	gradients []float32
}

func newInputSliceTrainer(layer *layers.InputSlice, shared *SharedInputTrainer, inputDims int) *inputSliceTrainer {
	return &inputSliceTrainer{layer: layer, shared: shared, inputDims: inputDims}
}

func (t *inputSliceTrainer) SendMessage(m *Message) { t.shared.SendMessage(m) }

func (t *inputSliceTrainer) Initialize(rng *rand.Rand) { t.shared.Initialize(rng) }

func (t *inputSliceTrainer) Propagate(batch []Example) []float32 {
	var input = t.shared.Propagate(batch)
	var dims, offset = t.layer.OutputDimensions(), t.layer.Offset()
	t.output = resize(t.output, len(batch)*dims)
	for b := range batch {
		copy(t.output[b*dims:(b+1)*dims], input[b*t.inputDims+offset:])
	}
	return t.output
}

func (t *inputSliceTrainer) Backpropagate(gradients []float32, learningRate float32) {
	var dims, offset = t.layer.OutputDimensions(), t.layer.Offset()
	var batchSize = len(gradients) / dims
	t.gradients = resize(t.gradients, batchSize*t.inputDims)
	for b := 0; b < batchSize; b++ {
		var row = t.gradients[b*t.inputDims : (b+1)*t.inputDims]
		for i := range row {
			row[i] = 0
		}
		copy(row[offset:offset+dims], gradients[b*dims:(b+1)*dims])
	}
	t.shared.Backpropagate(t.gradients, learningRate)
}
