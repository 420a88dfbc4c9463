package trainer

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/ianfab/variant-nnue/internal/nnue/layers"
)

// Example is one training position: active feature indices per colour and
// the colour to move.
type Example struct {
	Features   [2][]int
	SideToMove int
}

// Trainer mirrors one layer. Propagate and Backpropagate work on a whole
// mini-batch laid out sample after sample.
type Trainer interface {
	SendMessage(m *Message)
	Initialize(rng *rand.Rand)
	Propagate(batch []Example) []float32
	Backpropagate(gradients []float32, learningRate float32)
}

// Message carries a hyperparameter change to every trainer of the graph.
type Message struct {
	Name         string
	Value        string
	NumReceivers int
}

func NewMessage(name, value string) *Message {
	return &Message{Name: name, Value: value}
}

func (m *Message) receive(name string) bool {
	if m.Name != name {
		return false
	}
	m.NumReceivers++
	return true
}

func (m *Message) float32Value() float32 {
	var v, err = strconv.ParseFloat(m.Value, 32)
	if err != nil {
		panic(fmt.Errorf("trainer: message %v: %w", m.Name, err))
	}
	return float32(v)
}

// Arena owns one SharedInputTrainer per feature transformer.
type Arena struct {
	shared map[*layers.FeatureTransformer]*SharedInputTrainer
}

func NewArena() *Arena {
	return &Arena{shared: make(map[*layers.FeatureTransformer]*SharedInputTrainer)}
}

// Shared returns the trainer for ft and counts the caller as a referrer.
func (a *Arena) Shared(ft *layers.FeatureTransformer) *SharedInputTrainer {
	var s, ok = a.shared[ft]
	if !ok {
		s = newSharedInputTrainer(newFeatureTransformerTrainer(ft))
		a.shared[ft] = s
	}
	s.referrers++
	return s
}

func (a *Arena) Len() int { return len(a.shared) }

// New builds the trainer graph mirroring network, whose input slices read
// from ft.
func New(network layers.Layer, ft *layers.FeatureTransformer, arena *Arena) Trainer {
	switch l := network.(type) {
	case *layers.InputSlice:
		return newInputSliceTrainer(l, arena.Shared(ft), ft.OutputDimensions())
	case *layers.AffineTransform:
		return newAffineTransformTrainer(l, New(l.Previous, ft, arena))
	case *layers.ClippedReLU:
		return newClippedReLUTrainer(l, New(l.Previous, ft, arena))
	case *layers.Sum:
		var summands = make([]Trainer, len(l.Summands))
		for i, s := range l.Summands {
			summands[i] = New(s, ft, arena)
		}
		return newSumTrainer(l, summands)
	}
	panic(fmt.Errorf("trainer: unsupported layer %T", network))
}

func resize(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
