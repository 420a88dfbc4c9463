package trainer

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/blas/blas32"
)

type operation int

const (
	opNone operation = iota
	opSendMessage
	opInitialize
	opPropagate
	opBackPropagate
)

// SharedInputTrainer lets several input slices read one feature transformer.
// Every operation runs once on the transformer no matter how many referrers
// call it; gradients from all referrers are summed before the transformer
// sees them.
type SharedInputTrainer struct {
	ft        Trainer
	referrers int
	calls     int
	current   operation
	output    []float32
	gradients []float32
}

func newSharedInputTrainer(ft Trainer) *SharedInputTrainer {
	return &SharedInputTrainer{ft: ft}
}

func (s *SharedInputTrainer) Referrers() int { return s.referrers }

func (s *SharedInputTrainer) begin(op operation) bool {
	if s.calls == 0 {
		s.current = op
		return true
	}
	if s.current != op {
		panic(fmt.Errorf("trainer: shared input called for operation %d during %d", op, s.current))
	}
	return false
}

func (s *SharedInputTrainer) end() {
	s.calls++
	if s.calls > s.referrers {
		panic("trainer: shared input called more often than it has referrers")
	}
	if s.calls == s.referrers {
		s.calls = 0
		s.current = opNone
	}
}

func (s *SharedInputTrainer) SendMessage(m *Message) {
	if s.begin(opSendMessage) {
		s.ft.SendMessage(m)
	}
	s.end()
}

func (s *SharedInputTrainer) Initialize(rng *rand.Rand) {
	if s.begin(opInitialize) {
		s.ft.Initialize(rng)
	}
	s.end()
}

func (s *SharedInputTrainer) Propagate(batch []Example) []float32 {
	if s.begin(opPropagate) {
		s.output = s.ft.Propagate(batch)
	}
	s.end()
	return s.output
}

func (s *SharedInputTrainer) Backpropagate(gradients []float32, learningRate float32) {
	if s.referrers == 1 {
		s.ft.Backpropagate(gradients, learningRate)
		return
	}
	if s.begin(opBackPropagate) {
		s.gradients = resize(s.gradients, len(gradients))
		for i := range s.gradients {
			s.gradients[i] = 0
		}
	}
	blas32.Axpy(1, vector(gradients), vector(s.gradients))
	var last = s.calls+1 == s.referrers
	s.end()
	if last {
		s.ft.Backpropagate(s.gradients, learningRate)
	}
}

func vector(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}
