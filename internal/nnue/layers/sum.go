package layers

import (
	"fmt"
	"io"
	"strings"
)

// Sum adds the outputs of several subgraphs. Parameters are serialized from
// the last summand to the first.
type Sum struct {
	Summands []Layer
}

func NewSum(summands ...Layer) *Sum {
	if len(summands) == 0 {
		panic("layers: empty sum")
	}
	for _, s := range summands[1:] {
		if s.OutputDimensions() != summands[0].OutputDimensions() {
			panic("layers: summand dimensions differ")
		}
	}
	return &Sum{Summands: summands}
}

func (l *Sum) OutputDimensions() int { return l.Summands[0].OutputDimensions() }

func (l *Sum) BufferSize() int {
	var prev int
	for _, s := range l.Summands {
		if s.BufferSize() > prev {
			prev = s.BufferSize()
		}
	}
	return l.OutputDimensions() + prev
}

func (l *Sum) Hash() uint32 {
	return sumHash(l.Summands)
}

func sumHash(summands []Layer) uint32 {
	var head = summands[0].Hash()
	var hash uint32 = 0xBCE400B4
	hash ^= head >> 1
	hash ^= head << 31
	if len(summands) > 1 {
		var tail = sumHash(summands[1:])
		hash ^= tail >> 2
		hash ^= tail << 30
	}
	return hash
}

func (l *Sum) Structure() string {
	var parts = make([]string, len(l.Summands))
	for i, s := range l.Summands {
		parts[i] = s.Structure()
	}
	return fmt.Sprintf("Sum[%d](%s)", l.OutputDimensions(), strings.Join(parts, ","))
}

func (l *Sum) ReadParameters(r io.Reader) error {
	for i := len(l.Summands) - 1; i >= 0; i-- {
		if err := l.Summands[i].ReadParameters(r); err != nil {
			return err
		}
	}
	return nil
}

func (l *Sum) WriteParameters(w io.Writer) error {
	for i := len(l.Summands) - 1; i >= 0; i-- {
		if err := l.Summands[i].WriteParameters(w); err != nil {
			return err
		}
	}
	return nil
}

func (l *Sum) Parameters() [][]float32 {
	var result [][]float32
	for i := len(l.Summands) - 1; i >= 0; i-- {
		result = append(result, l.Summands[i].Parameters()...)
	}
	return result
}

func (l *Sum) Propagate(transformed, buffer []float32) []float32 {
	var dims = l.OutputDimensions()
	var output = buffer[:dims]
	for i := range output {
		output[i] = 0
	}
	for i := len(l.Summands) - 1; i >= 0; i-- {
		var input = l.Summands[i].Propagate(transformed, buffer[dims:])
		for j, x := range input {
			output[j] += x
		}
	}
	return output
}
