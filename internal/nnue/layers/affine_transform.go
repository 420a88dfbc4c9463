package layers

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// AffineTransform computes W*x+b. Weights are row major, one row per output.
type AffineTransform struct {
	Previous   Layer
	inputDims  int
	outputDims int
	Biases     []float32
	Weights    []float32
}

func NewAffineTransform(previous Layer, outputDims int) *AffineTransform {
	var inputDims = previous.OutputDimensions()
	return &AffineTransform{
		Previous:   previous,
		inputDims:  inputDims,
		outputDims: outputDims,
		Biases:     make([]float32, outputDims),
		Weights:    make([]float32, outputDims*inputDims),
	}
}

func (l *AffineTransform) InputDimensions() int  { return l.inputDims }
func (l *AffineTransform) OutputDimensions() int { return l.outputDims }

func (l *AffineTransform) BufferSize() int {
	return l.outputDims + l.Previous.BufferSize()
}

func (l *AffineTransform) Hash() uint32 {
	var prev = l.Previous.Hash()
	return (0xCC03DAE4 + uint32(l.outputDims)) ^ (prev >> 1) ^ (prev << 31)
}

func (l *AffineTransform) Structure() string {
	return fmt.Sprintf("AffineTransform[%d<-%d](%s)", l.outputDims, l.inputDims, l.Previous.Structure())
}

func (l *AffineTransform) ReadParameters(r io.Reader) error {
	if err := l.Previous.ReadParameters(r); err != nil {
		return err
	}
	if err := readFloats(r, l.Biases); err != nil {
		return errors.Wrap(err, "affine biases")
	}
	if err := readFloats(r, l.Weights); err != nil {
		return errors.Wrap(err, "affine weights")
	}
	return nil
}

func (l *AffineTransform) WriteParameters(w io.Writer) error {
	if err := l.Previous.WriteParameters(w); err != nil {
		return err
	}
	if err := writeFloats(w, l.Biases); err != nil {
		return err
	}
	return writeFloats(w, l.Weights)
}

func (l *AffineTransform) Parameters() [][]float32 {
	return append(l.Previous.Parameters(), l.Biases, l.Weights)
}

func (l *AffineTransform) Propagate(transformed, buffer []float32) []float32 {
	var input = l.Previous.Propagate(transformed, buffer[l.outputDims:])
	var output = buffer[:l.outputDims]
	for i := range output {
		var sum = l.Biases[i]
		var row = l.Weights[i*l.inputDims : (i+1)*l.inputDims]
		for j, x := range input {
			sum += row[j] * x
		}
		output[i] = sum
	}
	return output
}
