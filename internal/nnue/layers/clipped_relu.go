package layers

import (
	"fmt"
	"io"
)

// ClippedReLU clamps every input to [0, 1].
type ClippedReLU struct {
	Previous Layer
}

func NewClippedReLU(previous Layer) *ClippedReLU {
	return &ClippedReLU{Previous: previous}
}

func (l *ClippedReLU) OutputDimensions() int { return l.Previous.OutputDimensions() }

func (l *ClippedReLU) BufferSize() int {
	return l.OutputDimensions() + l.Previous.BufferSize()
}

func (l *ClippedReLU) Hash() uint32 {
	return 0x538D24C7 + l.Previous.Hash()
}

func (l *ClippedReLU) Structure() string {
	return fmt.Sprintf("ClippedReLU[%d](%s)", l.OutputDimensions(), l.Previous.Structure())
}

func (l *ClippedReLU) ReadParameters(r io.Reader) error  { return l.Previous.ReadParameters(r) }
func (l *ClippedReLU) WriteParameters(w io.Writer) error { return l.Previous.WriteParameters(w) }
func (l *ClippedReLU) Parameters() [][]float32           { return l.Previous.Parameters() }

func (l *ClippedReLU) Propagate(transformed, buffer []float32) []float32 {
	var dims = l.OutputDimensions()
	var input = l.Previous.Propagate(transformed, buffer[dims:])
	var output = buffer[:dims]
	for i, x := range input {
		output[i] = Clip(x)
	}
	return output
}

func Clip(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
