package layers

import (
	"fmt"
	"io"
)

// InputSlice exposes a window of the transformed features.
type InputSlice struct {
	outputDims int
	offset     int
}

func NewInputSlice(outputDims, offset int) *InputSlice {
	return &InputSlice{outputDims: outputDims, offset: offset}
}

func (l *InputSlice) OutputDimensions() int { return l.outputDims }
func (l *InputSlice) Offset() int           { return l.offset }
func (l *InputSlice) BufferSize() int       { return 0 }

func (l *InputSlice) Hash() uint32 {
	return 0xEC42E90D ^ uint32(l.outputDims) ^ uint32(l.offset)<<10
}

func (l *InputSlice) Structure() string {
	return fmt.Sprintf("InputSlice[%d(%d:%d)]", l.outputDims, l.offset, l.offset+l.outputDims)
}

func (l *InputSlice) ReadParameters(r io.Reader) error  { return nil }
func (l *InputSlice) WriteParameters(w io.Writer) error { return nil }
func (l *InputSlice) Parameters() [][]float32           { return nil }

func (l *InputSlice) Propagate(transformed, buffer []float32) []float32 {
	return transformed[l.offset : l.offset+l.outputDims]
}
