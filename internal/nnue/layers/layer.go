package layers

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

var ErrHashMismatch = errors.New("nnue: structure hash mismatch")

// Layer is one node of the inference graph. Propagate writes its output to
// the front of buffer and hands the rest to its predecessors.
type Layer interface {
	OutputDimensions() int
	BufferSize() int
	Hash() uint32
	Structure() string
	ReadParameters(r io.Reader) error
	WriteParameters(w io.Writer) error
	Propagate(transformed, buffer []float32) []float32
	// Parameters returns the parameter slices of this layer and its
	// predecessors in serialization order.
	Parameters() [][]float32
}

func readFloats(r io.Reader, dst []float32) error {
	return binary.Read(r, binary.LittleEndian, dst)
}

func writeFloats(w io.Writer, src []float32) error {
	return binary.Write(w, binary.LittleEndian, src)
}

func ReadHash(r io.Reader, expected uint32) error {
	var hash uint32
	if err := binary.Read(r, binary.LittleEndian, &hash); err != nil {
		return err
	}
	if hash != expected {
		return errors.Wrapf(ErrHashMismatch, "got %#08x want %#08x", hash, expected)
	}
	return nil
}

func WriteHash(w io.Writer, hash uint32) error {
	return binary.Write(w, binary.LittleEndian, hash)
}
