package layers

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/ianfab/variant-nnue/internal/nnue/features"
)

// FeatureTransformer turns sparse feature indices into two clipped halves,
// side to move first.
type FeatureTransformer struct {
	FeatureSet *features.FeatureSet
	halfDims   int
	Biases     []float32
	// one row of halfDims per input feature
	Weights []float32
}

func NewFeatureTransformer(fs *features.FeatureSet, halfDims int) *FeatureTransformer {
	return &FeatureTransformer{
		FeatureSet: fs,
		halfDims:   halfDims,
		Biases:     make([]float32, halfDims),
		Weights:    make([]float32, halfDims*fs.Dimensions()),
	}
}

func (ft *FeatureTransformer) InputDimensions() int  { return ft.FeatureSet.Dimensions() }
func (ft *FeatureTransformer) HalfDimensions() int   { return ft.halfDims }
func (ft *FeatureTransformer) OutputDimensions() int { return 2 * ft.halfDims }

func (ft *FeatureTransformer) Hash() uint32 {
	return ft.FeatureSet.Hash() ^ uint32(ft.OutputDimensions())
}

func (ft *FeatureTransformer) Structure() string {
	return fmt.Sprintf("FeatureTransformer[%d<-%s[%d]]", ft.OutputDimensions(),
		ft.FeatureSet.Name(), ft.FeatureSet.Dimensions())
}

func (ft *FeatureTransformer) ReadParameters(r io.Reader) error {
	if err := readFloats(r, ft.Biases); err != nil {
		return errors.Wrap(err, "feature transformer biases")
	}
	if err := readFloats(r, ft.Weights); err != nil {
		return errors.Wrap(err, "feature transformer weights")
	}
	return nil
}

func (ft *FeatureTransformer) WriteParameters(w io.Writer) error {
	if err := writeFloats(w, ft.Biases); err != nil {
		return err
	}
	return writeFloats(w, ft.Weights)
}

func (ft *FeatureTransformer) Parameters() [][]float32 {
	return [][]float32{ft.Biases, ft.Weights}
}

// Accumulate writes biases plus the weight rows of active into acc.
func (ft *FeatureTransformer) Accumulate(active []int, acc []float32) {
	copy(acc, ft.Biases)
	for _, index := range active {
		ft.AddFeature(index, acc)
	}
}

func (ft *FeatureTransformer) AddFeature(index int, acc []float32) {
	var row = ft.Weights[index*ft.halfDims : (index+1)*ft.halfDims]
	for i, w := range row {
		acc[i] += w
	}
}

func (ft *FeatureTransformer) RemoveFeature(index int, acc []float32) {
	var row = ft.Weights[index*ft.halfDims : (index+1)*ft.halfDims]
	for i, w := range row {
		acc[i] -= w
	}
}

// Transform clips both accumulators into output, perspective of the side to
// move first.
func (ft *FeatureTransformer) Transform(acc *[2][]float32, sideToMove int, output []float32) {
	var perspectives = [2]int{sideToMove, sideToMove ^ 1}
	for p, perspective := range perspectives {
		var dst = output[p*ft.halfDims : (p+1)*ft.halfDims]
		for i, x := range acc[perspective] {
			dst[i] = Clip(x)
		}
	}
}
