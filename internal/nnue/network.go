package nnue

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/ianfab/variant-nnue/internal/nnue/features"
	"github.com/ianfab/variant-nnue/internal/nnue/layers"
	"github.com/ianfab/variant-nnue/internal/nnue/trainer"
	"github.com/ianfab/variant-nnue/pkg/common"
)

const Version uint32 = 0x7AF32F16

// OutputScale converts the network output to centipawns.
const OutputScale = 600

const DefaultArchitecture = "halfkp_384x2-32-32"

var (
	ErrUnknownArchitecture = errors.New("nnue: unknown architecture")
	ErrVersionMismatch     = errors.New("nnue: file version mismatch")
	ErrTrailingData        = errors.New("nnue: trailing data after parameters")
)

type Network struct {
	Architecture string
	FeatureSet   *features.FeatureSet
	Transformer  *layers.FeatureTransformer
	Output       layers.Layer
	body         Body
}

// Body builds the layers on top of a feature transformer with the given
// half dimensions.
type Body func(halfDims int) layers.Layer

func Build(architecture string, fs *features.FeatureSet, halfDims int, body Body) *Network {
	return &Network{
		Architecture: architecture,
		FeatureSet:   fs,
		Transformer:  layers.NewFeatureTransformer(fs, halfDims),
		Output:       body(halfDims),
		body:         body,
	}
}

func stackBody(halfDims int) layers.Layer {
	var input = layers.NewInputSlice(2*halfDims, 0)
	var hidden1 = layers.NewClippedReLU(layers.NewAffineTransform(input, 32))
	var hidden2 = layers.NewClippedReLU(layers.NewAffineTransform(hidden1, 32))
	return layers.NewAffineTransform(hidden2, 1)
}

// each half of the transformed features gets its own first layer
func sumBody(halfDims int) layers.Layer {
	var own = layers.NewAffineTransform(layers.NewInputSlice(halfDims, 0), 32)
	var their = layers.NewAffineTransform(layers.NewInputSlice(halfDims, halfDims), 32)
	var hidden1 = layers.NewClippedReLU(layers.NewSum(own, their))
	var hidden2 = layers.NewClippedReLU(layers.NewAffineTransform(hidden1, 32))
	return layers.NewAffineTransform(hidden2, 1)
}

var architectures = map[string]func() *Network{
	"halfkp_384x2-32-32": func() *Network {
		return Build("halfkp_384x2-32-32",
			features.NewFeatureSet(features.NewHalfKP(features.Friend)), 384, stackBody)
	},
	"halfkp-cr_384x2-32-32": func() *Network {
		return Build("halfkp-cr_384x2-32-32",
			features.NewFeatureSet(features.NewHalfKP(features.Friend), features.NewCastlingRight()), 384, stackBody)
	},
	"halfkp_384x2-32-32-sum": func() *Network {
		return Build("halfkp_384x2-32-32-sum",
			features.NewFeatureSet(features.NewHalfKP(features.Friend)), 384, sumBody)
	},
	"k-p_256x2-32-32": func() *Network {
		return Build("k-p_256x2-32-32",
			features.NewFeatureSet(features.NewK(), features.NewHalfKP(features.Friend)), 256, stackBody)
	},
}

func Architectures() []string {
	var result = make([]string, 0, len(architectures))
	for name := range architectures {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func NewNetwork(architecture string) (*Network, error) {
	var build, ok = architectures[architecture]
	if !ok {
		return nil, errors.Wrap(ErrUnknownArchitecture, architecture)
	}
	return build(), nil
}

func (n *Network) Hash() uint32 {
	return n.Transformer.Hash() ^ n.Output.Hash()
}

func (n *Network) Structure() string {
	return "Features=" + n.Transformer.Structure() + ",Network=" + n.Output.Structure()
}

func (n *Network) NewTrainer() trainer.Trainer {
	return trainer.New(n.Output, n.Transformer, trainer.NewArena())
}

func (n *Network) Example(p *common.Position) trainer.Example {
	return trainer.Example{Features: n.FeatureSet.ActiveIndices(p), SideToMove: sideToMove(p)}
}

func sideToMove(p *common.Position) int {
	if p.WhiteMove {
		return common.SideWhite
	}
	return common.SideBlack
}

func (n *Network) parameters() [][]float32 {
	return append(n.Transformer.Parameters(), n.Output.Parameters()...)
}

func (n *Network) CopyFrom(src *Network) {
	var dst, from = n.parameters(), src.parameters()
	for i := range dst {
		copy(dst[i], from[i])
	}
}

func (n *Network) Clone() *Network {
	var clone = Build(n.Architecture, n.FeatureSet, n.Transformer.HalfDimensions(), n.body)
	clone.CopyFrom(n)
	return clone
}

func (n *Network) Write(w io.Writer) error {
	var structure = n.Structure()
	for _, v := range []uint32{Version, n.Hash(), uint32(len(structure))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, structure); err != nil {
		return err
	}
	if err := layers.WriteHash(w, n.Transformer.Hash()); err != nil {
		return err
	}
	if err := n.Transformer.WriteParameters(w); err != nil {
		return err
	}
	if err := layers.WriteHash(w, n.Output.Hash()); err != nil {
		return err
	}
	return n.Output.WriteParameters(w)
}

// Read loads parameters into a scratch copy first, so n is only changed when
// the whole stream is valid.
func (n *Network) Read(r io.Reader) error {
	var scratch = n.Clone()
	if err := scratch.read(r); err != nil {
		return err
	}
	n.CopyFrom(scratch)
	return nil
}

func (n *Network) read(r io.Reader) error {
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return errors.Wrap(err, "read header")
	}
	if header[0] != Version {
		return errors.Wrapf(ErrVersionMismatch, "got %#08x", header[0])
	}
	if header[1] != n.Hash() {
		return errors.Wrapf(layers.ErrHashMismatch, "network %#08x file %#08x", n.Hash(), header[1])
	}
	var structure = make([]byte, header[2])
	if _, err := io.ReadFull(r, structure); err != nil {
		return errors.Wrap(err, "read architecture")
	}
	if err := layers.ReadHash(r, n.Transformer.Hash()); err != nil {
		return errors.Wrap(err, "feature transformer")
	}
	if err := n.Transformer.ReadParameters(r); err != nil {
		return err
	}
	if err := layers.ReadHash(r, n.Output.Hash()); err != nil {
		return errors.Wrap(err, "network")
	}
	if err := n.Output.ReadParameters(r); err != nil {
		return err
	}
	var probe [1]byte
	if _, err := r.Read(probe[:]); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}

// ReadNetwork builds a network of the given architecture and loads it from r.
// It returns no network when loading fails.
func ReadNetwork(r io.Reader, architecture string) (*Network, error) {
	var n, err = NewNetwork(architecture)
	if err != nil {
		return nil, err
	}
	if err := n.read(r); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Network) Load(path string) error {
	var f, err = os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrap(n.Read(bufio.NewReader(f)), path)
}

// Save writes to a temporary file in the target directory and renames it.
func (n *Network) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	var f, err = os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	var w = bufio.NewWriter(f)
	err = n.Write(w)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return errors.Wrap(err, "save network")
	}
	return os.Rename(f.Name(), path)
}
