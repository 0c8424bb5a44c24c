package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// FNNConfig configures FNN and MLP.
type FNNConfig struct {
	Act        Act  // default "tanh"
	WeightInit Init // default "glorot_uniform"
	BiasInit   Init // default "zeros"
}

// FNN is a stack of Linear layers with an activation between consecutive
// layers and none after the last.
type FNN struct {
	layers []*Linear
	act    Layer
}

// NewFNN creates len(layers)-1 Linear layers mapping layers[i] to
// layers[i+1]. layers[0] may be Lazy.
func NewFNN(layers []int, key random.Key, cfg FNNConfig) (*FNN, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("FNN: %w: need at least two layer sizes, got %v", ErrInvalidArgument, layers)
	}
	act, err := cfg.Act.resolve("tanh")
	if err != nil {
		return nil, fmt.Errorf("FNN: %w", err)
	}
	keys := key.Split(len(layers) - 1)
	f := &FNN{act: act, layers: make([]*Linear, len(layers)-1)}
	lc := LinearConfig{WeightInit: cfg.WeightInit, BiasInit: cfg.BiasInit}
	for i := range f.layers {
		l, err := NewLinear(layers[i], layers[i+1], keys[i], lc)
		if err != nil {
			return nil, fmt.Errorf("FNN: layer %d: %w", i, err)
		}
		f.layers[i] = l
	}
	return f, nil
}

// Forward applies the stack to x of shape [..., layers[0]].
func (f *FNN) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for i, l := range f.layers {
		if x, err = l.Forward(x); err != nil {
			return nil, err
		}
		if i == len(f.layers)-1 {
			break
		}
		if x, err = f.act.Forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Parameters returns the Linear parameters as "layers.<i>.weight" and
// "layers.<i>.bias".
func (f *FNN) Parameters() []*Parameter {
	var out []*Parameter
	for i, l := range f.layers {
		out = append(out, prefixed("layers."+strconv.Itoa(i), l.Parameters())...)
	}
	return out
}

// Layers returns the Linear layers.
func (f *FNN) Layers() []*Linear { return f.layers }

// NewMLP creates an FNN with numHiddenLayers hidden layers of hiddenSize
// features: in → hidden → ... → hidden → out.
func NewMLP(inFeatures, outFeatures, hiddenSize, numHiddenLayers int, key random.Key, cfg FNNConfig) (*FNN, error) {
	if hiddenSize < 1 {
		return nil, fmt.Errorf("MLP: %w: hidden_size must be positive, got %d", ErrInvalidArgument, hiddenSize)
	}
	if numHiddenLayers < 1 {
		return nil, fmt.Errorf("MLP: %w: num_hidden_layers must be positive, got %d", ErrInvalidArgument, numHiddenLayers)
	}
	layers := make([]int, 0, numHiddenLayers+2)
	layers = append(layers, inFeatures)
	for range numHiddenLayers {
		layers = append(layers, hiddenSize)
	}
	layers = append(layers, outFeatures)
	return NewFNN(layers, key, cfg)
}
