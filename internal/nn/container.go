package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// apply runs m on x, giving stochastic modules key.
func apply(m Module, x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	switch l := m.(type) {
	case RandomLayer:
		return l.ForwardRandom(x, key)
	case Layer:
		return l.Forward(x)
	default:
		return nil, fmt.Errorf("%w: %T is neither a Layer nor a RandomLayer", ErrInvalidArgument, m)
	}
}

func checkCallable(container string, m Module) error {
	switch m.(type) {
	case Layer, RandomLayer:
		return nil
	case nil:
		return fmt.Errorf("%s: %w: nil layer", container, ErrInvalidArgument)
	default:
		return fmt.Errorf("%s: %w: %T is neither a Layer nor a RandomLayer", container, ErrInvalidArgument, m)
	}
}

// Sequential chains layers. Each stochastic layer receives its own key
// split from the key passed to ForwardRandom.
type Sequential struct {
	layers []Module
}

// NewSequential chains layers, each a Layer or a RandomLayer.
func NewSequential(layers ...Module) (*Sequential, error) {
	for _, l := range layers {
		if err := checkCallable("Sequential", l); err != nil {
			return nil, err
		}
	}
	return &Sequential{layers: layers}, nil
}

// Forward runs deterministic chains. It fails with ErrKeyRequired when a
// layer is stochastic.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	for i, m := range s.layers {
		l, ok := m.(Layer)
		if !ok {
			return nil, fmt.Errorf("Sequential: layer %d (%T): %w", i, m, ErrKeyRequired)
		}
		y, err := l.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("Sequential: layer %d: %w", i, err)
		}
		x = y
	}
	return x, nil
}

// ForwardRandom runs the chain, splitting key into one key per layer.
func (s *Sequential) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	if len(s.layers) == 0 {
		return x, nil
	}
	keys := key.Split(len(s.layers))
	for i, m := range s.layers {
		y, err := apply(m, x, keys[i])
		if err != nil {
			return nil, fmt.Errorf("Sequential: layer %d: %w", i, err)
		}
		x = y
	}
	return x, nil
}

// Parameters returns every layer's parameters under "layers.<i>".
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for i, m := range s.layers {
		params = append(params, prefixed("layers."+strconv.Itoa(i), m.Parameters())...)
	}
	return params
}

// Layers returns the chained layers.
func (s *Sequential) Layers() []Module { return append([]Module(nil), s.layers...) }

// RandomApply applies a layer with probability p and otherwise returns its
// input.
type RandomApply struct {
	layer Module
	p     float64
}

// NewRandomApply wraps layer, a Layer or a RandomLayer.
func NewRandomApply(layer Module, p float64) (*RandomApply, error) {
	if err := checkCallable("RandomApply", layer); err != nil {
		return nil, err
	}
	if err := checkRate("RandomApply", "rate", p); err != nil {
		return nil, err
	}
	return &RandomApply{layer: layer, p: p}, nil
}

// ForwardRandom decides with key whether to apply the layer.
func (r *RandomApply) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	keys := key.Split(2)
	if random.Float64(keys[0]) >= r.p {
		return x, nil
	}
	y, err := apply(r.layer, x, keys[1])
	if err != nil {
		return nil, fmt.Errorf("RandomApply: %w", err)
	}
	return y, nil
}

// Parameters returns the wrapped layer's parameters under "layer".
func (r *RandomApply) Parameters() []*Parameter {
	return prefixed("layer", r.layer.Parameters())
}

// Eval returns m prepared for inference. Dropout, cutout, zoom and
// RandomApply become Identity, attention loses its dropout and containers
// are rewritten recursively. Parameters are shared with m; other modules
// are returned as is.
func Eval(m Module) Module {
	switch l := m.(type) {
	case *Dropout, *DropoutND, *RandomCutout, *RandomZoom, *RandomApply:
		return Identity{}
	case *MultiHeadAttention:
		c := *l
		c.cfg.DropRate = 0
		c.lazy = nil
		if !l.lazy.ready() {
			// Not built yet: keep deferring construction.
			return &MultiHeadAttention{numHeads: l.numHeads, key: l.key, cfg: c.cfg, lazy: &lazyInit{}}
		}
		return &c
	case *Sequential:
		layers := make([]Module, len(l.layers))
		for i, child := range l.layers {
			layers[i] = Eval(child)
		}
		return &Sequential{layers: layers}
	default:
		return m
	}
}
