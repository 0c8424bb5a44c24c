package nn

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

const einsumLabels = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	multilinearStrings   sync.Map // degree → einsum string
	generalLinearStrings sync.Map // axes key → einsum string
)

// multilinearEinsum returns the contraction of degree inputs against a
// weight of shape [in_1, ..., in_degree, out].
//
//	degree 1: "...0,01->...1"
//	degree 2: "...0,...1,012->...2"
func multilinearEinsum(degree int) string {
	if s, ok := multilinearStrings.Load(degree); ok {
		return s.(string)
	}
	inputs := make([]string, degree)
	for i := range inputs {
		inputs[i] = "..." + einsumLabels[i:i+1]
	}
	weight := einsumLabels[:degree+1]
	s := fmt.Sprintf("%s,%s->...%c", strings.Join(inputs, ","), weight, einsumLabels[degree])
	multilinearStrings.Store(degree, s)
	return s
}

// generalLinearEinsum returns the contraction of the given negative axes of
// an input against a weight of shape [in_axes..., out], with axes ascending.
//
//	(-1):     "...0,01->...1"
//	(-2):     "...01,02->...12"
//	(-3, -1): "...012,023->...13"
func generalLinearEinsum(axes []int) (string, error) {
	sorted := slices.Clone(axes)
	slices.Sort(sorted)
	key := fmt.Sprint(sorted)
	if s, ok := generalLinearStrings.Load(key); ok {
		return s.(string), nil
	}
	for _, a := range sorted {
		if a >= 0 {
			return "", fmt.Errorf("%w: axes must be negative, got %v", ErrInvalidArgument, axes)
		}
	}
	total := -sorted[0]
	if total >= len(einsumLabels) {
		return "", fmt.Errorf("%w: axis %d out of range", ErrInvalidArgument, sorted[0])
	}
	in := einsumLabels[:total]
	var weight, result strings.Builder
	for _, a := range sorted {
		weight.WriteByte(in[total+a])
	}
	weight.WriteByte(einsumLabels[total])
	for i := 0; i < total; i++ {
		if !strings.ContainsRune(weight.String(), rune(in[i])) {
			result.WriteByte(in[i])
		}
	}
	result.WriteByte(einsumLabels[total])
	s := fmt.Sprintf("...%s,%s->...%s", in, weight.String(), result.String())
	generalLinearStrings.Store(key, s)
	return s, nil
}

// LinearConfig configures the linear family.
type LinearConfig struct {
	WeightInit Init // default "glorot_uniform"
	BiasInit   Init // default "zeros"; NoInit() disables the bias
}

// Multilinear applies y = W(x_1, ..., x_n) + b over the last axis of each
// input.
//
// The weight has shape [in_1, ..., in_n, out]; leading axes of the inputs
// broadcast against each other.
type Multilinear struct {
	inFeatures  []int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewMultilinear creates a multilinear layer with one input per entry of
// inFeatures.
func NewMultilinear(inFeatures []int, outFeatures int, key random.Key, cfg LinearConfig) (*Multilinear, error) {
	if len(inFeatures) == 0 {
		return nil, fmt.Errorf("Multilinear: %w: at least one input is required", ErrInvalidArgument)
	}
	if err := checkPositive("Multilinear", "in_features", inFeatures...); err != nil {
		return nil, err
	}
	if err := checkPositive("Multilinear", "out_features", outFeatures); err != nil {
		return nil, err
	}
	weight, bias, err := linearParams("Multilinear", inFeatures, outFeatures, key, cfg)
	if err != nil {
		return nil, err
	}
	return &Multilinear{
		inFeatures:  slices.Clone(inFeatures),
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
	}, nil
}

func linearParams(layer string, in []int, out int, key random.Key, cfg LinearConfig) (w, b *Parameter, err error) {
	wInit, err := cfg.WeightInit.resolve("glorot_uniform")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", layer, err)
	}
	bInit, err := cfg.BiasInit.resolve("zeros")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", layer, err)
	}
	keys := key.Split(2)
	fan := Fan{In: product(in), Out: out}
	w = newParam("weight", wInit, keys[0], append(slices.Clone(in), out), fan)
	if w == nil {
		return nil, nil, fmt.Errorf("%s: %w: weight initializer cannot be disabled", layer, ErrInvalidArgument)
	}
	b = newParam("bias", bInit, keys[1], tensor.Shape{out}, fan)
	return w, b, nil
}

// ForwardN applies the layer to one input per configured feature count.
func (m *Multilinear) ForwardN(xs ...*tensor.Tensor) (*tensor.Tensor, error) {
	if len(xs) != len(m.inFeatures) {
		return nil, fmt.Errorf("Multilinear: %w: expected %d inputs, got %d", ErrInvalidArgument, len(m.inFeatures), len(xs))
	}
	for i, x := range xs {
		if x.Rank() == 0 {
			return nil, fmt.Errorf("Multilinear: %w: input %d is a scalar", ErrInputRank, i)
		}
		if x.Dim(-1) != m.inFeatures[i] {
			return nil, fmt.Errorf("Multilinear: %w: input %d has %d features, expected %d",
				ErrInputFeatures, i, x.Dim(-1), m.inFeatures[i])
		}
	}
	operands := append(slices.Clone(xs), m.weight.Tensor())
	y := tensor.Einsum(multilinearEinsum(len(xs)), operands...)
	if m.bias != nil {
		y = tensor.Add(y, m.bias.Tensor())
	}
	return y, nil
}

// Parameters returns [weight, bias].
func (m *Multilinear) Parameters() []*Parameter { return collect(m.weight, m.bias) }

// InFeatures returns the feature count of each input.
func (m *Multilinear) InFeatures() []int { return slices.Clone(m.inFeatures) }

// OutFeatures returns the number of output features.
func (m *Multilinear) OutFeatures() int { return m.outFeatures }

// Bilinear applies y = x1ᵀ W x2 + b.
type Bilinear struct {
	*Multilinear
}

// NewBilinear creates a bilinear layer.
func NewBilinear(in1, in2, outFeatures int, key random.Key, cfg LinearConfig) (*Bilinear, error) {
	m, err := NewMultilinear([]int{in1, in2}, outFeatures, key, cfg)
	if err != nil {
		return nil, err
	}
	return &Bilinear{m}, nil
}

// Forward2 applies the layer to a pair of inputs.
func (b *Bilinear) Forward2(x1, x2 *tensor.Tensor) (*tensor.Tensor, error) {
	return b.ForwardN(x1, x2)
}

// Linear applies y = x W + b over the last axis.
//
// The weight has shape [in, out]. Passing Lazy as inFeatures defers
// creating the weight until the first call.
//
// Example:
//
//	layer, _ := nn.NewLinear(5, 6, random.NewKey(0), nn.LinearConfig{})
//	y, _ := layer.Forward(tensor.Ones(1, 5)) // shape [1, 6]
type Linear struct {
	inFeatures  int
	outFeatures int
	cfg         LinearConfig
	key         random.Key
	lazy        *lazyInit
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a linear layer.
func NewLinear(inFeatures, outFeatures int, key random.Key, cfg LinearConfig) (*Linear, error) {
	if err := checkInFeatures("Linear", inFeatures); err != nil {
		return nil, err
	}
	if err := checkPositive("Linear", "out_features", outFeatures); err != nil {
		return nil, err
	}
	l := &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		cfg:         cfg,
		key:         key,
		lazy:        newLazy(inFeatures),
	}
	if l.lazy == nil {
		if err := l.build(inFeatures); err != nil {
			return nil, err
		}
	} else if _, err := cfg.WeightInit.resolve("glorot_uniform"); err != nil {
		return nil, fmt.Errorf("Linear: %w", err)
	}
	return l, nil
}

func (l *Linear) build(in int) error {
	w, b, err := linearParams("Linear", []int{in}, l.outFeatures, l.key, l.cfg)
	if err != nil {
		return err
	}
	l.inFeatures, l.weight, l.bias = in, w, b
	return nil
}

// Forward applies the layer to x of shape [..., in].
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() == 0 {
		return nil, fmt.Errorf("Linear: %w: scalar input", ErrInputRank)
	}
	if err := l.lazy.run(func() error { return l.build(x.Dim(-1)) }); err != nil {
		return nil, err
	}
	if x.Dim(-1) != l.inFeatures {
		return nil, fmt.Errorf("Linear: %w: expected %d features on the last axis, got shape %v",
			ErrInputFeatures, l.inFeatures, x.Shape())
	}
	y := tensor.Einsum(multilinearEinsum(1), x, l.weight.Tensor())
	if l.bias != nil {
		y = tensor.Add(y, l.bias.Tensor())
	}
	return y, nil
}

// Parameters returns [weight, bias], or nothing before lazy initialization.
func (l *Linear) Parameters() []*Parameter {
	if !l.lazy.ready() {
		return nil
	}
	return collect(l.weight, l.bias)
}

// InFeatures returns the input feature count, or Lazy before the first call.
func (l *Linear) InFeatures() int {
	if !l.lazy.ready() {
		return Lazy
	}
	return l.inFeatures
}

// OutFeatures returns the output feature count.
func (l *Linear) OutFeatures() int { return l.outFeatures }

// GeneralLinear contracts several input axes at once:
// y[..., out] = Σ x[..., in_axes...] W[in_axes..., out] + b.
//
// The contracted axes are removed and the output axis is appended last.
type GeneralLinear struct {
	inFeatures  []int
	inAxes      []int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewGeneralLinear creates a layer contracting inAxes, whose sizes are
// inFeatures. Axes may be negative; all must have the same sign.
func NewGeneralLinear(inFeatures, inAxes []int, outFeatures int, key random.Key, cfg LinearConfig) (*GeneralLinear, error) {
	if len(inFeatures) != len(inAxes) {
		return nil, fmt.Errorf("GeneralLinear: %w: %d in_features for %d in_axes",
			ErrLengthMismatch, len(inFeatures), len(inAxes))
	}
	if len(inAxes) == 0 {
		return nil, fmt.Errorf("GeneralLinear: %w: at least one axis is required", ErrInvalidArgument)
	}
	if err := checkPositive("GeneralLinear", "in_features", inFeatures...); err != nil {
		return nil, err
	}
	if err := checkPositive("GeneralLinear", "out_features", outFeatures); err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	for _, a := range inAxes {
		if seen[a] {
			return nil, fmt.Errorf("GeneralLinear: %w: repeated axis %d", ErrInvalidArgument, a)
		}
		if (a < 0) != (inAxes[0] < 0) {
			return nil, fmt.Errorf("GeneralLinear: %w: axes %v mix signs", ErrInvalidArgument, inAxes)
		}
		seen[a] = true
	}
	weight, bias, err := linearParams("GeneralLinear", inFeatures, outFeatures, key, cfg)
	if err != nil {
		return nil, err
	}
	return &GeneralLinear{
		inFeatures:  slices.Clone(inFeatures),
		inAxes:      slices.Clone(inAxes),
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
	}, nil
}

// Forward applies the layer.
func (g *GeneralLinear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	rank := x.Rank()
	axes := make([]int, len(g.inAxes))
	for i, a := range g.inAxes {
		if a >= 0 {
			a -= rank
		}
		if a < -rank {
			return nil, fmt.Errorf("GeneralLinear: %w: axis %d out of range for shape %v", ErrInputRank, g.inAxes[i], x.Shape())
		}
		if x.Dim(a) != g.inFeatures[i] {
			return nil, fmt.Errorf("GeneralLinear: %w: axis %d has size %d, expected %d",
				ErrInputFeatures, g.inAxes[i], x.Dim(a), g.inFeatures[i])
		}
		axes[i] = a
	}
	spec, err := generalLinearEinsum(axes)
	if err != nil {
		return nil, fmt.Errorf("GeneralLinear: %w", err)
	}

	// The einsum expects weight axes in ascending input-axis order.
	order := make([]int, len(axes))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return axes[a] - axes[b] })
	w := g.weight.Tensor().Transpose(append(order, len(order))...)

	y := tensor.Einsum(spec, x, w)
	if g.bias != nil {
		y = tensor.Add(y, g.bias.Tensor())
	}
	return y, nil
}

// Parameters returns [weight, bias].
func (g *GeneralLinear) Parameters() []*Parameter { return collect(g.weight, g.bias) }

// Identity returns its input unchanged.
type Identity struct{ stateless }

// Forward returns x.
func (Identity) Forward(x *tensor.Tensor) (*tensor.Tensor, error) { return x, nil }

// ForwardRandom returns x; the key is unused.
func (Identity) ForwardRandom(x *tensor.Tensor, _ random.Key) (*tensor.Tensor, error) { return x, nil }

// Embedding maps integer indices to rows of a [vocab, dim] table.
type Embedding struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
}

// NewEmbedding creates a table of inFeatures rows with outFeatures columns,
// drawn uniformly from [0, 1).
func NewEmbedding(inFeatures, outFeatures int, key random.Key) (*Embedding, error) {
	if err := checkPositive("Embedding", "in_features", inFeatures); err != nil {
		return nil, err
	}
	if err := checkPositive("Embedding", "out_features", outFeatures); err != nil {
		return nil, err
	}
	return &Embedding{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", random.Uniform(key, 0, 1, inFeatures, outFeatures)),
	}, nil
}

// Forward looks up x, which must be an Int64 tensor. The result has shape
// [x.shape..., out].
func (e *Embedding) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.DType() != tensor.Int64 {
		return nil, fmt.Errorf("Embedding: %w: expected an Int64 tensor, got %s", ErrIndexType, x.DType())
	}
	indices := x.Ints()
	for _, ix := range indices {
		if ix < 0 || ix >= e.inFeatures {
			return nil, fmt.Errorf("Embedding: %w: index %d outside vocabulary of %d", ErrInvalidArgument, ix, e.inFeatures)
		}
	}
	rows := e.weight.Tensor().Take(indices, 0)
	return rows.Reshape(append(x.Shape(), e.outFeatures)...), nil
}

// Parameters returns [weight].
func (e *Embedding) Parameters() []*Parameter { return []*Parameter{e.weight} }
