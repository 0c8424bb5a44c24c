package nn

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

const defaultEps = 1e-5

// NormConfig configures the normalization layers. The zero value gives
// eps 1e-5 and an affine transform with unit scale and zero shift.
type NormConfig struct {
	Eps        float64
	WeightInit Init // default "ones"; NoInit() disables the scale
	BiasInit   Init // default "zeros"; NoInit() disables the shift
}

func (c NormConfig) eps() float64 {
	if c.Eps == 0 {
		return defaultEps
	}
	return c.Eps
}

func (c NormConfig) validate(layer string) (weight, bias Initializer, err error) {
	if c.Eps < 0 {
		return nil, nil, fmt.Errorf("%s: %w: eps must be non-negative, got %g", layer, ErrInvalidArgument, c.Eps)
	}
	if weight, err = c.WeightInit.resolve("ones"); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", layer, err)
	}
	if bias, err = c.BiasInit.resolve("zeros"); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", layer, err)
	}
	return weight, bias, nil
}

// standardize rescales each group of values to zero mean and unit variance.
func standardize(eps float64) func(dst, src []float64) {
	return func(dst, src []float64) {
		mean, variance := stat.PopMeanVariance(src, nil)
		copy(dst, src)
		floats.AddConst(-mean, dst)
		floats.Scale(1/math.Sqrt(variance+eps), dst)
	}
}

// affine scales and shifts y; nil tensors are skipped.
func affine(y, weight, bias *tensor.Tensor) *tensor.Tensor {
	if weight != nil {
		y = tensor.Mul(y, weight)
	}
	if bias != nil {
		y = tensor.Add(y, bias)
	}
	return y
}

// LayerNorm normalizes over the trailing axes given by normalizedShape and
// applies an elementwise affine transform of that shape.
type LayerNorm struct {
	shape  []int
	eps    float64
	weight *Parameter
	bias   *Parameter
}

// NewLayerNorm creates a layer normalizing the trailing normalizedShape axes.
func NewLayerNorm(normalizedShape []int, key random.Key, cfg NormConfig) (*LayerNorm, error) {
	if len(normalizedShape) == 0 {
		return nil, fmt.Errorf("LayerNorm: %w: normalized_shape is empty", ErrInvalidArgument)
	}
	if err := checkPositive("LayerNorm", "normalized_shape", normalizedShape...); err != nil {
		return nil, err
	}
	wInit, bInit, err := cfg.validate("LayerNorm")
	if err != nil {
		return nil, err
	}
	n := product(normalizedShape)
	keys := key.Split(2)
	return &LayerNorm{
		shape:  slices.Clone(normalizedShape),
		eps:    cfg.eps(),
		weight: newParam("weight", wInit, keys[0], normalizedShape, Fan{In: n, Out: n}),
		bias:   newParam("bias", bInit, keys[1], normalizedShape, Fan{In: n, Out: n}),
	}, nil
}

// Forward normalizes x, whose trailing axes must equal the normalized shape.
func (l *LayerNorm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	k := len(l.shape)
	if x.Rank() < k || !slices.Equal([]int(x.Shape()[x.Rank()-k:]), l.shape) {
		return nil, fmt.Errorf("LayerNorm: %w: trailing axes of %v must be %v", ErrInputShape, x.Shape(), l.shape)
	}
	axes := make([]int, k)
	for i := range axes {
		axes[i] = x.Rank() - k + i
	}
	return affine(x.MapGroups(standardize(l.eps), axes...), value(l.weight), value(l.bias)), nil
}

// Parameters returns [weight, bias].
func (l *LayerNorm) Parameters() []*Parameter { return collect(l.weight, l.bias) }

// RMSNorm rescales the trailing axis of x by its root mean square and
// applies a per-feature scale. Unlike LayerNorm it subtracts no mean and has
// no shift; cfg.BiasInit is ignored.
type RMSNorm struct {
	features int
	eps      float64
	weight   *Parameter
}

// NewRMSNorm creates a layer normalizing a trailing axis of size features.
func NewRMSNorm(features int, key random.Key, cfg NormConfig) (*RMSNorm, error) {
	if err := checkPositive("RMSNorm", "features", features); err != nil {
		return nil, err
	}
	wInit, _, err := cfg.validate("RMSNorm")
	if err != nil {
		return nil, err
	}
	return &RMSNorm{
		features: features,
		eps:      cfg.eps(),
		weight:   newParam("weight", wInit, key, []int{features}, Fan{In: features, Out: features}),
	}, nil
}

// Forward computes x / sqrt(mean(x²) + eps) · weight over the last axis.
func (r *RMSNorm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() == 0 || x.Dim(x.Rank()-1) != r.features {
		return nil, fmt.Errorf("RMSNorm: %w: expected trailing axis %d, got shape %v", ErrInputShape, r.features, x.Shape())
	}
	eps := r.eps
	y := x.MapGroups(func(dst, src []float64) {
		ms := floats.Dot(src, src) / float64(len(src))
		copy(dst, src)
		floats.Scale(1/math.Sqrt(ms+eps), dst)
	}, x.Rank()-1)
	return affine(y, value(r.weight), nil), nil
}

// Parameters returns [weight].
func (r *RMSNorm) Parameters() []*Parameter { return collect(r.weight) }

// GroupNorm splits the features of channel-first input into groups and
// normalizes each group over its features and spatial axes. The affine
// transform is per feature.
type GroupNorm struct {
	name       string
	inFeatures int
	groups     int
	eps        float64
	wInit      Initializer
	bInit      Initializer
	key        random.Key
	lazy       *lazyInit
	weight     *Parameter
	bias       *Parameter
}

func newGroupNorm(name string, inFeatures, groups int, key random.Key, cfg NormConfig) (*GroupNorm, error) {
	if err := checkInFeatures(name, inFeatures); err != nil {
		return nil, err
	}
	if groups != 0 {
		if err := checkPositive(name, "groups", groups); err != nil {
			return nil, err
		}
	}
	wInit, bInit, err := cfg.validate(name)
	if err != nil {
		return nil, err
	}
	g := &GroupNorm{
		name:   name,
		groups: groups,
		eps:    cfg.eps(),
		wInit:  wInit,
		bInit:  bInit,
		key:    key,
		lazy:   newLazy(inFeatures),
	}
	if g.lazy == nil {
		if err := g.build(inFeatures); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *GroupNorm) build(in int) error {
	groups := g.groups
	if groups == 0 {
		groups = in
	}
	if in%groups != 0 {
		return fmt.Errorf("%s: %w: %d features into %d groups", g.name, ErrNotDivisible, in, groups)
	}
	keys := g.key.Split(2)
	g.inFeatures, g.groups = in, groups
	g.weight = newParam("weight", g.wInit, keys[0], tensor.Shape{in}, Fan{In: in, Out: in})
	g.bias = newParam("bias", g.bInit, keys[1], tensor.Shape{in}, Fan{In: in, Out: in})
	return nil
}

// NewGroupNorm creates a group normalization over inFeatures features.
func NewGroupNorm(inFeatures, groups int, key random.Key, cfg NormConfig) (*GroupNorm, error) {
	if groups == 0 {
		return nil, fmt.Errorf("GroupNorm: %w: groups must be positive, got 0", ErrInvalidArgument)
	}
	return newGroupNorm("GroupNorm", inFeatures, groups, key, cfg)
}

// NewInstanceNorm normalizes every feature on its own: a GroupNorm with one
// group per feature.
func NewInstanceNorm(inFeatures int, key random.Key, cfg NormConfig) (*GroupNorm, error) {
	return newGroupNorm("InstanceNorm", inFeatures, 0, key, cfg)
}

// Forward normalizes x of shape [features, spatial...].
func (g *GroupNorm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() < 1 {
		return nil, fmt.Errorf("%s: %w: expected [features, ...], got a scalar", g.name, ErrInputRank)
	}
	if err := g.lazy.run(func() error { return g.build(x.Dim(0)) }); err != nil {
		return nil, err
	}
	if err := checkFeatures(g.name, x, g.inFeatures); err != nil {
		return nil, err
	}
	shape := x.Shape()
	y := x.Reshape(g.groups, -1).MapGroups(standardize(g.eps), 1).Reshape(shape...)
	cs := channelShape(g.inFeatures, x.Rank()-1)
	var w, b *tensor.Tensor
	if g.weight != nil {
		w = g.weight.Tensor().Reshape(cs...)
	}
	if g.bias != nil {
		b = g.bias.Tensor().Reshape(cs...)
	}
	return affine(y, w, b), nil
}

// Parameters returns [weight, bias], or nothing before lazy initialization.
func (g *GroupNorm) Parameters() []*Parameter {
	if !g.lazy.ready() {
		return nil
	}
	return collect(g.weight, g.bias)
}

// BatchNormState holds the running statistics of a BatchNorm.
type BatchNormState struct {
	RunningMean *tensor.Tensor
	RunningVar  *tensor.Tensor
}

// BatchNormConfig configures BatchNorm. Momentum defaults to 0.99 and Axis
// (the feature axis) to 0.
type BatchNormConfig struct {
	NormConfig
	Momentum float64
	Axis     int
}

// BatchNorm normalizes each feature with statistics gathered over every
// other axis of the input, so a batch is normalized by stacking samples on
// a non-feature axis. Training updates the running statistics carried in
// BatchNormState; evaluation uses them.
type BatchNorm struct {
	features int
	axis     int
	momentum float64
	eps      float64
	weight   *Parameter
	bias     *Parameter
}

// NewBatchNorm creates a batch normalization over features features.
func NewBatchNorm(features int, key random.Key, cfg BatchNormConfig) (*BatchNorm, error) {
	if err := checkPositive("BatchNorm", "in_features", features); err != nil {
		return nil, err
	}
	momentum := cfg.Momentum
	if momentum == 0 {
		momentum = 0.99
	}
	if err := checkRate("BatchNorm", "momentum", momentum); err != nil {
		return nil, err
	}
	wInit, bInit, err := cfg.validate("BatchNorm")
	if err != nil {
		return nil, err
	}
	keys := key.Split(2)
	fan := Fan{In: features, Out: features}
	return &BatchNorm{
		features: features,
		axis:     cfg.Axis,
		momentum: momentum,
		eps:      cfg.eps(),
		weight:   newParam("weight", wInit, keys[0], tensor.Shape{features}, fan),
		bias:     newParam("bias", bInit, keys[1], tensor.Shape{features}, fan),
	}, nil
}

// InitState returns zero running means and unit running variances.
func (b *BatchNorm) InitState() BatchNormState {
	return BatchNormState{RunningMean: tensor.Zeros(b.features), RunningVar: tensor.Ones(b.features)}
}

func (b *BatchNorm) prepare(x *tensor.Tensor, state BatchNormState) (int, error) {
	axis, err := tensor.NormalizeAxis(b.axis, x.Rank())
	if err != nil {
		return 0, fmt.Errorf("BatchNorm: %w: %v", ErrInputRank, err)
	}
	if x.Dim(axis) != b.features {
		return 0, fmt.Errorf("BatchNorm: %w: axis %d has %d features, expected %d",
			ErrInputFeatures, axis, x.Dim(axis), b.features)
	}
	if state.RunningMean == nil || state.RunningVar == nil ||
		!state.RunningMean.Shape().Equal(tensor.Shape{b.features}) ||
		!state.RunningVar.Shape().Equal(tensor.Shape{b.features}) {
		return 0, fmt.Errorf("BatchNorm: %w: running statistics must have shape [%d]", ErrStateType, b.features)
	}
	return axis, nil
}

// featureShape returns the shape that broadcasts a [features] vector along
// axis of a rank-dimensional input.
func featureShape(features, axis, rank int) []int {
	s := make([]int, rank)
	for i := range s {
		s[i] = 1
	}
	s[axis] = features
	return s
}

func (b *BatchNorm) apply(x, mean, variance *tensor.Tensor, axis int) *tensor.Tensor {
	bs := featureShape(b.features, axis, x.Rank())
	inv := variance.AddScalar(b.eps).Map(func(v float64) float64 { return 1 / math.Sqrt(v) })
	y := tensor.Mul(tensor.Sub(x, mean.Reshape(bs...)), inv.Reshape(bs...))
	var w, sh *tensor.Tensor
	if b.weight != nil {
		w = b.weight.Tensor().Reshape(bs...)
	}
	if b.bias != nil {
		sh = b.bias.Tensor().Reshape(bs...)
	}
	return affine(y, w, sh)
}

// Train normalizes with the statistics of x and returns the updated state:
// running = momentum·running + (1-momentum)·batch.
func (b *BatchNorm) Train(x *tensor.Tensor, state BatchNormState) (*tensor.Tensor, BatchNormState, error) {
	axis, err := b.prepare(x, state)
	if err != nil {
		return nil, state, err
	}
	others := make([]int, 0, x.Rank()-1)
	for i := 0; i < x.Rank(); i++ {
		if i != axis {
			others = append(others, i)
		}
	}
	if len(others) == 0 {
		return nil, state, fmt.Errorf("BatchNorm: %w: no axes to gather statistics over", ErrInputRank)
	}
	mean := x.Mean(false, others...)
	variance := x.Variance(false, others...)
	next := BatchNormState{
		RunningMean: tensor.Add(state.RunningMean.Scale(b.momentum), mean.Scale(1-b.momentum)),
		RunningVar:  tensor.Add(state.RunningVar.Scale(b.momentum), variance.Scale(1-b.momentum)),
	}
	return b.apply(x, mean, variance, axis), next, nil
}

// Evaluate normalizes with the running statistics in state.
func (b *BatchNorm) Evaluate(x *tensor.Tensor, state BatchNormState) (*tensor.Tensor, error) {
	axis, err := b.prepare(x, state)
	if err != nil {
		return nil, err
	}
	return b.apply(x, state.RunningMean, state.RunningVar, axis), nil
}

// Parameters returns [weight, bias].
func (b *BatchNorm) Parameters() []*Parameter { return collect(b.weight, b.bias) }

// WeightNorm returns w divided by its L2 norm over every axis except axis.
func WeightNorm(w *tensor.Tensor, axis int) *tensor.Tensor {
	a, err := tensor.NormalizeAxis(axis, w.Rank())
	if err != nil {
		panic(fmt.Sprintf("nn.WeightNorm: %v", err))
	}
	others := make([]int, 0, w.Rank())
	for i := 0; i < w.Rank(); i++ {
		if i != a {
			others = append(others, i)
		}
	}
	if len(others) == 0 {
		return w.Map(func(v float64) float64 { return v / (math.Abs(v) + 1e-12) })
	}
	return w.MapGroups(func(dst, src []float64) {
		copy(dst, src)
		floats.Scale(1/(floats.Norm(src, 2)+1e-12), dst)
	}, others...)
}

// ApplyWeightNorm replaces every parameter of m named "weight" (or ending in
// ".weight") with its weight-normalized value along axis, and returns the
// number of parameters changed.
func ApplyWeightNorm(m Module, axis int) int {
	n := 0
	for _, p := range m.Parameters() {
		if p.Name() != "weight" && !strings.HasSuffix(p.Name(), ".weight") {
			continue
		}
		p.slot.value = WeightNorm(p.Tensor(), axis)
		n++
	}
	return n
}
