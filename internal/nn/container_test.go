package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

func TestSequential(t *testing.T) {
	first, err := NewLinear(3, 4, random.NewKey(0), LinearConfig{})
	require.NoError(t, err)
	second, err := NewLinear(4, 2, random.NewKey(1), LinearConfig{})
	require.NoError(t, err)
	seq, err := NewSequential(first, ReLU(), second)
	require.NoError(t, err)

	y, err := seq.Forward(tensor.Ones(3))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, y.Shape())

	z, err := seq.ForwardRandom(tensor.Ones(3), random.NewKey(9))
	require.NoError(t, err)
	assert.Equal(t, y.Data(), z.Data())

	var names []string
	for _, p := range seq.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"layers.0.weight", "layers.0.bias", "layers.2.weight", "layers.2.bias"}, names)
	assert.Len(t, seq.Layers(), 3)
}

func TestSequential_KeyRequired(t *testing.T) {
	drop, err := NewDropout(0.5)
	require.NoError(t, err)
	seq, err := NewSequential(ReLU(), drop)
	require.NoError(t, err)

	_, err = seq.Forward(tensor.Ones(4))
	assert.ErrorIs(t, err, ErrKeyRequired)

	y, err := seq.ForwardRandom(tensor.Ones(4), random.NewKey(0))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4}, y.Shape())

	_, err = NewSequential(ReLU(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSequential_LayerError(t *testing.T) {
	l, err := NewLinear(3, 4, random.NewKey(0), LinearConfig{})
	require.NoError(t, err)
	seq, err := NewSequential(l)
	require.NoError(t, err)

	_, err = seq.Forward(tensor.Ones(5))
	assert.ErrorIs(t, err, ErrInputFeatures)
	assert.Contains(t, err.Error(), "layer 0")
}

func TestRandomApply(t *testing.T) {
	x := tensor.FromSlice([]float64{-1, 2}, 2)

	always, err := NewRandomApply(ReLU(), 1)
	require.NoError(t, err)
	never, err := NewRandomApply(ReLU(), 0)
	require.NoError(t, err)

	for seed := uint64(0); seed < 10; seed++ {
		y, err := always.ForwardRandom(x, random.NewKey(seed))
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 2}, y.Data())

		y, err = never.ForwardRandom(x, random.NewKey(seed))
		require.NoError(t, err)
		assert.Equal(t, []float64{-1, 2}, y.Data())
	}

	_, err = NewRandomApply(ReLU(), 1.5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// TestEval tests that stochastic layers become identities while parameters
// stay shared.
func TestEval(t *testing.T) {
	l, err := NewLinear(3, 3, random.NewKey(0), LinearConfig{})
	require.NoError(t, err)
	drop, err := NewDropout(0.9)
	require.NoError(t, err)
	apply, err := NewRandomApply(ReLU(), 0.5)
	require.NoError(t, err)
	seq, err := NewSequential(l, drop, apply)
	require.NoError(t, err)

	eval, ok := Eval(seq).(*Sequential)
	require.True(t, ok)
	assert.IsType(t, Identity{}, eval.Layers()[1])
	assert.IsType(t, Identity{}, eval.Layers()[2])
	assert.Same(t, l, eval.Layers()[0])

	x := random.Normal(random.NewKey(1), 3)
	want, err := l.Forward(x)
	require.NoError(t, err)
	got, err := eval.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())

	assert.Same(t, l, Eval(l))
}

func TestEval_LazyAttention(t *testing.T) {
	att, err := NewMultiHeadAttention(2, Lazy, random.NewKey(0), AttentionConfig{DropRate: 0.5})
	require.NoError(t, err)

	eval := Eval(att).(*MultiHeadAttention)
	assert.Empty(t, eval.Parameters())
	y, err := eval.ForwardRandom(tensor.Ones(3, 4), random.NewKey(1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4}, y.Shape())
	assert.Len(t, eval.Parameters(), 8)
}
