package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

func TestDotProductAttention_Mask(t *testing.T) {
	q := tensor.Ones(1, 2)
	k := tensor.FromSlice([]float64{1, 0, 0, 1}, 2, 2)
	v := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)

	y, err := DotProductAttention(q, k, v, tensor.FromSlice([]float64{1, 0}, 2), 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2}, y.Shape())
	assert.InDeltaSlice(t, []float64{1, 2}, y.Data(), 1e-12)

	_, err = DotProductAttention(q, k, v, tensor.Ones(3), 1)
	assert.ErrorIs(t, err, ErrInputShape)
}

// TestDotProductAttention_UniformWeights tests that equal logits average the
// values.
func TestDotProductAttention_UniformWeights(t *testing.T) {
	v := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
	y, err := DotProductAttention(tensor.Zeros(3, 2), tensor.Ones(2, 2), v, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2, 1}, y.Shape())
	for i := 0; i < 3; i++ {
		assert.InDeltaSlice(t, []float64{2, 3}, y.Slice(0, i, i+1).Data(), 1e-12)
	}

	_, err = DotProductAttention(tensor.Zeros(3, 3), tensor.Ones(2, 3), tensor.Ones(2, 3), nil, 2)
	assert.ErrorIs(t, err, ErrNotDivisible)
	_, err = DotProductAttention(tensor.Zeros(4), tensor.Ones(2, 4), tensor.Ones(2, 4), nil, 2)
	assert.ErrorIs(t, err, ErrInputRank)
}

func TestMultiHeadAttention_Shapes(t *testing.T) {
	att, err := NewMultiHeadAttention(2, 4, random.NewKey(0), AttentionConfig{})
	require.NoError(t, err)
	assert.Equal(t, 2, att.NumHeads())

	y, err := att.ForwardRandom(random.Normal(random.NewKey(1), 3, 4), random.NewKey(2))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4}, y.Shape())

	cross, err := NewMultiHeadAttention(2, 4, random.NewKey(0), AttentionConfig{KFeatures: 6, VFeatures: 2, OutFeatures: 6})
	require.NoError(t, err)
	sd := StateDict(cross)
	assert.Equal(t, tensor.Shape{6, 4}, sd["k_projection.weight"].Shape())
	assert.Equal(t, tensor.Shape{2, 4}, sd["v_projection.weight"].Shape())
	assert.Equal(t, tensor.Shape{4, 6}, sd["out_projection.weight"].Shape())

	y, err = cross.Attend(tensor.Ones(3, 4), tensor.Ones(5, 6), tensor.Ones(5, 2), nil, random.NewKey(0))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 6}, y.Shape())
}

func TestMultiHeadAttention_Errors(t *testing.T) {
	_, err := NewMultiHeadAttention(3, 4, random.NewKey(0), AttentionConfig{})
	assert.ErrorIs(t, err, ErrNotDivisible)

	_, err = NewMultiHeadAttention(0, 4, random.NewKey(0), AttentionConfig{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewMultiHeadAttention(2, 4, random.NewKey(0), AttentionConfig{DropRate: 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	att, err := NewMultiHeadAttention(2, 4, random.NewKey(0), AttentionConfig{})
	require.NoError(t, err)
	_, err = att.ForwardRandom(tensor.Ones(4), random.NewKey(0))
	assert.ErrorIs(t, err, ErrInputRank)
	_, err = att.ForwardRandom(tensor.Ones(3, 5), random.NewKey(0))
	assert.ErrorIs(t, err, ErrInputFeatures)
}

func TestMultiHeadAttention_Lazy(t *testing.T) {
	att, err := NewMultiHeadAttention(2, Lazy, random.NewKey(0), AttentionConfig{})
	require.NoError(t, err)
	assert.Empty(t, att.Parameters())

	_, err = att.ForwardRandom(tensor.Ones(3, 6), random.NewKey(1))
	require.NoError(t, err)
	assert.Len(t, att.Parameters(), 8)
	assert.Equal(t, tensor.Shape{6, 6}, StateDict(att)["q_projection.weight"].Shape())
}

// TestMultiHeadAttention_Dropout tests that a key fixes the dropout mask.
func TestMultiHeadAttention_Dropout(t *testing.T) {
	for _, broadcast := range []bool{false, true} {
		att, err := NewMultiHeadAttention(2, 4, random.NewKey(0), AttentionConfig{DropRate: 0.5, DropBroadcast: broadcast})
		require.NoError(t, err)
		x := random.Normal(random.NewKey(1), 3, 4)

		a, err := att.ForwardRandom(x, random.NewKey(2))
		require.NoError(t, err)
		b, err := att.ForwardRandom(x, random.NewKey(2))
		require.NoError(t, err)
		assert.Equal(t, a.Data(), b.Data())

		eval := Eval(att).(*MultiHeadAttention)
		c, err := eval.ForwardRandom(x, random.NewKey(2))
		require.NoError(t, err)
		d, err := eval.ForwardRandom(x, random.NewKey(3))
		require.NoError(t, err)
		assert.Equal(t, c.Data(), d.Data())
	}
}
