package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// DotProductAttention computes softmax(q·kᵀ/√d)·v per head.
//
// q is [q_length, heads·d]; k and v are [kv_length, heads·d]. mask, when
// not nil, broadcasts against [heads, q_length, kv_length] and zero entries
// are excluded from the softmax. The result is [q_length, heads, d].
func DotProductAttention(q, k, v, mask *tensor.Tensor, numHeads int) (*tensor.Tensor, error) {
	for _, t := range []*tensor.Tensor{q, k, v} {
		if t.Rank() < 2 {
			return nil, fmt.Errorf("DotProductAttention: %w: expected [..., length, features], got %v", ErrInputRank, t.Shape())
		}
		if t.Dim(-1)%numHeads != 0 {
			return nil, fmt.Errorf("DotProductAttention: %w: %d features into %d heads", ErrNotDivisible, t.Dim(-1), numHeads)
		}
	}
	qh, kh, vh := splitHeads(q, numHeads), splitHeads(k, numHeads), splitHeads(v, numHeads)
	depth := k.Dim(-1) / numHeads

	logits := tensor.Einsum("...qhd,...khd->...hqk", qh, kh).Scale(1 / math.Sqrt(float64(depth)))
	if mask != nil {
		if _, err := tensor.BroadcastShapes(mask.Shape(), logits.Shape()); err != nil {
			return nil, fmt.Errorf("DotProductAttention: %w: mask %v against logits %v", ErrInputShape, mask.Shape(), logits.Shape())
		}
		logits = tensor.Where(mask, logits, tensor.Scalar(-math.MaxFloat64))
	}
	weights := logits.Softmax(-1)
	return tensor.Einsum("...hqk,...khd->...qhd", weights, vh), nil
}

// splitHeads reshapes [..., heads·d] to [..., heads, d].
func splitHeads(x *tensor.Tensor, heads int) *tensor.Tensor {
	shape := append([]int(x.Shape()[:x.Rank()-1]), heads, -1)
	return x.Reshape(shape...)
}

// mergeHeads reshapes [..., heads, d] to [..., heads·d].
func mergeHeads(x *tensor.Tensor) *tensor.Tensor {
	shape := append([]int(x.Shape()[:x.Rank()-2]), -1)
	return x.Reshape(shape...)
}

// AttentionConfig configures MultiHeadAttention. Zero feature counts
// default to the query feature count.
type AttentionConfig struct {
	KFeatures   int
	VFeatures   int
	OutFeatures int
	Query       LinearConfig
	Key         LinearConfig
	Value       LinearConfig
	Out         LinearConfig
	DropRate    float64
	// DropBroadcast draws one dropout mask over (heads, head_features) and
	// shares it across query positions.
	DropBroadcast bool
}

// MultiHeadAttention projects queries, keys and values, attends per head
// and projects the merged heads.
type MultiHeadAttention struct {
	numHeads int
	key      random.Key
	cfg      AttentionConfig
	lazy     *lazyInit

	query, keyProj, value, outProj *Linear
}

// NewMultiHeadAttention creates an attention layer. qFeatures may be Lazy,
// in which case the query, key and value feature counts are read from the
// last axes of the first call.
func NewMultiHeadAttention(numHeads, qFeatures int, key random.Key, cfg AttentionConfig) (*MultiHeadAttention, error) {
	const name = "MultiHeadAttention"
	if err := checkPositive(name, "num_heads", numHeads); err != nil {
		return nil, err
	}
	if err := checkInFeatures(name, qFeatures); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		v    int
	}{{"k_features", cfg.KFeatures}, {"v_features", cfg.VFeatures}, {"out_features", cfg.OutFeatures}} {
		if f.v < 0 {
			return nil, fmt.Errorf("%s: %w: %s must be positive, got %d", name, ErrInvalidArgument, f.name, f.v)
		}
	}
	if err := checkRate(name, "drop_rate", cfg.DropRate); err != nil {
		return nil, err
	}
	m := &MultiHeadAttention{numHeads: numHeads, key: key, cfg: cfg, lazy: newLazy(qFeatures)}
	if m.lazy == nil {
		if err := m.build(qFeatures, cfg.KFeatures, cfg.VFeatures); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (m *MultiHeadAttention) build(q, k, v int) error {
	k, v = orDefault(k, q), orDefault(v, q)
	out := orDefault(m.cfg.OutFeatures, q)
	for _, f := range []struct {
		name string
		n    int
	}{{"q_features", q}, {"k_features", k}, {"v_features", v}, {"out_features", out}} {
		if f.n%m.numHeads != 0 {
			return fmt.Errorf("MultiHeadAttention: %w: %s=%d %% num_heads=%d != 0", ErrNotDivisible, f.name, f.n, m.numHeads)
		}
	}
	keys := m.key.Split(4)
	var err error
	if m.query, err = NewLinear(q, q, keys[0], m.cfg.Query); err != nil {
		return fmt.Errorf("MultiHeadAttention: q_projection: %w", err)
	}
	if m.keyProj, err = NewLinear(k, q, keys[1], m.cfg.Key); err != nil {
		return fmt.Errorf("MultiHeadAttention: k_projection: %w", err)
	}
	if m.value, err = NewLinear(v, q, keys[2], m.cfg.Value); err != nil {
		return fmt.Errorf("MultiHeadAttention: v_projection: %w", err)
	}
	if m.outProj, err = NewLinear(q, out, keys[3], m.cfg.Out); err != nil {
		return fmt.Errorf("MultiHeadAttention: out_projection: %w", err)
	}
	return nil
}

// Attend computes attention of q [..., q_length, q_features] over
// k [..., kv_length, k_features] and v [..., kv_length, v_features].
// mask may be nil; key drives dropout.
func (m *MultiHeadAttention) Attend(q, k, v, mask *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	for _, t := range []*tensor.Tensor{q, k, v} {
		if t.Rank() < 2 {
			return nil, fmt.Errorf("MultiHeadAttention: %w: expected [..., length, features], got %v", ErrInputRank, t.Shape())
		}
	}
	if err := m.lazy.run(func() error { return m.build(q.Dim(-1), k.Dim(-1), v.Dim(-1)) }); err != nil {
		return nil, err
	}
	qh, err := m.query.Forward(q)
	if err != nil {
		return nil, fmt.Errorf("MultiHeadAttention: query: %w", err)
	}
	kh, err := m.keyProj.Forward(k)
	if err != nil {
		return nil, fmt.Errorf("MultiHeadAttention: key: %w", err)
	}
	vh, err := m.value.Forward(v)
	if err != nil {
		return nil, fmt.Errorf("MultiHeadAttention: value: %w", err)
	}
	att, err := DotProductAttention(qh, kh, vh, mask, m.numHeads)
	if err != nil {
		return nil, fmt.Errorf("MultiHeadAttention: %w", err)
	}
	maskShape := att.Shape()
	if m.cfg.DropBroadcast {
		// [1..., heads, d]
		maskShape = tensor.Shape(channelShape(1, att.Rank()-1))
		maskShape[att.Rank()-2], maskShape[att.Rank()-1] = att.Dim(-2), att.Dim(-1)
	}
	att = dropMask(att, m.cfg.DropRate, key, maskShape)
	return m.outProj.Forward(mergeHeads(att))
}

// ForwardRandom applies self-attention to x without a mask.
func (m *MultiHeadAttention) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	return m.Attend(x, x, x, nil, key)
}

// Parameters returns the four projections, or nothing before lazy
// initialization.
func (m *MultiHeadAttention) Parameters() []*Parameter {
	if !m.lazy.ready() {
		return nil
	}
	var params []*Parameter
	params = append(params, prefixed("q_projection", m.query.Parameters())...)
	params = append(params, prefixed("k_projection", m.keyProj.Parameters())...)
	params = append(params, prefixed("v_projection", m.value.Parameters())...)
	return append(params, prefixed("out_projection", m.outProj.Parameters())...)
}

// NumHeads returns the head count.
func (m *MultiHeadAttention) NumHeads() int { return m.numHeads }
