package tensor

import (
	"fmt"
	"slices"
	"strings"
)

// ellipsisBase is the first rune used to label dimensions covered by "...".
const ellipsisBase = 0xE000

type labeled struct {
	t      *Tensor
	labels []rune
}

type einsumTerm struct {
	labels   []rune
	ellipsis int // position of "..." in labels, or -1
}

func parseEinsumTerm(s string) (einsumTerm, error) {
	term := einsumTerm{ellipsis: -1}
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "...") {
			if term.ellipsis >= 0 {
				return term, fmt.Errorf("%w: repeated ellipsis in einsum term %q", ErrShape, s)
			}
			term.ellipsis = len(term.labels)
			i += 3
			continue
		}
		r := rune(s[i])
		if r == '.' {
			return term, fmt.Errorf("%w: stray '.' in einsum term %q", ErrShape, s)
		}
		term.labels = append(term.labels, r)
		i++
	}
	return term, nil
}

// expand replaces the ellipsis with labels for the trailing count of total
// ellipsis dimensions.
func (e einsumTerm) expand(count, total int) []rune {
	if e.ellipsis < 0 {
		return slices.Clone(e.labels)
	}
	out := make([]rune, 0, len(e.labels)+count)
	out = append(out, e.labels[:e.ellipsis]...)
	for j := total - count; j < total; j++ {
		out = append(out, rune(ellipsisBase+j))
	}
	return append(out, e.labels[e.ellipsis:]...)
}

// Einsum evaluates an Einstein summation over the operands.
//
// Subscripts are single ASCII characters (letters or digits). A "..." in a
// term stands for the leading broadcast dimensions of that operand. An
// explicit output ("->") is required. Operands are contracted pairwise from
// left to right, and every pairwise contraction runs through MatMul.
//
// Example:
//
//	y := tensor.Einsum("...0,01->...1", x, w) // x @ w over the last axis
func Einsum(spec string, operands ...*Tensor) *Tensor {
	out, err := einsum(spec, operands)
	if err != nil {
		panic(err)
	}
	return out
}

func einsum(spec string, operands []*Tensor) (*Tensor, error) {
	spec = strings.ReplaceAll(spec, " ", "")
	lhs, rhs, ok := strings.Cut(spec, "->")
	if !ok {
		return nil, fmt.Errorf("%w: einsum %q needs an explicit output", ErrShape, spec)
	}
	inputs := strings.Split(lhs, ",")
	if len(inputs) != len(operands) {
		return nil, fmt.Errorf("%w: einsum %q names %d operands, got %d", ErrShape, spec, len(inputs), len(operands))
	}

	terms := make([]einsumTerm, len(inputs))
	counts := make([]int, len(inputs))
	total := 0
	for i, in := range inputs {
		term, err := parseEinsumTerm(in)
		if err != nil {
			return nil, err
		}
		rank := operands[i].Rank()
		switch {
		case term.ellipsis < 0 && len(term.labels) != rank:
			return nil, fmt.Errorf("%w: einsum term %q does not match operand shape %v", ErrShape, in, operands[i].shape)
		case term.ellipsis >= 0 && len(term.labels) > rank:
			return nil, fmt.Errorf("%w: einsum term %q has more labels than operand rank %d", ErrShape, in, rank)
		}
		terms[i] = term
		counts[i] = rank - len(term.labels)
		total = max(total, counts[i])
	}
	outTerm, err := parseEinsumTerm(rhs)
	if err != nil {
		return nil, err
	}
	outLabels := outTerm.expand(total, total)

	sizes := map[rune]int{}
	ops := make([]labeled, len(operands))
	for i, x := range operands {
		labels := terms[i].expand(counts[i], total)
		for d, l := range labels {
			if slices.Index(labels, l) != d {
				return nil, fmt.Errorf("%w: repeated label %q in einsum term %q", ErrShape, l, inputs[i])
			}
			size, seen := sizes[l]
			switch {
			case !seen || size == 1:
				sizes[l] = x.shape[d]
			case x.shape[d] != size && x.shape[d] != 1:
				return nil, fmt.Errorf("%w: label %q has sizes %d and %d", ErrShape, l, size, x.shape[d])
			}
		}
		ops[i] = labeled{t: x, labels: labels}
	}
	for _, l := range outLabels {
		if _, ok := sizes[l]; !ok {
			return nil, fmt.Errorf("%w: output label %q not found in inputs of %q", ErrShape, l, spec)
		}
	}

	for i := range ops {
		ops[i] = ops[i].broadcast(sizes)
	}

	cur := ops[0]
	for k := 1; k < len(ops); k++ {
		need := append(slices.Clone(outLabels), labelsOf(ops[k+1:])...)
		cur = contractPair(cur, ops[k], need)
	}
	cur = cur.sumExcept(outLabels)

	perm := make([]int, len(outLabels))
	for i, l := range outLabels {
		perm[i] = slices.Index(cur.labels, l)
	}
	return cur.t.Transpose(perm...), nil
}

func labelsOf(ops []labeled) []rune {
	var out []rune
	for _, op := range ops {
		out = append(out, op.labels...)
	}
	return out
}

func (l labeled) broadcast(sizes map[rune]int) labeled {
	shape := l.t.Shape()
	changed := false
	for d, lab := range l.labels {
		if shape[d] != sizes[lab] {
			shape[d] = sizes[lab]
			changed = true
		}
	}
	if !changed {
		return l
	}
	return labeled{t: l.t.Broadcast(shape...), labels: l.labels}
}

// sumExcept sums out every label not in keep.
func (l labeled) sumExcept(keep []rune) labeled {
	var axes []int
	var labels []rune
	for d, lab := range l.labels {
		if slices.Contains(keep, lab) {
			labels = append(labels, lab)
		} else {
			axes = append(axes, d)
		}
	}
	if len(axes) == 0 {
		return l
	}
	return labeled{t: l.t.Sum(false, axes...), labels: labels}
}

func (l labeled) permute(order []rune) *Tensor {
	perm := make([]int, len(order))
	for i, lab := range order {
		perm[i] = slices.Index(l.labels, lab)
	}
	return l.t.Transpose(perm...)
}

func contractPair(a, b labeled, need []rune) labeled {
	a = a.sumExcept(append(slices.Clone(need), b.labels...))
	b = b.sumExcept(append(slices.Clone(need), a.labels...))

	var batch, contract, aFree, bFree []rune
	for _, lab := range a.labels {
		inB := slices.Contains(b.labels, lab)
		kept := slices.Contains(need, lab)
		switch {
		case inB && kept:
			batch = append(batch, lab)
		case inB:
			contract = append(contract, lab)
		default:
			aFree = append(aFree, lab)
		}
	}
	for _, lab := range b.labels {
		if !slices.Contains(a.labels, lab) {
			bFree = append(bFree, lab)
		}
	}

	size := func(l labeled, labs []rune) (Shape, int) {
		s := make(Shape, len(labs))
		for i, lab := range labs {
			s[i] = l.t.shape[slices.Index(l.labels, lab)]
		}
		return s, s.NumElements()
	}
	batchShape, nb := size(a, batch)
	aShape, m := size(a, aFree)
	_, k := size(a, contract)
	bShape, n := size(b, bFree)

	at := a.permute(concatRunes(batch, aFree, contract))
	bt := b.permute(concatRunes(batch, contract, bFree))

	out := make([]float64, 0, nb*m*n)
	for i := 0; i < nb; i++ {
		out = append(out, matmulData(at.data[i*m*k:(i+1)*m*k], bt.data[i*k*n:(i+1)*k*n], m, k, n)...)
	}
	shape := append(append(batchShape, aShape...), bShape...)
	return labeled{t: newTensor(out, shape, Float64), labels: concatRunes(batch, aFree, bFree)}
}

func concatRunes(parts ...[]rune) []rune {
	var out []rune
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
