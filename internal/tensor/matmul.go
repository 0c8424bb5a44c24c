package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul multiplies two rank-2 tensors: [m, k] @ [k, n] → [m, n].
//
// The product is computed by gonum's BLAS-backed mat.Dense.
func MatMul(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		panic(fmt.Sprintf("tensor.MatMul: expected rank-2 operands, got %v and %v", a.shape, b.shape))
	}
	m, k := a.shape[0], a.shape[1]
	k2, n := b.shape[0], b.shape[1]
	if k != k2 {
		panic(fmt.Sprintf("tensor.MatMul: inner dimensions differ: %v @ %v", a.shape, b.shape))
	}
	return newTensor(matmulData(a.data, b.data, m, k, n), Shape{m, n}, Float64)
}

// matmulData multiplies row-major buffers without copying the inputs.
func matmulData(a, b []float64, m, k, n int) []float64 {
	out := make([]float64, m*n)
	if m == 0 || n == 0 {
		return out
	}
	if k == 0 {
		return out
	}
	am := mat.NewDense(m, k, a)
	bm := mat.NewDense(k, n, b)
	cm := mat.NewDense(m, n, out)
	cm.Mul(am, bm)
	return cm.RawMatrix().Data
}

// ToDense copies a rank-2 tensor into a gonum matrix.
func (t *Tensor) ToDense() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor.ToDense: expected rank 2, got %v", t.shape))
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.Data())
}

// FromDense copies a gonum matrix into a rank-2 tensor.
func FromDense(m mat.Matrix) *Tensor {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return newTensor(out, Shape{r, c}, Float64)
}
