package tensor

import (
	"fmt"
	"math"
)

// Map applies f to every element.
func (t *Tensor) Map(f func(float64) float64) *Tensor {
	out := make([]float64, len(t.data))
	for i, v := range t.data {
		out[i] = f(v)
	}
	return newTensor(out, t.shape.Clone(), Float64)
}

// Zip combines two tensors element by element after broadcasting.
func Zip(a, b *Tensor, f func(x, y float64) float64) *Tensor {
	if a.shape.Equal(b.shape) {
		out := make([]float64, len(a.data))
		for i := range out {
			out[i] = f(a.data[i], b.data[i])
		}
		return newTensor(out, a.shape.Clone(), Float64)
	}

	shape, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		panic(err)
	}
	as := broadcastStrides(a.shape, shape)
	bs := broadcastStrides(b.shape, shape)
	n := shape.NumElements()
	out := make([]float64, n)
	if n == 0 {
		return newTensor(out, shape, Float64)
	}
	idx := make([]int, len(shape))
	ao, bo := 0, 0
	for pos := 0; pos < n; pos++ {
		out[pos] = f(a.data[ao], b.data[bo])
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			ao += as[d]
			bo += bs[d]
			if idx[d] < shape[d] {
				break
			}
			ao -= as[d] * shape[d]
			bo -= bs[d] * shape[d]
			idx[d] = 0
		}
	}
	return newTensor(out, shape, Float64)
}

// Add returns a + b with broadcasting.
func Add(a, b *Tensor) *Tensor { return Zip(a, b, func(x, y float64) float64 { return x + y }) }

// Sub returns a - b with broadcasting.
func Sub(a, b *Tensor) *Tensor { return Zip(a, b, func(x, y float64) float64 { return x - y }) }

// Mul returns a * b with broadcasting.
func Mul(a, b *Tensor) *Tensor { return Zip(a, b, func(x, y float64) float64 { return x * y }) }

// Div returns a / b with broadcasting.
func Div(a, b *Tensor) *Tensor { return Zip(a, b, func(x, y float64) float64 { return x / y }) }

// Maximum returns the element-wise maximum with broadcasting.
func Maximum(a, b *Tensor) *Tensor { return Zip(a, b, math.Max) }

// Minimum returns the element-wise minimum with broadcasting.
func Minimum(a, b *Tensor) *Tensor { return Zip(a, b, math.Min) }

// Where selects a where cond is non-zero and b elsewhere.
func Where(cond, a, b *Tensor) *Tensor {
	shape, err := BroadcastShapes(cond.shape, a.shape, b.shape)
	if err != nil {
		panic(err)
	}
	c := cond.Broadcast(shape...)
	x := a.Broadcast(shape...)
	y := b.Broadcast(shape...)
	out := make([]float64, len(c.data))
	for i, v := range c.data {
		if v != 0 {
			out[i] = x.data[i]
		} else {
			out[i] = y.data[i]
		}
	}
	return newTensor(out, shape, Float64)
}

// Scale multiplies every element by s.
func (t *Tensor) Scale(s float64) *Tensor {
	return t.Map(func(v float64) float64 { return v * s })
}

// AddScalar adds s to every element.
func (t *Tensor) AddScalar(s float64) *Tensor {
	return t.Map(func(v float64) float64 { return v + s })
}

// Neg negates every element.
func (t *Tensor) Neg() *Tensor { return t.Scale(-1) }

// Exp applies e^x element-wise.
func (t *Tensor) Exp() *Tensor { return t.Map(math.Exp) }

// Tanh applies tanh element-wise.
func (t *Tensor) Tanh() *Tensor { return t.Map(math.Tanh) }

// Sigmoid applies the logistic function element-wise.
func (t *Tensor) Sigmoid() *Tensor { return t.Map(Sigmoid) }

// Sigmoid is the logistic function 1 / (1 + e^-x).
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// AllClose reports whether a and b have the same shape and every pair of
// elements differs by at most atol + rtol*|b|.
func AllClose(a, b *Tensor, rtol, atol float64) bool {
	if !a.shape.Equal(b.shape) {
		return false
	}
	for i := range a.data {
		if math.Abs(a.data[i]-b.data[i]) > atol+rtol*math.Abs(b.data[i]) {
			return false
		}
	}
	return true
}

func mustSameShape(op string, a, b *Tensor) {
	if !a.shape.Equal(b.shape) {
		panic(fmt.Sprintf("tensor.%s: shape mismatch %v vs %v", op, a.shape, b.shape))
	}
}
