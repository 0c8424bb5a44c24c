package tensor

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/born-ml/strata/internal/parallel"
)

// ComplexTensor is a dense row-major array of complex128 values, used for
// spectra.
type ComplexTensor struct {
	shape Shape
	data  []complex128
}

// NewComplex pairs real and imaginary parts of equal shape.
func NewComplex(re, im *Tensor) *ComplexTensor {
	mustSameShape("NewComplex", re, im)
	data := make([]complex128, len(re.data))
	for i := range data {
		data[i] = complex(re.data[i], im.data[i])
	}
	return &ComplexTensor{shape: re.shape.Clone(), data: data}
}

// Complex converts a real tensor into a complex one.
func (t *Tensor) Complex() *ComplexTensor {
	data := make([]complex128, len(t.data))
	for i, v := range t.data {
		data[i] = complex(v, 0)
	}
	return &ComplexTensor{shape: t.shape.Clone(), data: data}
}

// ComplexFromValues wraps data (copied) with the given shape.
func ComplexFromValues(data []complex128, shape ...int) *ComplexTensor {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.ComplexFromValues: %v", err))
	}
	if s.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor.ComplexFromValues: %d values do not fill shape %v", len(data), s))
	}
	return &ComplexTensor{shape: s, data: append([]complex128(nil), data...)}
}

// Shape returns a copy of the dimensions.
func (c *ComplexTensor) Shape() Shape { return c.shape.Clone() }

// Values returns a copy of the complex values in row-major order.
func (c *ComplexTensor) Values() []complex128 { return append([]complex128(nil), c.data...) }

// Real returns the real parts.
func (c *ComplexTensor) Real() *Tensor {
	out := make([]float64, len(c.data))
	for i, v := range c.data {
		out[i] = real(v)
	}
	return newTensor(out, c.shape.Clone(), Float64)
}

// Imag returns the imaginary parts.
func (c *ComplexTensor) Imag() *Tensor {
	out := make([]float64, len(c.data))
	for i, v := range c.data {
		out[i] = imag(v)
	}
	return newTensor(out, c.shape.Clone(), Float64)
}

// FFTN computes the unnormalized discrete Fourier transform over axes.
// With no axes every axis is transformed.
func FFTN(c *ComplexTensor, axes ...int) *ComplexTensor {
	data := append([]complex128(nil), c.data...)
	fftInPlace(data, c.shape, axesOrAll(axes, len(c.shape)), false)
	return &ComplexTensor{shape: c.shape.Clone(), data: data}
}

// IFFTN computes the inverse transform over axes, scaled by 1/n.
func IFFTN(c *ComplexTensor, axes ...int) *ComplexTensor {
	data := append([]complex128(nil), c.data...)
	fftInPlace(data, c.shape, axesOrAll(axes, len(c.shape)), true)
	return &ComplexTensor{shape: c.shape.Clone(), data: data}
}

func axesOrAll(axes []int, rank int) []int {
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = i
		}
		return axes
	}
	out := make([]int, len(axes))
	for i, a := range axes {
		out[i] = mustAxis(a, rank)
	}
	return out
}

// fftInPlace transforms every line along each axis. The inverse is computed
// as conj(FFT(conj(X)))/n.
func fftInPlace(data []complex128, shape Shape, axes []int, inverse bool) {
	strides := shape.ComputeStrides()
	for _, axis := range axes {
		n := shape[axis]
		if n <= 1 {
			continue
		}
		plan := fourier.NewCmplxFFT(n)
		stride := strides[axis]
		outer := Shape(shape[:axis]).NumElements()
		line := make([]complex128, n)
		coeff := make([]complex128, n)
		scale := complex(1/float64(n), 0)
		for o := 0; o < outer; o++ {
			for i := 0; i < stride; i++ {
				base := o*n*stride + i
				for j := 0; j < n; j++ {
					v := data[base+j*stride]
					if inverse {
						v = cmplx.Conj(v)
					}
					line[j] = v
				}
				plan.Coefficients(coeff, line)
				for j := 0; j < n; j++ {
					v := coeff[j]
					if inverse {
						v = cmplx.Conj(v) * scale
					}
					data[base+j*stride] = v
				}
			}
		}
	}
}

// FFTConv computes the same cross-correlation as Conv through the
// convolution theorem: the padded input and the zero-extended kernel are
// transformed, multiplied with the kernel conjugated, and transformed back.
func FFTConv(x, w *Tensor, opts ConvOptions) *Tensor {
	nd := w.Rank() - 2
	if nd < 1 {
		panic(fmt.Sprintf("tensor.FFTConv: kernel must have rank >= 3, got %v", w.shape))
	}
	if x.Rank() != nd+1 {
		panic(fmt.Sprintf("tensor.FFTConv: expected input rank %d, got shape %v", nd+1, x.shape))
	}
	o := opts.withDefaults(nd)
	outC, cin := w.shape[0], w.shape[1]
	checkGroups("FFTConv", x.shape[0], outC, cin, o.Groups)

	xp := x.Dilate(append([]int{1}, o.InputDilation...), 0).Pad(append([][2]int{{0, 0}}, o.Padding...), 0)
	wd := w.Dilate(append([]int{1, 1}, o.KernelDilation...), 0)

	spatial := xp.shape[1:].Clone()
	kernelPads := [][2]int{{0, 0}, {0, 0}}
	out := make(Shape, nd)
	for d := 0; d < nd; d++ {
		extent := wd.shape[d+2]
		if extent > spatial[d] {
			panic(fmt.Sprintf("tensor.FFTConv: kernel extent %d exceeds padded input %d on axis %d", extent, spatial[d], d))
		}
		kernelPads = append(kernelPads, [2]int{0, spatial[d] - extent})
		out[d] = (spatial[d]-extent)/o.Strides[d] + 1
	}
	wp := wd.Pad(kernelPads, 0)

	xAxes := make([]int, nd)
	wAxes := make([]int, nd)
	for d := 0; d < nd; d++ {
		xAxes[d] = d + 1
		wAxes[d] = d + 2
	}
	xf := FFTN(xp.Complex(), xAxes...)
	wf := FFTN(wp.Complex(), wAxes...)

	m := spatial.NumElements()
	spatialStrides := spatial.ComputeStrides()
	sampleOffs := offsets(out, func(d, i int) int {
		return i * o.Strides[d] * spatialStrides[d]
	})
	positions := len(sampleOffs)
	perGroup := outC / o.Groups
	result := make([]float64, outC*positions)

	parallel.For(outC, outC*cin*m*8, func(oc int) {
		g := oc / perGroup
		acc := make([]complex128, m)
		for c := 0; c < cin; c++ {
			xs := xf.data[(g*cin+c)*m : (g*cin+c+1)*m]
			ws := wf.data[(oc*cin+c)*m : (oc*cin+c+1)*m]
			for i := range acc {
				acc[i] += xs[i] * cmplx.Conj(ws[i])
			}
		}
		fftInPlace(acc, spatial, axesOrAll(nil, nd), true)
		dst := result[oc*positions : (oc+1)*positions]
		for p, off := range sampleOffs {
			dst[p] = real(acc[off])
		}
	})

	shape := append(Shape{outC}, out...)
	return newTensor(result, shape, Float64)
}
