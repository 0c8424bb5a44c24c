package tensor

import (
	"fmt"
	"math"
	"strings"
)

// ResizeMethod selects the interpolation kernel used by Resize.
type ResizeMethod int

const (
	// Nearest picks the closest input sample.
	Nearest ResizeMethod = iota
	// Linear interpolates with a triangle kernel (bilinear, trilinear).
	Linear
	// Cubic interpolates with the Keys cubic kernel (a = -0.5).
	Cubic
)

// ParseResizeMethod resolves a method name. Accepted names are "nearest",
// "linear" (also "bilinear", "trilinear") and "cubic" (also "bicubic").
func ParseResizeMethod(name string) (ResizeMethod, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return Nearest, nil
	case "linear", "bilinear", "trilinear":
		return Linear, nil
	case "cubic", "bicubic", "tricubic":
		return Cubic, nil
	default:
		return 0, fmt.Errorf("unknown resize method %q", name)
	}
}

func (m ResizeMethod) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	default:
		return "unknown"
	}
}

// Resize resamples every axis whose size differs from shape.
//
// Sample positions use half-pixel centers. With antialias set, downsampling
// widens the kernel by the inverse scale so that every input contributes.
func Resize(x *Tensor, shape []int, method ResizeMethod, antialias bool) *Tensor {
	if len(shape) != x.Rank() {
		panic(fmt.Sprintf("tensor.Resize: target %v does not match rank of %v", shape, x.shape))
	}
	out := x
	for axis, size := range shape {
		if size <= 0 {
			panic(fmt.Sprintf("tensor.Resize: invalid target shape %v", shape))
		}
		if out.shape[axis] == size {
			continue
		}
		w := resizeWeights(out.shape[axis], size, method, antialias)
		out = applyAlongAxis(out, axis, w)
	}
	return out
}

// applyAlongAxis contracts axis of x with w of shape [out, in].
func applyAlongAxis(x *Tensor, axis int, w *Tensor) *Tensor {
	moved := x.MoveAxis(axis, -1)
	lead := moved.Shape()
	in := lead[len(lead)-1]
	flat := moved.Reshape(-1, in)
	res := MatMul(flat, w.Transpose())
	lead[len(lead)-1] = w.shape[0]
	return res.Reshape(lead...).MoveAxis(-1, axis)
}

func resizeWeights(in, out int, method ResizeMethod, antialias bool) *Tensor {
	w := make([]float64, out*in)
	scale := float64(out) / float64(in)

	if method == Nearest {
		for i := 0; i < out; i++ {
			j := min(int(math.Floor((float64(i)+0.5)/scale)), in-1)
			w[i*in+j] = 1
		}
		return newTensor(w, Shape{out, in}, Float64)
	}

	kernel := triangleKernel
	radius := 1.0
	if method == Cubic {
		kernel = keysCubicKernel
		radius = 2.0
	}
	kernelScale := 1.0
	if antialias && scale < 1 {
		kernelScale = scale
	}
	for i := 0; i < out; i++ {
		center := (float64(i)+0.5)/scale - 0.5
		lo := max(int(math.Floor(center-radius/kernelScale)), 0)
		hi := min(int(math.Ceil(center+radius/kernelScale)), in-1)
		total := 0.0
		row := w[i*in : (i+1)*in]
		for j := lo; j <= hi; j++ {
			row[j] = kernel((float64(j) - center) * kernelScale)
			total += row[j]
		}
		if math.Abs(total) > 1e-12 {
			for j := lo; j <= hi; j++ {
				row[j] /= total
			}
		}
	}
	return newTensor(w, Shape{out, in}, Float64)
}

func triangleKernel(x float64) float64 {
	return math.Max(0, 1-math.Abs(x))
}

func keysCubicKernel(x float64) float64 {
	const a = -0.5
	x = math.Abs(x)
	switch {
	case x <= 1:
		return ((a+2)*x-(a+3))*x*x + 1
	case x < 2:
		return ((a*x-5*a)*x+8*a)*x - 4*a
	default:
		return 0
	}
}
