package tensor

import (
	"fmt"
)

// ReduceWindow slides a window over the spatial axes of a channel-first
// tensor and folds each window with r.
//
// x has shape [C, spatial...]; window, strides and pads cover the spatial
// axes. Padded positions take padValue (use -Inf for max pooling).
func ReduceWindow(x *Tensor, window, strides []int, pads [][2]int, padValue float64, r Reducer) *Tensor {
	nd := x.Rank() - 1
	if len(window) != nd || len(strides) != nd || len(pads) != nd {
		panic(fmt.Sprintf("tensor.ReduceWindow: window %v, strides %v and pads %v must cover %d spatial axes",
			window, strides, pads, nd))
	}
	xp := x.Pad(append([][2]int{{0, 0}}, pads...), padValue)

	out := make(Shape, nd)
	for d := 0; d < nd; d++ {
		n := xp.shape[d+1] - window[d]
		if n < 0 {
			panic(fmt.Sprintf("tensor.ReduceWindow: window %d exceeds padded input %d on axis %d", window[d], xp.shape[d+1], d))
		}
		out[d] = n/strides[d] + 1
	}
	winOffs := offsets(Shape(window), func(d, i int) int { return i * xp.strides[d+1] })
	outOffs := offsets(out, func(d, i int) int { return i * strides[d] * xp.strides[d+1] })

	channels := x.shape[0]
	result := make([]float64, 0, channels*len(outOffs))
	buf := make([]float64, len(winOffs))
	for c := 0; c < channels; c++ {
		base := c * xp.strides[0]
		for _, po := range outOffs {
			for k, ko := range winOffs {
				buf[k] = xp.data[base+po+ko]
			}
			result = append(result, r(buf))
		}
	}
	return newTensor(result, append(Shape{channels}, out...), Float64)
}

// AdaptiveBounds returns the [start, end) input range pooled into output
// cell i when in elements are reduced to out cells.
func AdaptiveBounds(i, in, out int) (start, end int) {
	start = i * in / out
	end = ((i+1)*in + out - 1) / out
	return start, end
}

// AdaptiveReduce reduces the spatial axes of a channel-first tensor to the
// given output size, folding each adaptive bin with r.
func AdaptiveReduce(x *Tensor, outSpatial []int, r Reducer) *Tensor {
	nd := x.Rank() - 1
	if len(outSpatial) != nd {
		panic(fmt.Sprintf("tensor.AdaptiveReduce: output size %v does not match %d spatial axes", outSpatial, nd))
	}
	channels := x.shape[0]
	outShape := append(Shape{channels}, outSpatial...)
	result := make([]float64, outShape.NumElements())
	positions := Shape(outSpatial).NumElements()

	spatialAxes := make([]int, nd)
	for d := range spatialAxes {
		spatialAxes[d] = d + 1
	}

	idx := make([]int, nd)
	starts := make([]int, nd+1)
	sizes := make([]int, nd+1)
	sizes[0] = channels
	for p := 0; p < positions; p++ {
		for d := 0; d < nd; d++ {
			s, e := AdaptiveBounds(idx[d], x.shape[d+1], outSpatial[d])
			starts[d+1] = s
			sizes[d+1] = e - s
		}
		pooled := x.Window(starts, sizes).Reduce(r, false, spatialAxes...)
		for c := 0; c < channels; c++ {
			result[c*positions+p] = pooled.data[c]
		}
		for d := nd - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outSpatial[d] {
				break
			}
			idx[d] = 0
		}
	}
	return newTensor(result, outShape, Float64)
}
