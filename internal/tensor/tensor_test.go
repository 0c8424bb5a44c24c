package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Broadcast(t *testing.T) {
	tests := []struct {
		a, b, want Shape
		wantErr    bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{}, Shape{2, 2}, Shape{2, 2}, false},
		{Shape{3, 4}, Shape{3, 5}, nil, true},
	}
	for _, tt := range tests {
		got, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrShape)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestReshape_InfersDimension(t *testing.T) {
	x := Arange(12).Reshape(3, -1)
	assert.Equal(t, Shape{3, 4}, x.Shape())
	assert.Equal(t, 7.0, x.At(1, 3))
	assert.Panics(t, func() { x.Reshape(5, -1) })
}

func TestTranspose(t *testing.T) {
	x := Arange(6).Reshape(2, 3)
	y := x.Transpose()
	assert.Equal(t, Shape{3, 2}, y.Shape())
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, y.Data())

	z := Arange(24).Reshape(2, 3, 4).MoveAxis(2, 0)
	assert.Equal(t, Shape{4, 2, 3}, z.Shape())
	assert.Equal(t, 13.0, z.At(1, 1, 0))
}

func TestSliceConcatSplit(t *testing.T) {
	x := Arange(12).Reshape(3, 4)
	s := x.Slice(1, 1, 3)
	assert.Equal(t, []float64{1, 2, 5, 6, 9, 10}, s.Data())

	parts := x.Split(1, 2)
	require.Len(t, parts, 2)
	back := Concat(1, parts...)
	assert.Equal(t, x.Data(), back.Data())

	st := Stack(0, parts[0], parts[1])
	assert.Equal(t, Shape{2, 3, 2}, st.Shape())
}

func TestPad(t *testing.T) {
	x := FromSlice([]float64{1, 2, 3}, 3)
	assert.Equal(t, []float64{0, 1, 2, 3, 0, 0}, x.Pad([][2]int{{1, 2}}, 0).Data())
	assert.Equal(t, []float64{2}, x.Pad([][2]int{{-1, -1}}, 0).Data())
	assert.Equal(t, []float64{-1, 1, 2}, x.Pad([][2]int{{1, -1}}, -1).Data())
}

func TestFlipTakeDilate(t *testing.T) {
	x := Arange(6).Reshape(2, 3)
	assert.Equal(t, []float64{2, 1, 0, 5, 4, 3}, x.Flip(1).Data())
	assert.Equal(t, []float64{3, 4, 5, 3, 4, 5}, x.Take([]int{1, 1}, 0).Data())

	d := FromSlice([]float64{1, 2, 3}, 3).Dilate([]int{2}, 0)
	assert.Equal(t, []float64{1, 0, 2, 0, 3}, d.Data())
}

func TestBroadcastArithmetic(t *testing.T) {
	a := Arange(6).Reshape(2, 3)
	b := FromSlice([]float64{10, 20, 30}, 3)
	assert.Equal(t, []float64{10, 21, 32, 13, 24, 35}, Add(a, b).Data())

	col := FromSlice([]float64{1, 2}, 2, 1)
	assert.Equal(t, []float64{0, 1, 2, 6, 8, 10}, Mul(a, col).Data())
}

func TestReductions(t *testing.T) {
	x := Arange(6).Reshape(2, 3)
	assert.Equal(t, []float64{3, 5, 7}, x.Sum(false, 0).Data())
	assert.Equal(t, []float64{3, 12}, x.Sum(false, 1).Data())
	assert.Equal(t, Shape{2, 1}, x.Max(true, 1).Shape())
	assert.Equal(t, 15.0, x.Sum(false).Item())
	assert.Equal(t, 5, x.ArgMax())
}

func TestSoftmax(t *testing.T) {
	x := FromSlice([]float64{1, 2, 3, 1, 1, 1}, 2, 3)
	s := x.Softmax(-1)
	sums := s.Sum(false, 1).Data()
	assert.InDelta(t, 1.0, sums[0], 1e-12)
	assert.InDelta(t, 1.0, sums[1], 1e-12)
	assert.InDelta(t, 1.0/3, s.At(1, 0), 1e-12)

	ls := x.LogSoftmax(-1)
	assert.InDelta(t, math.Log(s.At(0, 2)), ls.At(0, 2), 1e-12)
}

func TestMatMul(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := FromSlice([]float64{7, 8, 9, 10, 11, 12}, 3, 2)
	c := MatMul(a, b)
	assert.Equal(t, Shape{2, 2}, c.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Data())
}

func TestEinsum(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := FromSlice([]float64{7, 8, 9, 10, 11, 12}, 3, 2)

	t.Run("matmul", func(t *testing.T) {
		assert.Equal(t, MatMul(a, b).Data(), Einsum("ij,jk->ik", a, b).Data())
	})

	t.Run("ellipsis", func(t *testing.T) {
		x := Arange(12).Reshape(2, 2, 3)
		y := Einsum("...0,01->...1", x, b)
		assert.Equal(t, Shape{2, 2, 2}, y.Shape())
		assert.Equal(t, MatMul(x.Reshape(4, 3), b).Data(), y.Data())
	})

	t.Run("transpose and sum", func(t *testing.T) {
		assert.Equal(t, a.Transpose().Data(), Einsum("ij->ji", a).Data())
		assert.Equal(t, []float64{6, 15}, Einsum("ij->i", a).Data())
	})

	t.Run("three operands", func(t *testing.T) {
		x1 := FromSlice([]float64{1, 2}, 2)
		x2 := FromSlice([]float64{3, 4, 5}, 3)
		w := Ones(2, 3, 4)
		y := Einsum("...0,...1,012->...2", x1, x2, w)
		assert.Equal(t, Shape{4}, y.Shape())
		for _, v := range y.Data() {
			assert.InDelta(t, 36.0, v, 1e-12)
		}
	})

	t.Run("batched heads", func(t *testing.T) {
		q := Ones(3, 2, 4)
		k := Ones(5, 2, 4)
		logits := Einsum("...qhd,...khd->...hqk", q, k)
		assert.Equal(t, Shape{2, 3, 5}, logits.Shape())
		assert.InDelta(t, 4.0, logits.At(1, 2, 4), 1e-12)
	})

	t.Run("errors", func(t *testing.T) {
		assert.Panics(t, func() { Einsum("ij,jk", a, b) })
		assert.Panics(t, func() { Einsum("ij,jk->ik", a, Ones(4, 2)) })
	})
}

func TestConv(t *testing.T) {
	t.Run("1d", func(t *testing.T) {
		x := FromSlice([]float64{1, 2, 3, 4, 5}, 1, 5)
		w := FromSlice([]float64{1, 0, -1}, 1, 1, 3)
		y := Conv(x, w, ConvOptions{})
		assert.Equal(t, []float64{-2, -2, -2}, y.Data())
	})

	t.Run("2d padded", func(t *testing.T) {
		y := Conv(Ones(1, 4, 4), Ones(1, 1, 3, 3), ConvOptions{Padding: [][2]int{{1, 1}, {1, 1}}})
		assert.Equal(t, Shape{1, 4, 4}, y.Shape())
		assert.Equal(t, 4.0, y.At(0, 0, 0))
		assert.Equal(t, 6.0, y.At(0, 0, 1))
		assert.Equal(t, 9.0, y.At(0, 1, 1))
	})

	t.Run("strided dilated", func(t *testing.T) {
		x := Arange(9).Reshape(1, 9)
		w := FromSlice([]float64{1, 1}, 1, 1, 2)
		y := Conv(x, w, ConvOptions{Strides: []int{2}, KernelDilation: []int{3}})
		// taps at i and i+3, origins 0, 2, 4
		assert.Equal(t, []float64{3, 7, 11}, y.Data())
	})

	t.Run("input dilation", func(t *testing.T) {
		x := FromSlice([]float64{1, 2}, 1, 2)
		w := Ones(1, 1, 1)
		y := Conv(x, w, ConvOptions{InputDilation: []int{2}})
		assert.Equal(t, []float64{1, 0, 2}, y.Data())
	})
}

func groupedConvFixture() (x, w, b, want *Tensor) {
	x = FromSlice([]float64{
		0.01575461, -0.7551311, 1.6749918, 2.0053358, -0.77692, 0.24808577,
		-0.13778068, 0.33827955, -0.7429483, -0.29843795, 0.7299512, 0.07700217,
	}, 2, 6)
	b = FromSlice([]float64{0.18520592, 1.4190177, -0.40039113, -0.01156754, -0.63538706, -0.14201863}, 6, 1)
	w = FromSlice([]float64{
		1.184718, -1.5479481, -0.30058688,
		0.73833615, 0.88512796, 0.04418173,
		0.6661497, -0.9757734, -1.2271975,
		-2.0575454, 0.7450601, 1.3366221,
		-0.91172457, 0.820197, 0.75473523,
		0.47344425, -0.2698045, 0.08849244,
	}, 6, 1, 3)
	want = FromSlice([]float64{
		0.8692938, -3.9049897, -0.7010245, 3.689024,
		0.8362662, 2.4326584, 4.3963776, 2.2229166,
		-1.7086053, -4.998777, -0.28791457, 1.3891104,
		-0.46908, -1.660033, 2.270397, 1.2492625,
		-0.7930424, -1.7784103, 0.34811908, 0.29352617,
		-0.3642648, 0.19217919, -0.34864813, -0.47344238,
	}, 6, 4)
	return x, w, b, want
}

func TestFFTConv_MatchesReference(t *testing.T) {
	x, w, b, want := groupedConvFixture()
	opts := ConvOptions{Groups: 2}

	direct := Add(Conv(x, w, opts), b)
	assert.InDeltaSlice(t, want.Data(), direct.Data(), 1e-4)

	viaFFT := Add(FFTConv(x, w, opts), b)
	assert.InDeltaSlice(t, want.Data(), viaFFT.Data(), 1e-4)
}

func TestFFTConv_AgreesWithConv2D(t *testing.T) {
	x := Arange(2*5*6).Reshape(2, 5, 6).Scale(0.1)
	w := Arange(3*2*3*2).Reshape(3, 2, 3, 2).AddScalar(-8).Scale(0.05)
	opts := ConvOptions{
		Strides:        []int{2, 1},
		Padding:        [][2]int{{1, 1}, {0, 2}},
		KernelDilation: []int{1, 2},
	}
	direct := Conv(x, w, opts)
	viaFFT := FFTConv(x, w, opts)
	require.Equal(t, direct.Shape(), viaFFT.Shape())
	assert.InDeltaSlice(t, direct.Data(), viaFFT.Data(), 1e-9)
}

func TestFFTN_RoundTrip(t *testing.T) {
	x := Arange(12).Reshape(3, 4)
	back := IFFTN(FFTN(x.Complex())).Real()
	assert.InDeltaSlice(t, x.Data(), back.Data(), 1e-9)

	// DC term of the forward transform is the sum.
	assert.InDelta(t, 66.0, real(FFTN(x.Complex()).data[0]), 1e-9)
}

func TestLocalConv_SharedWeightsMatchConv(t *testing.T) {
	x := Arange(2*5).Reshape(2, 5)
	w := FromSlice([]float64{1, 2, 3, -1, 0, 1}, 1, 2, 3)
	direct := Conv(x, w, ConvOptions{})

	positions := direct.Dim(1)
	shared := w.Reshape(1, 6, 1).Broadcast(1, 6, positions)
	local := LocalConv(x, shared, []int{3}, ConvOptions{})
	assert.InDeltaSlice(t, direct.Data(), local.Data(), 1e-12)
}

func TestReduceWindow(t *testing.T) {
	x := FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 1, 10)
	y := ReduceWindow(x, []int{2}, []int{1}, [][2]int{{0, 1}}, math.Inf(-1), ReduceMax)
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8, 9, 10, 10}, y.Data())
}

func TestAdaptiveReduce(t *testing.T) {
	x := Arange(10).Reshape(1, 10)
	y := AdaptiveReduce(x, []int{3}, ReduceMax)
	// bins [0,4) [3,7) [6,10)
	assert.Equal(t, []float64{3, 6, 9}, y.Data())

	s, e := AdaptiveBounds(1, 10, 3)
	assert.Equal(t, 3, s)
	assert.Equal(t, 7, e)
}

func TestResize(t *testing.T) {
	x := FromSlice([]float64{1, 2}, 1, 2)

	near := Resize(x, []int{1, 4}, Nearest, false)
	assert.Equal(t, []float64{1, 1, 2, 2}, near.Data())

	lin := Resize(x, []int{1, 4}, Linear, true)
	assert.InDeltaSlice(t, []float64{1, 1.25, 1.75, 2}, lin.Data(), 1e-12)

	down := Resize(Arange(4).Reshape(1, 4), []int{1, 2}, Linear, true)
	assert.InDeltaSlice(t, []float64{1.25 / 1.75, 4 / 1.75}, down.Data(), 1e-12)

	_, err := ParseResizeMethod("lanczos9")
	assert.Error(t, err)
}

func TestIsIntegral(t *testing.T) {
	assert.True(t, FromInts([]int{1, 2}, 2).IsIntegral())
	assert.True(t, FromSlice([]float64{1, 2}, 2).IsIntegral())
	assert.False(t, FromSlice([]float64{1.5}, 1).IsIntegral())
}
