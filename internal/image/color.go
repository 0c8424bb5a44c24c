// Package image implements color-space conversions, blurs and histogram
// equalization for channel-first 2D images [C, H, W].
//
// The layer types satisfy nn.Layer and carry no learnable parameters.
package image

import (
	"fmt"
	"math"

	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/tensor"
)

// eps guards the hue and saturation divisions against black pixels.
var eps = math.Nextafter(1, 2) - 1

// DefaultGrayWeights are the luma weights used by RGBToGrayscale when none
// are given: (76, 150, 29) / 255.
var DefaultGrayWeights = [3]float64{76.0 / 255, 150.0 / 255, 29.0 / 255}

func checkImage(op string, x *tensor.Tensor, channels int) error {
	if x.Rank() != 3 {
		return fmt.Errorf("%s: %w: expected [C, H, W], got shape %v", op, nn.ErrInputRank, x.Shape())
	}
	if channels > 0 && x.Dim(0) != channels {
		return fmt.Errorf("%s: %w: expected %d channels, got %d", op, nn.ErrInputFeatures, channels, x.Dim(0))
	}
	return nil
}

// planes returns the channel planes of a [C, H, W] tensor.
func planes(x *tensor.Tensor) [][]float64 {
	data := x.Data()
	n := x.Dim(1) * x.Dim(2)
	out := make([][]float64, x.Dim(0))
	for c := range out {
		out[c] = data[c*n : (c+1)*n]
	}
	return out
}

func fromPlanes(ps [][]float64, h, w int) *tensor.Tensor {
	data := make([]float64, 0, len(ps)*h*w)
	for _, p := range ps {
		data = append(data, p...)
	}
	return tensor.FromSlice(data, len(ps), h, w)
}

// RGBToGrayscale converts [3, H, W] to [1, H, W] as a weighted channel sum.
func RGBToGrayscale(x *tensor.Tensor, weights [3]float64) (*tensor.Tensor, error) {
	if err := checkImage("RGBToGrayscale", x, 3); err != nil {
		return nil, err
	}
	rgb := planes(x)
	gray := make([]float64, len(rgb[0]))
	for i := range gray {
		gray[i] = weights[0]*rgb[0][i] + weights[1]*rgb[1][i] + weights[2]*rgb[2][i]
	}
	return tensor.FromSlice(gray, 1, x.Dim(1), x.Dim(2)), nil
}

// GrayscaleToRGB repeats a [1, H, W] image into three channels.
func GrayscaleToRGB(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkImage("GrayscaleToRGB", x, 1); err != nil {
		return nil, err
	}
	return tensor.Concat(0, x, x, x), nil
}

// RGBToHSV converts [3, H, W] RGB to HSV. Hue is in radians [0, 2π);
// saturation and value follow the input range.
func RGBToHSV(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkImage("RGBToHSV", x, 3); err != nil {
		return nil, err
	}
	rgb := planes(x)
	n := len(rgb[0])
	hsv := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i := 0; i < n; i++ {
		r, g, b := rgb[0][i], rgb[1][i], rgb[2][i]
		maxc, arg := r, 0
		if g > maxc {
			maxc, arg = g, 1
		}
		if b > maxc {
			maxc, arg = b, 2
		}
		minc := math.Min(r, math.Min(g, b))
		delta := maxc - minc

		diff := delta
		if diff == 0 {
			diff = 1
		}
		rc, gc, bc := maxc-r, maxc-g, maxc-b
		var h float64
		switch arg {
		case 0:
			h = bc - gc
		case 1:
			h = rc - bc + 2*diff
		default:
			h = gc - rc + 4*diff
		}
		h /= diff + eps
		h = math.Mod(h/6, 1)
		if h < 0 {
			h++
		}
		hsv[0][i] = 2 * math.Pi * h
		hsv[1][i] = delta / (maxc + eps)
		hsv[2][i] = maxc
	}
	return fromPlanes(hsv, x.Dim(1), x.Dim(2)), nil
}

// HSVToRGB converts [3, H, W] HSV with hue in radians back to RGB.
func HSVToRGB(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkImage("HSVToRGB", x, 3); err != nil {
		return nil, err
	}
	hsv := planes(x)
	n := len(hsv[0])
	rgb := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i := 0; i < n; i++ {
		h6 := math.Mod(hsv[0][i]/(2*math.Pi)*6, 6)
		if h6 < 0 {
			h6 += 6
		}
		s, v := hsv[1][i], hsv[2][i]
		sector := math.Floor(h6)
		f := h6 - sector
		p := v * (1 - s)
		q := v * (1 - f*s)
		t := v * (1 - (1-f)*s)

		var r, g, b float64
		switch int(sector) % 6 {
		case 0:
			r, g, b = v, t, p
		case 1:
			r, g, b = q, v, p
		case 2:
			r, g, b = p, v, t
		case 3:
			r, g, b = p, q, v
		case 4:
			r, g, b = t, p, v
		default:
			r, g, b = v, p, q
		}
		rgb[0][i], rgb[1][i], rgb[2][i] = r, g, b
	}
	return fromPlanes(rgb, x.Dim(1), x.Dim(2)), nil
}

// converter adapts a conversion function to nn.Layer.
type converter struct {
	fn func(*tensor.Tensor) (*tensor.Tensor, error)
}

func (c converter) Parameters() []*nn.Parameter { return nil }

func (c converter) Forward(x *tensor.Tensor) (*tensor.Tensor, error) { return c.fn(x) }

// RGBToGrayscale2D is the layer form of RGBToGrayscale.
type RGBToGrayscale2D struct{ converter }

// NewRGBToGrayscale2D creates the layer; nil weights select
// DefaultGrayWeights.
func NewRGBToGrayscale2D(weights *[3]float64) *RGBToGrayscale2D {
	w := DefaultGrayWeights
	if weights != nil {
		w = *weights
	}
	return &RGBToGrayscale2D{converter{func(x *tensor.Tensor) (*tensor.Tensor, error) {
		return RGBToGrayscale(x, w)
	}}}
}

// GrayscaleToRGB2D is the layer form of GrayscaleToRGB.
type GrayscaleToRGB2D struct{ converter }

// NewGrayscaleToRGB2D creates the layer.
func NewGrayscaleToRGB2D() *GrayscaleToRGB2D { return &GrayscaleToRGB2D{converter{GrayscaleToRGB}} }

// RGBToHSV2D is the layer form of RGBToHSV.
type RGBToHSV2D struct{ converter }

// NewRGBToHSV2D creates the layer.
func NewRGBToHSV2D() *RGBToHSV2D { return &RGBToHSV2D{converter{RGBToHSV}} }

// HSVToRGB2D is the layer form of HSVToRGB.
type HSVToRGB2D struct{ converter }

// NewHSVToRGB2D creates the layer.
func NewHSVToRGB2D() *HSVToRGB2D { return &HSVToRGB2D{converter{HSVToRGB}} }
