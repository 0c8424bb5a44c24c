// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package image provides color conversions, blurs and histogram equalization
// for channel-first images [C, H, W]. Every layer satisfies nn.Layer.
package image

import (
	"github.com/born-ml/strata/internal/image"
	"github.com/born-ml/strata/internal/tensor"
)

// DefaultGrayWeights are the luma weights (76, 150, 29) / 255.
var DefaultGrayWeights = image.DefaultGrayWeights

// DefaultBins is the default histogram size for HistogramEqualization2D.
const DefaultBins = image.DefaultBins

// Functions

// RGBToGrayscale converts [3, H, W] to [1, H, W].
func RGBToGrayscale(x *tensor.Tensor, weights [3]float64) (*tensor.Tensor, error) {
	return image.RGBToGrayscale(x, weights)
}

// GrayscaleToRGB repeats [1, H, W] into three channels.
func GrayscaleToRGB(x *tensor.Tensor) (*tensor.Tensor, error) { return image.GrayscaleToRGB(x) }

// RGBToHSV converts RGB to HSV with hue in radians.
func RGBToHSV(x *tensor.Tensor) (*tensor.Tensor, error) { return image.RGBToHSV(x) }

// HSVToRGB converts HSV with hue in radians to RGB.
func HSVToRGB(x *tensor.Tensor) (*tensor.Tensor, error) { return image.HSVToRGB(x) }

// EqualizeHistogram maps values through their normalized cumulative histogram.
func EqualizeHistogram(x *tensor.Tensor, bins int) (*tensor.Tensor, error) {
	return image.EqualizeHistogram(x, bins)
}

// Layers

// RGBToGrayscale2D is the layer form of RGBToGrayscale.
type RGBToGrayscale2D = image.RGBToGrayscale2D

// NewRGBToGrayscale2D creates the layer; nil weights select DefaultGrayWeights.
func NewRGBToGrayscale2D(weights *[3]float64) *RGBToGrayscale2D {
	return image.NewRGBToGrayscale2D(weights)
}

// GrayscaleToRGB2D is the layer form of GrayscaleToRGB.
type GrayscaleToRGB2D = image.GrayscaleToRGB2D

// NewGrayscaleToRGB2D creates the layer.
func NewGrayscaleToRGB2D() *GrayscaleToRGB2D { return image.NewGrayscaleToRGB2D() }

// RGBToHSV2D is the layer form of RGBToHSV.
type RGBToHSV2D = image.RGBToHSV2D

// NewRGBToHSV2D creates the layer.
func NewRGBToHSV2D() *RGBToHSV2D { return image.NewRGBToHSV2D() }

// HSVToRGB2D is the layer form of HSVToRGB.
type HSVToRGB2D = image.HSVToRGB2D

// NewHSVToRGB2D creates the layer.
func NewHSVToRGB2D() *HSVToRGB2D { return image.NewHSVToRGB2D() }

// Blur2D is a separable fixed-kernel blur.
type Blur2D = image.Blur2D

// NewAvgBlur2D creates a box blur. inFeatures may be nn.Lazy.
//
// Example:
//
//	blur, err := image.NewAvgBlur2D(3, 5)
func NewAvgBlur2D(inFeatures, kernelSize int) (*Blur2D, error) {
	return image.NewAvgBlur2D(inFeatures, kernelSize)
}

// NewGaussianBlur2D creates a Gaussian blur with standard deviation sigma.
func NewGaussianBlur2D(inFeatures, kernelSize int, sigma float64) (*Blur2D, error) {
	return image.NewGaussianBlur2D(inFeatures, kernelSize, sigma)
}

// HistogramEqualization2D is the layer form of EqualizeHistogram.
type HistogramEqualization2D = image.HistogramEqualization2D

// NewHistogramEqualization2D creates the layer; bins <= 0 selects DefaultBins.
func NewHistogramEqualization2D(bins int) *HistogramEqualization2D {
	return image.NewHistogramEqualization2D(bins)
}
