package nn

import (
	"fmt"

	"github.com/born-ml/strata/internal/tensor"
)

// Parameter is a named learnable tensor.
//
// Tensors are immutable, so a layer's parameter values only change when the
// slot is given a new tensor (for example by LoadStateDict). Composite layers
// expose their children's parameters under dotted names; those views share
// the child's slot.
type Parameter struct {
	name string
	slot *slot
}

type slot struct {
	value *tensor.Tensor
}

// NewParameter creates a parameter holding t.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, slot: &slot{value: t}}
}

// Name returns the parameter name, e.g. "weight" or "cells.0.bias".
func (p *Parameter) Name() string { return p.name }

// Tensor returns the current value.
func (p *Parameter) Tensor() *tensor.Tensor { return p.slot.value }

// Shape returns the shape of the current value.
func (p *Parameter) Shape() tensor.Shape { return p.slot.value.Shape() }

// Set replaces the value. The new tensor must have the same shape.
func (p *Parameter) Set(t *tensor.Tensor) error {
	if !t.Shape().Equal(p.slot.value.Shape()) {
		return fmt.Errorf("%w: %s expects %v, got %v", ErrParameterShape, p.name, p.slot.value.Shape(), t.Shape())
	}
	p.slot.value = t
	return nil
}

// withPrefix returns a view of p named prefix+name sharing the same slot.
func (p *Parameter) withPrefix(prefix string) *Parameter {
	return &Parameter{name: prefix + p.name, slot: p.slot}
}

// prefixed renames a child's parameters under prefix ("prefix.name").
func prefixed(prefix string, params []*Parameter) []*Parameter {
	out := make([]*Parameter, len(params))
	for i, p := range params {
		out[i] = p.withPrefix(prefix + ".")
	}
	return out
}

// collect appends the non-nil parameters.
func collect(params ...*Parameter) []*Parameter {
	out := make([]*Parameter, 0, len(params))
	for _, p := range params {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// value returns the tensor of p, or nil for an absent parameter.
func value(p *Parameter) *tensor.Tensor {
	if p == nil {
		return nil
	}
	return p.Tensor()
}
