package nn

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// Module is anything that owns learnable parameters.
type Module interface {
	// Parameters returns the learnable parameters in a stable order.
	Parameters() []*Parameter
}

// Layer is a deterministic transform.
//
// Inputs are channel-first and unbatched: [features, spatial...].
type Layer interface {
	Module
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// RandomLayer is a stochastic transform driven by an explicit key.
// The same key always produces the same output.
type RandomLayer interface {
	Module
	ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error)
}

// Lazy can be passed as an input feature count to defer parameter creation
// until the first call, where the count is read from the input.
const Lazy = -1

// lazyInit performs a layer's deferred construction exactly once.
// A failed construction is permanent: every later call returns the same error.
type lazyInit struct {
	once sync.Once
	done atomic.Bool
	err  error
}

// run builds the layer with build on first use.
func (l *lazyInit) run(build func() error) error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.err = build()
		l.done.Store(l.err == nil)
	})
	return l.err
}

// ready reports whether parameters may be read.
func (l *lazyInit) ready() bool { return l == nil || l.done.Load() }

func newLazy(inFeatures int) *lazyInit {
	if inFeatures == Lazy {
		return &lazyInit{}
	}
	return nil
}

// stateless provides Parameters for layers without learnable tensors.
type stateless struct{}

// Parameters returns nil.
func (stateless) Parameters() []*Parameter { return nil }

// StateDict maps every parameter name of m to its current tensor.
func StateDict(m Module) map[string]*tensor.Tensor {
	params := m.Parameters()
	sd := make(map[string]*tensor.Tensor, len(params))
	for _, p := range params {
		sd[p.Name()] = p.Tensor()
	}
	return sd
}

// LoadStateDict replaces the parameters of m with the tensors in sd.
//
// Every parameter must be present with a matching shape, and sd must not
// contain names that m does not have. On error m is left unchanged.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error {
	params := m.Parameters()
	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[p.Name()] = true
		t, ok := sd[p.Name()]
		if !ok {
			return fmt.Errorf("load state dict: %w: %s", ErrMissingParameter, p.Name())
		}
		if t == nil {
			return fmt.Errorf("load state dict: %w: %s is nil", ErrParameterShape, p.Name())
		}
		if !t.Shape().Equal(p.Shape()) {
			return fmt.Errorf("load state dict: %w: %s expects %v, got %v",
				ErrParameterShape, p.Name(), p.Shape(), t.Shape())
		}
	}
	var extra []string
	for name := range sd {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("load state dict: %w: %s", ErrUnexpectedParameter, strings.Join(extra, ", "))
	}
	for _, p := range params {
		p.slot.value = sd[p.Name()]
	}
	return nil
}

// NumParameters counts the scalar values across all parameters of m.
func NumParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().Size()
	}
	return n
}
