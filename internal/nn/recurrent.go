package nn

import (
	"fmt"
	"slices"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// State is the carry threaded through a recurrent cell. Each cell accepts
// only its own state type.
type State interface {
	HiddenState() *tensor.Tensor
}

// SimpleRNNState is the state of a SimpleRNNCell.
type SimpleRNNState struct{ Hidden *tensor.Tensor }

// LSTMState is the state of an LSTMCell.
type LSTMState struct{ Hidden, Cell *tensor.Tensor }

// GRUState is the state of a GRUCell.
type GRUState struct{ Hidden *tensor.Tensor }

// DenseState is the state of a DenseCell.
type DenseState struct{ Hidden *tensor.Tensor }

// ConvLSTMState is the state of a ConvLSTMCell.
type ConvLSTMState struct{ Hidden, Cell *tensor.Tensor }

// ConvGRUState is the state of a ConvGRUCell.
type ConvGRUState struct{ Hidden *tensor.Tensor }

func (s SimpleRNNState) HiddenState() *tensor.Tensor { return s.Hidden }
func (s LSTMState) HiddenState() *tensor.Tensor      { return s.Hidden }
func (s GRUState) HiddenState() *tensor.Tensor       { return s.Hidden }
func (s DenseState) HiddenState() *tensor.Tensor     { return s.Hidden }
func (s ConvLSTMState) HiddenState() *tensor.Tensor  { return s.Hidden }
func (s ConvGRUState) HiddenState() *tensor.Tensor   { return s.Hidden }

// Cell is one step of a recurrent network.
type Cell interface {
	Module
	// Step consumes one time step x and returns the next state.
	Step(x *tensor.Tensor, state State) (State, error)
	// InitState returns the zero state. Spatial cells take the spatial
	// size of the input; other cells take none.
	InitState(spatial ...int) (State, error)
	// InFeatures returns the input feature count, or Lazy.
	InFeatures() int
	// SpatialDims returns the number of spatial axes of the input, 0 for
	// vector cells.
	SpatialDims() int
}

// RecurrentConfig configures the vector cells.
type RecurrentConfig struct {
	Act                 Act  // default "tanh"
	RecurrentAct        Act  // default "sigmoid"
	WeightInit          Init // default "glorot_uniform"
	BiasInit            Init // default "zeros"
	RecurrentWeightInit Init // default "orthogonal"
}

func stateError(cell string, want string, got State) error {
	return fmt.Errorf("%s: %w: expected %s, got %T", cell, ErrStateType, want, got)
}

// gateActs holds the candidate and gate activations of a cell.
type gateActs struct {
	act, recurrent Layer
}

func newGateActs(layer string, cfg RecurrentConfig, recurrentDefault string) (*gateActs, error) {
	act, err := cfg.Act.resolve("tanh")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layer, err)
	}
	rec, err := cfg.RecurrentAct.resolve(recurrentDefault)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layer, err)
	}
	return &gateActs{act: act, recurrent: rec}, nil
}

// step runs f with activation functions that record the first error of
// this call only, so one cell can be stepped from several goroutines.
func (a *gateActs) step(f func(act, rec func(*tensor.Tensor) *tensor.Tensor)) error {
	var err error
	apply := func(l Layer) func(*tensor.Tensor) *tensor.Tensor {
		return func(x *tensor.Tensor) *tensor.Tensor {
			if err != nil {
				return x
			}
			y, ferr := l.Forward(x)
			if ferr != nil {
				err = ferr
				return x
			}
			return y
		}
	}
	f(apply(a.act), apply(a.recurrent))
	return err
}

// lstmUpdate computes the LSTM gates from the summed projections z, split
// into (input, forget, candidate, output) along axis.
func lstmUpdate(acts *gateActs, z, c *tensor.Tensor, axis int) (h, cNext *tensor.Tensor, err error) {
	err = acts.step(func(act, rec func(*tensor.Tensor) *tensor.Tensor) {
		gates := z.Split(axis, 4)
		i, f, g, o := rec(gates[0]), rec(gates[1]), act(gates[2]), rec(gates[3])
		cNext = tensor.Add(tensor.Mul(f, c), tensor.Mul(i, g))
		h = tensor.Mul(o, act(cNext))
	})
	return h, cNext, err
}

// gruUpdate computes the GRU update from the input and hidden projections,
// each split into (reset, update, candidate) along axis.
func gruUpdate(acts *gateActs, xz, hz, h *tensor.Tensor, axis int) (*tensor.Tensor, error) {
	var next *tensor.Tensor
	err := acts.step(func(act, rec func(*tensor.Tensor) *tensor.Tensor) {
		xs, hs := xz.Split(axis, 3), hz.Split(axis, 3)
		e := rec(tensor.Add(xs[0], hs[0]))
		u := rec(tensor.Add(xs[1], hs[1]))
		o := act(tensor.Add(xs[2], tensor.Mul(e, hs[2])))
		keep := u.Map(func(v float64) float64 { return 1 - v })
		next = tensor.Add(tensor.Mul(keep, o), tensor.Mul(u, h))
	})
	return next, err
}

// denseCell holds the two projections shared by the vector cells.
type denseCell struct {
	name           string
	hidden         int
	acts           *gateActs
	inToHidden     *Linear
	hiddenToHidden *Linear
}

func newDenseCell(name string, in, hidden, gates int, key random.Key, cfg RecurrentConfig, recurrentDefault string) (*denseCell, error) {
	if err := checkPositive(name, "hidden_features", hidden); err != nil {
		return nil, err
	}
	acts, err := newGateActs(name, cfg, recurrentDefault)
	if err != nil {
		return nil, err
	}
	keys := key.Split(2)
	ih, err := NewLinear(in, hidden*gates, keys[0], LinearConfig{WeightInit: cfg.WeightInit, BiasInit: cfg.BiasInit})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	rInit := cfg.RecurrentWeightInit.or(InitTag("orthogonal"))
	hh, err := NewLinear(hidden, hidden*gates, keys[1], LinearConfig{WeightInit: rInit, BiasInit: NoInit()})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &denseCell{name: name, hidden: hidden, acts: acts, inToHidden: ih, hiddenToHidden: hh}, nil
}

func (c *denseCell) checkInput(x, h *tensor.Tensor) error {
	if x.Rank() != 1 {
		return fmt.Errorf("%s: %w: expected [in_features], got %v", c.name, ErrInputRank, x.Shape())
	}
	if !h.Shape().Equal(tensor.Shape{c.hidden}) {
		return fmt.Errorf("%s: %w: hidden state has shape %v, expected [%d]", c.name, ErrStateType, h.Shape(), c.hidden)
	}
	return nil
}

func (c *denseCell) project(x, h *tensor.Tensor) (xz, hz *tensor.Tensor, err error) {
	if xz, err = c.inToHidden.Forward(x); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if hz, err = c.hiddenToHidden.Forward(h); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return xz, hz, nil
}

func (c *denseCell) zeros(spatial []int) (*tensor.Tensor, error) {
	if len(spatial) != 0 {
		return nil, fmt.Errorf("%s: %w: vector cells take no spatial size, got %v", c.name, ErrInvalidArgument, spatial)
	}
	return tensor.Zeros(c.hidden), nil
}

// Parameters returns the projections under "in_to_hidden" and
// "hidden_to_hidden".
func (c *denseCell) Parameters() []*Parameter {
	return append(prefixed("in_to_hidden", c.inToHidden.Parameters()),
		prefixed("hidden_to_hidden", c.hiddenToHidden.Parameters())...)
}

// InFeatures returns the input feature count, or Lazy before the first step.
func (c *denseCell) InFeatures() int { return c.inToHidden.InFeatures() }

// HiddenFeatures returns the size of the hidden state.
func (c *denseCell) HiddenFeatures() int { return c.hidden }

// SpatialDims returns 0.
func (c *denseCell) SpatialDims() int { return 0 }

// SimpleRNNCell computes h' = act(W x + U h + b).
type SimpleRNNCell struct{ *denseCell }

// NewSimpleRNNCell creates an Elman cell.
func NewSimpleRNNCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*SimpleRNNCell, error) {
	c, err := newDenseCell("SimpleRNNCell", inFeatures, hiddenFeatures, 1, key, cfg, "sigmoid")
	if err != nil {
		return nil, err
	}
	return &SimpleRNNCell{c}, nil
}

// Step advances the cell by one time step.
func (c *SimpleRNNCell) Step(x *tensor.Tensor, state State) (State, error) {
	s, ok := state.(SimpleRNNState)
	if !ok {
		return nil, stateError(c.name, "SimpleRNNState", state)
	}
	if err := c.checkInput(x, s.Hidden); err != nil {
		return nil, err
	}
	xz, hz, err := c.project(x, s.Hidden)
	if err != nil {
		return nil, err
	}
	var h *tensor.Tensor
	err = c.acts.step(func(act, _ func(*tensor.Tensor) *tensor.Tensor) {
		h = act(tensor.Add(xz, hz))
	})
	if err != nil {
		return nil, err
	}
	return SimpleRNNState{Hidden: h}, nil
}

// InitState returns a zero hidden state.
func (c *SimpleRNNCell) InitState(spatial ...int) (State, error) {
	h, err := c.zeros(spatial)
	if err != nil {
		return nil, err
	}
	return SimpleRNNState{Hidden: h}, nil
}

// LSTMCell is a long short-term memory cell with gates ordered (input,
// forget, candidate, output).
type LSTMCell struct{ *denseCell }

// NewLSTMCell creates an LSTM cell.
func NewLSTMCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*LSTMCell, error) {
	c, err := newDenseCell("LSTMCell", inFeatures, hiddenFeatures, 4, key, cfg, "sigmoid")
	if err != nil {
		return nil, err
	}
	return &LSTMCell{c}, nil
}

// Step advances the cell by one time step.
func (c *LSTMCell) Step(x *tensor.Tensor, state State) (State, error) {
	s, ok := state.(LSTMState)
	if !ok {
		return nil, stateError(c.name, "LSTMState", state)
	}
	if err := c.checkInput(x, s.Hidden); err != nil {
		return nil, err
	}
	xz, hz, err := c.project(x, s.Hidden)
	if err != nil {
		return nil, err
	}
	h, cell, err := lstmUpdate(c.acts, tensor.Add(xz, hz), s.Cell, -1)
	if err != nil {
		return nil, err
	}
	return LSTMState{Hidden: h, Cell: cell}, nil
}

// InitState returns zero hidden and cell states.
func (c *LSTMCell) InitState(spatial ...int) (State, error) {
	h, err := c.zeros(spatial)
	if err != nil {
		return nil, err
	}
	return LSTMState{Hidden: h, Cell: h}, nil
}

// GRUCell is a gated recurrent unit with gates ordered (reset, update,
// candidate).
type GRUCell struct{ *denseCell }

// NewGRUCell creates a GRU cell.
func NewGRUCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*GRUCell, error) {
	c, err := newDenseCell("GRUCell", inFeatures, hiddenFeatures, 3, key, cfg, "sigmoid")
	if err != nil {
		return nil, err
	}
	return &GRUCell{c}, nil
}

// Step advances the cell by one time step.
func (c *GRUCell) Step(x *tensor.Tensor, state State) (State, error) {
	s, ok := state.(GRUState)
	if !ok {
		return nil, stateError(c.name, "GRUState", state)
	}
	if err := c.checkInput(x, s.Hidden); err != nil {
		return nil, err
	}
	xz, hz, err := c.project(x, s.Hidden)
	if err != nil {
		return nil, err
	}
	h, err := gruUpdate(c.acts, xz, hz, s.Hidden, -1)
	if err != nil {
		return nil, err
	}
	return GRUState{Hidden: h}, nil
}

// InitState returns a zero hidden state.
func (c *GRUCell) InitState(spatial ...int) (State, error) {
	h, err := c.zeros(spatial)
	if err != nil {
		return nil, err
	}
	return GRUState{Hidden: h}, nil
}

// DenseCell ignores its previous state: h' = act(W x + b). It lets a
// feed-forward layer run inside ScanRNN.
type DenseCell struct {
	name   string
	hidden int
	acts   *gateActs
	linear *Linear
}

// NewDenseCell creates a dense cell. RecurrentAct and RecurrentWeightInit
// are unused.
func NewDenseCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*DenseCell, error) {
	const name = "DenseCell"
	if err := checkPositive(name, "hidden_features", hiddenFeatures); err != nil {
		return nil, err
	}
	acts, err := newGateActs(name, cfg, "sigmoid")
	if err != nil {
		return nil, err
	}
	l, err := NewLinear(inFeatures, hiddenFeatures, key, LinearConfig{WeightInit: cfg.WeightInit, BiasInit: cfg.BiasInit})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &DenseCell{name: name, hidden: hiddenFeatures, acts: acts, linear: l}, nil
}

// Step advances the cell by one time step.
func (c *DenseCell) Step(x *tensor.Tensor, state State) (State, error) {
	if _, ok := state.(DenseState); !ok {
		return nil, stateError(c.name, "DenseState", state)
	}
	if x.Rank() != 1 {
		return nil, fmt.Errorf("%s: %w: expected [in_features], got %v", c.name, ErrInputRank, x.Shape())
	}
	z, err := c.linear.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	var h *tensor.Tensor
	err = c.acts.step(func(act, _ func(*tensor.Tensor) *tensor.Tensor) { h = act(z) })
	if err != nil {
		return nil, err
	}
	return DenseState{Hidden: h}, nil
}

// InitState returns a zero hidden state.
func (c *DenseCell) InitState(spatial ...int) (State, error) {
	if len(spatial) != 0 {
		return nil, fmt.Errorf("%s: %w: vector cells take no spatial size, got %v", c.name, ErrInvalidArgument, spatial)
	}
	return DenseState{Hidden: tensor.Zeros(c.hidden)}, nil
}

// Parameters returns the projection under "in_to_hidden".
func (c *DenseCell) Parameters() []*Parameter {
	return prefixed("in_to_hidden", c.linear.Parameters())
}

// InFeatures returns the input feature count, or Lazy before the first step.
func (c *DenseCell) InFeatures() int { return c.linear.InFeatures() }

// SpatialDims returns 0.
func (c *DenseCell) SpatialDims() int { return 0 }

// ConvRecurrentConfig configures the convolutional cells. Both projections
// share the convolution geometry.
type ConvRecurrentConfig struct {
	RecurrentConfig
	Strides        []int
	Padding        Padding
	InputDilation  []int
	KernelDilation []int
}

// convCell holds the two convolutions shared by the spatial cells.
type convCell struct {
	name           string
	ndim           int
	out            int
	acts           *gateActs
	inToHidden     *Conv
	hiddenToHidden *Conv
}

func newConvCell(prefix string, fft bool, ndim, in, out, gates int, kernel []int, key random.Key, cfg ConvRecurrentConfig, recurrentDefault string) (*convCell, error) {
	name := fmt.Sprintf("%s%dDCell", prefix, ndim)
	if fft {
		name = "FFT" + name
	}
	if err := checkPositive(name, "out_features", out); err != nil {
		return nil, err
	}
	acts, err := newGateActs(name, cfg.RecurrentConfig, recurrentDefault)
	if err != nil {
		return nil, err
	}
	geometry := ConvConfig{
		Strides:        cfg.Strides,
		Padding:        cfg.Padding,
		InputDilation:  cfg.InputDilation,
		KernelDilation: cfg.KernelDilation,
	}
	kind := convKind{prefix: "Conv", fft: fft}
	keys := key.Split(2)

	ihCfg := geometry
	ihCfg.WeightInit, ihCfg.BiasInit = cfg.WeightInit, cfg.BiasInit
	ih, err := newConv(kind, ndim, in, out*gates, kernel, keys[0], ihCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	hhCfg := geometry
	hhCfg.WeightInit, hhCfg.BiasInit = cfg.RecurrentWeightInit.or(InitTag("orthogonal")), NoInit()
	hh, err := newConv(kind, ndim, out, out*gates, kernel, keys[1], hhCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &convCell{name: name, ndim: ndim, out: out, acts: acts, inToHidden: ih, hiddenToHidden: hh}, nil
}

func (c *convCell) project(x, h *tensor.Tensor) (xz, hz *tensor.Tensor, err error) {
	if h.Rank() != c.ndim+1 || h.Dim(0) != c.out {
		return nil, nil, fmt.Errorf("%s: %w: hidden state has shape %v, expected [%d, spatial...]",
			c.name, ErrStateType, h.Shape(), c.out)
	}
	if xz, err = c.inToHidden.Forward(x); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if hz, err = c.hiddenToHidden.Forward(h); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if !xz.Shape().Equal(hz.Shape()) {
		return nil, nil, fmt.Errorf("%s: %w: input projects to %v but state to %v",
			c.name, ErrInputShape, xz.Shape(), hz.Shape())
	}
	return xz, hz, nil
}

func (c *convCell) zeros(spatial []int) (*tensor.Tensor, error) {
	if len(spatial) != c.ndim {
		return nil, fmt.Errorf("%s: %w: expected %d spatial sizes, got %v", c.name, ErrLengthMismatch, c.ndim, spatial)
	}
	if err := checkPositive(c.name, "spatial", spatial...); err != nil {
		return nil, err
	}
	return tensor.Zeros(append([]int{c.out}, spatial...)...), nil
}

// Parameters returns the convolutions under "in_to_hidden" and
// "hidden_to_hidden".
func (c *convCell) Parameters() []*Parameter {
	return append(prefixed("in_to_hidden", c.inToHidden.Parameters()),
		prefixed("hidden_to_hidden", c.hiddenToHidden.Parameters())...)
}

// InFeatures returns the input feature count, or Lazy before the first step.
func (c *convCell) InFeatures() int { return c.inToHidden.InFeatures() }

// SpatialDims returns the number of spatial axes.
func (c *convCell) SpatialDims() int { return c.ndim }

// ConvLSTMCell is an LSTM whose projections are convolutions over
// channel-first input [in_features, spatial...].
type ConvLSTMCell struct{ *convCell }

// NewConvLSTMCell creates a convolutional LSTM cell. RecurrentAct defaults
// to "hard_sigmoid".
func NewConvLSTMCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvLSTMCell, error) {
	c, err := newConvCell("ConvLSTM", false, ndim, inFeatures, outFeatures, 4, kernel, key, cfg, "hard_sigmoid")
	if err != nil {
		return nil, err
	}
	return &ConvLSTMCell{c}, nil
}

// NewFFTConvLSTMCell is NewConvLSTMCell with FFT convolutions.
func NewFFTConvLSTMCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvLSTMCell, error) {
	c, err := newConvCell("ConvLSTM", true, ndim, inFeatures, outFeatures, 4, kernel, key, cfg, "hard_sigmoid")
	if err != nil {
		return nil, err
	}
	return &ConvLSTMCell{c}, nil
}

// Step advances the cell by one time step.
func (c *ConvLSTMCell) Step(x *tensor.Tensor, state State) (State, error) {
	s, ok := state.(ConvLSTMState)
	if !ok {
		return nil, stateError(c.name, "ConvLSTMState", state)
	}
	xz, hz, err := c.project(x, s.Hidden)
	if err != nil {
		return nil, err
	}
	h, cell, err := lstmUpdate(c.acts, tensor.Add(xz, hz), s.Cell, 0)
	if err != nil {
		return nil, err
	}
	return ConvLSTMState{Hidden: h, Cell: cell}, nil
}

// InitState returns zero states of shape [out_features, spatial...].
func (c *ConvLSTMCell) InitState(spatial ...int) (State, error) {
	h, err := c.zeros(spatial)
	if err != nil {
		return nil, err
	}
	return ConvLSTMState{Hidden: h, Cell: h}, nil
}

// ConvGRUCell is a GRU whose projections are convolutions.
type ConvGRUCell struct{ *convCell }

// NewConvGRUCell creates a convolutional GRU cell.
func NewConvGRUCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvGRUCell, error) {
	c, err := newConvCell("ConvGRU", false, ndim, inFeatures, outFeatures, 3, kernel, key, cfg, "sigmoid")
	if err != nil {
		return nil, err
	}
	return &ConvGRUCell{c}, nil
}

// NewFFTConvGRUCell is NewConvGRUCell with FFT convolutions.
func NewFFTConvGRUCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvGRUCell, error) {
	c, err := newConvCell("ConvGRU", true, ndim, inFeatures, outFeatures, 3, kernel, key, cfg, "sigmoid")
	if err != nil {
		return nil, err
	}
	return &ConvGRUCell{c}, nil
}

// Step advances the cell by one time step.
func (c *ConvGRUCell) Step(x *tensor.Tensor, state State) (State, error) {
	s, ok := state.(ConvGRUState)
	if !ok {
		return nil, stateError(c.name, "ConvGRUState", state)
	}
	xz, hz, err := c.project(x, s.Hidden)
	if err != nil {
		return nil, err
	}
	h, err := gruUpdate(c.acts, xz, hz, s.Hidden, 0)
	if err != nil {
		return nil, err
	}
	return ConvGRUState{Hidden: h}, nil
}

// InitState returns a zero state of shape [out_features, spatial...].
func (c *ConvGRUCell) InitState(spatial ...int) (State, error) {
	h, err := c.zeros(spatial)
	if err != nil {
		return nil, err
	}
	return ConvGRUState{Hidden: h}, nil
}

// ScanRNN runs a cell over the leading time axis of its input, optionally
// with a second cell running backwards in time.
//
// Vector cells take [time, in_features]; spatial cells take
// [time, in_features, spatial...]. Without ReturnSequences the output is
// the final hidden state, with the backward state concatenated on the
// feature axis. With ReturnSequences every hidden state is kept on a
// leading time axis; backward states are re-reversed so that both
// directions line up in time, then concatenated on axis 1.
type ScanRNN struct {
	cell            Cell
	backward        Cell
	returnSequences bool
}

// NewScanRNN wraps cell; backward may be nil.
func NewScanRNN(cell, backward Cell, returnSequences bool) (*ScanRNN, error) {
	if cell == nil {
		return nil, fmt.Errorf("ScanRNN: %w: cell is required", ErrInvalidArgument)
	}
	if backward != nil && backward.SpatialDims() != cell.SpatialDims() {
		return nil, fmt.Errorf("ScanRNN: %w: forward cell has %d spatial axes, backward cell %d",
			ErrInvalidArgument, cell.SpatialDims(), backward.SpatialDims())
	}
	return &ScanRNN{cell: cell, backward: backward, returnSequences: returnSequences}, nil
}

// Forward scans x starting from zero states.
func (s *ScanRNN) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return s.ForwardState(x, nil, nil)
}

// ForwardState scans x from the given states; nil states start at zero.
func (s *ScanRNN) ForwardState(x *tensor.Tensor, state, backwardState State) (*tensor.Tensor, error) {
	ndim := s.cell.SpatialDims()
	if x.Rank() != ndim+2 {
		return nil, fmt.Errorf("ScanRNN: %w: expected %d axes [time, in_features, spatial...], got shape %v",
			ErrInputRank, ndim+2, x.Shape())
	}
	if in := s.cell.InFeatures(); in != Lazy && x.Dim(1) != in {
		return nil, fmt.Errorf("ScanRNN: %w: expected %d input features, got shape %v", ErrInputFeatures, in, x.Shape())
	}
	if x.Dim(0) == 0 {
		return nil, fmt.Errorf("ScanRNN: %w: empty sequence, shape %v", ErrInputShape, x.Shape())
	}
	steps := x.Split(0, x.Dim(0))
	for i, t := range steps {
		steps[i] = t.Squeeze(0)
	}
	spatial := []int(x.Shape()[2:])

	forward, err := scan(s.cell, steps, state, spatial, s.returnSequences)
	if err != nil {
		return nil, err
	}
	if s.backward == nil {
		return forward, nil
	}
	reversed := slices.Clone(steps)
	slices.Reverse(reversed)
	backward, err := scan(s.backward, reversed, backwardState, spatial, s.returnSequences)
	if err != nil {
		return nil, err
	}
	if s.returnSequences {
		return tensor.Concat(1, forward, backward.Flip(0)), nil
	}
	return tensor.Concat(0, forward, backward), nil
}

func scan(cell Cell, steps []*tensor.Tensor, state State, spatial []int, sequences bool) (*tensor.Tensor, error) {
	if state == nil {
		var err error
		if cell.SpatialDims() == 0 {
			state, err = cell.InitState()
		} else {
			state, err = cell.InitState(spatial...)
		}
		if err != nil {
			return nil, err
		}
	}
	var hidden []*tensor.Tensor
	for _, x := range steps {
		next, err := cell.Step(x, state)
		if err != nil {
			return nil, err
		}
		state = next
		if sequences {
			hidden = append(hidden, state.HiddenState())
		}
	}
	if sequences {
		return tensor.Stack(0, hidden...), nil
	}
	return state.HiddenState(), nil
}

// Parameters returns the cells' parameters under "cell" and
// "backward_cell".
func (s *ScanRNN) Parameters() []*Parameter {
	params := prefixed("cell", s.cell.Parameters())
	if s.backward != nil {
		params = append(params, prefixed("backward_cell", s.backward.Parameters())...)
	}
	return params
}
