package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/serialization"
	"github.com/born-ml/strata/internal/shapes"
)

// parseInts parses a comma-separated list such as "28,28".
func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q in %q", p, s)
		}
		out[i] = v
	}
	return out, nil
}

// parsePadding accepts "same", "valid", a single int or one int per axis.
func parsePadding(s string) (shapes.Padding, error) {
	switch strings.ToLower(s) {
	case "same", "valid":
		return shapes.Tag(s), nil
	}
	ns, err := parseInts(s)
	if err != nil {
		return shapes.Padding{}, fmt.Errorf("padding: %w", err)
	}
	if len(ns) == 1 {
		return shapes.Int(ns[0]), nil
	}
	return shapes.PerAxis(ns...), nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runShape(args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("shape", stderr)
	kernel := fs.String("kernel", "3", "Kernel size, one value or one per axis")
	stride := fs.String("stride", "1", "Strides, one value or one per axis")
	dilation := fs.String("dilation", "1", "Kernel dilation, one value or one per axis")
	padding := fs.String("padding", "same", "Padding: same, valid, an int, or one int per axis")
	in := fs.String("in", "", "Spatial input size, e.g. 28,28")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	spatial, err := parseInts(*in)
	if err != nil {
		return err
	}
	if len(spatial) == 0 {
		return fmt.Errorf("shape: -in is required")
	}
	ndim := len(spatial)

	var values [3][]int
	for i, s := range []string{*kernel, *stride, *dilation} {
		vs, err := parseInts(s)
		if err != nil {
			return err
		}
		if values[i], err = shapes.Canonicalize(vs, ndim, []string{"kernel", "stride", "dilation"}[i]); err != nil {
			return err
		}
	}
	if err := shapes.CheckPositive("kernel/stride/dilation", slices.Concat(values[0], values[1], values[2])...); err != nil {
		return err
	}
	pad, err := parsePadding(*padding)
	if err != nil {
		return err
	}

	effective := shapes.DilatedKernel(values[0], values[2])
	pads, err := pad.Resolve(spatial, effective, values[1])
	if err != nil {
		return err
	}
	out, err := shapes.ConvOutputShape(spatial, effective, values[1], pads)
	if err != nil {
		return err
	}
	logger.Debug("resolved", "padding", pad.String(), "effective_kernel", effective)

	fmt.Fprintf(stdout, "padding: %v\n", pads)
	fmt.Fprintf(stdout, "output:  %v\n", out)
	return nil
}

func runInspect(args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("inspect", stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: strata inspect <file.safetensors>")
		return errUsage
	}

	reader, err := serialization.NewMmapReader(fs.Arg(0))
	if err != nil {
		return err
	}
	defer reader.Close() //nolint:errcheck // read-only

	header := reader.Header()
	logger.Debug("opened", "file", fs.Arg(0), "tensors", len(header.Tensors))

	keys := make([]string, 0, len(header.Metadata))
	for k := range header.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(stdout, "# %s: %s\n", k, header.Metadata[k])
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDTYPE\tSHAPE\tBYTES")
	total := 0
	for _, meta := range header.Tensors {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\n", meta.Name, meta.DType, meta.Shape, meta.Size)
		total += meta.NumElements()
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d tensors, %d values\n", len(header.Tensors), total)
	return nil
}

// layerBuilder creates a layer for the init command.
type layerBuilder func(in, out int, kernel []int, key random.Key) (nn.Module, error)

var layerBuilders = map[string]layerBuilder{
	"linear": func(in, out int, _ []int, key random.Key) (nn.Module, error) {
		return nn.NewLinear(in, out, key, nn.LinearConfig{})
	},
	"embedding": func(in, out int, _ []int, key random.Key) (nn.Module, error) {
		return nn.NewEmbedding(in, out, key)
	},
	"conv1d": func(in, out int, kernel []int, key random.Key) (nn.Module, error) {
		return nn.NewConv1D(in, out, kernel, key, nn.ConvConfig{})
	},
	"conv2d": func(in, out int, kernel []int, key random.Key) (nn.Module, error) {
		return nn.NewConv2D(in, out, kernel, key, nn.ConvConfig{})
	},
	"conv3d": func(in, out int, kernel []int, key random.Key) (nn.Module, error) {
		return nn.NewConv3D(in, out, kernel, key, nn.ConvConfig{})
	},
	"layer_norm": func(in, _ int, _ []int, key random.Key) (nn.Module, error) {
		return nn.NewLayerNorm([]int{in}, key, nn.NormConfig{})
	},
	"simple_rnn": func(in, out int, _ []int, key random.Key) (nn.Module, error) {
		return nn.NewSimpleRNNCell(in, out, key, nn.RecurrentConfig{})
	},
	"lstm": func(in, out int, _ []int, key random.Key) (nn.Module, error) {
		return nn.NewLSTMCell(in, out, key, nn.RecurrentConfig{})
	},
	"gru": func(in, out int, _ []int, key random.Key) (nn.Module, error) {
		return nn.NewGRUCell(in, out, key, nn.RecurrentConfig{})
	},
}

func layerNames() []string {
	names := make([]string, 0, len(layerBuilders))
	for name := range layerBuilders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func runInit(args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("init", stderr)
	layer := fs.String("layer", "linear", "Layer type: "+strings.Join(layerNames(), ", "))
	in := fs.Int("in", 0, "Input features")
	out := fs.Int("out", 0, "Output features")
	kernel := fs.String("kernel", "3", "Kernel size for convolutions")
	seed := fs.Uint64("seed", 0, "Random seed")
	path := fs.String("o", "", "Output file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *path == "" {
		return fmt.Errorf("init: -o is required")
	}

	build, ok := layerBuilders[strings.ToLower(*layer)]
	if !ok {
		return fmt.Errorf("init: %w: layer %q, expected one of %s", nn.ErrUnknownTag, *layer, strings.Join(layerNames(), ", "))
	}
	ks, err := parseInts(*kernel)
	if err != nil {
		return err
	}
	m, err := build(*in, *out, ks, random.NewKey(*seed))
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"layer":        strings.ToLower(*layer),
		"in_features":  strconv.Itoa(*in),
		"out_features": strconv.Itoa(*out),
		"seed":         strconv.FormatUint(*seed, 10),
		"strata":       version,
	}
	if err := serialization.Save(*path, m, metadata); err != nil {
		return err
	}
	logger.Info("wrote layer", "layer", *layer, "file", *path, "parameters", nn.NumParameters(m))
	fmt.Fprintf(stdout, "%s: %d parameters\n", *path, nn.NumParameters(m))
	return nil
}
