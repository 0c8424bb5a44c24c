// Package main provides the strata CLI.
//
// Usage:
//
//	strata [-v] <command> [flags]
//
// Commands:
//
//	version   Show version
//	shape     Resolve convolution padding and output shape
//	inspect   List the tensors of a .safetensors file
//	init      Write a freshly initialized layer to a .safetensors file
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const version = "v0.1.0-dev"

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "strata: %v\n", err)
		}
		os.Exit(2)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("strata", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "Enable debug logging")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return errUsage
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr)
		return errUsage
	}

	cmd, cmdArgs := rest[0], rest[1:]
	logger.Debug("running command", "command", cmd, "args", cmdArgs)
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "strata %s\n", version)
		return nil
	case "shape":
		return runShape(cmdArgs, stdout, stderr, logger)
	case "inspect":
		return runInspect(cmdArgs, stdout, stderr, logger)
	case "init":
		return runInit(cmdArgs, stdout, stderr, logger)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return errUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "strata %s - layer catalog tools\n\n", version)
	fmt.Fprintln(w, "Usage: strata [-v] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  shape      Resolve convolution padding and output shape")
	fmt.Fprintln(w, "  inspect    List the tensors of a .safetensors file")
	fmt.Fprintln(w, "  init       Write a freshly initialized layer to a .safetensors file")
}
