// Package main provides the sparseconv CLI: describe, initialize, inspect and
// export sparse convolution layers.
package main

import (
	"fmt"
	"io"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "sparseconv %s\n", version)
		return 0
	case "describe":
		err = runDescribe(args[1:], stdout, stderr)
	case "init":
		err = runInit(args[1:], stdout, stderr)
	case "inspect":
		err = runInspect(args[1:], stdout, stderr)
	case "export":
		err = runExport(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "sparseconv %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "sparseconv - sparse convolution layer tooling")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  describe   Describe a layer record (-record layer.json [-input 28x28])")
	fmt.Fprintln(w, "  init       Randomize a layer and write it (-record layer.json -seed N -out layer.born)")
	fmt.Fprintln(w, "  inspect    Validate and summarize a layer file (-in layer.born)")
	fmt.Fprintln(w, "  export     Convert a layer file to SafeTensors (-in layer.born -out layer.safetensors)")
}
