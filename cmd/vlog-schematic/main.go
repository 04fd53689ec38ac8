// Command vlog-schematic draws signal-flow schematics of Verilog designs.
//
// The pipeline:
//  1. sources are resolved from the configured globs under <path>
//  2. each file is preprocessed and parsed in parallel
//  3. the netlist package rebuilds drivers and loads of every signal
//  4. the flow of the chosen top module is drawn as DOT or Mermaid and
//     rendered with graphviz
//
// lint and facts export the same flow as relational tables, checked
// against a CUE contract and evaluated by rego policies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
