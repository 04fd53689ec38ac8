// Command vlog-facts writes the fact tables of a Verilog design as JSON,
// optionally with the delta against a previous export.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/config"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/facts"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/logging"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/validator"
)

func main() {
	output := flag.String("output", "", "write facts JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write facts JSON to file (shorthand)")
	deltaFrom := flag.String("delta-from", "", "previous facts JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: vlog-facts [--output file] [--delta-from prev.json --delta-out delta.json] <path>")
		os.Exit(1)
	}
	if (*deltaFrom == "") != (*deltaOut == "") {
		fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
		os.Exit(1)
	}

	path := args[0]
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(*verbose, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	tables, err := export(context.Background(), cfg, path, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := writeJSON(*output, tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing facts: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding facts: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" {
		prev, err := readTables(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := facts.ComputeDelta(prev, tables)
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

// export loads the design under path and returns its validated tables.
func export(ctx context.Context, cfg *config.Config, path string, log *zap.Logger) (facts.Tables, error) {
	p, err := pipeline.New(cfg, path, log)
	if err != nil {
		return facts.Tables{}, err
	}
	defer p.Close()

	loaded, err := p.Load(ctx)
	if err != nil {
		return facts.Tables{}, err
	}
	for _, fe := range loaded.Errors {
		log.Warn("file skipped", zap.String("file", fe.File), zap.Error(fe.Err))
	}

	tables := pipeline.Tables(loaded)
	v, err := validator.NewFactsValidator()
	if err != nil {
		return facts.Tables{}, fmt.Errorf("init facts validator: %w", err)
	}
	if err := v.Validate(tables); err != nil {
		return facts.Tables{}, fmt.Errorf("fact tables invalid: %w", err)
	}
	return tables, nil
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
