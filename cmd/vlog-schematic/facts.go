package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/facts"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/validator"
)

func newFactsCmd(a *app) *cobra.Command {
	var (
		output string
		module string
		files  []string
		delta  bool
	)
	cmd := &cobra.Command{
		Use:   "facts [path]",
		Short: "Export the signal flow as relational fact tables",
		Long: `facts prints the fact tables (modules, ports, signals, instances, pins,
blocks, edges, diagnostics) as JSON. With --delta the rows added and removed
since the previous run are printed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(pathArg(args), nil)
			if err != nil {
				return err
			}
			defer p.Close()

			loaded, err := p.Load(cmd.Context())
			if err != nil {
				return err
			}
			reportSkipped(cmd, loaded)

			var doc any
			if delta {
				report, err := p.Analyze(cmd.Context(), loaded)
				if err != nil {
					return err
				}
				if !report.HasDelta {
					fmt.Fprintln(cmd.ErrOrStderr(), "no previous run cached; every row is new")
					report.Delta = facts.ComputeDelta(facts.Tables{}, report.Tables)
				}
				if len(files) > 0 {
					report.Delta = facts.FilterDeltaByFiles(report.Delta, fileSet(files))
				}
				doc = report.Delta
			} else {
				tables := pipeline.Tables(loaded)
				v, err := validator.NewFactsValidator()
				if err != nil {
					return fmt.Errorf("init facts validator: %w", err)
				}
				if err := v.Validate(tables); err != nil {
					return fmt.Errorf("fact tables invalid: %w", err)
				}
				if module != "" {
					tables = facts.FilterTablesByModule(tables, module)
				}
				if len(files) > 0 {
					tables = facts.FilterTablesByFiles(tables, fileSet(files))
				}
				doc = tables
			}

			if output == "" {
				return encodeJSON(cmd.OutOrStdout(), doc)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return encodeJSON(f, doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON to file (default: stdout)")
	cmd.Flags().StringVarP(&module, "module", "m", "", "only rows of this module")
	cmd.Flags().StringSliceVar(&files, "file", nil, "only rows from these source files")
	cmd.Flags().BoolVar(&delta, "delta", false, "print rows changed since the previous run")
	return cmd
}

// fileSet holds each file as given and as an absolute path.
func fileSet(files []string) map[string]bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
		if abs, err := filepath.Abs(f); err == nil {
			set[abs] = true
		}
	}
	return set
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
