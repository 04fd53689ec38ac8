package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/config"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/validator"
)

func newLintCmd(a *app) *cobra.Command {
	var (
		jsonOut   bool
		policyDir string
		macros    []string
	)
	cmd := &cobra.Command{
		Use:   "lint [path]",
		Short: "Check the signal flow for driver and connection problems",
		Long: `lint evaluates the rego rules over the fact tables of every module and
reports violations. The exit status is 2 when an error-severity violation
is found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(pathArg(args), func(cfg *config.Config) {
				if policyDir != "" {
					cfg.Lint.PolicyDir = policyDir
				}
				if len(macros) > 0 {
					cfg.Preprocess.Macros = macros
				}
			})
			if err != nil {
				return err
			}
			defer p.Close()

			loaded, err := p.Load(cmd.Context())
			if err != nil {
				return err
			}
			report, err := p.Analyze(cmd.Context(), loaded)
			if err != nil {
				return err
			}
			out := report.Output(loaded)

			if jsonOut {
				if err := writeLintJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				printLint(cmd.OutOrStdout(), out)
			}

			if out.Summary.Errors > 0 {
				return &exitError{code: 2, msg: fmt.Sprintf("%d lint errors", out.Summary.Errors)}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&policyDir, "policy-dir", "", "directory of extra .rego rules")
	cmd.Flags().StringSliceVarP(&macros, "define", "D", nil, "macro to define, NAME or NAME=VALUE")
	return cmd
}

// writeLintJSON checks out against the output contract before printing it.
func writeLintJSON(w io.Writer, out pipeline.LintOutput) error {
	v, err := validator.NewOutputValidator()
	if err != nil {
		return fmt.Errorf("init output validator: %w", err)
	}
	if err := v.Validate(out); err != nil {
		return fmt.Errorf("lint output invalid: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func printLint(w io.Writer, out pipeline.LintOutput) {
	if len(out.Violations) > 0 {
		fmt.Fprintf(w, "=== Lint Violations ===\n")
		for _, v := range out.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Fprintf(w, "%s [%s] %s:%d - %s\n", icon, v.Rule, v.File, v.Line, v.Message)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "=== Lint Summary ===\n")
	fmt.Fprintf(w, "  Files:    %d\n", len(out.Files))
	fmt.Fprintf(w, "  Errors:   %d\n", out.Summary.Errors)
	fmt.Fprintf(w, "  Warnings: %d\n", out.Summary.Warnings)
	fmt.Fprintf(w, "  Info:     %d\n", out.Summary.Info)

	if len(out.ParseErrors) > 0 {
		fmt.Fprintf(w, "\n=== Parse Errors ===\n")
		for _, e := range out.ParseErrors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
