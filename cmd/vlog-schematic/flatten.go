package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFlattenCmd(a *app) *cobra.Command {
	var (
		macros []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "flatten [path]",
		Short: "Preprocess the sources into one file",
		Long: `flatten runs the preprocessor over every source with the given macros
defined and writes the expanded text to a single file. Without --define the
configured macros are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(pathArg(args), nil)
			if err != nil {
				return err
			}
			defer p.Close()

			var defs []string
			if cmd.Flags().Changed("define") {
				defs = macros
				if defs == nil {
					defs = []string{}
				}
			}
			path, err := p.Flatten(cmd.Context(), defs, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&macros, "define", "D", nil, "macro to define, NAME or NAME=VALUE")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: preprocess.output)")
	return cmd
}
