package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/schematic"
)

func newASTCmd(a *app) *cobra.Command {
	var (
		graph  bool
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "ast [path]",
		Short: "Print the parsed syntax tree",
		Long: `ast prints the syntax tree of the sources as an indented dump. With
--graph the tree is drawn instead, one node per syntax node.`,
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

			if !graph {
				return ast.Dump(cmd.OutOrStdout(), loaded.Source)
			}
			path, err := p.Renderer.Render(cmd.Context(), schematic.ASTGraph(loaded.Source).String(), format, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&graph, "graph", false, "draw the tree instead of dumping it")
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "graph output format")
	cmd.Flags().StringVarP(&output, "output", "o", "ast_graph", "graph output path without extension")
	return cmd
}
