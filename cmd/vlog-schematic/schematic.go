package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/config"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
)

type schematicOptions struct {
	top      string
	depth    int
	depthSet bool // --depth given, possibly 0
	format   string
	output   string
	rankdir  string
	macros   []string
	force    bool
}

func (o *schematicOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.top, "top", "t", "", "module to draw (default: the only top-level module)")
	cmd.Flags().IntVarP(&o.depth, "depth", "d", 0, "levels of instances to expand into clusters (default: schematic.expand)")
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format: svg, png, pdf, dot, mermaid")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output path without extension")
	cmd.Flags().StringVar(&o.rankdir, "rankdir", "", "graph direction: LR, RL, TB, BT")
	cmd.Flags().StringSliceVarP(&o.macros, "define", "D", nil, "macro to define, NAME or NAME=VALUE")
}

func (o *schematicOptions) edit(cfg *config.Config) {
	if o.rankdir != "" {
		cfg.Schematic.RankDir = o.rankdir
	}
	if len(o.macros) > 0 {
		cfg.Preprocess.Macros = o.macros
	}
}

func (o *schematicOptions) request() pipeline.DrawRequest {
	req := pipeline.DrawRequest{
		Top:    o.top,
		Format: o.format,
		Output: o.output,
		Force:  o.force,
	}
	if o.depthSet {
		depth := o.depth
		req.Depth = &depth
	}
	return req
}

func newSchematicCmd(a *app) *cobra.Command {
	o := &schematicOptions{}
	cmd := &cobra.Command{
		Use:   "schematic [path]",
		Short: "Draw the schematic of a module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.depthSet = cmd.Flags().Changed("depth")
			p, err := a.pipeline(pathArg(args), o.edit)
			if err != nil {
				return err
			}
			defer p.Close()

			loaded, err := p.Load(cmd.Context())
			if err != nil {
				return err
			}
			reportSkipped(cmd, loaded)

			drawing, err := p.Draw(cmd.Context(), loaded, o.request())
			if err != nil {
				return err
			}
			for _, d := range drawing.Flow.Diagnostics {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", d.String())
			}
			state := "wrote"
			if drawing.Cached {
				state = "unchanged"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", state, drawing.Path, drawing.Top)
			return nil
		},
	}
	o.addFlags(cmd)
	cmd.Flags().BoolVar(&o.force, "force", false, "render even when the output is current")
	return cmd
}
