package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
)

func newHierarchyCmd(a *app) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "hierarchy [path]",
		Short: "List the instantiation levels below every top-level module",
		Args:  cobra.MaximumNArgs(1),
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
			d := loaded.Design
			out := cmd.OutOrStdout()

			if module != "" {
				if _, ok := d.Modules[module]; !ok {
					return fmt.Errorf("module %q not found", module)
				}
				for _, c := range d.Children(module) {
					fmt.Fprintln(out, c)
				}
				return nil
			}

			fmt.Fprintf(out, "=== Hierarchy ===\n")
			for _, report := range d.Hierarchy() {
				fmt.Fprint(out, netlist.FormatHierarchy(report))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "only list the modules this one instantiates")
	return cmd
}
