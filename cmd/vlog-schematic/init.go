package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Create a configuration file",
		Long: `init writes the default configuration to vlog_schematic.json, or to the
given file. A .yaml or .yml name writes YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := config.FileNames[0]
			if len(args) > 0 {
				configPath = args[0]
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Config file %s already exists. Overwrite? [y/N]: ", configPath)
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			cfg := config.DefaultConfig()
			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("creating config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", configPath)
			fmt.Fprintln(out, "\nEdit this file to configure:")
			fmt.Fprintln(out, "  - Source globs and include directories")
			fmt.Fprintln(out, "  - Preprocessor engine and macros")
			fmt.Fprintln(out, "  - Schematic layout and output format")
			fmt.Fprintln(out, "  - Lint rule severities")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite without asking")
	return cmd
}
