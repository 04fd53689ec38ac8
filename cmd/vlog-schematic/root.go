package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/config"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/logging"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
)

// app holds the state shared by every command.
type app struct {
	configPath string
	verbose    bool
	jsonLog    bool

	log *zap.Logger
}

// exitError carries a process exit code without printing anything more.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "vlog-schematic",
		Short: "Signal-flow schematics of Verilog designs",
		Long: `vlog-schematic parses Verilog sources, reconstructs which constructs drive
and read every signal, and draws the result as a schematic.

Configuration is read from the first of:
  1. ./vlog_schematic.json, ./.vlog_schematic.json, ./vlog_schematic.yaml
  2. the same names in <path>
  3. ~/.config/vlog_schematic/config.json

Run 'vlog-schematic init' to create a default configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(a.verbose, a.jsonLog)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: search path)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.jsonLog, "json-log", false, "log as JSON")

	root.AddCommand(
		newSchematicCmd(a),
		newFlattenCmd(a),
		newASTCmd(a),
		newLintCmd(a),
		newFactsCmd(a),
		newHierarchyCmd(a),
		newWatchCmd(a),
		newInitCmd(a),
	)
	return root
}

func pathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func (a *app) loadConfig(root string) (*config.Config, error) {
	if a.configPath != "" {
		cfg, err := config.LoadFile(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", a.configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// pipeline loads the configuration for root, lets edit adjust it, and
// builds the pipeline over it.
func (a *app) pipeline(root string, edit func(*config.Config)) (*pipeline.Pipeline, error) {
	cfg, err := a.loadConfig(root)
	if err != nil {
		return nil, err
	}
	if edit != nil {
		edit(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return pipeline.New(cfg, root, a.log)
}

// reportSkipped prints the files that failed to load.
func reportSkipped(cmd *cobra.Command, loaded *pipeline.Loaded) {
	for _, fe := range loaded.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", fe.Error())
	}
}
