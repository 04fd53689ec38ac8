package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	o := &schematicOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Redraw the schematic whenever a source changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.depthSet = cmd.Flags().Changed("depth")
			root := pathArg(args)
			p, err := a.pipeline(root, o.edit)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			redraw := func(ctx context.Context, changed []string) {
				if len(changed) > 0 {
					a.log.Info("sources changed", zap.Strings("files", changed))
				}
				if err := drawOnce(ctx, cmd, p, o.request()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
			}
			redraw(ctx, nil)

			dir := root
			if info, err := os.Stat(root); err == nil && !info.IsDir() {
				dir = filepath.Dir(root)
			}
			w, err := watch.New([]string{dir}, debounce, a.log, redraw)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (Ctrl-C to stop)\n", dir)
			select {
			case <-ctx.Done():
			case <-w.Done():
			}
			return nil
		},
	}
	o.addFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet time before redrawing")
	return cmd
}

func drawOnce(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline, req pipeline.DrawRequest) error {
	loaded, err := p.Load(ctx)
	if err != nil {
		return err
	}
	reportSkipped(cmd, loaded)
	drawing, err := p.Draw(ctx, loaded, req)
	if err != nil {
		return err
	}
	if !drawing.Cached {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", drawing.Path, drawing.Top)
	}
	return nil
}
