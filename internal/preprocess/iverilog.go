package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Iverilog runs Icarus Verilog in preprocess-only mode (iverilog -E).
type Iverilog struct {
	// Command is the executable, "iverilog" when empty.
	Command string
}

func (iv *Iverilog) command() string {
	if iv.Command == "" {
		return "iverilog"
	}
	return iv.Command
}

// Args returns the command line arguments used for req writing to out.
func (iv *Iverilog) Args(req Request, out string) []string {
	args := []string{"-E"}
	for _, m := range req.Macros {
		args = append(args, "-D"+m)
	}
	for _, dir := range req.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	return append(args, req.Path, "-o", out)
}

func (iv *Iverilog) Preprocess(ctx context.Context, req Request) (Result, error) {
	out := req.Output
	if out == "" {
		tmp, err := os.MkdirTemp("", "vlog-pp-")
		if err != nil {
			return Result{}, fmt.Errorf("temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		out = filepath.Join(tmp, filepath.Base(req.Path))
	}

	cmd := exec.CommandContext(ctx, iv.command(), iv.Args(req, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Result{}, fmt.Errorf("preprocessor %q not found in PATH (install Icarus Verilog or use the builtin engine): %w", iv.command(), err)
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return Result{}, fmt.Errorf("%s -E %s: %w", iv.command(), req.Path, err)
		}
		return Result{}, fmt.Errorf("%s -E %s: %w: %s", iv.command(), req.Path, err, msg)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return Result{}, fmt.Errorf("read preprocessed output: %w", err)
	}
	res := Result{Path: req.Path, Source: string(data)}
	if req.Output != "" {
		res.Path = req.Output
	}
	return res, nil
}
