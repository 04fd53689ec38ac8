// Package preprocess expands compiler directives and macros in Verilog
// sources before parsing.
package preprocess

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Request describes one file to preprocess.
type Request struct {
	Path        string
	Macros      []string // NAME or NAME=VALUE
	IncludeDirs []string
	// Output, when set, is where the expanded source is also written.
	Output string
}

// Result is the expanded source.
type Result struct {
	Path   string // Output if written, otherwise the input path
	Source string
}

// Preprocessor turns a source file into macro-expanded text.
type Preprocessor interface {
	Preprocess(ctx context.Context, req Request) (Result, error)
}

// Engine names accepted by New.
const (
	EngineIverilog = "iverilog"
	EngineBuiltin  = "builtin"
	EngineNone     = "none"
)

// New returns the preprocessor for the named engine. command overrides the
// executable of external engines.
func New(engine, command string) (Preprocessor, error) {
	switch engine {
	case EngineIverilog:
		return &Iverilog{Command: command}, nil
	case EngineBuiltin, "":
		return &Builtin{}, nil
	case EngineNone:
		return None{}, nil
	}
	return nil, fmt.Errorf("unknown preprocessor engine %q (want %s, %s or %s)", engine, EngineIverilog, EngineBuiltin, EngineNone)
}

// SplitMacro splits "NAME=VALUE" into its parts. A bare NAME has an empty
// value and ok reports whether a value was given.
func SplitMacro(m string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(m, "=")
	return strings.TrimSpace(name), value, ok
}

// None returns the source unchanged.
type None struct{}

func (None) Preprocess(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", req.Path, err)
	}
	return finish(req, string(data))
}

func finish(req Request, src string) (Result, error) {
	res := Result{Path: req.Path, Source: src}
	if req.Output == "" {
		return res, nil
	}
	if err := os.WriteFile(req.Output, []byte(src), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", req.Output, err)
	}
	res.Path = req.Output
	return res, nil
}
