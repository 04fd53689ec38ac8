// Package pipeline runs the stages between source files and outputs:
// resolve, preprocess, parse, build flows, lint and render.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/config"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/logging"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/parser"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/preprocess"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/render"
)

// Parser turns preprocessed text into an AST.
type Parser interface {
	ParseSource(ctx context.Context, name, src string) (*ast.Source, error)
}

// Pipeline holds the collaborators and settings of one run.
type Pipeline struct {
	Config   *config.Config
	Root     string
	Log      *zap.Logger
	Pre      preprocess.Preprocessor
	Parser   Parser
	Renderer render.Renderer

	timing *timingRecorder
}

// New wires the default collaborators selected by cfg.
func New(cfg *config.Config, root string, log *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	pre, err := preprocess.New(cfg.Preprocess.Engine, cfg.Preprocess.Command)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Config:   cfg,
		Root:     root,
		Log:      logging.OrNop(log),
		Pre:      pre,
		Parser:   parser.Builtin{},
		Renderer: &render.Graphviz{Command: cfg.Render.Command, KeepSource: cfg.Schematic.KeepSource},
	}
	p.timing = newTimingRecorder(time.Now(), timingPath(cfg.Analysis.Timing))
	if err := p.timing.Err(); err != nil {
		p.Log.Warn("timing disabled", zap.Error(err))
	}
	return p, nil
}

// Close releases the timing file.
func (p *Pipeline) Close() {
	p.timing.Close()
}

// FileError is a file that could not be preprocessed or parsed.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string {
	if strings.HasPrefix(e.Err.Error(), e.File) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// Loaded is the parsed design of a run.
type Loaded struct {
	Files  []string
	Source *ast.Source
	Design *netlist.Design
	// Errors lists files that were skipped.
	Errors []FileError
}

// Options maps the schematic settings onto flow options.
func Options(cfg *config.Config) netlist.Options {
	return netlist.Options{
		NetNodes:        netlist.NetMode(cfg.Schematic.NetNodes),
		FanoutThreshold: cfg.Schematic.FanoutThreshold,
		ShowConstants:   cfg.Schematic.ShowConstants,
		ShowUnused:      cfg.Schematic.ShowUnused,
		SelfLoops:       cfg.Schematic.SelfLoops,
	}
}

func (p *Pipeline) parallelism() int {
	if n := p.Config.Analysis.MaxParallelFiles; n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// Load resolves, preprocesses and parses every source file. A file that
// fails is recorded in Loaded.Errors and the others still load; Load fails
// when no module survives.
func (p *Pipeline) Load(ctx context.Context) (*Loaded, error) {
	runStart := time.Now()

	stepStart := time.Now()
	files, err := p.Config.ResolveSources(p.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no Verilog sources found under %s", p.Root)
	}
	p.timing.RecordStage("resolve", stepStart, "")
	p.Log.Debug("resolved sources", zap.Int("files", len(files)), zap.String("root", p.Root))

	stepStart = time.Now()
	sources := make([]*ast.Source, len(files))
	errs := make([]error, len(files))
	includeDirs := p.Config.IncludeDirs(p.Root)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism())
	for i, file := range files {
		g.Go(func() error {
			src, err := p.loadFile(gctx, file, includeDirs)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.timing.RecordStage("parse", stepStart, "")

	loaded := &Loaded{Files: files}
	for i, err := range errs {
		if err != nil {
			fe := FileError{File: files[i], Err: err}
			loaded.Errors = append(loaded.Errors, fe)
			p.Log.Warn("skipping file", zap.String("file", files[i]), zap.Error(err))
		}
	}

	stepStart = time.Now()
	loaded.Source = ast.Merge(sources...)
	loaded.Design = netlist.NewDesign(loaded.Source, Options(p.Config))
	p.timing.RecordStage("index", stepStart, "")

	if len(loaded.Design.Order) == 0 {
		if len(loaded.Errors) > 0 {
			return nil, fmt.Errorf("no module could be loaded:\n%s", formatPipelineErrors(fileErrors(loaded.Errors)))
		}
		return nil, fmt.Errorf("no module definitions found in %d file(s)", len(files))
	}
	for _, d := range loaded.Design.Diagnostics {
		p.Log.Warn(d.Message, zap.String("rule", d.Rule), zap.String("file", d.File), zap.Int("line", d.Line))
	}
	p.Log.Info("design loaded",
		zap.Int("files", len(files)),
		zap.Int("modules", len(loaded.Design.Order)),
		zap.Int("skipped", len(loaded.Errors)),
		zap.Duration("elapsed", time.Since(runStart)))
	return loaded, nil
}

func (p *Pipeline) loadFile(ctx context.Context, file string, includeDirs []string) (*ast.Source, error) {
	start := time.Now()
	res, err := p.Pre.Preprocess(ctx, preprocess.Request{
		Path:        file,
		Macros:      p.Config.Preprocess.Macros,
		IncludeDirs: includeDirs,
	})
	if err != nil {
		p.timing.RecordFile("preprocess", file, "error", start)
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	p.timing.RecordFile("preprocess", file, "", start)

	start = time.Now()
	src, err := p.Parser.ParseSource(ctx, file, res.Source)
	if err != nil {
		p.timing.RecordFile("parse", file, "error", start)
		return nil, err
	}
	p.timing.RecordFile("parse", file, "", start)
	p.Log.Debug("parsed", zap.String("file", file), zap.Int("modules", len(src.Modules)), zap.Int("skipped", len(src.Skipped)))
	return src, nil
}

func fileErrors(fes []FileError) []error {
	errs := make([]error, len(fes))
	for i, fe := range fes {
		errs[i] = fe
	}
	return errs
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}
