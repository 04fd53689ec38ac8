package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/render"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/schematic"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/snippet"
)

// DrawRequest selects what to draw. Empty fields take the configured value.
type DrawRequest struct {
	Top string
	// Depth is the number of instance levels to expand; nil uses the
	// configured expansion.
	Depth  *int
	Format string
	Output string
	// Force renders even when the cached output is current.
	Force bool
}

// Drawing is the result of Draw.
type Drawing struct {
	Top    string
	Path   string
	Flow   *netlist.Flow
	Cached bool
}

// PickTop returns the module to draw: the requested one, the configured
// one, or the only top-level module of the design.
func PickTop(d *netlist.Design, requested string) (string, error) {
	if requested != "" {
		if _, ok := d.Modules[requested]; !ok {
			return "", fmt.Errorf("module %q not found (defined: %s)", requested, strings.Join(d.Order, ", "))
		}
		return requested, nil
	}
	tops := d.Tops()
	switch len(tops) {
	case 0:
		// every module instantiates another one; fall back to the first
		return d.Order[0], nil
	case 1:
		return tops[0], nil
	}
	return "", fmt.Errorf("several top-level modules (%s); choose one with --top", strings.Join(tops, ", "))
}

// Graph returns the graph text of flow in format: Mermaid source for the
// mermaid format and DOT for everything else.
func (p *Pipeline) Graph(flow *netlist.Flow, format string) string {
	style := schematic.Style{RankDir: strings.ToUpper(p.Config.Schematic.RankDir)}
	if p.Config.Schematic.Tooltips {
		style.Snippets = snippet.NewReader()
	}
	if format == render.FormatMermaid {
		return schematic.Mermaid(flow, style)
	}
	return schematic.Build(flow, style).String()
}

// Draw builds the schematic of one module and renders it.
func (p *Pipeline) Draw(ctx context.Context, loaded *Loaded, req DrawRequest) (*Drawing, error) {
	cfg := p.Config
	if req.Top == "" {
		req.Top = cfg.Top
	}
	depth := cfg.Schematic.Expand
	if req.Depth != nil {
		depth = *req.Depth
	}
	if req.Format == "" {
		req.Format = cfg.Schematic.Format
	}
	if req.Output == "" {
		req.Output = cfg.Schematic.Output
	}
	if !validFormat(req.Format) {
		return nil, fmt.Errorf("unsupported format %q (want %s)", req.Format, strings.Join(render.Formats, ", "))
	}
	if !filepath.IsAbs(req.Output) && p.Root != "" && isDir(p.Root) {
		req.Output = filepath.Join(p.Root, req.Output)
	}

	top, err := PickTop(loaded.Design, req.Top)
	if err != nil {
		return nil, err
	}

	stepStart := time.Now()
	flow, err := loaded.Design.Elaborate(top, depth)
	if err != nil {
		return nil, err
	}
	graph := p.Graph(flow, req.Format)
	p.timing.RecordStage("schematic", stepStart, "")

	out := req.Output + render.Extension(req.Format)
	drawing := &Drawing{Top: top, Path: out, Flow: flow}

	var cache *renderCache
	key := renderKey(graph, req.Format, cfg.Render.Command, fmt.Sprint(cfg.Schematic.KeepSource))
	if cfg.CacheEnabled() {
		cache = newRenderCache(cfg.CacheDir(p.Root))
		if err := cache.Load(); err != nil {
			p.Log.Warn("render cache disabled", zap.Error(err))
			cache = nil
		}
	}
	if cache != nil && !req.Force && cache.Fresh(out, key) {
		drawing.Cached = true
		p.timing.RecordStage("render", time.Now(), "cached")
		p.Log.Info("schematic unchanged", zap.String("module", top), zap.String("output", out))
		return drawing, nil
	}

	stepStart = time.Now()
	path, err := p.Renderer.Render(ctx, graph, req.Format, req.Output)
	if err != nil {
		return nil, err
	}
	drawing.Path = path
	p.timing.RecordStage("render", stepStart, "")

	if cache != nil {
		cache.Put(path, req.Format, key)
		if err := cache.Save(); err != nil {
			p.Log.Warn("render cache save failed", zap.Error(err))
		}
	}
	p.Log.Info("schematic written",
		zap.String("module", top),
		zap.String("output", path),
		zap.Int("nodes", len(flow.Nodes)),
		zap.Int("edges", len(flow.Edges)))
	return drawing, nil
}

func validFormat(format string) bool {
	for _, f := range render.Formats {
		if f == format {
			return true
		}
	}
	return false
}
