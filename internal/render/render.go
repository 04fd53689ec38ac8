// Package render writes graph descriptions to image files.
package render

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

// Supported output formats.
const (
	FormatSVG     = "svg"
	FormatPNG     = "png"
	FormatPDF     = "pdf"
	FormatDOT     = "dot"
	FormatMermaid = "mermaid"
)

// Formats lists the accepted format names.
var Formats = []string{FormatSVG, FormatPNG, FormatPDF, FormatDOT, FormatMermaid}

// Renderer turns a graph description into a file.
type Renderer interface {
	// Render writes graph in the given format to outBase plus the format's
	// extension and returns the written path.
	Render(ctx context.Context, graph, format, outBase string) (string, error)
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	switch format {
	case FormatMermaid:
		return ".mmd"
	case "":
		return ".svg"
	}
	return "." + format
}

// Graphviz renders DOT source with the Graphviz dot executable.
type Graphviz struct {
	// Command is the executable, "dot" when empty.
	Command string
	// KeepSource also writes the DOT source next to the image.
	KeepSource bool
}

func (gv *Graphviz) command() string {
	if gv.Command == "" {
		return "dot"
	}
	return gv.Command
}

// Render writes graph to outBase plus the format's extension and returns
// the written path. DOT and Mermaid text is written as is; image formats
// are piped through the Graphviz command.
func (gv *Graphviz) Render(ctx context.Context, graph, format, outBase string) (string, error) {
	if format == "" {
		format = FormatSVG
	}
	if dir := filepath.Dir(outBase); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	out := outBase + Extension(format)

	switch format {
	case FormatDOT, FormatMermaid:
		if err := os.WriteFile(out, []byte(graph), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", out, err)
		}
		return out, nil
	case FormatSVG, FormatPNG, FormatPDF:
	default:
		return "", fmt.Errorf("unsupported format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}

	if gv.KeepSource {
		if err := os.WriteFile(outBase+".dot", []byte(graph), 0o644); err != nil {
			return "", fmt.Errorf("write dot source: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, gv.command(), "-T"+format, "-o", out)
	cmd.Stdin = strings.NewReader(graph)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("graphviz %q not found in PATH (install graphviz or use --format dot): %w", gv.command(), err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s -T%s: %w", gv.command(), format, err)
		}
		return "", fmt.Errorf("%s -T%s: %w: %s", gv.command(), format, err, msg)
	}
	return out, nil
}
