package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const graph = "digraph { a -> b; }\n"

func TestWriteSourceFormats(t *testing.T) {
	dir := t.TempDir()
	gv := &Graphviz{Command: filepath.Join(dir, "missing-dot")}
	for _, tc := range []struct {
		format string
		ext    string
	}{
		{FormatDOT, ".dot"},
		{FormatMermaid, ".mmd"},
	} {
		path, err := gv.Render(context.Background(), graph, tc.format, filepath.Join(dir, "out", "top"))
		if err != nil {
			t.Fatalf("%s: %v", tc.format, err)
		}
		if filepath.Ext(path) != tc.ext {
			t.Fatalf("unexpected path %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil || string(data) != graph {
			t.Fatalf("%s: source not written: %v", tc.format, err)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := (&Graphviz{}).Render(context.Background(), graph, "gif", filepath.Join(t.TempDir(), "x"))
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestMissingExecutableKeepsSource(t *testing.T) {
	dir := t.TempDir()
	gv := &Graphviz{Command: filepath.Join(dir, "no-such-dot"), KeepSource: true}
	base := filepath.Join(dir, "top")
	if _, err := gv.Render(context.Background(), graph, FormatSVG, base); err == nil {
		t.Fatalf("expected error for missing executable")
	}
	if _, err := os.Stat(base + ".dot"); err != nil {
		t.Fatalf("dot source should be kept: %v", err)
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{"": ".svg", "svg": ".svg", "png": ".png", "mermaid": ".mmd", "dot": ".dot"}
	for format, want := range cases {
		if got := Extension(format); got != want {
			t.Errorf("Extension(%q) = %q, want %q", format, got, want)
		}
	}
}
