package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "top.v")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunDumpsTree(t *testing.T) {
	path := writeFile(t, "module top(input a, output y);\n`ifdef INV\n  assign y = ~a;\n`else\n  assign y = a;\n`endif\nendmodule\n")

	var buf bytes.Buffer
	if err := run(context.Background(), &buf, path, []string{"INV"}, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ModuleDef (name: top)") {
		t.Fatalf("missing module in dump:\n%s", out)
	}
	if !strings.Contains(out, "UnaryOperator (op: ~)") {
		t.Fatalf("macro branch not taken:\n%s", out)
	}
}

func TestRunTokens(t *testing.T) {
	path := writeFile(t, "module top; endmodule\n")

	var buf bytes.Buffer
	if err := run(context.Background(), &buf, path, nil, true); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "endmodule") {
		t.Fatalf("token stream missing endmodule:\n%s", buf.String())
	}
}

func TestRunReportsParseError(t *testing.T) {
	path := writeFile(t, "module top(input a;\n")
	if err := run(context.Background(), &bytes.Buffer{}, path, nil, false); err == nil {
		t.Fatal("expected parse error")
	}
}
