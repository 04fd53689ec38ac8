package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/facts"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/pipeline"
)

const cleanDesign = `module inv(input a, output y);
  assign y = ~a;
endmodule

module top(input x, output z);
  inv u0(.a(x), .y(z));
endmodule
`

const conflictDesign = `module top(input a, input b, output y);
  wire w;
  assign w = a;
  assign w = b;
  assign y = w;
endmodule
`

func writeDesign(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "design.v"), []byte(src), 0o644))
	return dir
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSchematicWritesDOT(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	base := filepath.Join(dir, "out", "top")

	out, err := run(t, "", "schematic", dir, "--format", "dot", "--output", base, "--depth", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+base+".dot (top)")

	data, err := os.ReadFile(base + ".dot")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph"))
	assert.Contains(t, string(data), `label="inv\n(u0)"`)

	out, err = run(t, "", "schematic", dir, "--format", "dot", "--output", base, "--depth", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")
}

func TestSchematicUnknownTop(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	_, err := run(t, "", "schematic", dir, "--top", "missing", "--format", "dot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `module "missing" not found`)
}

func TestLintCleanDesign(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	out, err := run(t, "", "lint", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Lint Summary ===")
	assert.Contains(t, out, "Errors:   0")
}

func TestLintJSONReportsErrors(t *testing.T) {
	dir := writeDesign(t, conflictDesign)
	out, err := run(t, "", "lint", dir, "--json")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	var doc pipeline.LintOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 1, doc.Summary.Errors)
	var rules []string
	for _, v := range doc.Violations {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, "multiple_drivers")
}

func TestFactsFilterByModule(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	out, err := run(t, "", "facts", dir, "--module", "inv")
	require.NoError(t, err)

	var tables facts.Tables
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	require.Len(t, tables.Modules, 1)
	assert.Equal(t, "inv", tables.Modules[0].Name)
	for _, p := range tables.Ports {
		assert.Equal(t, "inv", p.Module)
	}
}

func TestFactsToFile(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	path := filepath.Join(dir, "facts.json")
	_, err := run(t, "", "facts", dir, "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var tables facts.Tables
	require.NoError(t, json.Unmarshal(data, &tables))
	assert.Len(t, tables.Modules, 2)
}

func TestFactsFilterByFile(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	other := filepath.Join(dir, "other.v")
	require.NoError(t, os.WriteFile(other, []byte("module other(input a, output y);\n  assign y = a;\nendmodule\n"), 0o644))

	out, err := run(t, "", "facts", dir, "--file", other)
	require.NoError(t, err)

	var tables facts.Tables
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	require.Len(t, tables.Modules, 1)
	assert.Equal(t, "other", tables.Modules[0].Name)
}

func TestHierarchy(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	out, err := run(t, "", "hierarchy", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "  top\n")
	assert.Contains(t, out, "level 1 (1): inv")

	out, err = run(t, "", "hierarchy", dir, "--module", "top")
	require.NoError(t, err)
	assert.Equal(t, "inv\n", out)
}

func TestFlattenWithDefine(t *testing.T) {
	dir := writeDesign(t, "module top(input [`W-1:0] a, output y);\n  assign y = a[0];\nendmodule\n")
	path := filepath.Join(dir, "flat", "flat.v")
	out, err := run(t, "", "flatten", dir, "-D", "W=8", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[8-1:0]")
}

func TestASTDump(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	out, err := run(t, "", "ast", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ModuleDef (name: inv)")
	assert.Contains(t, out, "InstanceList (module: inv)")
}

func TestASTGraph(t *testing.T) {
	dir := writeDesign(t, cleanDesign)
	base := filepath.Join(dir, "ast")
	_, err := run(t, "", "ast", dir, "--graph", "-f", "dot", "-o", base)
	require.NoError(t, err)
	data, err := os.ReadFile(base + ".dot")
	require.NoError(t, err)
	assert.Contains(t, string(data), "ModuleDef")
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vlog_schematic.yaml")

	out, err := run(t, "", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rankdir")

	out, err = run(t, "n\n", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")
}

func TestExplicitConfig(t *testing.T) {
	dir := writeDesign(t, conflictDesign)
	cfgPath := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"lint": {"rules": {"multiple_drivers": "off"}}}`), 0o644))

	_, err := run(t, "", "--config", cfgPath, "lint", dir)
	require.NoError(t, err)

	_, err = run(t, "", "--config", filepath.Join(dir, "absent.json"), "lint", dir)
	require.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("plain")))
	assert.Equal(t, 2, exitCode(&exitError{code: 2, msg: "lint"}))
}
