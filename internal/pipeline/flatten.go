package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/preprocess"
)

// Flatten preprocesses every source file with macros (the configured ones
// when nil) and writes the expanded text, file after file, to output.
func (p *Pipeline) Flatten(ctx context.Context, macros []string, output string) (string, error) {
	if macros == nil {
		macros = p.Config.Preprocess.Macros
	}
	if output == "" {
		output = p.Config.Preprocess.Output
	}
	if !filepath.IsAbs(output) && p.Root != "" && isDir(p.Root) {
		output = filepath.Join(p.Root, output)
	}

	files, err := p.Config.ResolveSources(p.Root)
	if err != nil {
		return "", fmt.Errorf("resolve sources: %w", err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no Verilog sources found under %s", p.Root)
	}

	stepStart := time.Now()
	includeDirs := p.Config.IncludeDirs(p.Root)
	var b strings.Builder
	for _, file := range files {
		if filepath.Clean(file) == filepath.Clean(output) {
			continue
		}
		res, err := p.Pre.Preprocess(ctx, preprocess.Request{
			Path:        file,
			Macros:      macros,
			IncludeDirs: includeDirs,
		})
		if err != nil {
			return "", fmt.Errorf("%s: %w", file, err)
		}
		if len(files) > 1 {
			fmt.Fprintf(&b, "// ---- %s\n", file)
		}
		b.WriteString(res.Source)
		if !strings.HasSuffix(res.Source, "\n") {
			b.WriteString("\n")
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(output, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", output, err)
	}
	p.timing.RecordStage("flatten", stepStart, "")
	p.Log.Info("flattened", zap.Int("files", len(files)), zap.Strings("macros", macros), zap.String("output", output))
	return output, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
