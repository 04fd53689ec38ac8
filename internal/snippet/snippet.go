// Package snippet extracts source lines for tooltips and messages.
package snippet

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Reader reads source files once and serves line ranges from memory.
type Reader struct {
	mu    sync.Mutex
	files map[string][]string
}

// NewReader returns an empty Reader.
func NewReader() *Reader {
	return &Reader{files: make(map[string][]string)}
}

// Lines returns lines from..to of file (1-based, inclusive), each trimmed,
// joined by newlines. A range past the end of the file is clamped.
func (r *Reader) Lines(file string, from, to int) (string, error) {
	lines, err := r.load(file)
	if err != nil {
		return "", err
	}
	if from < 1 {
		from = 1
	}
	if to < from {
		to = from
	}
	if from > len(lines) {
		return "", fmt.Errorf("%s has %d lines, requested line %d", file, len(lines), from)
	}
	if to > len(lines) {
		to = len(lines)
	}
	out := make([]string, 0, to-from+1)
	for _, l := range lines[from-1 : to] {
		out = append(out, strings.TrimSpace(l))
	}
	return strings.Join(out, "\n"), nil
}

// Forget drops the cached copy of file, e.g. after it changed on disk.
func (r *Reader) Forget(file string) {
	r.mu.Lock()
	delete(r.files, file)
	r.mu.Unlock()
}

func (r *Reader) load(file string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lines, ok := r.files[file]; ok {
		return lines, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	r.files[file] = lines
	return lines, nil
}
