package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceExtensions are the file extensions picked up by source globs.
// Headers (.vh, .svh) are only read through `include.
var SourceExtensions = []string{".v", ".sv", ".verilog"}

// IsSource reports whether path has a Verilog source extension.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ResolveSources expands the source globs against rootPath and returns the
// matching Verilog files, sorted. A rootPath naming a file resolves to that
// file alone.
func (c *Config) ResolveSources(rootPath string) ([]string, error) {
	if info, err := os.Stat(rootPath); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return []string{rootPath}, nil
	}

	fileSet := make(map[string]bool)
	for _, pattern := range c.Sources.Files {
		matches, err := expandGlob(rootPath, pattern)
		if err != nil {
			// Silently skip invalid patterns
			continue
		}
		for _, match := range matches {
			if IsSource(match) {
				fileSet[match] = true
			}
		}
	}

	// Remove excluded files
	for _, pattern := range c.Sources.Exclude {
		matches, err := expandGlob(rootPath, pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			delete(fileSet, match)
		}
	}

	var result []string
	for f := range fileSet {
		if c.ShouldIgnoreFile(f) {
			continue
		}
		result = append(result, f)
	}
	sort.Strings(result)
	return result, nil
}

// IncludeDirs returns the include directories resolved against rootPath.
func (c *Config) IncludeDirs(rootPath string) []string {
	base := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		base = filepath.Dir(rootPath)
	}
	dirs := make([]string, 0, len(c.Sources.IncludeDirs))
	for _, d := range c.Sources.IncludeDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(base, d)
		}
		dirs = append(dirs, d)
	}
	return dirs
}

// expandGlob expands a glob pattern relative to root, handling ** for
// recursive matching
func expandGlob(root, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(root, pattern)
	}
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	parts := strings.SplitN(pattern, "**", 2)
	baseDir := filepath.Clean(parts[0])
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	var results []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries, continue walking
		}
		if d.IsDir() {
			if path != baseDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if suffix == "" || matchSuffix(rel, suffix) {
			results = append(results, path)
		}
		return nil
	})
	return results, err
}

// matchSuffix checks if a path relative to the ** base matches the pattern
// after **
func matchSuffix(rel, pattern string) bool {
	// A pattern without a directory component matches the file name
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(rel))
		return matched
	}
	if matched, _ := filepath.Match(pattern, rel); matched {
		return true
	}
	// Otherwise match the trailing path elements
	n := strings.Count(pattern, string(filepath.Separator)) + 1
	elems := strings.Split(rel, string(filepath.Separator))
	if len(elems) < n {
		return false
	}
	matched, _ := filepath.Match(pattern, filepath.Join(elems[len(elems)-n:]...))
	return matched
}
