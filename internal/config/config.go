package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for vlog-schematic
type Config struct {
	// Top is the module to draw; empty means every top-level module.
	Top string `json:"top,omitempty" yaml:"top,omitempty"`

	// Sources selects the Verilog files to read
	Sources SourcesConfig `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Preprocess configures macro expansion before parsing
	Preprocess PreprocessConfig `json:"preprocess,omitempty" yaml:"preprocess,omitempty"`

	// Schematic controls graph construction and styling
	Schematic SchematicConfig `json:"schematic,omitempty" yaml:"schematic,omitempty"`

	// Render configures the graph renderer
	Render RenderConfig `json:"render,omitempty" yaml:"render,omitempty"`

	// Lint contains linting rule configuration
	Lint LintConfig `json:"lint,omitempty" yaml:"lint,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// SourcesConfig lists source globs relative to the project root
type SourcesConfig struct {
	// Files is a list of glob patterns; ** matches any directory depth
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// Exclude is a list of glob patterns removed from Files
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// IncludeDirs are searched by `include
	IncludeDirs []string `json:"includeDirs,omitempty" yaml:"includeDirs,omitempty"`
}

// PreprocessConfig selects the preprocessor engine
type PreprocessConfig struct {
	// Engine is "builtin", "iverilog" or "none"
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`

	// Command overrides the external preprocessor executable
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Macros are defined for every file, as NAME or NAME=VALUE
	Macros []string `json:"macros,omitempty" yaml:"macros,omitempty"`

	// Output is where the flatten command writes expanded sources
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// SchematicConfig controls how flows are built and drawn
type SchematicConfig struct {
	// RankDir is the layout direction: LR, RL, TB or BT
	RankDir string `json:"rankdir,omitempty" yaml:"rankdir,omitempty"`

	// Format is svg, png, pdf, dot or mermaid
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Output is the output path without extension
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Expand is the number of instance levels drawn inline (0 = flat)
	Expand int `json:"expand,omitempty" yaml:"expand,omitempty"`

	// NetNodes is auto, always or never
	NetNodes string `json:"netNodes,omitempty" yaml:"netNodes,omitempty"`

	// FanoutThreshold is the load count above which auto mode adds a junction
	FanoutThreshold int `json:"fanoutThreshold,omitempty" yaml:"fanoutThreshold,omitempty"`

	ShowConstants bool `json:"showConstants,omitempty" yaml:"showConstants,omitempty"`
	ShowUnused    bool `json:"showUnused,omitempty" yaml:"showUnused,omitempty"`
	SelfLoops     bool `json:"selfLoops,omitempty" yaml:"selfLoops,omitempty"`

	// Tooltips attaches source snippets to nodes
	Tooltips bool `json:"tooltips,omitempty" yaml:"tooltips,omitempty"`

	// KeepSource also writes the DOT source next to rendered images
	KeepSource bool `json:"keepSource,omitempty" yaml:"keepSource,omitempty"`
}

// RenderConfig configures the graphviz executable
type RenderConfig struct {
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
}

// LintConfig contains linting configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty" yaml:"rules,omitempty"`

	// IgnorePatterns is a list of file patterns to skip entirely
	IgnorePatterns []string `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty"`

	// PolicyDir holds extra *.rego files evaluated with the built-in rules
	PolicyDir string `json:"policyDir,omitempty" yaml:"policyDir,omitempty"`
}

// CacheConfig controls the render and fact tables cache
type CacheConfig struct {
	// Enabled turns on cache usage
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty" yaml:"maxParallelFiles,omitempty"`

	// Cache controls the render and fact tables cache
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`

	// Timing writes per-stage timings as JSON lines to this path
	Timing string `json:"timing,omitempty" yaml:"timing,omitempty"`
}

const (
	defaultCacheDir = ".vlog_schematic_cache"
	defaultOutput   = "output/verilog_schematic"
)

func defaultSources() []string {
	return []string{"*.v", "*.sv", "**/*.v", "**/*.sv"}
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Files:       defaultSources(),
			Exclude:     []string{},
			IncludeDirs: []string{},
		},
		Preprocess: PreprocessConfig{
			Engine: "builtin",
			Macros: []string{},
			Output: "flattened.v",
		},
		Schematic: SchematicConfig{
			RankDir:         "LR",
			Format:          "svg",
			Output:          defaultOutput,
			NetNodes:        "auto",
			FanoutThreshold: 4,
		},
		Render: RenderConfig{
			Command: "dot",
		},
		Lint: LintConfig{
			Rules:          map[string]string{},
			IgnorePatterns: []string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			Cache: CacheConfig{
				Enabled: boolPtr(true),
				Dir:     defaultCacheDir,
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// FileNames are the configuration file names looked up in a directory, in
// order.
var FileNames = []string{"vlog_schematic.json", ".vlog_schematic.json", "vlog_schematic.yaml", ".vlog_schematic.yaml"}

// Load finds and loads the configuration file
// Search order:
//  1. ./vlog_schematic.json, ./.vlog_schematic.json, ./vlog_schematic.yaml (cwd)
//  2. the same names in <rootPath> (if different from cwd)
//  3. ~/.config/vlog_schematic/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	path := Find(rootPath)
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// Find returns the first existing configuration file in the search order,
// or "" when there is none.
func Find(rootPath string) string {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range FileNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	// If rootPath is a directory and different from cwd, also check there
	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range FileNames {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "vlog_schematic", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFile loads configuration from a specific file. Files ending in .yaml
// or .yml are read as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	// Apply defaults for missing fields
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if len(c.Sources.Files) == 0 {
		c.Sources.Files = d.Sources.Files
	}
	if c.Preprocess.Engine == "" {
		c.Preprocess.Engine = d.Preprocess.Engine
	}
	if c.Preprocess.Output == "" {
		c.Preprocess.Output = d.Preprocess.Output
	}
	if c.Schematic.RankDir == "" {
		c.Schematic.RankDir = d.Schematic.RankDir
	}
	if c.Schematic.Format == "" {
		c.Schematic.Format = d.Schematic.Format
	}
	if c.Schematic.Output == "" {
		c.Schematic.Output = d.Schematic.Output
	}
	if c.Schematic.NetNodes == "" {
		c.Schematic.NetNodes = d.Schematic.NetNodes
	}
	if c.Schematic.FanoutThreshold <= 0 {
		c.Schematic.FanoutThreshold = d.Schematic.FanoutThreshold
	}
	if c.Render.Command == "" {
		c.Render.Command = d.Render.Command
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = defaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(true)
	}
}

// Validate reports settings that have a fixed set of values and hold
// something else.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Schematic.RankDir) {
	case "LR", "RL", "TB", "BT":
	default:
		return fmt.Errorf("schematic.rankdir %q: want LR, RL, TB or BT", c.Schematic.RankDir)
	}
	switch c.Schematic.NetNodes {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("schematic.netNodes %q: want auto, always or never", c.Schematic.NetNodes)
	}
	for rule, severity := range c.Lint.Rules {
		switch severity {
		case "off", "info", "warning", "error":
		default:
			return fmt.Errorf("lint.rules.%s %q: want off, info, warning or error", rule, severity)
		}
	}
	return nil
}

// Save writes the configuration to a file, as YAML when the name ends in
// .yaml or .yml and as JSON otherwise.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CacheEnabled reports whether the on-disk cache is in use.
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled != nil && *c.Analysis.Cache.Enabled
}

// CacheDir returns the cache directory, resolved against rootPath.
func (c *Config) CacheDir(rootPath string) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	dir := c.Analysis.Cache.Dir
	if dir == "" {
		dir = defaultCacheDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// ShouldIgnoreFile checks if a file should be skipped entirely
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.Lint.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
