package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mizuy/microlisp/pkg/interpreter"
)

// ConfigFileName is the name searched for when no explicit path is given.
const ConfigFileName = "microlisp.yml"

// DefaultPrompt is printed before each top-level read.
const DefaultPrompt = "> "

// ErrConfigNotFound is returned by FindConfig when no file exists.
var ErrConfigNotFound = errors.New(ConfigFileName + " not found")

// Config represents the parsed contents of microlisp.yml.
type Config struct {
	Path               string
	Prompt             string
	ContinuationPrompt string
	MaxDepth           int
	HistoryFile        string
	CacheDir           string
	Prelude            []*PreludeSpec
}

// PreludeSpec describes one source evaluated before the first prompt.
type PreludeSpec struct {
	Path   string
	Git    string
	Rev    string
	Tag    string
	Branch string
	File   string
}

// Describe names the source for diagnostics.
func (p *PreludeSpec) Describe() string {
	if p == nil {
		return "<missing>"
	}
	if p.Git != "" {
		_, descriptor, _ := p.revision()
		return fmt.Sprintf("git+%s@%s:%s", p.Git, descriptor, p.File)
	}
	return p.Path
}

// ValidationError aggregates configuration validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Prompt:   DefaultPrompt,
		MaxDepth: interpreter.DefaultMaxDepth,
		CacheDir: defaultCacheDir(),
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "microlisp")
	}
	return filepath.Join(os.TempDir(), "microlisp")
}

// FindConfig walks from dir towards the filesystem root looking for
// microlisp.yml.
func FindConfig(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("config: resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, ConfigFileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config: stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrConfigNotFound
		}
		abs = parent
	}
}

// LoadConfig parses microlisp.yml from disk, returning a validated config.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw configFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			cfg := DefaultConfig()
			cfg.Path = absPath
			return cfg, nil
		}
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}

	cfg := raw.toConfig(absPath)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs ValidationError
	if c.MaxDepth < 1 {
		errs.Issues = append(errs.Issues, fmt.Sprintf("max_depth must be at least 1, got %d", c.MaxDepth))
	}
	for idx, spec := range c.Prelude {
		if spec == nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("prelude[%d] must be a mapping", idx))
			continue
		}
		for _, issue := range spec.validate() {
			errs.Issues = append(errs.Issues, fmt.Sprintf("prelude[%d]: %s", idx, issue))
		}
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

func (p *PreludeSpec) validate() []string {
	switch {
	case p.Path != "" && p.Git != "":
		return []string{"path and git cannot both be set"}
	case p.Path == "" && p.Git == "":
		return []string{"must specify path or git"}
	case p.Path != "":
		if p.Rev != "" || p.Tag != "" || p.Branch != "" || p.File != "" {
			return []string{"rev, tag, branch and file apply only to git sources"}
		}
		return nil
	}

	var errs []string
	refs := 0
	for _, ref := range []string{p.Rev, p.Tag, p.Branch} {
		if ref != "" {
			refs++
		}
	}
	if refs != 1 {
		errs = append(errs, "git sources require exactly one of rev, tag, or branch")
	}
	if p.File == "" {
		errs = append(errs, "git sources require file")
	} else if filepath.IsAbs(p.File) || strings.HasPrefix(filepath.Clean(p.File), "..") {
		errs = append(errs, fmt.Sprintf("file %q must stay inside the repository", p.File))
	}
	return errs
}

type configFile struct {
	Prompt             *string        `yaml:"prompt"`
	ContinuationPrompt string         `yaml:"continuation_prompt"`
	MaxDepth           *int           `yaml:"max_depth"`
	HistoryFile        string         `yaml:"history_file"`
	CacheDir           string         `yaml:"cache_dir"`
	Prelude            []*preludeYAML `yaml:"prelude"`
}

type preludeYAML struct {
	Path   string `yaml:"path"`
	Git    string `yaml:"git"`
	Rev    string `yaml:"rev"`
	Tag    string `yaml:"tag"`
	Branch string `yaml:"branch"`
	File   string `yaml:"file"`
}

func (cf configFile) toConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.Path = path
	baseDir := filepath.Dir(path)

	if cf.Prompt != nil {
		cfg.Prompt = *cf.Prompt
	}
	cfg.ContinuationPrompt = cf.ContinuationPrompt
	if cf.MaxDepth != nil {
		cfg.MaxDepth = *cf.MaxDepth
	}
	if history := strings.TrimSpace(cf.HistoryFile); history != "" {
		cfg.HistoryFile = resolveRelative(baseDir, history)
	}
	if cache := strings.TrimSpace(cf.CacheDir); cache != "" {
		cfg.CacheDir = resolveRelative(baseDir, cache)
	}

	cfg.Prelude = make([]*PreludeSpec, 0, len(cf.Prelude))
	for _, entry := range cf.Prelude {
		if entry == nil {
			cfg.Prelude = append(cfg.Prelude, nil)
			continue
		}
		spec := &PreludeSpec{
			Path:   strings.TrimSpace(entry.Path),
			Git:    strings.TrimSpace(entry.Git),
			Rev:    strings.TrimSpace(entry.Rev),
			Tag:    strings.TrimSpace(entry.Tag),
			Branch: strings.TrimSpace(entry.Branch),
			File:   strings.TrimSpace(entry.File),
		}
		if spec.Path != "" {
			spec.Path = resolveRelative(baseDir, spec.Path)
		}
		cfg.Prelude = append(cfg.Prelude, spec)
	}
	return cfg
}

func resolveRelative(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
