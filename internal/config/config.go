package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mermaid modes accepted by output.mermaid_mode.
const (
	ModeAuto      = "auto"
	ModeHeuristic = "heuristic"
	ModeFlow      = "flow"
	ModeTea       = "tea"
)

const (
	defaultOutputDir = ".flowmcp"
	defaultTokens    = 4000
	defaultWorkers   = 4
)

// Config represents the mcp-flow.yaml configuration.
type Config struct {
	Repo       string       `yaml:"repo"`
	Ignore     []string     `yaml:"ignore"`
	Extractors []string     `yaml:"extractors"`
	Explainers []string     `yaml:"explainers"`
	Renderers  []string     `yaml:"renderers"`
	Workers    int          `yaml:"workers"`
	Output     OutputConfig `yaml:"output"`
}

// OutputConfig controls where and how output artifacts are generated.
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	MaxContextTokens int    `yaml:"max_context_tokens"`
	MermaidMode      string `yaml:"mermaid_mode"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Repo: ".",
		Ignore: []string{
			"target/**",
			".git/**",
			"vendor/**",
			".flowmcp/**",
		},
		Extractors: []string{"ui", "action", "state", "flow", "tea"},
		Explainers: []string{"tea", "hotspots"},
		Renderers:  []string{"mermaid", "report"},
		Workers:    defaultWorkers,
		Output: OutputConfig{
			Dir:              defaultOutputDir,
			MaxContextTokens: defaultTokens,
			MermaidMode:      ModeAuto,
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults, then environment overrides apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaultOutputDir
	}
	if cfg.Output.MaxContextTokens == 0 {
		cfg.Output.MaxContextTokens = defaultTokens
	}
	if cfg.Output.MermaidMode == "" {
		cfg.Output.MermaidMode = ModeAuto
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaultWorkers
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv loads a .env file from the working directory if one exists and
// applies the FLOWMCP_* overrides from the process environment.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv("FLOWMCP_REPO")); v != "" {
		c.Repo = v
	}
	if v := strings.TrimSpace(os.Getenv("FLOWMCP_OUTPUT_DIR")); v != "" {
		c.Output.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("FLOWMCP_MERMAID_MODE")); v != "" {
		c.Output.MermaidMode = v
	}
	if v := strings.TrimSpace(os.Getenv("FLOWMCP_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing FLOWMCP_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Output.MermaidMode {
	case ModeAuto, ModeHeuristic, ModeFlow, ModeTea:
	default:
		return fmt.Errorf("unknown mermaid_mode %q (want auto, heuristic, flow or tea)", c.Output.MermaidMode)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// IsExtractorEnabled returns true if the named extractor is enabled.
func (c *Config) IsExtractorEnabled(name string) bool {
	return slices.Contains(c.Extractors, name)
}

// IsExplainerEnabled returns true if the named explainer is enabled.
func (c *Config) IsExplainerEnabled(name string) bool {
	return slices.Contains(c.Explainers, name)
}

// IsRendererEnabled returns true if the named renderer is enabled.
func (c *Config) IsRendererEnabled(name string) bool {
	return slices.Contains(c.Renderers, name)
}
