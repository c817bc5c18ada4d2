package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp-flow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// clearEnv keeps overrides from the developer's shell out of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"FLOWMCP_REPO", "FLOWMCP_OUTPUT_DIR", "FLOWMCP_WORKERS", "FLOWMCP_MERMAID_MODE"} {
		t.Setenv(k, "")
	}
}

func TestLoad_FillsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "repo: ./app\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Repo = "./app"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ZeroValuesDefaulted(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, `
workers: 0
output:
  dir: ""
  max_context_tokens: 0
  mermaid_mode: ""
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Dir != ".flowmcp" || cfg.Output.MaxContextTokens != 4000 || cfg.Output.MermaidMode != ModeAuto || cfg.Workers != 4 {
		t.Errorf("zero values not defaulted: %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, `
extractors: [ui, flow]
renderers: [mermaid]
workers: 2
output:
  mermaid_mode: flow
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsExtractorEnabled("flow") || cfg.IsExtractorEnabled("tea") {
		t.Errorf("extractors = %v", cfg.Extractors)
	}
	if cfg.IsRendererEnabled("report") {
		t.Error("report renderer should be disabled")
	}
	if !cfg.IsExplainerEnabled("hotspots") {
		t.Error("explainers should keep their defaults")
	}
	if cfg.Workers != 2 || cfg.Output.MermaidMode != ModeFlow {
		t.Errorf("workers=%d mode=%q", cfg.Workers, cfg.Output.MermaidMode)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOWMCP_REPO", "/srv/app")
	t.Setenv("FLOWMCP_OUTPUT_DIR", "out")
	t.Setenv("FLOWMCP_WORKERS", "8")
	t.Setenv("FLOWMCP_MERMAID_MODE", "tea")

	cfg, err := Load(writeConfig(t, "repo: .\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repo != "/srv/app" || cfg.Output.Dir != "out" || cfg.Workers != 8 || cfg.Output.MermaidMode != ModeTea {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     string
		wantErr string
	}{
		{"bad yaml", "repo: [unclosed\n", "", "parsing config"},
		{"bad mode", "output:\n  mermaid_mode: fancy\n", "", "unknown mermaid_mode"},
		{"negative workers", "workers: -1\n", "", "workers must not be negative"},
		{"bad env workers", "repo: .\n", "many", "FLOWMCP_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.env != "" {
				t.Setenv("FLOWMCP_WORKERS", tt.env)
			}
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Errorf("Load error = %v, want reading config error", err)
	}
}
