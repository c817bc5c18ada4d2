package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/flowmcp/internal/config"
	"github.com/dejo1307/flowmcp/internal/engine"
	"github.com/dejo1307/flowmcp/internal/renderers/mermaid"
)

const appSrc = `fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.button("Add").clicked() {
        state.items.push(1);
    }
    state.items.clear();
}
`

const counterSrc = `impl App for Counter {
    fn update(model: &mut Model, msg: Msg) {
        match msg {
            Msg::Increment => model.counter += 1,
        }
    }

    fn view(model: &Model, ctx: &mut ViewCtx<Msg>) {
        Button::primary("+").on_click(ctx, Msg::Increment);
    }
}
`

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func newServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	eng.RegisterRenderer(mermaid.New(cfg.Output.MermaidMode))
	srv, err := New(eng, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

// newSnapshotServer generates a snapshot of a two-file repo.
func newSnapshotServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, src := range map[string]string{"src/app.rs": appSrc, "src/counter.rs": counterSrc} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(name)), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	srv := newServer(t)
	res := srv.generateSnapshot(context.Background(), generateSnapshotArgs{RepoPath: root})
	if res.IsError {
		t.Fatalf("generate_snapshot failed: %s", textOf(t, res))
	}
	return srv, root
}

func TestAnalyzeSource(t *testing.T) {
	srv := newServer(t)

	res := srv.analyzeSource(analyzeSourceArgs{Source: appSrc})
	if res.IsError {
		t.Fatalf("analyze_source failed: %s", textOf(t, res))
	}
	text := textOf(t, res)
	for _, want := range []string{`"path": "input.rs"`, `"element_type": "button"`, "```mermaid\nflowchart TD", "F0_UI"} {
		if !strings.Contains(text, want) {
			t.Errorf("output lacks %q:\n%s", want, text)
		}
	}
	if srv.cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", srv.cache.Len())
	}

	again := srv.analyzeSource(analyzeSourceArgs{Source: appSrc})
	if textOf(t, again) != text || srv.cache.Len() != 1 {
		t.Error("identical request should be served from the cache")
	}

	srv.analyzeSource(analyzeSourceArgs{Source: appSrc, Path: "other.rs"})
	if srv.cache.Len() != 2 {
		t.Errorf("a different path label should get its own cache entry, len = %d", srv.cache.Len())
	}
}

func TestAnalyzeSource_Errors(t *testing.T) {
	srv := newServer(t)
	tests := []struct {
		name string
		args analyzeSourceArgs
		want string
	}{
		{"empty", analyzeSourceArgs{}, "source is required"},
		{"parse error", analyzeSourceArgs{Source: "fn broken( {"}, "analysis failed"},
		{"bad mode", analyzeSourceArgs{Source: appSrc, Mode: "fancy"}, "unknown mermaid mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := srv.analyzeSource(tt.args)
			if !res.IsError || !strings.Contains(textOf(t, res), tt.want) {
				t.Errorf("result = %+v, want error containing %q", res, tt.want)
			}
		})
	}
}

func TestGenerateSnapshot(t *testing.T) {
	srv, root := newSnapshotServer(t)
	if srv.eng.Store().Count() != 2 {
		t.Errorf("store count = %d, want 2", srv.eng.Store().Count())
	}
	if _, err := os.Stat(filepath.Join(root, ".flowmcp", "summary.mmd")); err != nil {
		t.Errorf("artifacts not written: %v", err)
	}
}

func TestQueryFacts(t *testing.T) {
	srv := newServer(t)
	if res := srv.queryFacts(queryFactsArgs{}); !res.IsError {
		t.Error("expected error before any snapshot")
	}

	srv, _ = newSnapshotServer(t)
	text := textOf(t, srv.queryFacts(queryFactsArgs{Kind: "emission"}))
	if !strings.Contains(text, `"name": "Msg::Increment"`) || strings.Contains(text, `"kind": "ui"`) {
		t.Errorf("emission query:\n%s", text)
	}

	paged := textOf(t, srv.queryFacts(queryFactsArgs{Kind: "state", Limit: 1}))
	if !strings.Contains(paged, "showing 1-1 of") {
		t.Errorf("expected paging hint:\n%s", paged)
	}

	none := textOf(t, srv.queryFacts(queryFactsArgs{Name: "does-not-exist"}))
	if strings.TrimSpace(none) != "[]" {
		t.Errorf("empty query = %q, want []", none)
	}
}

func TestRenderMermaid(t *testing.T) {
	srv, _ := newSnapshotServer(t)

	tests := []struct {
		name    string
		args    renderMermaidArgs
		want    string
		wantErr bool
	}{
		{"summary", renderMermaidArgs{Mode: "summary"}, "flowchart LR", false},
		{"configured mode", renderMermaidArgs{File: "src/app.rs"}, "F0_UI", false},
		{"heuristic", renderMermaidArgs{File: "src/app.rs", Mode: "heuristic"}, "%% Connections", false},
		{"tea", renderMermaidArgs{File: "src/counter.rs", Mode: "tea"}, "T0_MSG", false},
		{"missing file", renderMermaidArgs{File: "src/nope.rs"}, "no analysis", true},
		{"no file", renderMermaidArgs{Mode: "flow"}, "file is required", true},
		{"bad mode", renderMermaidArgs{File: "src/app.rs", Mode: "fancy"}, "unknown mermaid mode", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := srv.renderMermaid(tt.args)
			if res.IsError != tt.wantErr {
				t.Fatalf("IsError = %v, want %v: %s", res.IsError, tt.wantErr, textOf(t, res))
			}
			if text := textOf(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("output lacks %q:\n%s", tt.want, text)
			}
		})
	}
}

func TestTraceState(t *testing.T) {
	srv, _ := newSnapshotServer(t)

	text := textOf(t, srv.traceState(traceStateArgs{Target: "state.items"}))
	for _, want := range []string{
		"# Writers of `state.items`",
		`- [flow] button "Add" → clicked → ` + "`state.items` [method:push]  (src/app.rs:3)",
		"## Other writes",
		"- `state.items` [method:clear] in show  (src/app.rs:5)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("trace lacks %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "[method:push] in show") {
		t.Errorf("linked write should not be repeated under other writes:\n%s", text)
	}

	tea := textOf(t, srv.traceState(traceStateArgs{Target: "model.counter"}))
	if !strings.Contains(tea, `[tea] Button::primary "+" → on_click → Msg::Increment`) {
		t.Errorf("tea trace:\n%s", tea)
	}

	if res := srv.traceState(traceStateArgs{}); !res.IsError {
		t.Error("expected error for empty target")
	}
}

func TestShowFact(t *testing.T) {
	srv, _ := newSnapshotServer(t)

	text := textOf(t, srv.showFact(showFactArgs{File: "src/app.rs", Line: 2, ContextLines: 2}))
	for _, want := range []string{
		"### src/app.rs:2",
		"- ui `button` (Add)",
		"- action `clicked` (ui.button())",
		"   2│     if ui.button(\"Add\").clicked() {",
		"```rust\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("show_fact lacks %q:\n%s", want, text)
		}
	}

	if res := srv.showFact(showFactArgs{File: "src/missing.rs", Line: 1}); !res.IsError {
		t.Error("expected error for unreadable file")
	}
	if res := srv.showFact(showFactArgs{File: "src/app.rs"}); !res.IsError {
		t.Error("expected error without a line")
	}
}

func TestShowFact_OnlyAnalyzedFiles(t *testing.T) {
	srv, root := newSnapshotServer(t)

	outside := filepath.Join(t.TempDir(), "secret.rs")
	if err := os.WriteFile(outside, []byte("fn secret() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	escaping, err := filepath.Rel(root, outside)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("private\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		file string
	}{
		{"absolute path", outside},
		{"parent traversal", filepath.ToSlash(escaping)},
		{"traversal back into repo", "src/../src/app.rs"},
		{"file that was not analyzed", "notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := srv.showFact(showFactArgs{File: tt.file, Line: 1})
			if !res.IsError {
				t.Fatalf("show_fact(%q) succeeded:\n%s", tt.file, textOf(t, res))
			}
			if text := textOf(t, res); strings.Contains(text, "secret") || strings.Contains(text, "private") {
				t.Errorf("error leaks file content: %s", text)
			}
		})
	}
}

func TestReadSourceWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rs")
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line "+string(rune('0'+i)))
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		centerLine   int
		contextLines int
		wantStart    int
		wantEnd      int
	}{
		{"center middle", 5, 6, 2, 8},
		{"center at start", 1, 10, 1, 6},
		{"center at end", 10, 10, 5, 10},
		{"context larger than file", 5, 20, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readSourceWindow(path, tt.centerLine, tt.contextLines)
			if err != nil {
				t.Fatalf("readSourceWindow: %v", err)
			}

			outputLines := strings.Split(strings.TrimRight(got, "\n"), "\n")
			if !strings.HasPrefix(outputLines[0], fmt.Sprintf("%4d│", tt.wantStart)) {
				t.Errorf("first line = %q, want line %d", outputLines[0], tt.wantStart)
			}
			if want := tt.wantEnd - tt.wantStart + 1; len(outputLines) != want {
				t.Errorf("got %d output lines, want %d (lines %d-%d)",
					len(outputLines), want, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestReadSourceWindow_SingleLineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.rs")
	if err := os.WriteFile(path, []byte("only line"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readSourceWindow(path, 1, 30)
	if err != nil {
		t.Fatalf("readSourceWindow: %v", err)
	}
	if got != "   1│ only line\n" {
		t.Errorf("got %q", got)
	}
}
