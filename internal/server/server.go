package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/flowmcp/internal/config"
	"github.com/dejo1307/flowmcp/internal/engine"
	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/renderers/mermaid"
)

const sourceCacheSize = 256

// Server wraps the MCP server and connects it to the snapshot engine.
type Server struct {
	mcp   *mcp.Server
	eng   *engine.Engine
	cfg   *config.Config
	cache *lru.Cache[string, string] // analyze_source responses by content hash
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config) (*Server, error) {
	cache, err := lru.New[string, string](sourceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating source cache: %w", err)
	}
	s := &Server{
		eng:   eng,
		cfg:   cfg,
		cache: cache,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "flowmcp",
		Version: "0.1.0",
	}, nil)
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	log.Println("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerResources exposes the snapshot artifacts as MCP resources.
func (s *Server) registerResources() {
	resources := []struct {
		uri, name, description, mimeType, artifact string
	}{
		{"flow://snapshot/summary", "UI Flow Summary", "Mermaid diagram of UI, action and state layers across the repository", "text/vnd.mermaid", "summary.mmd"},
		{"flow://snapshot/report", "UI Flow Report", "Markdown report of flows, TEA wiring, insights and state hotspots", "text/markdown", "flow_report.md"},
		{"flow://snapshot/analyses", "File Analyses", "Per-file detections in JSONL format", "application/jsonl", "analyses.jsonl"},
		{"flow://snapshot/insights", "Flow Insights", "Findings about unhandled messages and state hotspots", "application/json", "insights.json"},
		{"flow://snapshot/meta", "Snapshot Metadata", "Metadata about the last snapshot generation", "application/json", "snapshot.meta.json"},
	}

	for _, r := range resources {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.uri,
			Name:        r.name,
			Description: r.description,
			MIMEType:    r.mimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.eng.GetArtifact(r.artifact)
			if err != nil {
				return nil, fmt.Errorf("no snapshot available: %w (run generate_snapshot first)", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, Text: string(content), MIMEType: r.mimeType},
				},
			}, nil
		})
	}
}

type analyzeSourceArgs struct {
	Source string `json:"source" jsonschema:"Rust source code to analyze"`
	Path   string `json:"path,omitempty" jsonschema:"File path used to label detections. Defaults to input.rs."`
	Mode   string `json:"mode,omitempty" jsonschema:"Diagram mode: auto, heuristic, flow or tea (default auto)"`
}

type generateSnapshotArgs struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"Path to the repository to analyze. Defaults to the configured repo path."`
}

type queryFactsArgs struct {
	Kind       string `json:"kind,omitempty" jsonschema:"Filter by detection kind: ui, action, state, flow, emission or handler"`
	File       string `json:"file,omitempty" jsonschema:"Filter by exact file path"`
	FilePrefix string `json:"file_prefix,omitempty" jsonschema:"Filter by file path prefix (e.g. src/ui)"`
	Context    string `json:"context,omitempty" jsonschema:"Filter by enclosing function name"`
	Name       string `json:"name,omitempty" jsonschema:"Filter by name using substring match"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Max results (default 100, max 500)"`
	Offset     int    `json:"offset,omitempty" jsonschema:"Number of results to skip"`
}

type renderMermaidArgs struct {
	File string `json:"file,omitempty" jsonschema:"File to render. Not needed for summary mode."`
	Mode string `json:"mode,omitempty" jsonschema:"heuristic, flow, tea, auto or summary (default: configured mode)"`
}

type traceStateArgs struct {
	Target string `json:"target" jsonschema:"State path to trace, e.g. state.counter or self.items"`
}

type showFactArgs struct {
	File         string `json:"file" jsonschema:"File path as reported by query_facts"`
	Line         int    `json:"line" jsonschema:"1-based line number"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the line (default 10)"`
}

// registerTools adds the MCP tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_source",
		Description: "Analyze a Rust egui source snippet. Returns the detected UI elements, actions, state mutations, flows and TEA wiring as JSON, plus a Mermaid diagram.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeSourceArgs) (*mcp.CallToolResult, any, error) {
		return s.analyzeSource(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_snapshot",
		Description: "Analyze every Rust file of a repository, detect UI flows and TEA wiring, and write diagrams and a report to the output directory.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args generateSnapshotArgs) (*mcp.CallToolResult, any, error) {
		return s.generateSnapshot(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_facts",
		Description: "Query detections from the last snapshot by kind, file, function or name. Returns matching records as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryFactsArgs) (*mcp.CallToolResult, any, error) {
		return s.queryFacts(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "render_mermaid",
		Description: "Render a Mermaid flowchart for one file of the snapshot, or the repository summary.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args renderMermaidArgs) (*mcp.CallToolResult, any, error) {
		return s.renderMermaid(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "trace_state",
		Description: "List the UI element → action → mutation chains that write a state path, plus writes no interaction could be linked to.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args traceStateArgs) (*mcp.CallToolResult, any, error) {
		return s.traceState(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_fact",
		Description: "Show the source around a detection, with the detections found on that line.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showFactArgs) (*mcp.CallToolResult, any, error) {
		return s.showFact(args), nil, nil
	})
}

func (s *Server) analyzeSource(args analyzeSourceArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.Source) == "" {
		return errorResult("source is required")
	}
	path := args.Path
	if path == "" {
		path = "input.rs"
	}
	mode := args.Mode
	if mode == "" {
		mode = config.ModeAuto
	}

	h := sha256.Sum256([]byte(path + "\x00" + mode + "\x00" + args.Source))
	key := hex.EncodeToString(h[:])
	if text, ok := s.cache.Get(key); ok {
		return textResult(text)
	}

	fa, err := s.eng.Analyzer().AnalyzeSource(path, []byte(args.Source))
	if err != nil {
		return errorResult(fmt.Sprintf("analysis failed: %v", err))
	}
	diagram, err := mermaid.RenderFile(fa, mode)
	if err != nil {
		return errorResult(err.Error())
	}
	data, err := json.MarshalIndent(fa, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal analysis: %v", err))
	}

	text := fmt.Sprintf("```json\n%s\n```\n\n```mermaid\n%s\n```\n", data, diagram)
	s.cache.Add(key, text)
	return textResult(text)
}

func (s *Server) generateSnapshot(ctx context.Context, args generateSnapshotArgs) *mcp.CallToolResult {
	repoPath := args.RepoPath
	if repoPath == "" {
		repoPath = s.cfg.Repo
	}

	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid repo path: %v", err))
	}

	snapshot, err := s.eng.GenerateSnapshot(ctx, absRepo)
	if err != nil {
		return errorResult(fmt.Sprintf("snapshot generation failed: %v", err))
	}

	if err := s.eng.WriteArtifacts(absRepo); err != nil {
		log.Printf("[server] warning: failed to write artifacts: %v", err)
	}

	summary := fmt.Sprintf(
		"Snapshot generated successfully.\n\n"+
			"- Repository: %s\n"+
			"- Files: %d (%d reused, %d skipped)\n"+
			"- Facts: %d\n"+
			"- Insights: %d\n"+
			"- Artifacts: %d\n"+
			"- Duration: %s\n"+
			"- Extractors: %v\n"+
			"- Explainers: %v\n\n"+
			"Read flow://snapshot/report for the overview or flow://snapshot/summary for the diagram.",
		snapshot.Meta.RepoPath,
		snapshot.Meta.FileCount,
		snapshot.Meta.Reused,
		len(snapshot.Meta.Skipped),
		snapshot.Meta.FactCount,
		snapshot.Meta.InsightCount,
		len(snapshot.Artifacts),
		snapshot.Meta.Duration,
		snapshot.Meta.Extractors,
		snapshot.Meta.Explainers,
	)
	return textResult(summary)
}

func (s *Server) queryFacts(args queryFactsArgs) *mcp.CallToolResult {
	store := s.eng.Store()
	if store.Count() == 0 {
		return errorResult("No analyses available. Run generate_snapshot first.")
	}

	results, total := store.Query(facts.QueryOpts{
		Kind:       args.Kind,
		File:       args.File,
		FilePrefix: args.FilePrefix,
		Context:    args.Context,
		Name:       args.Name,
		Limit:      args.Limit,
		Offset:     args.Offset,
	})
	if results == nil {
		results = []facts.Record{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}

	text := string(data)
	if shown := args.Offset + len(results); shown < total {
		text += fmt.Sprintf("\n\n... (showing %d-%d of %d results, use offset to page)", args.Offset+1, shown, total)
	}
	return textResult(text)
}

func (s *Server) renderMermaid(args renderMermaidArgs) *mcp.CallToolResult {
	store := s.eng.Store()
	if store.Count() == 0 {
		return errorResult("No analyses available. Run generate_snapshot first.")
	}

	if args.Mode == "summary" {
		return textResult(mermaid.GenerateSummaryMermaid(store.Result()))
	}
	if args.File == "" {
		return errorResult("file is required unless mode is summary")
	}

	fa, ok := store.Get(args.File)
	if !ok {
		return errorResult(fmt.Sprintf("no analysis for %q", args.File))
	}
	mode := args.Mode
	if mode == "" {
		mode = s.cfg.Output.MermaidMode
	}
	diagram, err := mermaid.RenderFile(&fa, mode)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(diagram)
}

func (s *Server) traceState(args traceStateArgs) *mcp.CallToolResult {
	if args.Target == "" {
		return errorResult("target is required")
	}
	store := s.eng.Store()
	if store.Count() == 0 {
		return errorResult("No analyses available. Run generate_snapshot first.")
	}

	chains := store.WritersOf(args.Target)
	linked := make(map[string]bool, len(chains))

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Writers of `%s`\n\n", args.Target)
	if len(chains) == 0 {
		sb.WriteString("_No UI interaction was linked to this state._\n")
	}
	for _, c := range chains {
		fmt.Fprintf(&sb, "- [%s] %s → %s → `%s` [%s]  (%s)\n",
			c.Via, c.Trigger, c.Action, c.Mutation.Target, c.Mutation.MutationType, location(c.File, c.Mutation.Line))
		linked[location(c.File, c.Mutation.Line)+c.Mutation.Target] = true
	}

	var other []string
	for _, fa := range store.All() {
		for _, m := range fa.StateMutations {
			if !facts.TargetMatches(m.Target, args.Target) || linked[location(m.File, m.Line)+m.Target] {
				continue
			}
			ctx := m.Context
			if ctx == "" {
				ctx = "top level"
			}
			other = append(other, fmt.Sprintf("- `%s` [%s] in %s  (%s)\n", m.Target, m.MutationType, ctx, location(m.File, m.Line)))
		}
	}
	if len(other) > 0 {
		sb.WriteString("\n## Other writes\n\n")
		for _, line := range other {
			sb.WriteString(line)
		}
	}
	return textResult(sb.String())
}

func (s *Server) showFact(args showFactArgs) *mcp.CallToolResult {
	if args.File == "" || args.Line <= 0 {
		return errorResult("file and a positive line are required")
	}
	if _, ok := s.eng.Store().Get(args.File); !ok {
		return errorResult(fmt.Sprintf("%s is not an analyzed file of the snapshot", args.File))
	}
	absFile, err := s.eng.ResolveFile(args.File)
	if err != nil {
		return errorResult(err.Error())
	}
	contextLines := args.ContextLines
	if contextLines <= 0 {
		contextLines = 10
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n", location(args.File, args.Line))

	records, _ := s.eng.Store().Query(facts.QueryOpts{File: args.File, Limit: 500})
	for _, r := range records {
		if r.Line != args.Line {
			continue
		}
		fmt.Fprintf(&sb, "- %s `%s`", r.Kind, r.Name)
		if r.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", r.Detail)
		}
		sb.WriteString("\n")
	}

	source, err := readSourceWindow(absFile, args.Line, contextLines)
	if err != nil {
		return errorResult(fmt.Sprintf("could not read source: %v", err))
	}
	fmt.Fprintf(&sb, "\n```rust\n%s```\n", source)
	return textResult(sb.String())
}

func location(file string, line int) string {
	if line <= 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := max(centerLine-contextLines/2, 1)
	endLine := min(centerLine+contextLines/2, len(lines))

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%4d│ %s\n", i, lines[i-1])
	}
	return sb.String(), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
