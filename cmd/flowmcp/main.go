package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/dejo1307/flowmcp/internal/analyzer"
	"github.com/dejo1307/flowmcp/internal/config"
	"github.com/dejo1307/flowmcp/internal/engine"
	"github.com/dejo1307/flowmcp/internal/explainers/hotspots"
	"github.com/dejo1307/flowmcp/internal/explainers/tea"
	"github.com/dejo1307/flowmcp/internal/renderers/mermaid"
	"github.com/dejo1307/flowmcp/internal/renderers/report"
	"github.com/dejo1307/flowmcp/internal/server"
)

const usage = `usage:
  flowmcp [config.yaml]                          run the MCP server on stdio
  flowmcp --generate [config.yaml]               write a snapshot and exit
  flowmcp --file <path.rs> [--mode m] [config]   analyze one file and print a diagram
`

type options struct {
	generate bool
	file     string
	mode     string
	cfgPath  string
}

func parseArgs(args []string) (options, error) {
	opts := options{cfgPath: "mcp-flow.yaml"}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--generate":
			opts.generate = true
		case "--file", "--mode":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s needs a value", arg)
			}
			i++
			if arg == "--file" {
				opts.file = args[i]
			} else {
				opts.mode = args[i]
			}
		case "-h", "--help":
			return opts, errors.New("help requested")
		default:
			opts.cfgPath = arg
		}
	}
	if opts.generate && opts.file != "" {
		return opts, errors.New("--generate and --file are exclusive")
	}
	return opts, nil
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg
	}
	if !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("invalid config: %v", err)
	}
	// No config file: defaults plus environment overrides
	fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
	cfg = config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	return cfg
}

func main() {
	// Ensure log output goes to stderr, never stdout (MCP uses stdout for JSON-RPC)
	log.SetOutput(os.Stderr)

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := loadConfig(opts.cfgPath)

	if opts.file != "" {
		mode := opts.mode
		if mode == "" {
			mode = cfg.Output.MermaidMode
		}
		if err := analyzeFile(analyzer.New(cfg), opts.file, mode); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}

	eng.RegisterExplainer(tea.New())
	eng.RegisterExplainer(hotspots.New())

	eng.RegisterRenderer(mermaid.New(cfg.Output.MermaidMode))
	eng.RegisterRenderer(report.New(cfg.Output.MaxContextTokens))

	repoPath, err := filepath.Abs(cfg.Repo)
	if err != nil {
		log.Fatalf("failed to resolve repo path: %v", err)
	}

	if opts.generate {
		snapshot, err := eng.GenerateSnapshot(ctx, repoPath)
		if err != nil {
			log.Fatalf("snapshot generation failed: %v", err)
		}
		if err := eng.WriteArtifacts(repoPath); err != nil {
			log.Fatalf("failed to write artifacts: %v", err)
		}

		fmt.Fprintf(os.Stderr, "\nSnapshot complete:\n")
		fmt.Fprintf(os.Stderr, "  Repository:  %s\n", snapshot.Meta.RepoPath)
		fmt.Fprintf(os.Stderr, "  Files:       %d (%d reused, %d skipped)\n", snapshot.Meta.FileCount, snapshot.Meta.Reused, len(snapshot.Meta.Skipped))
		fmt.Fprintf(os.Stderr, "  Facts:       %d\n", snapshot.Meta.FactCount)
		fmt.Fprintf(os.Stderr, "  Insights:    %d\n", snapshot.Meta.InsightCount)
		fmt.Fprintf(os.Stderr, "  Artifacts:   %d\n", len(snapshot.Artifacts))
		fmt.Fprintf(os.Stderr, "  Duration:    %s\n", snapshot.Meta.Duration)
		fmt.Fprintf(os.Stderr, "  Output:      %s\n", filepath.Join(repoPath, cfg.Output.Dir))
		return
	}

	// Load the previous snapshot so queries work before generate_snapshot.
	if err := eng.LoadExisting(repoPath); err != nil {
		log.Printf("[main] no existing snapshot loaded: %v", err)
	}

	srv, err := server.New(eng, cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// analyzeFile prints the detections and a diagram of one file to stdout.
func analyzeFile(a *analyzer.Analyzer, path, mode string) error {
	fa, err := a.AnalyzeFile(path)
	if err != nil {
		return err
	}
	if err := report.WriteFileSummary(os.Stdout, fa); err != nil {
		return err
	}
	diagram, err := mermaid.RenderFile(fa, mode)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "\n=== Mermaid ===\n\n%s\n", diagram)
	return err
}
