package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/flowmcp/internal/analyzer"
	"github.com/dejo1307/flowmcp/internal/config"
	"github.com/dejo1307/flowmcp/internal/explainers"
	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/renderers"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

const (
	analysesFile = "analyses.jsonl"
	insightsFile = "insights.json"
	metaFile     = "snapshot.meta.json"
)

// Engine orchestrates the snapshot pipeline: walk, hash, analyze, explain,
// render.
type Engine struct {
	mu             sync.Mutex // serializes GenerateSnapshot
	snapMu         sync.RWMutex
	cfg            *config.Config
	analyzer       *analyzer.Analyzer
	explainers     *explainers.Registry
	renderers      *renderers.Registry
	store          *facts.Store
	snapshot       *facts.Snapshot
	prevHashes     map[string]string // file -> sha256 hash from previous run
	prevExtractors []string
}

// New creates a new Engine with the given config. The analyzer is built from
// the config; explainers and renderers must be registered after creation.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	return &Engine{
		cfg:        cfg,
		analyzer:   analyzer.New(cfg),
		explainers: explainers.NewRegistry(),
		renderers:  renderers.NewRegistry(),
		store:      facts.NewStore(),
	}, nil
}

// RegisterExplainer adds an explainer to the engine.
func (e *Engine) RegisterExplainer(exp explainers.Explainer) {
	e.explainers.Register(exp)
}

// RegisterRenderer adds a renderer to the engine.
func (e *Engine) RegisterRenderer(rnd renderers.Renderer) {
	e.renderers.Register(rnd)
}

// Analyzer returns the analyzer used for every file.
func (e *Engine) Analyzer() *analyzer.Analyzer {
	return e.analyzer
}

// Store returns the analysis store.
func (e *Engine) Store() *facts.Store {
	return e.store
}

// Snapshot returns the last generated snapshot, or nil.
func (e *Engine) Snapshot() *facts.Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}

// SetSnapshot replaces the current snapshot.
func (e *Engine) SetSnapshot(s *facts.Snapshot) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	e.snapshot = s
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// ResolveFile returns the absolute path of a repo-relative file in the
// current snapshot. Absolute paths and paths leaving the repo are rejected.
func (e *Engine) ResolveFile(rel string) (string, error) {
	snap := e.Snapshot()
	if snap == nil || snap.Meta.RepoPath == "" {
		return "", fmt.Errorf("no snapshot loaded")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s: path must be relative to the repo", rel)
	}
	abs := filepath.Join(snap.Meta.RepoPath, filepath.FromSlash(rel))
	inside, err := filepath.Rel(snap.Meta.RepoPath, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: path is outside the repo", rel)
	}
	return abs, nil
}

// fileResult is the outcome of analyzing one file.
type fileResult struct {
	analysis *facts.FileAnalysis
	hash     string
	reused   bool
	skipped  bool
}

// GenerateSnapshot runs the full pipeline over the Rust sources of repoPath.
func (e *Engine) GenerateSnapshot(ctx context.Context, repoPath string) (*facts.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	if repoPath == "" {
		repoPath = e.cfg.Repo
	}

	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	// Load previous hashes and analyses for incremental support
	e.loadPreviousHashes(absRepo)
	prev := e.loadPreviousAnalyses(absRepo)

	files, err := e.walkRepo(absRepo)
	if err != nil {
		return nil, fmt.Errorf("walking repo: %w", err)
	}
	log.Printf("[engine] found %d Rust files in %s", len(files), absRepo)

	results, err := e.analyzeFiles(ctx, absRepo, files, prev)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	e.store.Clear()
	var fileHashes []facts.FileHash
	var skipped []string
	reused := 0
	for i, r := range results {
		if r.skipped {
			skipped = append(skipped, files[i])
			continue
		}
		if r.analysis == nil {
			continue
		}
		e.store.Put(*r.analysis)
		if r.reused {
			reused++
		}
		fileHashes = append(fileHashes, facts.FileHash{
			Path:    files[i],
			Hash:    r.hash,
			ModTime: fileModTime(filepath.Join(absRepo, files[i])),
		})
	}
	log.Printf("[engine] analyzed %d files (%d reused, %d skipped), %d facts",
		e.store.Count(), reused, len(skipped), e.store.FactCount())

	allInsights, usedExplainers := e.runExplainers(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("[engine] produced %d insights using %d explainers", len(allInsights), len(usedExplainers))

	snapshot := &facts.Snapshot{
		Meta: facts.SnapshotMeta{
			ID:           uuid.NewString(),
			RepoPath:     absRepo,
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			Extractors:   e.analyzer.Extractors(),
			Explainers:   usedExplainers,
			Renderers:    []string{},
			FileHashes:   fileHashes,
			FileCount:    e.store.Count(),
			Reused:       reused,
			Skipped:      skipped,
			FactCount:    e.store.FactCount(),
			InsightCount: len(allInsights),
		},
		Result:   e.store.Result(),
		Insights: allInsights,
	}

	snapshot.Meta.Renderers = e.runRenderers(ctx, snapshot)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("[engine] produced %d artifacts using %d renderers", len(snapshot.Artifacts), len(snapshot.Meta.Renderers))

	duration := time.Since(start)
	snapshot.Meta.Duration = duration.String()
	e.SetSnapshot(snapshot)
	log.Printf("[engine] snapshot %s generated in %s", snapshot.Meta.ID, duration)
	return snapshot, nil
}

// analyzeFiles hashes and analyzes files in parallel. Results keep the order
// of files. Unchanged files reuse their previous analysis.
func (e *Engine) analyzeFiles(ctx context.Context, repoPath string, files []string, prev *facts.Store) ([]fileResult, error) {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]fileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			src, err := os.ReadFile(filepath.Join(repoPath, rel))
			if err != nil {
				log.Printf("[engine] skipping %s: %v", rel, err)
				return nil
			}
			h := sha256.Sum256(src)
			hash := hex.EncodeToString(h[:])

			if prevHash, ok := e.prevHashes[rel]; ok && prevHash == hash && prev != nil {
				if fa, ok := prev.Get(rel); ok {
					results[i] = fileResult{analysis: &fa, hash: hash, reused: true}
					return nil
				}
			}

			fa, err := e.analyzer.AnalyzeSource(rel, src)
			if err != nil {
				var perr *syntax.ParseError
				if errors.As(err, &perr) {
					log.Printf("[engine] skipping %s: %v", rel, err)
					results[i] = fileResult{hash: hash, skipped: true}
					return nil
				}
				return err
			}
			results[i] = fileResult{analysis: fa, hash: hash}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// walkRepo collects the .rs files in the repo, applying ignore patterns.
// WalkDir visits entries in lexical order, so the result is sorted.
func (e *Engine) walkRepo(repoPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if e.isIgnored(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() && strings.HasSuffix(relPath, ".rs") {
			files = append(files, filepath.ToSlash(relPath))
		}
		return nil
	})
	return files, err
}

// isIgnored checks whether a path matches any ignore pattern.
func (e *Engine) isIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range e.cfg.Ignore {
		// Directory patterns
		if strings.HasSuffix(pattern, "/**") {
			dirPrefix := strings.TrimSuffix(pattern, "/**")
			if relPath == dirPrefix || strings.HasPrefix(relPath, dirPrefix+"/") {
				return true
			}
		}

		if matched, err := filepath.Match(pattern, relPath); err == nil && matched {
			return true
		}

		// **/x matches x at any depth
		if sub, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, err := filepath.Match(sub, filepath.Base(relPath)); err == nil && matched {
				return true
			}
			if matched, err := filepath.Match(sub, relPath); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// runExplainers runs all enabled explainers. A failing explainer is logged
// and left out.
func (e *Engine) runExplainers(ctx context.Context) ([]facts.Insight, []string) {
	var allInsights []facts.Insight
	var usedNames []string

	for _, exp := range e.explainers.All() {
		if !e.cfg.IsExplainerEnabled(exp.Name()) {
			continue
		}

		log.Printf("[engine] running explainer: %s", exp.Name())
		insights, err := exp.Explain(ctx, e.store)
		if err != nil {
			log.Printf("[engine] explainer %s error: %v", exp.Name(), err)
			continue
		}

		allInsights = append(allInsights, insights...)
		usedNames = append(usedNames, exp.Name())
		log.Printf("[engine] explainer %s: produced %d insights", exp.Name(), len(insights))
	}

	return allInsights, usedNames
}

// runRenderers runs all enabled renderers and attaches their artifacts.
func (e *Engine) runRenderers(ctx context.Context, snapshot *facts.Snapshot) []string {
	usedNames := []string{}

	for _, rnd := range e.renderers.All() {
		if !e.cfg.IsRendererEnabled(rnd.Name()) {
			continue
		}

		log.Printf("[engine] running renderer: %s", rnd.Name())
		artifacts, err := rnd.Render(ctx, snapshot)
		if err != nil {
			log.Printf("[engine] renderer %s error: %v", rnd.Name(), err)
			continue
		}

		snapshot.Artifacts = append(snapshot.Artifacts, artifacts...)
		usedNames = append(usedNames, rnd.Name())
	}

	return usedNames
}

// WriteArtifacts writes all snapshot artifacts to the output directory,
// including analyses.jsonl, insights.json, and snapshot.meta.json.
func (e *Engine) WriteArtifacts(repoPath string) error {
	snapshot := e.Snapshot()
	if snapshot == nil {
		return fmt.Errorf("no snapshot generated")
	}

	outDir := filepath.Join(repoPath, e.cfg.Output.Dir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	// Renderer artifacts may live in subdirectories (flows/...)
	for _, a := range snapshot.Artifacts {
		path := filepath.Join(outDir, filepath.FromSlash(a.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating dir for %s: %w", a.Name, err)
		}
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", a.Name, err)
		}
		log.Printf("[engine] wrote %s (%d bytes)", path, len(a.Content))
	}

	analysesPath := filepath.Join(outDir, analysesFile)
	if err := e.store.WriteJSONLFile(analysesPath); err != nil {
		return fmt.Errorf("writing %s: %w", analysesFile, err)
	}
	log.Printf("[engine] wrote %s", analysesPath)

	for name, v := range map[string]any{insightsFile: snapshot.Insights, metaFile: snapshot.Meta} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", name, err)
		}
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("[engine] wrote %s (%d bytes)", path, len(data))
	}

	return nil
}

// GetArtifact returns the content of a named artifact, or of the generated
// JSONL/JSON files.
func (e *Engine) GetArtifact(name string) ([]byte, error) {
	snapshot := e.Snapshot()
	if snapshot == nil {
		return nil, fmt.Errorf("no snapshot generated")
	}

	switch name {
	case analysesFile:
		var buf bytes.Buffer
		if err := e.store.WriteJSONL(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case insightsFile:
		return json.MarshalIndent(snapshot.Insights, "", "  ")
	case metaFile:
		return json.MarshalIndent(snapshot.Meta, "", "  ")
	}
	for _, a := range snapshot.Artifacts {
		if a.Name == name {
			return a.Content, nil
		}
	}
	return nil, fmt.Errorf("artifact %q not found", name)
}

// LoadExisting restores the snapshot written by a previous run so queries
// work before the first generate_snapshot call.
func (e *Engine) LoadExisting(repoPath string) error {
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("resolving repo path: %w", err)
	}
	outDir := filepath.Join(absRepo, e.cfg.Output.Dir)

	e.store.Clear()
	if err := e.store.ReadJSONLFile(filepath.Join(outDir, analysesFile)); err != nil {
		return err
	}

	snapshot := &facts.Snapshot{Meta: facts.SnapshotMeta{RepoPath: absRepo}}
	if data, err := os.ReadFile(filepath.Join(outDir, metaFile)); err == nil {
		if err := json.Unmarshal(data, &snapshot.Meta); err != nil {
			return fmt.Errorf("parsing %s: %w", metaFile, err)
		}
		snapshot.Meta.RepoPath = absRepo
	}
	if data, err := os.ReadFile(filepath.Join(outDir, insightsFile)); err == nil {
		if err := json.Unmarshal(data, &snapshot.Insights); err != nil {
			return fmt.Errorf("parsing %s: %w", insightsFile, err)
		}
	}
	snapshot.Result = e.store.Result()

	// Renderer output is re-read from disk rather than re-rendered.
	err = filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if slices.Contains([]string{analysesFile, insightsFile, metaFile}, rel) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snapshot.Artifacts = append(snapshot.Artifacts, facts.Artifact{Name: rel, Content: content, Type: artifactType(rel)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading artifacts: %w", err)
	}

	e.SetSnapshot(snapshot)
	log.Printf("[engine] loaded %d analyses and %d artifacts from %s", e.store.Count(), len(snapshot.Artifacts), outDir)
	return nil
}

func artifactType(name string) string {
	switch filepath.Ext(name) {
	case ".mmd":
		return "text/vnd.mermaid"
	case ".md":
		return "text/markdown"
	}
	return "application/octet-stream"
}

// loadPreviousHashes reads file hashes from the previous snapshot.meta.json.
func (e *Engine) loadPreviousHashes(repoPath string) {
	e.prevHashes = nil
	e.prevExtractors = nil
	data, err := os.ReadFile(filepath.Join(repoPath, e.cfg.Output.Dir, metaFile))
	if err != nil {
		return
	}

	var meta facts.SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return
	}

	e.prevExtractors = meta.Extractors
	e.prevHashes = make(map[string]string, len(meta.FileHashes))
	for _, fh := range meta.FileHashes {
		e.prevHashes[fh.Path] = fh.Hash
	}
	log.Printf("[engine] loaded %d file hashes from previous snapshot", len(e.prevHashes))
}

// loadPreviousAnalyses reads analyses.jsonl from the previous run, or returns
// nil when there is nothing to reuse. Analyses produced by a different set of
// extractors are never reused.
func (e *Engine) loadPreviousAnalyses(repoPath string) *facts.Store {
	if len(e.prevHashes) == 0 {
		return nil
	}
	if !slices.Equal(e.prevExtractors, e.analyzer.Extractors()) {
		log.Printf("[engine] extractors changed from %v to %v, analyzing everything",
			e.prevExtractors, e.analyzer.Extractors())
		return nil
	}
	prev := facts.NewStore()
	if err := prev.ReadJSONLFile(filepath.Join(repoPath, e.cfg.Output.Dir, analysesFile)); err != nil {
		log.Printf("[engine] previous analyses unavailable, analyzing everything: %v", err)
		return nil
	}
	return prev
}

// fileModTime returns the modification time of a file as an RFC3339 string.
func fileModTime(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return info.ModTime().UTC().Format(time.RFC3339)
}
