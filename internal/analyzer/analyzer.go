// Package analyzer runs the pattern extractors over Rust source.
package analyzer

import (
	"fmt"
	"log"
	"os"

	"github.com/dejo1307/flowmcp/internal/config"
	"github.com/dejo1307/flowmcp/internal/extractors"
	"github.com/dejo1307/flowmcp/internal/extractors/actionextractor"
	"github.com/dejo1307/flowmcp/internal/extractors/flowextractor"
	"github.com/dejo1307/flowmcp/internal/extractors/stateextractor"
	"github.com/dejo1307/flowmcp/internal/extractors/teaextractor"
	"github.com/dejo1307/flowmcp/internal/extractors/uiextractor"
	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// Analyzer parses a file once and runs every registered extractor on the
// tree. It holds no per-file state, so one Analyzer may serve concurrent
// callers.
type Analyzer struct {
	registry *extractors.Registry
}

// New returns an Analyzer with the extractors enabled in cfg. A nil cfg
// enables all of them.
func New(cfg *config.Config) *Analyzer {
	reg := extractors.NewRegistry()
	for _, e := range []extractors.Extractor{
		uiextractor.New(),
		actionextractor.New(),
		stateextractor.New(),
		flowextractor.New(),
		teaextractor.New(),
	} {
		if cfg == nil || cfg.IsExtractorEnabled(e.Name()) {
			reg.Register(e)
		}
	}
	return &Analyzer{registry: reg}
}

// Extractors returns the names of the active extractors.
func (a *Analyzer) Extractors() []string {
	return a.registry.Names()
}

// AnalyzeSource analyzes src, labelling every detection with path.
func (a *Analyzer) AnalyzeSource(path string, src []byte) (*facts.FileAnalysis, error) {
	f, err := syntax.Parse(path, src)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}
	defer f.Close()

	fa := facts.NewFileAnalysis(path)
	a.registry.Run(f, fa)
	return fa, nil
}

// AnalyzeFile reads and analyzes the file at path.
func (a *Analyzer) AnalyzeFile(path string) (*facts.FileAnalysis, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	fa, err := a.AnalyzeSource(path, src)
	if err != nil {
		return nil, err
	}
	log.Printf("[analyzer] %s: %d ui, %d actions, %d mutations, %d flows",
		path, len(fa.UIElements), len(fa.Actions), len(fa.StateMutations), len(fa.Flows))
	return fa, nil
}
