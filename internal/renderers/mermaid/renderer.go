package mermaid

import (
	"context"
	"fmt"

	"github.com/dejo1307/flowmcp/internal/config"
	"github.com/dejo1307/flowmcp/internal/facts"
)

const mimeType = "text/vnd.mermaid"

// RenderFile renders one file in the given mode. Auto picks precise flows
// when there are any, then TEA flows, then the heuristic graph.
func RenderFile(fa *facts.FileAnalysis, mode string) (string, error) {
	switch mode {
	case config.ModeAuto, "":
		switch {
		case len(fa.Flows) > 0:
			return GenerateFlowMermaid(fa), nil
		case len(fa.TeaFlows) > 0:
			return GenerateTeaMermaid(fa), nil
		}
		return GenerateMermaid(fa), nil
	case config.ModeHeuristic:
		return GenerateMermaid(fa), nil
	case config.ModeFlow:
		return GenerateFlowMermaid(fa), nil
	case config.ModeTea:
		return GenerateTeaMermaid(fa), nil
	}
	return "", fmt.Errorf("unknown mermaid mode %q", mode)
}

// FlowArtifactName is the artifact holding the diagram of the file at path.
// The repo-relative path is kept as is, so distinct files never share a name.
func FlowArtifactName(path string) string {
	return "flows/" + path + ".mmd"
}

// Renderer writes summary.mmd and one diagram per file with detections.
type Renderer struct {
	mode string
}

// New creates a Renderer using the given per-file mode.
func New(mode string) *Renderer {
	if mode == "" {
		mode = config.ModeAuto
	}
	return &Renderer{mode: mode}
}

func (r *Renderer) Name() string {
	return "mermaid"
}

func (r *Renderer) Render(ctx context.Context, snapshot *facts.Snapshot) ([]facts.Artifact, error) {
	result := snapshot.Result
	if result == nil {
		result = &facts.AnalysisResult{}
	}

	artifacts := []facts.Artifact{{
		Name:    "summary.mmd",
		Content: []byte(GenerateSummaryMermaid(result)),
		Type:    mimeType,
	}}

	for i := range result.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fa := &result.Files[i]
		if fa.FactCount() == 0 {
			continue
		}
		diagram, err := RenderFile(fa, r.mode)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", fa.Path, err)
		}
		artifacts = append(artifacts, facts.Artifact{
			Name:    FlowArtifactName(fa.Path),
			Content: []byte(diagram),
			Type:    mimeType,
		})
	}
	return artifacts, nil
}
