// Package report renders a markdown overview of a snapshot.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dejo1307/flowmcp/internal/facts"
)

const defaultTokens = 4000

// Renderer produces flow_report.md, fitted to a token budget.
type Renderer struct {
	maxTokens int
}

// New creates a Renderer with the given token budget.
func New(maxTokens int) *Renderer {
	if maxTokens <= 0 {
		maxTokens = defaultTokens
	}
	return &Renderer{maxTokens: maxTokens}
}

func (r *Renderer) Name() string {
	return "report"
}

type section struct {
	name    string
	content string
}

// Render produces the flow_report.md artifact. Sections are ordered by
// priority; lower-priority sections are truncated or omitted first when the
// budget is tight.
func (r *Renderer) Render(ctx context.Context, snapshot *facts.Snapshot) ([]facts.Artifact, error) {
	result := snapshot.Result
	if result == nil {
		result = &facts.AnalysisResult{}
	}

	sections := []section{
		{"Summary", renderSummary(result)},
		{"UI Flows", renderUIFlows(result)},
		{"TEA Flows", renderTeaFlows(result)},
		{"Insights", renderInsights(snapshot.Insights)},
		{"State Hotspots", renderHotspots(result)},
		{"Raw Detections", renderRaw(result)},
		{"Meta", renderMeta(snapshot.Meta)},
	}

	header := "# UI Flow Report\n\n"
	remaining := r.maxTokens*4 - len(header) // 1 token ~= 4 chars

	var sb strings.Builder
	sb.WriteString(header)

	for i, sec := range sections {
		if sec.content == "" {
			continue
		}
		if len(sec.content) <= remaining {
			sb.WriteString(sec.content)
			remaining -= len(sec.content)
			continue
		}
		if remaining > 200 {
			sb.WriteString(truncate(sec.content, remaining-100))
			fmt.Fprintf(&sb, "\n\n---\n*[Truncated in: %s]*\n", sec.name)
			break
		}
		var omitted []string
		for _, s := range sections[i:] {
			if s.content != "" {
				omitted = append(omitted, s.name)
			}
		}
		fmt.Fprintf(&sb, "\n\n---\n*[Omitted: %s]*\n", strings.Join(omitted, ", "))
		break
	}

	return []facts.Artifact{{
		Name:    "flow_report.md",
		Content: []byte(sb.String()),
		Type:    "text/markdown",
	}}, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func renderSummary(result *facts.AnalysisResult) string {
	var files, withFacts, ui, actions, muts, flows, emissions, handlers, teaFlows, unhandled int
	for _, fa := range result.Files {
		files++
		if fa.FactCount() > 0 {
			withFacts++
		}
		ui += len(fa.UIElements)
		actions += len(fa.Actions)
		muts += len(fa.StateMutations)
		flows += len(fa.Flows)
		emissions += len(fa.MsgEmissions)
		handlers += len(fa.MsgHandlers)
		teaFlows += len(fa.TeaFlows)
		for _, tf := range fa.TeaFlows {
			if tf.Handler == nil {
				unhandled++
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n")
	sb.WriteString("|--------|-------|\n")
	rows := []struct {
		name  string
		count int
	}{
		{"Files analyzed", files},
		{"Files with detections", withFacts},
		{"UI elements", ui},
		{"Actions", actions},
		{"State mutations", muts},
		{"UI flows", flows},
		{"Msg emissions", emissions},
		{"Msg handlers", handlers},
		{"TEA flows", teaFlows},
		{"Unhandled emissions", unhandled},
	}
	for _, row := range rows {
		fmt.Fprintf(&sb, "| %s | %d |\n", row.name, row.count)
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderUIFlows(result *facts.AnalysisResult) string {
	var sb strings.Builder
	for _, fa := range result.Files {
		if len(fa.Flows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### `%s`\n\n", fa.Path)
		for _, flow := range fa.Flows {
			fmt.Fprintf(&sb, "- %s \"%s\" → `.%s()`", flow.UIElement.ElementType, flow.UIElement.DisplayLabel(), flow.Action.ActionType)
			if flow.Context != "" {
				fmt.Fprintf(&sb, " in `%s`", flow.Context)
			}
			if flow.Action.Line > 0 {
				fmt.Fprintf(&sb, " (line %d)", flow.Action.Line)
			}
			sb.WriteString("\n")
			for _, m := range flow.StateMutations {
				fmt.Fprintf(&sb, "  - `%s` [%s]\n", m.Target, m.MutationType)
			}
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return ""
	}
	return "## UI Flows\n\n" + sb.String()
}

func renderTeaFlows(result *facts.AnalysisResult) string {
	var sb strings.Builder
	for _, fa := range result.Files {
		if len(fa.TeaFlows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### `%s`\n\n", fa.Path)
		for _, tf := range fa.TeaFlows {
			em := tf.Emission
			label := "-"
			if em.Label != nil {
				label = *em.Label
			}
			fmt.Fprintf(&sb, "- `%s::%s(\"%s\")` → %s → `%s`\n", em.Component, em.Variant, label, em.Action, em.Msg)
			if tf.Handler == nil {
				sb.WriteString("  - _no handler found_\n")
				continue
			}
			for _, m := range tf.Handler.StateMutations {
				fmt.Fprintf(&sb, "  - `%s` [%s]\n", m.Target, m.MutationType)
			}
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return ""
	}
	return "## TEA Flows\n\n" + sb.String()
}

func renderInsights(insights []facts.Insight) string {
	if len(insights) == 0 {
		return ""
	}
	sorted := make([]facts.Insight, len(insights))
	copy(sorted, insights)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var sb strings.Builder
	sb.WriteString("## Insights\n\n")
	for _, in := range sorted {
		fmt.Fprintf(&sb, "- **%s** (confidence: %.0f%%): %s\n", in.Title, in.Confidence*100, in.Description)
	}
	sb.WriteString("\n")
	return sb.String()
}

type hotspot struct {
	group    string
	count    int
	contexts map[string]bool
	files    map[string]bool
}

func renderHotspots(result *facts.AnalysisResult) string {
	byGroup := make(map[string]*hotspot)
	for m := range result.AllStateMutations() {
		key := facts.StateGroup(m.Target)
		h, ok := byGroup[key]
		if !ok {
			h = &hotspot{group: key, contexts: make(map[string]bool), files: make(map[string]bool)}
			byGroup[key] = h
		}
		h.count++
		h.contexts[m.File+"#"+m.Context] = true
		h.files[m.File] = true
	}
	if len(byGroup) == 0 {
		return ""
	}

	spots := make([]*hotspot, 0, len(byGroup))
	for _, h := range byGroup {
		spots = append(spots, h)
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].count != spots[j].count {
			return spots[i].count > spots[j].count
		}
		return spots[i].group < spots[j].group
	})

	limit := min(len(spots), 15)

	var sb strings.Builder
	sb.WriteString("## State Hotspots\n\n")
	sb.WriteString("| State | Mutations | Functions | Files |\n")
	sb.WriteString("|-------|-----------|-----------|-------|\n")
	for _, h := range spots[:limit] {
		fmt.Fprintf(&sb, "| `%s` | %d | %d | %d |\n", h.group, h.count, len(h.contexts), len(h.files))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderRaw(result *facts.AnalysisResult) string {
	var sb strings.Builder
	for _, fa := range result.Files {
		if fa.FactCount() == 0 {
			continue
		}
		fmt.Fprintf(&sb, "| `%s` | %d | %d | %d | %d | %d |\n", fa.Path,
			len(fa.UIElements), len(fa.Actions), len(fa.StateMutations), len(fa.MsgEmissions), len(fa.MsgHandlers))
	}
	if sb.Len() == 0 {
		return ""
	}
	return "## Raw Detections\n\n" +
		"| File | UI | Actions | Mutations | Emissions | Handlers |\n" +
		"|------|----|---------|-----------|-----------|----------|\n" +
		sb.String() + "\n"
}

func renderMeta(meta facts.SnapshotMeta) string {
	var sb strings.Builder
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Generated at %s in %s. %d files (%d reused), %d facts, %d insights.*\n",
		meta.GeneratedAt, meta.Duration, meta.FileCount, meta.Reused, meta.FactCount, meta.InsightCount)
	if len(meta.Skipped) > 0 {
		fmt.Fprintf(&sb, "\n*Skipped (parse errors): %s*\n", strings.Join(meta.Skipped, ", "))
	}
	return sb.String()
}
