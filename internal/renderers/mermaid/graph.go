// Package mermaid renders analyses as Mermaid flowcharts.
package mermaid

import (
	"fmt"
	"iter"
	"sort"
	"strings"
	"unicode"

	"github.com/dejo1307/flowmcp/internal/facts"
)

const (
	uiFill     = "fill:#e1f5fe"
	actionFill = "fill:#fff9c4"
	stateFill  = "fill:#c8e6c9"
	msgFill    = "fill:#ffecb3"
)

// GenerateMermaid renders one node per detection and connects them with the
// all-pairs context heuristic: every UI element to every action, and every
// action to every mutation, within the same named function.
func GenerateMermaid(fa *facts.FileAnalysis) string {
	lines := []string{"flowchart TD", "", "    %% UI Elements"}

	for i, ui := range fa.UIElements {
		id := fmt.Sprintf("UI%d", i)
		lines = append(lines,
			fmt.Sprintf("    %s[\"%s %s\"]", id, UIIcon(ui.ElementType), Escape(ui.DisplayLabel())),
			fmt.Sprintf("    style %s %s", id, uiFill))
	}

	lines = append(lines, "", "    %% Actions")
	for i, a := range fa.Actions {
		id := fmt.Sprintf("ACT%d", i)
		lines = append(lines,
			fmt.Sprintf("    %s{\"%s\"}", id, Escape(a.ActionType)),
			fmt.Sprintf("    style %s %s", id, actionFill))
	}

	lines = append(lines, "", "    %% State Mutations")
	for i, m := range fa.StateMutations {
		id := fmt.Sprintf("STATE%d", i)
		lines = append(lines,
			fmt.Sprintf("    %s([\"%s %s\"])", id, MutationIcon(m.MutationType), Escape(m.Target)),
			fmt.Sprintf("    style %s %s", id, stateFill))
	}

	lines = append(lines, "", "    %% Connections")
	lines = append(lines, connectByContext(fa)...)

	return strings.Join(lines, "\n")
}

type contextGroup struct {
	ui, actions, states []int
}

// connectByContext groups detections by enclosing function, in first-seen
// order, and skips top-level detections.
func connectByContext(fa *facts.FileAnalysis) []string {
	var order []string
	groups := make(map[string]*contextGroup)
	group := func(ctx string) *contextGroup {
		g, ok := groups[ctx]
		if !ok {
			g = &contextGroup{}
			groups[ctx] = g
			order = append(order, ctx)
		}
		return g
	}
	for i, ui := range fa.UIElements {
		g := group(ui.Context)
		g.ui = append(g.ui, i)
	}
	for i, a := range fa.Actions {
		g := group(a.Context)
		g.actions = append(g.actions, i)
	}
	for i, m := range fa.StateMutations {
		g := group(m.Context)
		g.states = append(g.states, i)
	}

	var edges []string
	for _, ctx := range order {
		if ctx == "" {
			continue
		}
		g := groups[ctx]
		for _, u := range g.ui {
			for _, a := range g.actions {
				edges = append(edges, fmt.Sprintf("    UI%d --> ACT%d", u, a))
			}
		}
		for _, a := range g.actions {
			for _, s := range g.states {
				edges = append(edges, fmt.Sprintf("    ACT%d --> STATE%d", a, s))
			}
		}
	}
	return edges
}

// GenerateFlowMermaid renders precise flows with exact 1:1 edges.
func GenerateFlowMermaid(fa *facts.FileAnalysis) string {
	if len(fa.Flows) == 0 {
		return "flowchart TD\n    %% No flows detected"
	}

	lines := []string{"flowchart TD", ""}
	for i, flow := range fa.Flows {
		uiNode := fmt.Sprintf("F%d_UI", i)
		actNode := fmt.Sprintf("F%d_ACT", i)
		lines = append(lines,
			fmt.Sprintf("    %s[\"%s %s\"]", uiNode, UIIcon(flow.UIElement.ElementType), Escape(flow.UIElement.DisplayLabel())),
			fmt.Sprintf("    style %s %s", uiNode, uiFill),
			fmt.Sprintf("    %s{\"%s\"}", actNode, Escape(flow.Action.ActionType)),
			fmt.Sprintf("    style %s %s", actNode, actionFill),
			fmt.Sprintf("    %s --> %s", uiNode, actNode))

		for _, m := range flow.StateMutations {
			stateNode := fmt.Sprintf("F%d_%s", i, SanitizeID(m.Target))
			lines = append(lines,
				fmt.Sprintf("    %s([\"%s %s\"])", stateNode, MutationIcon(m.MutationType), Escape(m.Target)),
				fmt.Sprintf("    style %s %s", stateNode, stateFill),
				fmt.Sprintf("    %s --> %s", actNode, stateNode))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// GenerateTeaMermaid renders component → action → message → mutations chains.
func GenerateTeaMermaid(fa *facts.FileAnalysis) string {
	if len(fa.TeaFlows) == 0 {
		return "flowchart TD\n    %% No TEA flows detected"
	}

	lines := []string{"flowchart TD", ""}
	for i, flow := range fa.TeaFlows {
		em := flow.Emission
		label := "-"
		if em.Label != nil {
			label = *em.Label
		}
		uiNode := fmt.Sprintf("T%d_UI", i)
		actNode := fmt.Sprintf("T%d_ACT", i)
		msgNode := fmt.Sprintf("T%d_MSG", i)
		lines = append(lines,
			fmt.Sprintf("    %s[\"%s::%s('%s')\"]", uiNode, em.Component, em.Variant, Escape(label)),
			fmt.Sprintf("    style %s %s", uiNode, uiFill),
			fmt.Sprintf("    %s{\"%s\"}", actNode, em.Action),
			fmt.Sprintf("    style %s %s", actNode, actionFill),
			fmt.Sprintf("    %s((\"%s\"))", msgNode, Escape(em.Msg)),
			fmt.Sprintf("    style %s %s", msgNode, msgFill),
			fmt.Sprintf("    %s --> %s", uiNode, actNode),
			fmt.Sprintf("    %s --> %s", actNode, msgNode))

		if flow.Handler != nil {
			for j, m := range flow.Handler.StateMutations {
				stateNode := fmt.Sprintf("T%d_S%d", i, j)
				lines = append(lines,
					fmt.Sprintf("    %s([\"%s  [%s]\"])", stateNode, Escape(strings.ReplaceAll(m.Target, ".", " . ")), m.MutationType),
					fmt.Sprintf("    style %s %s", stateNode, stateFill),
					fmt.Sprintf("    %s --> %s", msgNode, stateNode))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

type countedGroup struct {
	key   string
	count int
}

func countBy[T any](seq iter.Seq[T], key func(T) string) []countedGroup {
	counts := make(map[string]int)
	for v := range seq {
		counts[key(v)]++
	}
	groups := make([]countedGroup, 0, len(counts))
	for k, n := range counts {
		groups = append(groups, countedGroup{k, n})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// GenerateSummaryMermaid renders counts per UI type, action type and state
// group across every file, as three connected layers.
func GenerateSummaryMermaid(result *facts.AnalysisResult) string {
	lines := []string{"flowchart LR", "", `    subgraph UI["UI Layer"]`}
	for _, g := range countBy(result.AllUIElements(), func(u facts.UIElement) string { return u.ElementType }) {
		lines = append(lines, fmt.Sprintf("        %s[\"%s %s (%d)\"]", g.key, UIIcon(g.key), g.key, g.count))
	}
	lines = append(lines, "    end", "", `    subgraph Actions["Action Layer"]`)

	for _, g := range countBy(result.AllActions(), func(a facts.Action) string { return a.ActionType }) {
		lines = append(lines, fmt.Sprintf("        %s{\"%s() (%d)\"}", g.key, g.key, g.count))
	}
	lines = append(lines, "    end", "", `    subgraph State["State Layer"]`)

	for _, g := range countBy(result.AllStateMutations(), func(m facts.StateMutation) string { return facts.StateGroup(m.Target) }) {
		lines = append(lines, fmt.Sprintf("        %s([\"%s (%d)\"])", SanitizeID(g.key), Escape(g.key), g.count))
	}
	lines = append(lines, "    end", "", "    %% Layer connections", "    UI --> Actions", "    Actions --> State")

	return strings.Join(lines, "\n")
}

// UIIcon returns the node icon for a UI element type.
func UIIcon(elementType string) string {
	switch elementType {
	case "button", "small_button":
		return "🔘"
	case "label", "heading", "monospace", "code":
		return "📝"
	case "checkbox", "toggle_value":
		return "☑️"
	case "radio", "radio_value":
		return "🔘"
	case "text_edit_singleline", "text_edit_multiline":
		return "✏️"
	case "slider", "drag_value":
		return "🎚️"
	case "color_edit_button_rgb", "color_edit_button_rgba":
		return "🎨"
	case "image":
		return "🖼️"
	case "hyperlink", "hyperlink_to":
		return "🔗"
	case "separator":
		return "➖"
	case "spinner", "progress_bar":
		return "⏳"
	case "menu_button", "collapsing":
		return "📂"
	}
	return "📦"
}

// MutationIcon returns the node icon for a mutation type.
func MutationIcon(mutationType string) string {
	if verb, ok := strings.CutPrefix(mutationType, "method:"); ok {
		switch verb {
		case "push", "insert", "append", "extend":
			return "➕"
		case "pop", "remove", "clear", "drain":
			return "➖"
		case "toggle":
			return "🔄"
		}
		return "📝"
	}
	switch mutationType {
	case "assign":
		return "="
	case "add_assign":
		return "+="
	case "sub_assign":
		return "-="
	}
	return "📝"
}

// SanitizeID replaces every character that is not a letter or digit with '_'.
func SanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return '_'
	}, s)
}

// Escape makes text safe inside a quoted node label. The substitutions run
// in sequence, so the ampersand of an already inserted entity is escaped
// again; existing diagrams depend on that output.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return strings.ReplaceAll(s, "&", "&amp;")
}
