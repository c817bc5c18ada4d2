package hotspots

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/flowmcp/internal/facts"
)

const (
	// minWriters is the number of distinct functions that must mutate a state
	// group before it is reported.
	minWriters = 3
	// maxPairs is the UI × action product above which a function's heuristic
	// graph is considered over-connected.
	maxPairs = 4
)

// HotspotExplainer reports state written from many places and functions whose
// context-correlated graph draws more edges than it can justify.
type HotspotExplainer struct{}

// New creates a new HotspotExplainer.
func New() *HotspotExplainer {
	return &HotspotExplainer{}
}

func (e *HotspotExplainer) Name() string {
	return "hotspots"
}

func (e *HotspotExplainer) Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error) {
	files := store.All()
	insights := sharedState(files)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append(insights, overConnected(files)...), nil
}

type writer struct {
	file, context string
}

func sharedState(files []facts.FileAnalysis) []facts.Insight {
	writers := make(map[string]map[writer]facts.StateMutation)
	for _, fa := range files {
		for _, m := range fa.StateMutations {
			group := facts.StateGroup(m.Target)
			if writers[group] == nil {
				writers[group] = make(map[writer]facts.StateMutation)
			}
			w := writer{m.File, m.Context}
			if _, seen := writers[group][w]; !seen {
				writers[group][w] = m
			}
		}
	}

	groups := make([]string, 0, len(writers))
	for g, ws := range writers {
		if len(ws) >= minWriters {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)

	var insights []facts.Insight
	for _, g := range groups {
		ws := writers[g]
		keys := make([]writer, 0, len(ws))
		for w := range ws {
			keys = append(keys, w)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].file != keys[j].file {
				return keys[i].file < keys[j].file
			}
			return keys[i].context < keys[j].context
		})

		evidence := make([]facts.Evidence, 0, len(keys))
		var names []string
		for _, w := range keys {
			m := ws[w]
			evidence = append(evidence, facts.Evidence{
				File:    w.file,
				Line:    m.Line,
				Context: w.context,
				Fact:    m.Target,
				Detail:  m.MutationType,
			})
			names = append(names, describeWriter(w))
		}

		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("State hotspot: %s (%d writers)", g, len(keys)),
			Description: fmt.Sprintf("%s is mutated from %s. Changes to it are hard to trace back to a single interaction.", g, strings.Join(names, ", ")),
			Confidence:  0.7,
			Evidence:    evidence,
			Actions: []string{
				"Route the writes through a single message or method",
				"Use trace_state to list the interactions that reach it",
			},
		})
	}
	return insights
}

func describeWriter(w writer) string {
	if w.context == "" {
		return w.file
	}
	return w.file + ":" + w.context
}

func overConnected(files []facts.FileAnalysis) []facts.Insight {
	var insights []facts.Insight
	for _, fa := range files {
		ui := make(map[string]int)
		actions := make(map[string]int)
		var order []string
		for _, u := range fa.UIElements {
			if u.Context == "" {
				continue
			}
			if ui[u.Context] == 0 && actions[u.Context] == 0 {
				order = append(order, u.Context)
			}
			ui[u.Context]++
		}
		for _, a := range fa.Actions {
			if a.Context == "" {
				continue
			}
			if ui[a.Context] == 0 && actions[a.Context] == 0 {
				order = append(order, a.Context)
			}
			actions[a.Context]++
		}

		for _, fn := range order {
			pairs := ui[fn] * actions[fn]
			if pairs <= maxPairs {
				continue
			}
			insights = append(insights, facts.Insight{
				Title: fmt.Sprintf("Over-connected function: %s in %s", fn, fa.Path),
				Description: fmt.Sprintf("%s has %d UI elements and %d actions, so the heuristic graph links %d pairs. Most of these edges are not real interactions.",
					fn, ui[fn], actions[fn], pairs),
				Confidence: 0.5,
				Evidence: []facts.Evidence{{
					File:    fa.Path,
					Context: fn,
					Detail:  fmt.Sprintf("%d × %d", ui[fn], actions[fn]),
				}},
				Actions: []string{
					"Render this file in flow mode for precise edges",
					"Split the function into smaller view helpers",
				},
			})
		}
	}
	return insights
}
