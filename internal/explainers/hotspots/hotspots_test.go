package hotspots

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dejo1307/flowmcp/internal/facts"
)

func mutation(file, fn, target string) facts.StateMutation {
	return facts.StateMutation{
		Target:       target,
		MutationType: "assign",
		Provenance:   facts.Provenance{File: file, Context: fn, Line: 1},
	}
}

func makeStore(files ...*facts.FileAnalysis) *facts.Store {
	s := facts.NewStore()
	for _, fa := range files {
		s.Put(*fa)
	}
	return s
}

func titles(insights []facts.Insight) []string {
	var out []string
	for _, in := range insights {
		out = append(out, in.Title)
	}
	return out
}

func TestSharedState(t *testing.T) {
	a := facts.NewFileAnalysis("a.rs")
	a.StateMutations = []facts.StateMutation{
		mutation("a.rs", "show", "state.user.name"),
		mutation("a.rs", "show", "state.user.age"),
		mutation("a.rs", "edit", "state.user.name"),
		mutation("a.rs", "show", "self.count"),
		mutation("a.rs", "edit", "self.count"),
	}
	b := facts.NewFileAnalysis("b.rs")
	b.StateMutations = []facts.StateMutation{
		mutation("b.rs", "show", "state.user.email"),
		mutation("b.rs", "reset", "self.count"),
	}

	insights, err := New().Explain(context.Background(), makeStore(a, b))
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	want := []string{
		"State hotspot: self.count (3 writers)",
		"State hotspot: state.user (3 writers)",
	}
	if diff := cmp.Diff(want, titles(insights)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	ev := insights[1].Evidence
	var writers []string
	for _, e := range ev {
		writers = append(writers, e.File+":"+e.Context)
	}
	if diff := cmp.Diff([]string{"a.rs:edit", "a.rs:show", "b.rs:show"}, writers); diff != "" {
		t.Errorf("evidence mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(insights[1].Description, "a.rs:edit, a.rs:show, b.rs:show") {
		t.Errorf("description = %q", insights[1].Description)
	}
}

func TestSharedState_BelowThreshold(t *testing.T) {
	a := facts.NewFileAnalysis("a.rs")
	a.StateMutations = []facts.StateMutation{
		mutation("a.rs", "show", "state.x"),
		mutation("a.rs", "show", "state.x"),
		mutation("a.rs", "show", "state.x"),
		mutation("a.rs", "edit", "state.x"),
	}
	insights, err := New().Explain(context.Background(), makeStore(a))
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("repeated writes from two functions should not be a hotspot: %v", titles(insights))
	}
}

func TestOverConnected(t *testing.T) {
	fa := facts.NewFileAnalysis("app.rs")
	for range 3 {
		fa.UIElements = append(fa.UIElements, facts.UIElement{ElementType: "button", Provenance: facts.Provenance{File: "app.rs", Context: "big"}})
		fa.Actions = append(fa.Actions, facts.Action{ActionType: "clicked", Provenance: facts.Provenance{File: "app.rs", Context: "big"}})
	}
	for range 2 {
		fa.UIElements = append(fa.UIElements, facts.UIElement{ElementType: "button", Provenance: facts.Provenance{File: "app.rs", Context: "small"}})
		fa.Actions = append(fa.Actions, facts.Action{ActionType: "clicked", Provenance: facts.Provenance{File: "app.rs", Context: "small"}})
	}
	for range 5 {
		fa.UIElements = append(fa.UIElements, facts.UIElement{ElementType: "label"})
		fa.Actions = append(fa.Actions, facts.Action{ActionType: "hovered"})
	}

	insights, err := New().Explain(context.Background(), makeStore(fa))
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if diff := cmp.Diff([]string{"Over-connected function: big in app.rs"}, titles(insights)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if insights[0].Confidence != 0.5 || insights[0].Evidence[0].Detail != "3 × 3" {
		t.Errorf("insight = %+v", insights[0])
	}
}
