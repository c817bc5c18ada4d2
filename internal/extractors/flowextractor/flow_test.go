package flowextractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

func extract(t *testing.T, src string) []facts.Flow {
	t.Helper()
	f, err := syntax.Parse("test.rs", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer f.Close()
	return Extract(f)
}

func labelOf(u facts.UIElement) string {
	if u.Label == nil {
		return "<nil>"
	}
	return *u.Label
}

func targets(muts []facts.StateMutation) []string {
	out := make([]string, len(muts))
	for i, m := range muts {
		out[i] = m.Target + " " + m.MutationType
	}
	return out
}

func TestSimpleButtonClickFlow(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.button("Click").clicked() {
        state.counter += 1;
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	fl := flows[0]
	if fl.UIElement.ElementType != "button" || labelOf(fl.UIElement) != "Click" {
		t.Errorf("ui = %s %q, want button \"Click\"", fl.UIElement.ElementType, labelOf(fl.UIElement))
	}
	if fl.Action.ActionType != "clicked" {
		t.Errorf("action = %q, want clicked", fl.Action.ActionType)
	}
	if diff := cmp.Diff([]string{"state.counter add_assign"}, targets(fl.StateMutations)); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if fl.Context != "show" {
		t.Errorf("context = %q, want show", fl.Context)
	}
}

func TestMultipleMutationsInBlock(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.button("Reset").clicked() {
        state.counter = 0;
        state.name = String::new();
        state.enabled = false;
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	if n := len(flows[0].StateMutations); n != 3 {
		t.Errorf("got %d mutations, want 3", n)
	}
}

func TestMultipleButtons(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.button("-").clicked() {
        state.counter -= 1;
    }
    if ui.button("+").clicked() {
        state.counter += 1;
    }
}
`)
	if len(flows) != 2 {
		t.Fatalf("got %d flows, want 2", len(flows))
	}
	if labelOf(flows[0].UIElement) != "-" || flows[0].StateMutations[0].MutationType != "sub_assign" {
		t.Errorf("flow[0] = %q %s", labelOf(flows[0].UIElement), flows[0].StateMutations[0].MutationType)
	}
	if labelOf(flows[1].UIElement) != "+" || flows[1].StateMutations[0].MutationType != "add_assign" {
		t.Errorf("flow[1] = %q %s", labelOf(flows[1].UIElement), flows[1].StateMutations[0].MutationType)
	}
}

func TestOrCondition(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    let r = ui.button("Multi");
    if r.clicked() || r.secondary_clicked() {
        state.activated = true;
    }
}
`)
	if len(flows) != 2 {
		t.Fatalf("got %d flows, want 2", len(flows))
	}
	for i, want := range []string{"clicked", "secondary_clicked"} {
		if flows[i].Action.ActionType != want {
			t.Errorf("flow[%d] action = %q, want %q", i, flows[i].Action.ActionType, want)
		}
		if labelOf(flows[i].UIElement) != "Multi" {
			t.Errorf("flow[%d] label = %q, want Multi", i, labelOf(flows[i].UIElement))
		}
	}
}

func TestCheckboxChanged(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.checkbox(&mut state.enabled, "Enable").changed() {
        state.settings_dirty = true;
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	if flows[0].UIElement.ElementType != "checkbox" || flows[0].Action.ActionType != "changed" {
		t.Errorf("flow = %s → %s, want checkbox → changed", flows[0].UIElement.ElementType, flows[0].Action.ActionType)
	}
}

func TestMethodMutation(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.button("Add").clicked() {
        state.items.push("item".to_string());
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	if got := flows[0].StateMutations[0].MutationType; got != "method:push" {
		t.Errorf("mutation type = %q, want method:push", got)
	}
}

func TestResponseVariableResolution(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    let response = ui.button("Save");
    if response.clicked() {
        state.saved = true;
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	el := flows[0].UIElement
	if el.ElementType != "button" || labelOf(el) != "Save" {
		t.Errorf("ui = %s %q, want button \"Save\"", el.ElementType, labelOf(el))
	}
	if el.ResponseVar == nil || *el.ResponseVar != "response" {
		t.Errorf("response var = %v, want response", el.ResponseVar)
	}
	if el.Line != 3 {
		t.Errorf("line = %d, want the binding's line 3", el.Line)
	}
}

func TestResponseVariableMultipleUses(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    let btn = ui.button("Action");
    if btn.clicked() {
        state.action_count += 1;
    }
    if btn.hovered() {
        state.hover_count += 1;
    }
}
`)
	if len(flows) != 2 {
		t.Fatalf("got %d flows, want 2", len(flows))
	}
	for i, want := range []string{"clicked", "hovered"} {
		if flows[i].UIElement.ElementType != "button" || labelOf(flows[i].UIElement) != "Action" {
			t.Errorf("flow[%d] ui = %s %q", i, flows[i].UIElement.ElementType, labelOf(flows[i].UIElement))
		}
		if flows[i].Action.ActionType != want {
			t.Errorf("flow[%d] action = %q, want %q", i, flows[i].Action.ActionType, want)
		}
	}
}

func TestUnboundAndUnknownReceivers(t *testing.T) {
	flows := extract(t, `
fn show(state: &mut AppState, resp: Response) {
    if resp.clicked() {
        state.a = 1;
    }
    if widgets[0].changed() {
        state.b = 2;
    }
}
`)
	if len(flows) != 2 {
		t.Fatalf("got %d flows, want 2", len(flows))
	}
	if flows[0].UIElement.ElementType != "response_var" || labelOf(flows[0].UIElement) != "resp" {
		t.Errorf("unbound = %s %q, want response_var \"resp\"", flows[0].UIElement.ElementType, labelOf(flows[0].UIElement))
	}
	if flows[1].UIElement.ElementType != "unknown" || flows[1].UIElement.Label != nil {
		t.Errorf("index receiver = %s %q, want unknown without label", flows[1].UIElement.ElementType, labelOf(flows[1].UIElement))
	}
}

func TestBindingsAreFunctionScoped(t *testing.T) {
	flows := extract(t, `
fn first(ui: &mut egui::Ui) {
    let r = ui.button("First");
}

fn second(state: &mut AppState) {
    if r.clicked() {
        state.x = 1;
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	if flows[0].UIElement.ElementType != "response_var" {
		t.Errorf("binding leaked across functions: %+v", flows[0].UIElement)
	}
}

func TestNestedIfsAreSeparate(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui, state: &mut AppState) {
    if ui.button("Outer").clicked() {
        state.outer = true;
        if ui.button("Inner").clicked() {
            state.inner = true;
        }
    }
}
`)
	if len(flows) != 2 {
		t.Fatalf("got %d flows, want 2", len(flows))
	}
	if diff := cmp.Diff([]string{"state.outer assign"}, targets(flows[0].StateMutations)); diff != "" {
		t.Errorf("outer mutations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"state.inner assign"}, targets(flows[1].StateMutations)); diff != "" {
		t.Errorf("inner mutations mismatch (-want +got):\n%s", diff)
	}
}

func TestNoFlowWithoutMutations(t *testing.T) {
	flows := extract(t, `
fn show(ui: &mut egui::Ui) {
    if ui.button("Log").clicked() {
        println!("clicked");
        count += 1;
    }
    if ui.button("Else").clicked() {
    } else {
        state.x = 1;
    }
}
`)
	if len(flows) != 0 {
		t.Errorf("got %d flows, want none", len(flows))
	}
}

func TestFlowDescriberOnlyLooksThroughDeref(t *testing.T) {
	flows := extract(t, `
fn show(state: &mut AppState) {
    if (!a).clicked() {
        *self.count += 1;
        self.items[0] = 1;
        (-state).set(1);
    }
}
`)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1", len(flows))
	}
	if got := flows[0].Action.Source; got != syntax.Placeholder {
		t.Errorf("action source = %q, want %q", got, syntax.Placeholder)
	}
	want := []string{"*self.count add_assign", "self.items[..] assign"}
	if diff := cmp.Diff(want, targets(flows[0].StateMutations)); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
}
