package uiextractor

import (
	"testing"

	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, err := syntax.Parse("test.rs", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func label(u facts.UIElement) string {
	if u.Label == nil {
		return "<nil>"
	}
	return *u.Label
}

func TestExtractButton(t *testing.T) {
	f := parse(t, `
fn show(ui: &mut egui::Ui) {
    if ui.button("Click me").clicked() {
        println!("clicked");
    }
}
`)
	elements := Extract(f)
	if len(elements) != 1 {
		t.Fatalf("got %d elements, want 1", len(elements))
	}
	el := elements[0]
	if el.ElementType != "button" || label(el) != "Click me" {
		t.Errorf("got %s %q, want button \"Click me\"", el.ElementType, label(el))
	}
	if el.Context != "show" || el.File != "test.rs" || el.Line != 3 {
		t.Errorf("provenance = %+v, want show in test.rs line 3", el.Provenance)
	}
}

func TestExtractMultipleElements(t *testing.T) {
	f := parse(t, `
fn show(ui: &mut egui::Ui, state: &mut State) {
    ui.heading("Settings");
    ui.label("Name:");
    ui.text_edit_singleline(&mut state.name);
    ui.checkbox(&mut state.enabled, "Enabled");
    ui.separator();
}
`)
	elements := Extract(f)
	want := []struct{ typ, label string }{
		{"heading", "Settings"},
		{"label", "Name:"},
		{"text_edit_singleline", "<nil>"},
		{"checkbox", "Enabled"},
		{"separator", "<nil>"},
	}
	if len(elements) != len(want) {
		t.Fatalf("got %d elements, want %d", len(elements), len(want))
	}
	for i, w := range want {
		if elements[i].ElementType != w.typ || label(elements[i]) != w.label {
			t.Errorf("element[%d] = %s %q, want %s %q", i, elements[i].ElementType, label(elements[i]), w.typ, w.label)
		}
	}
}

func TestExtractNestedUI(t *testing.T) {
	f := parse(t, `
fn show(ui: &mut egui::Ui) {
    ui.horizontal(|ui| {
        ui.button("A");
        ui.button("B");
    });
    ui.collapsing("More", |ui| {
        ui.label("hidden");
    });
}
`)
	elements := Extract(f)
	var got []string
	for _, el := range elements {
		got = append(got, el.ElementType+":"+label(el))
	}
	want := []string{"button:A", "button:B", "collapsing:More", "label:hidden"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestReceiverHeuristic(t *testing.T) {
	tests := []struct {
		name string
		call string
		want bool
	}{
		{"plain ui", `ui.button("x")`, true},
		{"suffix", `panel_ui.button("x")`, true},
		{"contains", `build.label("x")`, true},
		{"parenthesized", `(&mut ui).button("x")`, false},
		{"method named ui", `ctx.ui().button("x")`, true},
		{"chain from ui", `ui.push_id(1).button("x")`, true},
		{"field", `self.ui.button("x")`, false},
		{"deref", `(*handle).button("x")`, false},
		{"unrelated", `painter.button("x")`, false},
		{"not a verb", `ui.horizontal(|h| {})`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parse(t, "fn f() { "+tt.call+"; }")
			got := len(Extract(f)) == 1
			if got != tt.want {
				t.Errorf("%s detected = %v, want %v", tt.call, got, tt.want)
			}
		})
	}
}

func TestLabelNeedsLiteral(t *testing.T) {
	f := parse(t, `
fn f(ui: &mut Ui, name: &str) {
    ui.label(format!("Hello {}", name));
    ui.label(name);
    ui.label(&"borrowed");
}
`)
	elements := Extract(f)
	if len(elements) != 3 {
		t.Fatalf("got %d elements, want 3", len(elements))
	}
	if elements[0].Label != nil || elements[1].Label != nil {
		t.Errorf("non-literal labels should be absent, got %q and %q", label(elements[0]), label(elements[1]))
	}
	if label(elements[2]) != "borrowed" {
		t.Errorf("borrowed literal label = %q", label(elements[2]))
	}
}

func TestExtractorAppends(t *testing.T) {
	f := parse(t, `fn f(ui: &mut Ui) { ui.spinner(); }`)
	fa := facts.NewFileAnalysis("test.rs")
	New().Extract(f, fa)
	New().Extract(f, fa)
	if len(fa.UIElements) != 2 {
		t.Errorf("got %d elements after two runs, want 2", len(fa.UIElements))
	}
}
