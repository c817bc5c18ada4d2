// Package uiextractor detects widget-construction calls such as
// ui.button("Save") on UI-like receivers.
package uiextractor

import (
	"strings"

	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// Verbs is the allow-list of widget-constructing method names.
var Verbs = map[string]bool{
	"button":                 true,
	"small_button":           true,
	"label":                  true,
	"heading":                true,
	"monospace":              true,
	"code":                   true,
	"checkbox":               true,
	"radio":                  true,
	"radio_value":            true,
	"selectable_label":       true,
	"selectable_value":       true,
	"text_edit_singleline":   true,
	"text_edit_multiline":    true,
	"add":                    true,
	"add_sized":              true,
	"slider":                 true,
	"drag_value":             true,
	"color_edit_button_rgb":  true,
	"color_edit_button_rgba": true,
	"image":                  true,
	"hyperlink":              true,
	"hyperlink_to":           true,
	"separator":              true,
	"spinner":                true,
	"progress_bar":           true,
	"toggle_value":           true,
	"collapsing":             true,
	"menu_button":            true,
}

// UIExtractor records UI elements.
type UIExtractor struct{}

// New creates a new UIExtractor.
func New() *UIExtractor {
	return &UIExtractor{}
}

func (e *UIExtractor) Name() string {
	return "ui"
}

func (e *UIExtractor) Extract(f *syntax.File, fa *facts.FileAnalysis) {
	fa.UIElements = append(fa.UIElements, Extract(f)...)
}

// Extract returns the UI elements of f in traversal order.
func Extract(f *syntax.File) []facts.UIElement {
	v := &visitor{file: f.Path, elements: []facts.UIElement{}}
	syntax.Walk(f, v)
	return v.elements
}

type visitor struct {
	syntax.NopVisitor
	file     string
	elements []facts.UIElement
}

func (v *visitor) VisitMethodCall(sc syntax.Scope, call syntax.MethodCall) {
	if !Verbs[call.Method] || !IsUIReceiver(call.Receiver) {
		return
	}
	v.elements = append(v.elements, facts.UIElement{
		ElementType: call.Method,
		Label:       syntax.FirstStringArg(call.Args),
		Provenance: facts.Provenance{
			File:    v.file,
			Context: sc.Func,
			Line:    call.Expr.Line(),
		},
	})
}

// IsUIReceiver reports whether e looks like a UI handle: a plain name
// containing "ui", a reference to one, or a method chain that passes through
// .ui() or starts at one. Fields and derefs never qualify, so self.ui.button()
// is missed while build.label() is accepted.
func IsUIReceiver(e syntax.Expr) bool {
	if name, ok := e.Ident(); ok {
		return name == "ui" || strings.HasSuffix(name, "_ui") || strings.Contains(name, "ui")
	}
	if inner, ok := e.Reference(); ok {
		return IsUIReceiver(inner)
	}
	if call, ok := e.MethodCall(); ok {
		return call.Method == "ui" || IsUIReceiver(call.Receiver)
	}
	return false
}
