// Package actionextractor detects interaction queries on widget responses,
// such as .clicked() or .changed().
package actionextractor

import (
	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// Verbs is the allow-list of response-query method names.
var Verbs = map[string]bool{
	"clicked":                   true,
	"clicked_by":                true,
	"secondary_clicked":         true,
	"middle_clicked":            true,
	"double_clicked":            true,
	"triple_clicked":            true,
	"changed":                   true,
	"dragged":                   true,
	"drag_started":              true,
	"drag_stopped":              true,
	"hovered":                   true,
	"highlighted":               true,
	"has_focus":                 true,
	"gained_focus":              true,
	"lost_focus":                true,
	"enabled":                   true,
	"clicked_elsewhere":         true,
	"is_pointer_button_down_on": true,
}

// ActionExtractor records actions. Any receiver qualifies.
type ActionExtractor struct{}

// New creates a new ActionExtractor.
func New() *ActionExtractor {
	return &ActionExtractor{}
}

func (e *ActionExtractor) Name() string {
	return "action"
}

func (e *ActionExtractor) Extract(f *syntax.File, fa *facts.FileAnalysis) {
	fa.Actions = append(fa.Actions, Extract(f)...)
}

// Extract returns the actions of f in traversal order.
func Extract(f *syntax.File) []facts.Action {
	v := &visitor{file: f.Path, actions: []facts.Action{}}
	syntax.Walk(f, v)
	return v.actions
}

type visitor struct {
	syntax.NopVisitor
	file    string
	actions []facts.Action
}

func (v *visitor) VisitMethodCall(sc syntax.Scope, call syntax.MethodCall) {
	if !Verbs[call.Method] {
		return
	}
	v.actions = append(v.actions, facts.Action{
		ActionType: call.Method,
		Source:     syntax.DescribeReceiver(call.Receiver),
		Provenance: facts.Provenance{
			File:    v.file,
			Context: sc.Func,
			Line:    call.Expr.Line(),
		},
	})
}
