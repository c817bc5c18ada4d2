// Package flowextractor links UI elements, the actions queried on them and the
// state they mutate, scoped to a single if expression:
//
//	if ui.button("x").clicked() { state.y = z }
//
// yields button("x") → clicked → state.y. Responses bound with
// `let r = ui.button("x")` are resolved when `r.clicked()` is tested later in
// the same function.
package flowextractor

import (
	"slices"

	"github.com/dejo1307/flowmcp/internal/extractors/stateextractor"
	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// UIVerbs are the widget constructors a flow can start from.
var UIVerbs = map[string]bool{
	"button":               true,
	"small_button":         true,
	"label":                true,
	"heading":              true,
	"checkbox":             true,
	"radio":                true,
	"radio_value":          true,
	"selectable_label":     true,
	"selectable_value":     true,
	"text_edit_singleline": true,
	"text_edit_multiline":  true,
	"slider":               true,
	"drag_value":           true,
	"toggle_value":         true,
	"menu_button":          true,
	"collapsing":           true,
	"add":                  true,
}

// ActionVerbs are the response queries that trigger a flow.
var ActionVerbs = map[string]bool{
	"clicked":           true,
	"clicked_by":        true,
	"secondary_clicked": true,
	"middle_clicked":    true,
	"double_clicked":    true,
	"triple_clicked":    true,
	"changed":           true,
	"dragged":           true,
	"drag_started":      true,
	"drag_stopped":      true,
	"hovered":           true,
	"has_focus":         true,
	"gained_focus":      true,
	"lost_focus":        true,
}

// MutationVerbs are the collection methods counted as mutations inside a flow.
var MutationVerbs = map[string]bool{
	"push":     true,
	"pop":      true,
	"insert":   true,
	"remove":   true,
	"clear":    true,
	"append":   true,
	"extend":   true,
	"retain":   true,
	"drain":    true,
	"truncate": true,
	"toggle":   true,
	"set":      true,
	"take":     true,
	"replace":  true,
}

var compoundTags = map[string]bool{
	"add_assign": true,
	"sub_assign": true,
	"mul_assign": true,
	"div_assign": true,
}

// FlowExtractor records precise UI flows.
type FlowExtractor struct{}

// New creates a new FlowExtractor.
func New() *FlowExtractor {
	return &FlowExtractor{}
}

func (e *FlowExtractor) Name() string {
	return "flow"
}

func (e *FlowExtractor) Extract(f *syntax.File, fa *facts.FileAnalysis) {
	fa.Flows = append(fa.Flows, Extract(f)...)
}

// Extract returns the flows of f in traversal order.
func Extract(f *syntax.File) []facts.Flow {
	v := &visitor{file: f.Path, flows: []facts.Flow{}, bindings: map[string]facts.UIElement{}}
	syntax.Walk(f, v)
	return v.flows
}

type visitor struct {
	syntax.NopVisitor
	file  string
	flows []facts.Flow

	// bindings maps response variables to the element they were bound to,
	// for the function currently being walked.
	bindings map[string]facts.UIElement
	saved    []map[string]facts.UIElement
}

type trigger struct {
	element facts.UIElement
	action  facts.Action
}

func (v *visitor) EnterFunc(syntax.Scope) {
	v.saved = append(v.saved, v.bindings)
	v.bindings = map[string]facts.UIElement{}
}

func (v *visitor) LeaveFunc(syntax.Scope) {
	v.bindings = v.saved[len(v.saved)-1]
	v.saved = v.saved[:len(v.saved)-1]
}

func (v *visitor) VisitLet(sc syntax.Scope, l syntax.Let) {
	if l.Value.IsZero() || l.Typed {
		return
	}
	name, ok := l.Pattern.Ident()
	if !ok || l.Pattern.Kind() != "identifier" {
		return
	}
	if el, ok := v.uiInChain(sc, l.Value); ok {
		v.bindings[name] = el
	}
}

func (v *visitor) VisitIf(sc syntax.Scope, i syntax.If) syntax.Next {
	var triggers []trigger
	v.collectTriggers(sc, i.Cond, &triggers)
	if len(triggers) == 0 {
		return syntax.Continue
	}

	muts := v.mutationsIn(sc, i.Then)
	if len(muts) == 0 {
		return syntax.Continue
	}
	for _, t := range triggers {
		v.flows = append(v.flows, facts.Flow{
			UIElement:      t.element,
			Action:         t.action,
			StateMutations: slices.Clone(muts),
			Context:        sc.Func,
		})
	}
	return syntax.Continue
}

func (v *visitor) prov(sc syntax.Scope, at syntax.Expr) facts.Provenance {
	return facts.Provenance{File: v.file, Context: sc.Func, Line: at.Line()}
}

// uiInChain finds the first flow UI verb walking down a receiver chain.
func (v *visitor) uiInChain(sc syntax.Scope, e syntax.Expr) (facts.UIElement, bool) {
	if inner, ok := e.Paren(); ok {
		return v.uiInChain(sc, inner)
	}
	call, ok := e.MethodCall()
	if !ok {
		return facts.UIElement{}, false
	}
	if UIVerbs[call.Method] {
		return facts.UIElement{
			ElementType: call.Method,
			Label:       syntax.FirstStringArg(call.Args),
			Provenance:  v.prov(sc, call.Expr),
		}, true
	}
	return v.uiInChain(sc, call.Receiver)
}

func (v *visitor) collectTriggers(sc syntax.Scope, cond syntax.Expr, out *[]trigger) {
	if left, op, right, ok := cond.Binary(); ok {
		if op == "||" || op == "&&" {
			v.collectTriggers(sc, left, out)
			v.collectTriggers(sc, right, out)
		}
		return
	}
	if inner, ok := cond.Paren(); ok {
		v.collectTriggers(sc, inner, out)
		return
	}
	call, ok := cond.MethodCall()
	if !ok || !ActionVerbs[call.Method] {
		return
	}
	*out = append(*out, trigger{
		element: v.resolveElement(sc, call.Receiver),
		action: facts.Action{
			ActionType: call.Method,
			Source:     describe(call.Receiver),
			Provenance: v.prov(sc, call.Expr),
		},
	})
}

// resolveElement names the element an action is queried on: a UI verb in the
// receiver chain, a bound response variable, an unbound variable, or unknown.
func (v *visitor) resolveElement(sc syntax.Scope, recv syntax.Expr) facts.UIElement {
	for {
		call, ok := recv.MethodCall()
		if !ok {
			break
		}
		if UIVerbs[call.Method] {
			return facts.UIElement{
				ElementType: call.Method,
				Label:       syntax.FirstStringArg(call.Args),
				Provenance:  v.prov(sc, call.Expr),
			}
		}
		recv = call.Receiver
	}

	name, ok := recv.Path()
	if !ok {
		return facts.UIElement{ElementType: "unknown", Provenance: v.prov(sc, recv)}
	}
	if bound, ok := v.bindings[name]; ok {
		bound.ResponseVar = &name
		bound.Context = sc.Func
		return bound
	}
	label := name
	return facts.UIElement{
		ElementType: "response_var",
		Label:       &label,
		ResponseVar: &name,
		Provenance:  v.prov(sc, recv),
	}
}

// mutationsIn collects the mutations of a then-block. Nested ifs are left to
// the outer walk.
func (v *visitor) mutationsIn(sc syntax.Scope, block syntax.Expr) []facts.StateMutation {
	mv := &mutationVisitor{file: v.file, context: sc.Func}
	syntax.WalkExpr(block, sc, mv)
	return mv.mutations
}

type mutationVisitor struct {
	syntax.NopVisitor
	file      string
	context   string
	mutations []facts.StateMutation
}

func (m *mutationVisitor) add(target, typ string, at syntax.Expr) {
	if !stateextractor.IsLikelyStateMutation(target) {
		return
	}
	m.mutations = append(m.mutations, facts.StateMutation{
		Target:       target,
		MutationType: typ,
		Provenance:   facts.Provenance{File: m.file, Context: m.context, Line: at.Line()},
	})
}

func (m *mutationVisitor) VisitIf(syntax.Scope, syntax.If) syntax.Next {
	return syntax.SkipChildren
}

func (m *mutationVisitor) VisitAssign(_ syntax.Scope, a syntax.Assign) {
	m.add(describe(a.Left), "assign", a.Expr)
}

func (m *mutationVisitor) VisitCompoundAssign(_ syntax.Scope, a syntax.CompoundAssign) {
	if compoundTags[a.Op] {
		m.add(describe(a.Left), a.Op, a.Expr)
	}
}

func (m *mutationVisitor) VisitMethodCall(_ syntax.Scope, call syntax.MethodCall) {
	if MutationVerbs[call.Method] {
		m.add(describe(call.Receiver), "method:"+call.Method, call.Expr)
	}
}

// describe renders a flow action source or mutation target. Unlike
// syntax.DescribeTarget it only looks through derefs; `!x` and `-x` render as
// the placeholder.
func describe(e syntax.Expr) string {
	if p, ok := e.Path(); ok {
		return p
	}
	if base, member, ok := e.Field(); ok {
		return describe(base) + "." + member
	}
	if mc, ok := e.MethodCall(); ok {
		return describe(mc.Receiver) + "." + mc.Method + "()"
	}
	if inner, ok := e.Deref(); ok {
		return "*" + describe(inner)
	}
	if inner, ok := e.Reference(); ok {
		return describe(inner)
	}
	if inner, ok := e.Paren(); ok {
		return describe(inner)
	}
	if base, ok := e.Index(); ok {
		return describe(base) + "[..]"
	}
	return syntax.Placeholder
}
