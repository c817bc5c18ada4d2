// Package teaextractor detects Elm-architecture wiring: design-system
// components emitting messages, such as
//
//	Button::primary("+").on_click(ctx, Msg::Increment)
//
// and the update function arms that handle them, such as
//
//	Msg::Increment => model.counter += 1
package teaextractor

import (
	"slices"
	"strings"

	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// Components are the design-system types whose constructors start an emission.
var Components = []string{"Button", "Input", "Card", "Badge", "Icon"}

// EmitVerbs are the component methods that emit a message.
var EmitVerbs = []string{"on_click", "on_change", "show_with"}

var handlerVerbs = []string{"push", "pop", "insert", "remove", "clear", "toggle"}

var handlerCompound = []string{"add_assign", "sub_assign", "mul_assign", "div_assign"}

// TeaExtractor records message emissions, update handlers and the flows
// pairing them.
type TeaExtractor struct{}

// New creates a new TeaExtractor.
func New() *TeaExtractor {
	return &TeaExtractor{}
}

func (e *TeaExtractor) Name() string {
	return "tea"
}

func (e *TeaExtractor) Extract(f *syntax.File, fa *facts.FileAnalysis) {
	emissions, handlers := Extract(f)
	fa.MsgEmissions = append(fa.MsgEmissions, emissions...)
	fa.MsgHandlers = append(fa.MsgHandlers, handlers...)
	fa.TeaFlows = BuildTeaFlows(fa.MsgEmissions, fa.MsgHandlers)
}

// Extract returns the emissions and handlers of f in traversal order.
func Extract(f *syntax.File) ([]facts.MsgEmission, []facts.MsgHandler) {
	v := &visitor{file: f.Path}
	syntax.Walk(f, v)
	return v.emissions, v.handlers
}

type visitor struct {
	syntax.NopVisitor
	file      string
	emissions []facts.MsgEmission
	handlers  []facts.MsgHandler
}

func (v *visitor) VisitMethodCall(sc syntax.Scope, call syntax.MethodCall) {
	if !slices.Contains(EmitVerbs, call.Method) {
		return
	}
	msg, ok := msgArg(call.Args)
	if !ok {
		return
	}
	component, variant, label, ok := dsComponent(call.Receiver)
	if !ok {
		return
	}
	v.emissions = append(v.emissions, facts.MsgEmission{
		Component: component,
		Variant:   variant,
		Label:     label,
		Action:    call.Method,
		Msg:       msg,
		Provenance: facts.Provenance{
			File:    v.file,
			Context: sc.Func,
			Line:    call.Expr.Line(),
		},
	})
}

func (v *visitor) VisitMatch(sc syntax.Scope, m syntax.Match) {
	if !sc.Method || sc.Func != "update" {
		return
	}
	scrutinee, ok := m.Value.Path()
	if !ok || !strings.HasSuffix(scrutinee, "msg") {
		return
	}
	for _, arm := range m.Arms {
		muts := handlerMutations(v.file, arm.Body)
		if len(muts) == 0 {
			continue
		}
		v.handlers = append(v.handlers, facts.MsgHandler{
			MsgPattern:     patternString(arm.Pattern),
			StateMutations: muts,
			Provenance: facts.Provenance{
				File:    v.file,
				Context: "update",
				Line:    arm.Pattern.Line(),
			},
		})
	}
}

// msgArg picks the message argument: the first argument after the context
// that looks like a message, else the first argument.
func msgArg(args []syntax.Expr) (string, bool) {
	looksLikeMsg := func(s string) bool {
		return strings.Contains(s, "::") || strings.HasPrefix(s, "Msg")
	}
	if len(args) > 1 {
		for _, arg := range args[1:] {
			if s := msgString(arg); looksLikeMsg(s) {
				return s, true
			}
		}
	}
	if len(args) > 0 {
		if s := msgString(args[0]); looksLikeMsg(s) {
			return s, true
		}
	}
	return "", false
}

// msgString renders `Msg::Variant` and `Msg::Variant(args)` as the path.
func msgString(e syntax.Expr) string {
	if p, ok := e.Path(); ok {
		return p
	}
	if call, ok := e.Call(); ok {
		if p, ok := call.Func.Path(); ok {
			return p
		}
		return "<call>"
	}
	return syntax.Placeholder
}

// dsComponent walks a receiver chain down to the component constructor.
func dsComponent(e syntax.Expr) (component, variant string, label *string, ok bool) {
	if call, isMethod := e.MethodCall(); isMethod {
		if p, isPath := call.Receiver.Path(); isPath {
			name := lastSegment(p)
			if slices.Contains(Components, name) {
				return name, call.Method, literalArg(call.Args), true
			}
		}
		return dsComponent(call.Receiver)
	}
	if call, isCall := e.Call(); isCall {
		p, isPath := call.Func.Path()
		if !isPath {
			return "", "", nil, false
		}
		segs := strings.Split(p, "::")
		if len(segs) < 2 {
			return "", "", nil, false
		}
		name := segs[len(segs)-2]
		if slices.Contains(Components, name) {
			return name, segs[len(segs)-1], literalArg(call.Args), true
		}
	}
	return "", "", nil, false
}

// literalArg returns the first direct string literal argument.
func literalArg(args []syntax.Expr) *string {
	for _, arg := range args {
		if s, ok := arg.StringLit(); ok {
			return &s
		}
	}
	return nil
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}

func patternString(p syntax.Expr) string {
	if s, ok := p.Path(); ok {
		return s
	}
	if s, ok := p.TupleStructPath(); ok {
		return s
	}
	return "<pattern>"
}

func isModelMutation(target string) bool {
	return strings.HasPrefix(target, "model.") ||
		strings.HasPrefix(target, "state.") ||
		strings.HasPrefix(target, "self.")
}

func handlerMutations(file string, body syntax.Expr) []facts.StateMutation {
	hv := &handlerVisitor{file: file}
	syntax.WalkExpr(body, syntax.Scope{Func: "update", Method: true}, hv)
	return hv.mutations
}

type handlerVisitor struct {
	syntax.NopVisitor
	file      string
	mutations []facts.StateMutation
}

func (h *handlerVisitor) add(target, typ string, at syntax.Expr) {
	if !isModelMutation(target) {
		return
	}
	h.mutations = append(h.mutations, facts.StateMutation{
		Target:       target,
		MutationType: typ,
		Provenance:   facts.Provenance{File: h.file, Context: "update", Line: at.Line()},
	})
}

func (h *handlerVisitor) VisitAssign(_ syntax.Scope, a syntax.Assign) {
	h.add(syntax.DescribeField(a.Left), "assign", a.Expr)
}

func (h *handlerVisitor) VisitCompoundAssign(_ syntax.Scope, a syntax.CompoundAssign) {
	if slices.Contains(handlerCompound, a.Op) {
		h.add(syntax.DescribeField(a.Left), a.Op, a.Expr)
	}
}

func (h *handlerVisitor) VisitMethodCall(_ syntax.Scope, call syntax.MethodCall) {
	if slices.Contains(handlerVerbs, call.Method) {
		h.add(syntax.DescribeField(call.Receiver), "method:"+call.Method, call.Expr)
	}
}

// BuildTeaFlows pairs each emission with the first handler whose pattern
// names the same message. Emissions without a handler are kept with a nil
// Handler.
func BuildTeaFlows(emissions []facts.MsgEmission, handlers []facts.MsgHandler) []facts.TeaFlow {
	flows := make([]facts.TeaFlow, 0, len(emissions))
	for _, em := range emissions {
		tf := facts.TeaFlow{Emission: em}
		for i := range handlers {
			if MsgMatches(em.Msg, handlers[i].MsgPattern) {
				h := handlers[i]
				tf.Handler = &h
				break
			}
		}
		flows = append(flows, tf)
	}
	return flows
}

// MsgMatches reports whether an emitted message and a handler pattern refer to
// the same variant.
func MsgMatches(msg, pattern string) bool {
	if msg == pattern || strings.HasSuffix(msg, "::"+pattern) {
		return true
	}
	return strings.HasSuffix(pattern, "::"+lastSegment(msg))
}
