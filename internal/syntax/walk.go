package syntax

import sitter "github.com/tree-sitter/go-tree-sitter"

// Scope describes where a visited node sits.
type Scope struct {
	// Func is the nearest enclosing named function, "" at top level.
	Func string
	// Method is set when Func is declared inside an impl block.
	Method bool
}

// Next tells the walker whether to descend into a node.
type Next int

const (
	Continue Next = iota
	SkipChildren
)

// Visitor receives the node shapes the extractors care about. Callbacks fire
// in pre-order, before the node's children are walked.
type Visitor interface {
	EnterFunc(sc Scope)
	LeaveFunc(sc Scope)
	VisitMethodCall(sc Scope, call MethodCall)
	VisitCall(sc Scope, call Call)
	VisitAssign(sc Scope, a Assign)
	VisitCompoundAssign(sc Scope, a CompoundAssign)
	VisitLet(sc Scope, l Let)
	VisitIf(sc Scope, i If) Next
	VisitMatch(sc Scope, m Match)
}

// NopVisitor implements Visitor with no-ops. Embed it and override what you need.
type NopVisitor struct{}

func (NopVisitor) EnterFunc(Scope) {}
func (NopVisitor) LeaveFunc(Scope) {}
func (NopVisitor) VisitMethodCall(Scope, MethodCall) {}
func (NopVisitor) VisitCall(Scope, Call) {}
func (NopVisitor) VisitAssign(Scope, Assign) {}
func (NopVisitor) VisitCompoundAssign(Scope, CompoundAssign) {}
func (NopVisitor) VisitLet(Scope, Let) {}
func (NopVisitor) VisitIf(Scope, If) Next { return Continue }
func (NopVisitor) VisitMatch(Scope, Match) {}

// Walk visits every node of f.
func Walk(f *File, v Visitor) {
	w := &walker{src: f.Src, v: v}
	w.walk(f.tree.RootNode())
}

// WalkExpr visits e and its descendants as if they sat inside sc.
func WalkExpr(e Expr, sc Scope, v Visitor) {
	if e.node == nil {
		return
	}
	w := &walker{src: e.src, v: v, stack: []Scope{sc}}
	w.walk(e.node)
}

type walker struct {
	src   []byte
	v     Visitor
	stack []Scope
}

func (w *walker) scope() Scope {
	if len(w.stack) == 0 {
		return Scope{}
	}
	return w.stack[len(w.stack)-1]
}

func (w *walker) walk(node *sitter.Node) {
	e := Expr{node: node, src: w.src}

	switch node.Kind() {
	case "function_item":
		if sc, ok := w.funcScope(node); ok {
			w.stack = append(w.stack, sc)
			w.v.EnterFunc(sc)
			w.walkChildren(node)
			w.v.LeaveFunc(sc)
			w.stack = w.stack[:len(w.stack)-1]
			return
		}
	case "call_expression":
		if mc, ok := e.MethodCall(); ok {
			w.v.VisitMethodCall(w.scope(), mc)
		} else if c, ok := e.Call(); ok {
			w.v.VisitCall(w.scope(), c)
		}
	case "assignment_expression":
		if a, ok := e.assign(); ok {
			w.v.VisitAssign(w.scope(), a)
		}
	case "compound_assignment_expr":
		if a, ok := e.compoundAssign(); ok {
			w.v.VisitCompoundAssign(w.scope(), a)
		}
	case "let_declaration":
		if l, ok := e.let(); ok {
			w.v.VisitLet(w.scope(), l)
		}
	case "if_expression":
		if i, ok := e.ifExpr(); ok && w.v.VisitIf(w.scope(), i) == SkipChildren {
			return
		}
	case "match_expression":
		if m, ok := e.match(); ok {
			w.v.VisitMatch(w.scope(), m)
		}
	}

	w.walkChildren(node)
}

func (w *walker) walkChildren(node *sitter.Node) {
	for i := range node.NamedChildCount() {
		w.walk(node.NamedChild(i))
	}
}

// funcScope reports the scope a function item opens. Default methods in a
// trait body keep the surrounding scope.
func (w *walker) funcScope(node *sitter.Node) (Scope, bool) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return Scope{}, false
	}
	sc := Scope{Func: string(w.src[name.StartByte():name.EndByte()])}
	if parent := node.Parent(); parent != nil && parent.Kind() == "declaration_list" {
		if owner := parent.Parent(); owner != nil {
			switch owner.Kind() {
			case "trait_item":
				return Scope{}, false
			case "impl_item":
				sc.Method = true
			}
		}
	}
	return sc, true
}
