// Package stateextractor detects writes to application state: assignments,
// compound assignments and calls to mutating collection methods.
package stateextractor

import (
	"strings"

	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// Verbs is the allow-list of mutating method names.
var Verbs = map[string]bool{
	"push":          true,
	"pop":           true,
	"insert":        true,
	"remove":        true,
	"clear":         true,
	"append":        true,
	"extend":        true,
	"retain":        true,
	"drain":         true,
	"truncate":      true,
	"swap_remove":   true,
	"set":           true,
	"take":          true,
	"replace":       true,
	"get_or_insert": true,
	"toggle":        true,
}

// StateExtractor records state mutations.
type StateExtractor struct{}

// New creates a new StateExtractor.
func New() *StateExtractor {
	return &StateExtractor{}
}

func (e *StateExtractor) Name() string {
	return "state"
}

func (e *StateExtractor) Extract(f *syntax.File, fa *facts.FileAnalysis) {
	fa.StateMutations = append(fa.StateMutations, Extract(f)...)
}

// Extract returns the state mutations of f in traversal order.
func Extract(f *syntax.File) []facts.StateMutation {
	v := &visitor{file: f.Path, mutations: []facts.StateMutation{}}
	syntax.Walk(f, v)
	return v.mutations
}

// IsLikelyStateMutation is the textual filter applied to every rendered
// target. Plain locals like `count` are rejected, `state_x` and `*value` pass.
func IsLikelyStateMutation(target string) bool {
	return strings.Contains(target, ".") ||
		strings.HasPrefix(target, "self.") ||
		strings.Contains(target, "state") ||
		strings.HasPrefix(target, "*")
}

type visitor struct {
	syntax.NopVisitor
	file      string
	mutations []facts.StateMutation
}

func (v *visitor) add(sc syntax.Scope, target, typ string, at syntax.Expr) {
	if !IsLikelyStateMutation(target) {
		return
	}
	v.mutations = append(v.mutations, facts.StateMutation{
		Target:       target,
		MutationType: typ,
		Provenance: facts.Provenance{
			File:    v.file,
			Context: sc.Func,
			Line:    at.Line(),
		},
	})
}

func (v *visitor) VisitAssign(sc syntax.Scope, a syntax.Assign) {
	v.add(sc, syntax.DescribeTarget(a.Left), "assign", a.Expr)
}

func (v *visitor) VisitCompoundAssign(sc syntax.Scope, a syntax.CompoundAssign) {
	v.add(sc, syntax.DescribeTarget(a.Left), a.Op, a.Expr)
}

func (v *visitor) VisitMethodCall(sc syntax.Scope, call syntax.MethodCall) {
	if !Verbs[call.Method] {
		return
	}
	v.add(sc, syntax.DescribeTarget(call.Receiver), "method:"+call.Method, call.Expr)
}
