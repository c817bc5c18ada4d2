package syntax

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Expr is a read-only view of a syntax node. The zero Expr stands for an
// absent node; every accessor on it reports false.
type Expr struct {
	node *sitter.Node
	src  []byte
}

// MethodCall is `recv.method(args)`, with or without a turbofish.
type MethodCall struct {
	Receiver Expr
	Method   string
	Args     []Expr
	Expr     Expr
}

// Call is a plain function call `f(args)`.
type Call struct {
	Func Expr
	Args []Expr
	Expr Expr
}

func (e Expr) IsZero() bool { return e.node == nil }

func (e Expr) Kind() string {
	if e.node == nil {
		return ""
	}
	return e.node.Kind()
}

func (e Expr) Text() string {
	if e.node == nil {
		return ""
	}
	return string(e.src[e.node.StartByte():e.node.EndByte()])
}

// Line is the 1-based line the expression starts on.
func (e Expr) Line() int {
	if e.node == nil {
		return 0
	}
	return int(e.node.StartPosition().Row) + 1
}

func (e Expr) field(name string) Expr {
	if e.node == nil {
		return Expr{}
	}
	child := e.node.ChildByFieldName(name)
	if child == nil {
		return Expr{}
	}
	return Expr{node: child, src: e.src}
}

// children returns the named children, skipping comments and attributes.
func (e Expr) children() []Expr {
	if e.node == nil {
		return nil
	}
	var out []Expr
	for i := range e.node.NamedChildCount() {
		child := e.node.NamedChild(i)
		switch child.Kind() {
		case "line_comment", "block_comment", "attribute_item", "inner_attribute_item":
			continue
		}
		out = append(out, Expr{node: child, src: e.src})
	}
	return out
}

func (e Expr) firstChild() Expr {
	if kids := e.children(); len(kids) > 0 {
		return kids[0]
	}
	return Expr{}
}

// Ident returns the name of a single-segment path (`ui`, `self`).
func (e Expr) Ident() (string, bool) {
	switch e.Kind() {
	case "identifier", "self", "crate", "super", "metavariable":
		return e.Text(), true
	}
	return "", false
}

// Path renders identifiers and scoped paths as `::`-joined segments.
// Generic arguments are dropped.
func (e Expr) Path() (string, bool) {
	switch e.Kind() {
	case "identifier", "self", "crate", "super", "metavariable", "type_identifier", "primitive_type":
		return e.Text(), true
	case "scoped_identifier", "scoped_type_identifier":
		name := e.field("name").Text()
		prefix := e.field("path")
		if prefix.IsZero() {
			return name, true
		}
		p, ok := prefix.Path()
		if !ok {
			return "", false
		}
		return p + "::" + name, true
	case "generic_function":
		return e.field("function").Path()
	case "generic_type":
		return e.field("type").Path()
	}
	return "", false
}

func (e Expr) MethodCall() (MethodCall, bool) {
	if e.Kind() != "call_expression" {
		return MethodCall{}, false
	}
	fn := e.field("function")
	if fn.Kind() == "generic_function" {
		fn = fn.field("function")
	}
	if fn.Kind() != "field_expression" {
		return MethodCall{}, false
	}
	name := fn.field("field")
	if name.Kind() != "field_identifier" {
		return MethodCall{}, false
	}
	return MethodCall{
		Receiver: fn.field("value"),
		Method:   name.Text(),
		Args:     e.field("arguments").children(),
		Expr:     e,
	}, true
}

func (e Expr) Call() (Call, bool) {
	if e.Kind() != "call_expression" {
		return Call{}, false
	}
	if _, ok := e.MethodCall(); ok {
		return Call{}, false
	}
	return Call{
		Func: e.field("function"),
		Args: e.field("arguments").children(),
		Expr: e,
	}, true
}

// Field returns the base and member of `base.member`; tuple indexes render as
// their digits.
func (e Expr) Field() (Expr, string, bool) {
	if e.Kind() != "field_expression" {
		return Expr{}, "", false
	}
	return e.field("value"), e.field("field").Text(), true
}

// Reference unwraps `&x` and `&mut x`.
func (e Expr) Reference() (Expr, bool) {
	if e.Kind() != "reference_expression" {
		return Expr{}, false
	}
	return e.field("value"), true
}

// Unary returns the operator and operand of `*x`, `-x` or `!x`.
func (e Expr) Unary() (string, Expr, bool) {
	if e.Kind() != "unary_expression" || e.node.ChildCount() == 0 {
		return "", Expr{}, false
	}
	op := e.node.Child(0).Kind()
	return op, e.firstChild(), true
}

func (e Expr) Deref() (Expr, bool) {
	op, inner, ok := e.Unary()
	if !ok || op != "*" {
		return Expr{}, false
	}
	return inner, true
}

func (e Expr) Paren() (Expr, bool) {
	if e.Kind() != "parenthesized_expression" {
		return Expr{}, false
	}
	return e.firstChild(), true
}

// Index returns the base of `base[i]`.
func (e Expr) Index() (Expr, bool) {
	if e.Kind() != "index_expression" {
		return Expr{}, false
	}
	return e.firstChild(), true
}

// Binary returns the operands and operator of a binary expression.
func (e Expr) Binary() (Expr, string, Expr, bool) {
	if e.Kind() != "binary_expression" {
		return Expr{}, "", Expr{}, false
	}
	return e.field("left"), e.field("operator").Kind(), e.field("right"), true
}

// StringLit returns the value of a `"..."` or raw string literal. Byte and C
// strings are not string literals.
func (e Expr) StringLit() (string, bool) {
	switch e.Kind() {
	case "string_literal":
		if !strings.HasPrefix(e.Text(), `"`) {
			return "", false
		}
		return e.decodeString(), true
	case "raw_string_literal":
		if !strings.HasPrefix(e.Text(), "r") {
			return "", false
		}
		for i := range e.node.ChildCount() {
			child := e.node.Child(i)
			if child.Kind() == "string_content" {
				return string(e.src[child.StartByte():child.EndByte()]), true
			}
		}
		return "", true
	}
	return "", false
}

func (e Expr) decodeString() string {
	var b strings.Builder
	trim := false
	for i := range e.node.ChildCount() {
		child := e.node.Child(i)
		text := string(e.src[child.StartByte():child.EndByte()])
		switch child.Kind() {
		case "string_content":
			if trim {
				text = strings.TrimLeft(text, " \t\r\n")
				trim = false
			}
			b.WriteString(text)
		case "escape_sequence":
			if text == "\\\n" || text == "\\\r" {
				trim = true
				continue
			}
			b.WriteString(unescape(text))
		}
	}
	return b.String()
}

func unescape(seq string) string {
	if len(seq) < 2 {
		return seq
	}
	switch seq[1] {
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case '0':
		return "\x00"
	case '\\', '\'', '"':
		return seq[1:2]
	case 'x':
		if v, err := strconv.ParseUint(seq[2:], 16, 8); err == nil {
			return string(rune(v))
		}
	case 'u':
		hex := strings.Trim(seq[2:], "{}")
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return string(rune(v))
		}
	}
	return seq
}

// Assign is `left = right`.
type Assign struct {
	Left  Expr
	Right Expr
	Expr  Expr
}

// CompoundAssign is `left op= right`. Op is the tag from CompoundOpTag.
type CompoundAssign struct {
	Left  Expr
	Op    string
	Right Expr
	Expr  Expr
}

// Let is `let pattern = value;`. Typed is set when the binding carries a type
// annotation.
type Let struct {
	Pattern Expr
	Value   Expr
	Typed   bool
	Expr    Expr
}

// If is `if cond { then } else ...`.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
	Expr Expr
}

// Match is `match value { arms }`.
type Match struct {
	Value Expr
	Arms  []Arm
	Expr  Expr
}

// Arm is one `pattern => body` of a match.
type Arm struct {
	Pattern Expr
	Body    Expr
}

var compoundOps = map[string]string{
	"+=":  "add_assign",
	"-=":  "sub_assign",
	"*=":  "mul_assign",
	"/=":  "div_assign",
	"%=":  "rem_assign",
	"&=":  "bitand_assign",
	"|=":  "bitor_assign",
	"^=":  "bitxor_assign",
	"<<=": "shl_assign",
	">>=": "shr_assign",
}

// CompoundOpTag maps a compound assignment operator to its mutation tag.
func CompoundOpTag(op string) string {
	if tag, ok := compoundOps[op]; ok {
		return tag
	}
	return "compound_assign"
}

func (e Expr) assign() (Assign, bool) {
	if e.Kind() != "assignment_expression" {
		return Assign{}, false
	}
	return Assign{Left: e.field("left"), Right: e.field("right"), Expr: e}, true
}

func (e Expr) compoundAssign() (CompoundAssign, bool) {
	if e.Kind() != "compound_assignment_expr" {
		return CompoundAssign{}, false
	}
	return CompoundAssign{
		Left:  e.field("left"),
		Op:    CompoundOpTag(e.field("operator").Kind()),
		Right: e.field("right"),
		Expr:  e,
	}, true
}

func (e Expr) let() (Let, bool) {
	if e.Kind() != "let_declaration" {
		return Let{}, false
	}
	return Let{
		Pattern: e.field("pattern"),
		Value:   e.field("value"),
		Typed:   !e.field("type").IsZero(),
		Expr:    e,
	}, true
}

func (e Expr) ifExpr() (If, bool) {
	if e.Kind() != "if_expression" {
		return If{}, false
	}
	return If{
		Cond: e.field("condition"),
		Then: e.field("consequence"),
		Else: e.field("alternative"),
		Expr: e,
	}, true
}

func (e Expr) match() (Match, bool) {
	if e.Kind() != "match_expression" {
		return Match{}, false
	}
	m := Match{Value: e.field("value"), Expr: e}
	for _, arm := range e.field("body").children() {
		if arm.Kind() != "match_arm" {
			continue
		}
		pat := arm.field("pattern")
		if pat.Kind() == "match_pattern" && pat.node.ChildCount() > 0 {
			// The pattern itself may be an anonymous `_` token.
			pat = Expr{node: pat.node.Child(0), src: pat.src}
		}
		m.Arms = append(m.Arms, Arm{Pattern: pat, Body: arm.field("value")})
	}
	return m, true
}

// TupleStructPath returns the path of `Path(..)` and `Path { .. }` patterns.
func (e Expr) TupleStructPath() (string, bool) {
	switch e.Kind() {
	case "tuple_struct_pattern", "struct_pattern":
		return e.field("type").Path()
	}
	return "", false
}
