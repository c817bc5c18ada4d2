package syntax

// Placeholder is the rendering of any expression shape the describers do not
// understand.
const Placeholder = "<expr>"

// DescribeReceiver renders an action receiver: paths, method calls and fields,
// looking through references and parentheses.
func DescribeReceiver(e Expr) string {
	if p, ok := e.Path(); ok {
		return p
	}
	if mc, ok := e.MethodCall(); ok {
		return DescribeReceiver(mc.Receiver) + "." + mc.Method + "()"
	}
	if base, member, ok := e.Field(); ok {
		return DescribeReceiver(base) + "." + member
	}
	if inner, ok := e.Reference(); ok {
		return DescribeReceiver(inner)
	}
	if inner, ok := e.Paren(); ok {
		return DescribeReceiver(inner)
	}
	return Placeholder
}

// DescribeTarget renders a mutation target. On top of DescribeReceiver it
// knows derefs (`*x`) and indexing (`x[..]`).
func DescribeTarget(e Expr) string {
	if p, ok := e.Path(); ok {
		return p
	}
	if mc, ok := e.MethodCall(); ok {
		return DescribeTarget(mc.Receiver) + "." + mc.Method + "()"
	}
	if base, member, ok := e.Field(); ok {
		return DescribeTarget(base) + "." + member
	}
	if inner, ok := e.Reference(); ok {
		return DescribeTarget(inner)
	}
	if inner, ok := e.Paren(); ok {
		return DescribeTarget(inner)
	}
	if base, ok := e.Index(); ok {
		return DescribeTarget(base) + "[..]"
	}
	if op, inner, ok := e.Unary(); ok {
		if op == "*" {
			return "*" + DescribeTarget(inner)
		}
		return DescribeTarget(inner)
	}
	return Placeholder
}

// DescribeField is the narrow describer used for update handlers: paths and
// field chains only.
func DescribeField(e Expr) string {
	if p, ok := e.Path(); ok {
		return p
	}
	if base, member, ok := e.Field(); ok {
		return DescribeField(base) + "." + member
	}
	return Placeholder
}

// FirstStringArg returns the first argument that is a string literal, possibly
// behind `&`.
func FirstStringArg(args []Expr) *string {
	for _, arg := range args {
		if s, ok := stringArg(arg); ok {
			return &s
		}
	}
	return nil
}

func stringArg(e Expr) (string, bool) {
	if s, ok := e.StringLit(); ok {
		return s, true
	}
	if inner, ok := e.Reference(); ok {
		return stringArg(inner)
	}
	return "", false
}
