package jsast

// Matcher decides whether a node has a given shape and extracts its payload.
type Matcher interface {
	Match(n *Node) (string, bool)
}

// CallPattern matches calls such as goog.require("a.b") structurally.
type CallPattern struct {
	// Callee is the exact dotted member chain of the called function.
	Callee string
	// Arity is the exact number of arguments.
	Arity int
	// ArgKind is the required kind of the first argument.
	ArgKind Kind
}

// NewStringCall returns the pattern for a one-argument call with a string literal argument.
func NewStringCall(callee string) CallPattern {
	return CallPattern{Callee: callee, Arity: 1, ArgKind: KindString}
}

// Match reports whether n is a call with the pattern's callee, arity and argument kind,
// and returns the text of the first argument.
func (p CallPattern) Match(n *Node) (string, bool) {
	if n == nil || n.Kind != KindCall {
		return "", false
	}

	if len(n.Args) != p.Arity || p.Arity == 0 {
		return "", false
	}

	if DottedName(n.Callee) != p.Callee {
		return "", false
	}

	arg := n.Args[0]
	if arg.Kind != p.ArgKind {
		return "", false
	}

	return arg.Text, true
}
