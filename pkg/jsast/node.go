// Package jsast provides a small JavaScript syntax tree lowered from tree-sitter,
// with structural call matching for namespace declaration extraction.
package jsast

import "strings"

// Kind tags the variant held by a Node.
type Kind uint8

// Node kinds. Anything the extractor does not need to look inside is KindOther.
const (
	KindOther Kind = iota
	KindProgram
	KindCall
	KindMember
	KindIdentifier
	KindString
)

// unknownSegment renders a member chain segment that is neither an identifier nor a string.
const unknownSegment = "???"

var kindNames = [...]string{
	KindOther:      "Other",
	KindProgram:    "Program",
	KindCall:       "Call",
	KindMember:     "Member",
	KindIdentifier: "Identifier",
	KindString:     "String",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return kindNames[KindOther]
}

// Node is a lowered JavaScript syntax node.
//
// Only the fields relevant to Kind are set:
//   - KindCall: Callee, Args.
//   - KindMember: Object, Property.
//   - KindIdentifier, KindString: Text (the decoded value for strings).
//
// Children always holds the node's lowered children in source order, so a
// pre-order walk over Children visits every call in the file.
type Node struct {
	Callee   *Node
	Object   *Node
	Property *Node
	Type     string
	Text     string
	Args     []*Node
	Children []*Node
	Line     int
	Column   int
	Kind     Kind
}

// VisitPreOrder calls fn for the node and then for each descendant in source order.
func (n *Node) VisitPreOrder(fn func(*Node)) {
	if n == nil {
		return
	}

	stack := []*Node{n}

	for len(stack) > 0 {
		last := len(stack) - 1
		current := stack[last]
		stack = stack[:last]

		fn(current)

		for i := len(current.Children) - 1; i >= 0; i-- {
			stack = append(stack, current.Children[i])
		}
	}
}

// Find returns every node in pre-order for which predicate holds.
func (n *Node) Find(predicate func(*Node) bool) []*Node {
	var found []*Node

	n.VisitPreOrder(func(candidate *Node) {
		if predicate(candidate) {
			found = append(found, candidate)
		}
	})

	return found
}

// DottedName renders a member chain such as goog.async.Deferred.
// Identifier and string segments render by value; any other segment renders as "???".
// Non-member nodes render as the empty string.
func DottedName(n *Node) string {
	if n == nil || n.Kind != KindMember {
		return ""
	}

	var buf strings.Builder

	writeMember(&buf, n)

	return buf.String()
}

func writeMember(buf *strings.Builder, member *Node) {
	switch {
	case member.Object != nil && member.Object.Kind == KindMember:
		writeMember(buf, member.Object)
	default:
		buf.WriteString(segment(member.Object))
	}

	buf.WriteByte('.')
	buf.WriteString(segment(member.Property))
}

func segment(n *Node) string {
	if n != nil && (n.Kind == KindIdentifier || n.Kind == KindString) {
		return n.Text
	}

	return unknownSegment
}
