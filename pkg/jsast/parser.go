package jsast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/javascript"
)

// Sentinel errors for parser operations.
var (
	ErrSyntax               = errors.New("syntax error")
	errLanguageNotAvailable = errors.New("tree-sitter javascript grammar not available")
	errNoRootNode           = errors.New("jsast: no root node")
	errPoolType             = errors.New("jsast: pool returned unexpected type")
)

// Tree-sitter node types the lowering cares about.
const (
	tsProgram            = "program"
	tsCall               = "call_expression"
	tsMember             = "member_expression"
	tsSubscript          = "subscript_expression"
	tsParenthesized      = "parenthesized_expression"
	tsOptionalChain      = "optional_chain"
	tsIdentifier         = "identifier"
	tsPropertyIdentifier = "property_identifier"
	tsShorthandProperty  = "shorthand_property_identifier"
	tsString             = "string"
	tsStringFragment     = "string_fragment"
	tsEscapeSequence     = "escape_sequence"
	tsComment            = "comment"
	tsError              = "ERROR"
)

// ParseError reports a file the JavaScript grammar rejected.
type ParseError struct {
	Path   string
	Line   int
	Column int
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, ErrSyntax)
}

// Unwrap returns ErrSyntax.
func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

var (
	languageOnce sync.Once
	language     *sitter.Language
)

func javascriptLanguage() *sitter.Language {
	languageOnce.Do(func() {
		defer func() {
			_ = recover() //nolint:errcheck // recover() returns any, not error
		}()

		language = sitter.NewLanguage(javascript.GetLanguage())
	})

	return language
}

// Parser parses JavaScript source into lowered trees. It is safe for concurrent use.
type Parser struct {
	pool sync.Pool
}

// NewParser creates a Parser backed by a pool of tree-sitter parsers.
func NewParser() (*Parser, error) {
	lang := javascriptLanguage()
	if lang == nil {
		return nil, errLanguageNotAvailable
	}

	return &Parser{
		pool: sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		},
	}, nil
}

// Parse parses content and returns the lowered tree. A tree containing any
// error or missing node yields a *ParseError naming path.
func (p *Parser) Parse(ctx context.Context, path string, content []byte) (*Node, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer p.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("parse %s: %w", path, errNoRootNode)
	}

	if root.HasError() {
		bad := firstErrorNode(root)

		return nil, &ParseError{
			Path:   path,
			Line:   int(bad.StartPoint().Row) + 1,    //nolint:gosec // tree-sitter coordinates fit in int
			Column: int(bad.StartPoint().Column) + 1, //nolint:gosec // tree-sitter coordinates fit in int
		}
	}

	return lower(root, content), nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order,
// or n itself when none is found below it.
func firstErrorNode(n sitter.Node) sitter.Node {
	if n.Type() == tsError || n.IsMissing() {
		return n
	}

	for idx := range n.ChildCount() {
		child := n.Child(idx)
		if !child.HasError() && !child.IsMissing() {
			continue
		}

		return firstErrorNode(child)
	}

	return n
}

// lower converts a tree-sitter subtree. Parentheses around a single expression are
// dropped, and optional member or call chains stay KindOther so they never match a
// declaration pattern.
func lower(tsNode sitter.Node, source []byte) *Node {
	if tsNode.Type() == tsParenthesized {
		if inner, ok := soleExpression(tsNode); ok {
			return lower(inner, source)
		}
	}

	n := &Node{
		Type:   tsNode.Type(),
		Line:   int(tsNode.StartPoint().Row) + 1,    //nolint:gosec // tree-sitter coordinates fit in int
		Column: int(tsNode.StartPoint().Column) + 1, //nolint:gosec // tree-sitter coordinates fit in int
	}

	if isOptionalChain(tsNode) {
		n.Kind = KindOther
		n.Children = lowerNamedChildren(tsNode, source)

		return n
	}

	switch n.Type {
	case tsProgram:
		n.Kind = KindProgram
		n.Children = lowerNamedChildren(tsNode, source)
	case tsCall:
		lowerCall(n, tsNode, source)
	case tsMember:
		n.Kind = KindMember
		n.Object = lowerField(tsNode, "object", source)
		n.Property = lowerField(tsNode, "property", source)
		n.Children = compact(n.Object, n.Property)
	case tsSubscript:
		n.Kind = KindMember
		n.Object = lowerField(tsNode, "object", source)
		n.Property = lowerField(tsNode, "index", source)
		n.Children = compact(n.Object, n.Property)
	case tsIdentifier, tsPropertyIdentifier, tsShorthandProperty:
		n.Kind = KindIdentifier
		n.Text = tsNode.Content(source)
	case tsString:
		n.Kind = KindString
		n.Text = stringValue(tsNode, source)
	default:
		n.Kind = KindOther
		n.Children = lowerNamedChildren(tsNode, source)
	}

	return n
}

func soleExpression(tsNode sitter.Node) (sitter.Node, bool) {
	var (
		inner sitter.Node
		found int
	)

	for idx := range tsNode.NamedChildCount() {
		child := tsNode.NamedChild(idx)
		if child.Type() == tsComment {
			continue
		}

		inner = child
		found++
	}

	return inner, found == 1
}

func isOptionalChain(tsNode sitter.Node) bool {
	switch tsNode.Type() {
	case tsCall, tsMember, tsSubscript:
	default:
		return false
	}

	for idx := range tsNode.ChildCount() {
		if tsNode.Child(idx).Type() == tsOptionalChain {
			return true
		}
	}

	return false
}

func lowerCall(n *Node, tsNode sitter.Node, source []byte) {
	n.Kind = KindCall
	n.Callee = lowerField(tsNode, "function", source)

	argsNode := tsNode.ChildByFieldName("arguments")
	if !argsNode.IsNull() {
		if argsNode.Type() == "arguments" {
			n.Args = lowerNamedChildren(argsNode, source)
		} else {
			// Tagged templates put the template string in the arguments field.
			n.Args = []*Node{lower(argsNode, source)}
		}
	}

	n.Children = append(compact(n.Callee), n.Args...)
}

func lowerField(tsNode sitter.Node, field string, source []byte) *Node {
	child := tsNode.ChildByFieldName(field)
	if child.IsNull() {
		return nil
	}

	return lower(child, source)
}

func lowerNamedChildren(tsNode sitter.Node, source []byte) []*Node {
	count := tsNode.NamedChildCount()
	if count == 0 {
		return nil
	}

	children := make([]*Node, 0, count)

	for idx := range count {
		child := tsNode.NamedChild(idx)
		if child.Type() == tsComment {
			continue
		}

		children = append(children, lower(child, source))
	}

	return children
}

func compact(nodes ...*Node) []*Node {
	out := make([]*Node, 0, len(nodes))

	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}

	return out
}
