// Package declare extracts provide, module and require namespace declarations
// from JavaScript syntax trees.
package declare

import "github.com/Sumatoshi-tech/esmigrate/pkg/jsast"

// Default callees of the Closure declaration calls.
const (
	DefaultProvide = "goog.provide"
	DefaultModule  = "goog.module"
	DefaultRequire = "goog.require"
)

// Extract returns the payload of every node in tree accepted by matcher, in source order.
func Extract(tree *jsast.Node, matcher jsast.Matcher) []string {
	var values []string

	tree.VisitPreOrder(func(n *jsast.Node) {
		if value, ok := matcher.Match(n); ok {
			values = append(values, value)
		}
	})

	return values
}

// Declarations holds the namespaces one file declares.
type Declarations struct {
	// Provided is every provide declaration followed by every module declaration.
	Provided []string
	Required []string
	// IsModule reports that at least one module declaration was found.
	IsModule bool
}

// Dialect is the set of call patterns recognised as declarations.
type Dialect struct {
	Provide jsast.Matcher
	Module  jsast.Matcher
	Require jsast.Matcher
}

// NewDialect builds a dialect from the dotted callee names of the three declaration calls.
func NewDialect(provide, module, require string) Dialect {
	return Dialect{
		Provide: jsast.NewStringCall(provide),
		Module:  jsast.NewStringCall(module),
		Require: jsast.NewStringCall(require),
	}
}

// DefaultDialect returns the goog.provide / goog.module / goog.require dialect.
func DefaultDialect() Dialect {
	return NewDialect(DefaultProvide, DefaultModule, DefaultRequire)
}

// Declarations extracts the declarations of tree.
func (d Dialect) Declarations(tree *jsast.Node) Declarations {
	modules := Extract(tree, d.Module)

	return Declarations{
		Provided: append(Extract(tree, d.Provide), modules...),
		Required: Extract(tree, d.Require),
		IsModule: len(modules) > 0,
	}
}
