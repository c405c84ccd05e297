// Package emit renders a unit with its resolved import header.
package emit

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Sumatoshi-tech/esmigrate/pkg/unit"
)

// DefaultBinding is the local name bound to the root namespace object.
const DefaultBinding = "goog"

// Emitter renders units. The zero value is not usable; use New.
type Emitter struct {
	binding       string
	defaultExport bool
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithDefaultExport wraps each file body with an export default of its namespace.
func WithDefaultExport(enabled bool) Option {
	return func(e *Emitter) {
		e.defaultExport = enabled
	}
}

// New returns an Emitter binding the root namespace as binding (DefaultBinding if empty).
func New(binding string, opts ...Option) *Emitter {
	if binding == "" {
		binding = DefaultBinding
	}

	e := &Emitter{binding: binding}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Header returns the import lines for the given specifiers. The first specifier of
// a non-base unit binds the root namespace; the rest are bare side-effect imports.
func (e *Emitter) Header(u unit.Unit, specifiers []string) []string {
	lines := make([]string, 0, len(specifiers))

	for idx, spec := range specifiers {
		if idx == 0 && u.Kind != unit.KindBase {
			lines = append(lines, "import { "+e.binding+" } from "+quote(spec))

			continue
		}

		lines = append(lines, "import "+quote(spec))
	}

	return lines
}

// Emit returns the rewritten text of u.
func (e *Emitter) Emit(u unit.Unit, specifiers []string) string {
	body := u.Body
	if e.defaultExport && u.Kind == unit.KindFile {
		body = wrapDefaultExport(u, body)
	}

	var buf strings.Builder

	buf.WriteString(strings.Join(e.Header(u, specifiers), "\n"))
	buf.WriteString("\n\n")
	buf.WriteString(body)

	if u.Kind == unit.KindBase {
		buf.WriteString("\nexport { " + e.binding + " };\n")
	}

	return buf.String()
}

// quote renders s as a double-quoted JavaScript string literal.
func quote(s string) string {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(s)
	if err != nil {
		return `"` + s + `"`
	}

	return strings.TrimSuffix(buf.String(), "\n")
}
