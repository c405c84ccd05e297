// Package unit defines the in-memory model of one source file taking part in a migration.
package unit

// PlaceholderID is the reserved identity of the placeholder unit. It can never be a file path.
const PlaceholderID = "\x00empty"

// Kind distinguishes real files from the synthetic stand-ins.
type Kind uint8

// Unit kinds.
const (
	KindFile Kind = iota
	KindBase
	KindPlaceholder
)

// Unit represents one source file, or a synthetic stand-in, with its declared namespaces.
type Unit struct {
	ID       string
	Body     string
	Provided []string
	Required []string
	Kind     Kind
	// IsModule records that the file declared itself with the goog.module form.
	IsModule bool
}

// NewBase returns the base unit located at path. The base unit owns exactly one
// namespace, its own path, so no real file can claim it.
func NewBase(path, body string) Unit {
	return Unit{
		ID:       path,
		Body:     body,
		Provided: []string{path},
		Kind:     KindBase,
	}
}

// NewPlaceholder returns the placeholder unit owning namespace.
func NewPlaceholder(namespace string) Unit {
	return Unit{
		ID:       PlaceholderID,
		Provided: []string{namespace},
		Kind:     KindPlaceholder,
	}
}

// Namespace returns the first provided namespace, or "" when none is declared.
func (u Unit) Namespace() string {
	if len(u.Provided) == 0 {
		return ""
	}

	return u.Provided[0]
}

// IsSynthetic reports whether the unit has no backing source file.
func (u Unit) IsSynthetic() bool {
	return u.Kind != KindFile
}
