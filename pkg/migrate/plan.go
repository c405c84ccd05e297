package migrate

import (
	"github.com/Sumatoshi-tech/esmigrate/pkg/registry"
	"github.com/Sumatoshi-tech/esmigrate/pkg/unit"
)

// Entry is one unit with its resolved imports.
type Entry struct {
	Unit    unit.Unit
	Target  string
	Imports []string
	// Dependencies are the unit IDs behind Imports.
	Dependencies []string
	Unresolved   []string
}

// Miss is a required namespace no unit provides.
type Miss struct {
	Unit      string
	Namespace string
}

// Plan is everything known after the registry is built, before anything is written.
// Entries hold the retained files in ID order followed by the base unit.
type Plan struct {
	Entries   []Entry
	Dropped   []registry.Dropped
	Conflicts []registry.Conflict
	// Skipped lists matched paths that are not migrated: non-JavaScript files and the base file.
	Skipped []string
}

// Unresolved lists every missing namespace in entry order.
func (p *Plan) Unresolved() []Miss {
	var misses []Miss

	for _, entry := range p.Entries {
		for _, ns := range entry.Unresolved {
			misses = append(misses, Miss{Unit: entry.Unit.ID, Namespace: ns})
		}
	}

	return misses
}

// Output describes one written file.
type Output struct {
	ID      string
	Target  string
	Imports int
	Bytes   int
}

// Result is the outcome of a completed run.
type Result struct {
	Plan    *Plan
	Outputs []Output
}

// ImportCount is the number of import statements written.
func (r *Result) ImportCount() int {
	total := 0
	for _, out := range r.Outputs {
		total += out.Imports
	}

	return total
}

// ByteCount is the number of bytes written.
func (r *Result) ByteCount() uint64 {
	var total uint64
	for _, out := range r.Outputs {
		total += uint64(out.Bytes) //nolint:gosec // lengths are non-negative
	}

	return total
}
