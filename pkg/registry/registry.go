// Package registry filters extracted units and maps every namespace to the unit that owns it.
package registry

import (
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/esmigrate/pkg/unit"
)

// traversalMarker may not appear in any declared namespace.
const traversalMarker = ".."

// DropReason explains why a unit was left out of the registry.
type DropReason string

// Drop reasons.
const (
	DropTraversal  DropReason = "namespace contains path traversal"
	DropNoProvides DropReason = "no provided namespace"
)

// Dropped records a unit that was filtered out.
type Dropped struct {
	ID     string
	Reason DropReason
}

// Conflict records a namespace provided by more than one unit.
type Conflict struct {
	Namespace string
	Owner     string
	Others    []string
}

// Registry is the immutable namespace to owner table built once per run.
type Registry struct {
	owners      map[string]string
	byID        map[string]int
	units       []unit.Unit
	dropped     []Dropped
	conflicts   []Conflict
	base        unit.Unit
	placeholder unit.Unit
}

// Build filters files, appends base and placeholder, and registers every provided namespace.
// Files are ordered by ID before registration so that when two files provide the same
// namespace the lexically first one owns it on every run.
func Build(files []unit.Unit, base, placeholder unit.Unit) *Registry {
	reg := &Registry{
		owners:      make(map[string]string),
		byID:        make(map[string]int),
		base:        base,
		placeholder: placeholder,
	}

	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b unit.Unit) int {
		return strings.Compare(a.ID, b.ID)
	})

	for _, file := range sorted {
		if reason, drop := dropReason(file); drop {
			reg.dropped = append(reg.dropped, Dropped{ID: file.ID, Reason: reason})

			continue
		}

		reg.units = append(reg.units, file)
	}

	reg.units = append(reg.units, base, placeholder)

	claims := make(map[string][]string)

	var order []string

	for idx, u := range reg.units {
		reg.byID[u.ID] = idx

		for _, ns := range u.Provided {
			if _, exists := reg.owners[ns]; !exists {
				reg.owners[ns] = u.ID
			}

			// Synthetic units only fill gaps; a file shadowing them is not a conflict.
			if u.IsSynthetic() {
				continue
			}

			if _, seen := claims[ns]; !seen {
				order = append(order, ns)
			}

			if !slices.Contains(claims[ns], u.ID) {
				claims[ns] = append(claims[ns], u.ID)
			}
		}
	}

	for _, ns := range order {
		if ids := claims[ns]; len(ids) > 1 {
			reg.conflicts = append(reg.conflicts, Conflict{Namespace: ns, Owner: ids[0], Others: ids[1:]})
		}
	}

	return reg
}

func dropReason(u unit.Unit) (DropReason, bool) {
	if containsTraversal(u.Provided) || containsTraversal(u.Required) {
		return DropTraversal, true
	}

	if len(u.Provided) == 0 {
		return DropNoProvides, true
	}

	return "", false
}

func containsTraversal(namespaces []string) bool {
	return slices.ContainsFunc(namespaces, func(ns string) bool {
		return strings.Contains(ns, traversalMarker)
	})
}

// Owner returns the ID of the unit owning namespace.
func (r *Registry) Owner(namespace string) (string, bool) {
	id, ok := r.owners[namespace]

	return id, ok
}

// Unit returns the retained unit with the given ID.
func (r *Registry) Unit(id string) (unit.Unit, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return unit.Unit{}, false
	}

	return r.units[idx], true
}

// Units returns the retained files followed by the base and placeholder units.
// The returned slice must not be modified.
func (r *Registry) Units() []unit.Unit {
	return r.units
}

// Base returns the base unit.
func (r *Registry) Base() unit.Unit {
	return r.base
}

// Placeholder returns the placeholder unit.
func (r *Registry) Placeholder() unit.Unit {
	return r.placeholder
}

// Dropped returns the units removed by filtering, ordered by ID.
func (r *Registry) Dropped() []Dropped {
	return r.dropped
}

// Conflicts returns every namespace provided by more than one retained file.
func (r *Registry) Conflicts() []Conflict {
	return r.conflicts
}
