// Package resolve turns a unit's required namespaces into relative module specifiers.
package resolve

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/esmigrate/pkg/registry"
	"github.com/Sumatoshi-tech/esmigrate/pkg/unit"
)

// DefaultExtensions lists the source extensions stripped from specifiers.
var DefaultExtensions = []string{".js"}

// Resolution is the outcome of resolving one unit.
type Resolution struct {
	// Specifiers are the relative module specifiers to import, base first, without duplicates.
	Specifiers []string
	// Owners are the unit IDs behind Specifiers, index for index.
	Owners []string
	// Unresolved are required namespaces nobody provides, in declaration order.
	Unresolved []string
}

// Resolver resolves units against a registry. It holds no mutable state and is
// safe for concurrent use.
type Resolver struct {
	registry   *registry.Registry
	extensions []string
}

// New returns a Resolver over reg stripping the given extensions (DefaultExtensions if empty).
func New(reg *registry.Registry, extensions []string) *Resolver {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	return &Resolver{registry: reg, extensions: extensions}
}

// Resolve computes the ordered import specifiers of u.
func (r *Resolver) Resolve(u unit.Unit) Resolution {
	candidates := make([]string, 0, len(u.Required)+1)
	candidates = append(candidates, r.registry.Base().Namespace())
	candidates = append(candidates, u.Required...)

	var res Resolution

	seen := make(map[string]struct{}, len(candidates))
	dir := filepath.Dir(u.ID)
	placeholder := r.registry.Placeholder().ID

	for _, ns := range candidates {
		owner, ok := r.registry.Owner(ns)
		if !ok {
			res.Unresolved = append(res.Unresolved, ns)

			continue
		}

		if owner == u.ID || owner == placeholder {
			continue
		}

		spec := r.Specifier(dir, owner)
		if _, dup := seen[spec]; dup {
			continue
		}

		seen[spec] = struct{}{}
		res.Specifiers = append(res.Specifiers, spec)
		res.Owners = append(res.Owners, owner)
	}

	return res
}

// Specifier returns the module specifier of target as seen from directory dir.
func (r *Resolver) Specifier(dir, target string) string {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		rel = target
	}

	rel = filepath.ToSlash(rel)

	if ext := path.Ext(rel); slices.Contains(r.extensions, ext) {
		rel = strings.TrimSuffix(rel, ext)
	}

	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}

	return rel
}
