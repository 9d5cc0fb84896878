// Package projection implements field-selection trees.
//
// A [Projection] maps field names to true (select the whole subtree), false
// (not selected, same as absent) or a nested Projection. The nil Projection
// selects everything. Selection is monotone: once a path is true, nested
// requests below it are absorbed.
package projection

import (
	"sort"
	"strings"

	"github.com/jacentio/lattice/internal/keyhash"
	"github.com/jacentio/lattice/record"
)

// Projection is a field-selection tree. Nil selects everything.
type Projection map[string]any

// Of builds a projection selecting each dotted path.
func Of(paths ...string) Projection {
	p := Projection{}
	for _, path := range paths {
		p.Set(path)
	}
	return p
}

func asProjection(v any) (Projection, bool) {
	switch t := v.(type) {
	case Projection:
		return t, true
	case map[string]any:
		return Projection(t), true
	}
	return nil, false
}

func selected(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	_, ok := asProjection(v)
	return ok
}

// Lookup returns the sub-projection at a dotted path. A path under a true
// leaf, or under the nil projection, returns (nil, true). The second result
// is false when the path is not selected.
func (p Projection) Lookup(path string) (Projection, bool) {
	if p == nil {
		return nil, true
	}
	current := p
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := current[part]
		if !ok || !selected(v) {
			return nil, false
		}
		if v == true {
			return nil, true
		}
		sub, _ := asProjection(v)
		if i == len(parts)-1 {
			return sub, true
		}
		current = sub
	}
	return nil, false
}

// Selects reports whether the dotted path is selected.
func (p Projection) Selects(path string) bool {
	_, ok := p.Lookup(path)
	return ok
}

// Set marks a dotted path as true. It is a no-op on the nil projection and
// when an ancestor of path is already true.
func (p Projection) Set(path string) {
	if p == nil || path == "" {
		return
	}
	current := p
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		v := current[part]
		if v == true {
			return
		}
		sub, ok := asProjection(v)
		if !ok || sub == nil {
			sub = Projection{}
			current[part] = sub
		}
		current = sub
	}
	current[parts[len(parts)-1]] = true
}

// Clone returns a deep copy of p.
func (p Projection) Clone() Projection {
	if p == nil {
		return nil
	}
	out := make(Projection, len(p))
	for k, v := range p {
		if sub, ok := asProjection(v); ok {
			out[k] = sub.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// AddAssociationRef returns a copy of p that also selects ref when field is
// selected. The nil projection is returned as is. The receiver is never
// modified.
func (p Projection) AddAssociationRef(field, ref string) Projection {
	if p == nil {
		return nil
	}
	out := p.Clone()
	if !p.Selects(field) || ref == "" {
		return out
	}
	out.Set(ref)
	return out
}

// Paths lists the selected leaf paths in sorted order.
func (p Projection) Paths() []string {
	var paths []string
	p.paths("", &paths)
	sort.Strings(paths)
	return paths
}

func (p Projection) paths(prefix string, out *[]string) {
	for k, v := range p {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if v == true {
			*out = append(*out, path)
			continue
		}
		if sub, ok := asProjection(v); ok {
			sub.paths(path, out)
		}
	}
}

// Key returns a stable key for p, prefixed with prefix. Equal trees produce
// equal keys.
func (p Projection) Key(prefix string) (string, error) {
	if p == nil {
		return keyhash.Of(prefix, true)
	}
	return keyhash.Of(prefix, map[string]any(p))
}

// Merge returns the union of a and b. Nil absorbs, as does true at any depth.
func Merge(a, b Projection) Projection {
	if a == nil || b == nil {
		return nil
	}
	out := a.Clone()
	for k, bv := range b {
		out[k] = mergeValue(out[k], bv)
	}
	return out
}

func mergeValue(a, b any) any {
	if a == true || b == true {
		return true
	}
	pa, aok := asProjection(a)
	pb, bok := asProjection(b)
	switch {
	case aok && bok:
		if pa == nil || pb == nil {
			return true
		}
		return Merge(pa, pb)
	case aok:
		return pa.Clone()
	case bok:
		return pb.Clone()
	}
	return false
}

// Intersects reports whether a and b select at least one common path.
func Intersects(a, b Projection) bool {
	if a == nil {
		return b == nil || len(b.Paths()) > 0
	}
	if b == nil {
		return len(a.Paths()) > 0
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !selected(av) || !selected(bv) {
			continue
		}
		if av == true || bv == true {
			return true
		}
		pa, _ := asProjection(av)
		pb, _ := asProjection(bv)
		if Intersects(pa, pb) {
			return true
		}
	}
	return false
}

// Apply returns a copy of rec trimmed to p. Projections apply to each
// element of record arrays. Scalars under a nested projection are kept.
func Apply(rec record.Record, p Projection) record.Record {
	if rec == nil {
		return nil
	}
	if p == nil {
		return record.Clone(rec)
	}
	out := make(record.Record, len(p))
	for k, pv := range p {
		if !selected(pv) {
			continue
		}
		v, ok := rec[k]
		if !ok {
			continue
		}
		if pv == true {
			out[k] = record.CloneValue(v)
			continue
		}
		sub, _ := asProjection(pv)
		out[k] = applyValue(v, sub)
	}
	return out
}

func applyValue(v any, p Projection) any {
	switch t := v.(type) {
	case map[string]any:
		return Apply(t, p)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = applyValue(e, p)
		}
		return out
	case []record.Record:
		out := make([]record.Record, len(t))
		for i, e := range t {
			out[i] = Apply(e, p)
		}
		return out
	}
	return record.CloneValue(v)
}
