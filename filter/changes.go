package filter

import (
	"sort"

	"github.com/jacentio/lattice/record"
)

// Apply writes changes onto rec in place. Paths are applied in sorted order
// so a parent path is set before its children.
func Apply(rec record.Record, changes Changes) {
	for _, path := range changes.Paths() {
		v := changes[path]
		if v == nil {
			record.Delete(rec, path)
			continue
		}
		record.Set(rec, path, record.CloneValue(v))
	}
}

// Paths returns the changed paths in sorted order.
func (c Changes) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Split partitions changes into set and unset paths.
func (c Changes) Split() (set Changes, unset []string) {
	set = Changes{}
	for _, p := range c.Paths() {
		if c[p] == nil {
			unset = append(unset, p)
			continue
		}
		set[p] = c[p]
	}
	return set, unset
}
