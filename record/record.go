// Package record provides the dynamic value tree DAOs and drivers exchange.
//
// A record is a map from field name to value. Values are scalars (string,
// numeric kinds, bool, time.Time, nil), nested records, or arrays of either.
// Dotted paths address nested fields; a path hop through an array maps over
// its elements, so "posts.author.id" on a record with many posts yields one
// value per post.
package record

import (
	"strings"
)

// Record is a (possibly partial) entity as exchanged with drivers.
type Record = map[string]any

// Split splits a dotted path into its parent path and terminal segment.
// Split("a.b.c") returns ("a.b", "c"); Split("a") returns ("", "a").
func Split(path string) (parent, terminal string) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Last returns the terminal segment of a dotted path.
func Last(path string) string {
	_, terminal := Split(path)
	return terminal
}

func segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Values reads a dotted path off src, which may be a record or an array of
// records. Arrays met along the way, including a terminal array, are
// flattened. Missing or nil hops contribute nothing, so the result is empty
// when no value is reachable. An empty path returns the flattened sources.
func Values(src any, path string) []any {
	current := flatten(nil, src)
	for _, segment := range segments(path) {
		var next []any
		for _, v := range current {
			obj, ok := asRecord(v)
			if !ok {
				continue
			}
			child, ok := obj[segment]
			if !ok || child == nil {
				continue
			}
			next = flatten(next, child)
		}
		current = next
	}
	return current
}

// Objects is Values restricted to record values.
func Objects(src any, path string) []Record {
	values := Values(src, path)
	objects := make([]Record, 0, len(values))
	for _, v := range values {
		if obj, ok := asRecord(v); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

// Get reads the value stored at path without flattening arrays.
// The second result is false when any hop is missing or not a record.
func Get(rec Record, path string) (any, bool) {
	var current any = rec
	for _, segment := range segments(path) {
		obj, ok := asRecord(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set writes value at path, creating intermediate records as needed.
// Non-record intermediates are replaced; the terminal key is overwritten.
func Set(rec Record, path string, value any) {
	parts := segments(path)
	if len(parts) == 0 {
		return
	}
	current := rec
	for _, segment := range parts[:len(parts)-1] {
		next, ok := asRecord(current[segment])
		if !ok {
			next = Record{}
			current[segment] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Delete removes the terminal key at path, if reachable.
func Delete(rec Record, path string) {
	parent, terminal := Split(path)
	if parent == "" {
		delete(rec, terminal)
		return
	}
	v, ok := Get(rec, parent)
	if !ok {
		return
	}
	if obj, ok := asRecord(v); ok {
		delete(obj, terminal)
	}
}

// Has reports whether every hop of path exists on rec.
func Has(rec Record, path string) bool {
	_, ok := Get(rec, path)
	return ok
}

func flatten(dst []any, v any) []any {
	switch t := v.(type) {
	case nil:
		return dst
	case []any:
		for _, e := range t {
			dst = flatten(dst, e)
		}
	case []Record:
		for _, e := range t {
			if e != nil {
				dst = append(dst, e)
			}
		}
	case []string:
		for _, e := range t {
			dst = append(dst, e)
		}
	case []int:
		for _, e := range t {
			dst = append(dst, e)
		}
	case []int64:
		for _, e := range t {
			dst = append(dst, e)
		}
	case []float64:
		for _, e := range t {
			dst = append(dst, e)
		}
	default:
		dst = append(dst, v)
	}
	return dst
}

func asRecord(v any) (Record, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok && obj != nil
}

// IsRecord reports whether v is a non-nil record.
func IsRecord(v any) bool {
	_, ok := asRecord(v)
	return ok
}
