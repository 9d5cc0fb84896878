// Package schema describes entity fields for DAOs and drivers.
//
// A [Schema] maps model-facing field names to [Field] descriptions. A field
// is either a scalar (named by its scalar type, e.g. "ID", "String") or an
// embedded schema, and may carry a storage alias that drivers use in place of
// the model name. Schemas are static: build them once and hand them to a DAO.
package schema

import (
	"sort"
	"strings"

	"github.com/jacentio/lattice/record"
)

// Field describes one entity field.
type Field struct {
	// Scalar names the scalar type. Empty for embedded fields.
	Scalar string `yaml:"scalar,omitempty"`
	// Required marks fields the application expects to always be present.
	Required bool `yaml:"required,omitempty"`
	// Array marks fields holding a list of values.
	Array bool `yaml:"array,omitempty"`
	// Alias is the storage-facing name. Empty means the model name is used.
	Alias string `yaml:"alias,omitempty"`
	// Embedded is the nested schema of a record-valued field.
	Embedded Schema `yaml:"embedded,omitempty"`
}

// StorageName returns the storage-facing name for a field called name.
func (f Field) StorageName(name string) string {
	if f.Alias != "" {
		return f.Alias
	}
	return name
}

// Schema maps model field names to their descriptions.
type Schema map[string]Field

// Lookup returns the field at a dotted model path.
func (s Schema) Lookup(path string) (Field, bool) {
	current := s
	parts := strings.Split(path, ".")
	for i, part := range parts {
		f, ok := current[part]
		if !ok {
			return Field{}, false
		}
		if i == len(parts)-1 {
			return f, true
		}
		if f.Embedded == nil {
			return Field{}, false
		}
		current = f.Embedded
	}
	return Field{}, false
}

// StoragePath translates a dotted model path to its storage path. Segments
// not described by the schema pass through unchanged.
func (s Schema) StoragePath(path string) string {
	if s == nil || path == "" {
		return path
	}
	parts := strings.Split(path, ".")
	current := s
	for i, part := range parts {
		if current == nil {
			break
		}
		f, ok := current[part]
		if !ok {
			break
		}
		parts[i] = f.StorageName(part)
		current = f.Embedded
	}
	return strings.Join(parts, ".")
}

// ModelPath is the inverse of StoragePath.
func (s Schema) ModelPath(path string) string {
	if s == nil || path == "" {
		return path
	}
	parts := strings.Split(path, ".")
	current := s
	for i, part := range parts {
		if current == nil {
			break
		}
		name, f, ok := current.byStorageName(part)
		if !ok {
			break
		}
		parts[i] = name
		current = f.Embedded
	}
	return strings.Join(parts, ".")
}

func (s Schema) byStorageName(stored string) (string, Field, bool) {
	for name, f := range s {
		if f.StorageName(name) == stored {
			return name, f, true
		}
	}
	return "", Field{}, false
}

// ToStorage returns a copy of rec with model names replaced by aliases.
func (s Schema) ToStorage(rec record.Record) record.Record {
	return s.translate(rec, func(sc Schema, key string) (string, Schema) {
		f, ok := sc[key]
		if !ok {
			return key, nil
		}
		return f.StorageName(key), f.Embedded
	})
}

// FromStorage returns a copy of rec with aliases replaced by model names.
func (s Schema) FromStorage(rec record.Record) record.Record {
	return s.translate(rec, func(sc Schema, key string) (string, Schema) {
		name, f, ok := sc.byStorageName(key)
		if !ok {
			return key, nil
		}
		return name, f.Embedded
	})
}

type renamer func(s Schema, key string) (string, Schema)

func (s Schema) translate(rec record.Record, rename renamer) record.Record {
	if rec == nil {
		return nil
	}
	out := make(record.Record, len(rec))
	for k, v := range rec {
		name, embedded := k, Schema(nil)
		if s != nil {
			name, embedded = rename(s, k)
		}
		out[name] = translateValue(embedded, v, rename)
	}
	return out
}

func translateValue(s Schema, v any, rename renamer) any {
	switch t := v.(type) {
	case map[string]any:
		if s == nil {
			return record.Clone(t)
		}
		return s.translate(t, rename)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = translateValue(s, e, rename)
		}
		return out
	case []record.Record:
		out := make([]record.Record, len(t))
		for i, e := range t {
			if s == nil {
				out[i] = record.Clone(e)
				continue
			}
			out[i] = s.translate(e, rename)
		}
		return out
	default:
		return record.CloneValue(v)
	}
}

// Walk calls fn for every field in the schema, depth first, with its full
// dotted model path. Sibling fields are visited in name order.
func (s Schema) Walk(fn func(path string, f Field)) {
	s.walk("", fn)
}

func (s Schema) walk(prefix string, fn func(path string, f Field)) {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := s[name]
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		fn(path, f)
		if f.Embedded != nil {
			f.Embedded.walk(path, fn)
		}
	}
}

// HasAliases reports whether any field, at any depth, carries an alias.
func (s Schema) HasAliases() bool {
	found := false
	s.Walk(func(_ string, f Field) {
		if f.Alias != "" {
			found = true
		}
	})
	return found
}
