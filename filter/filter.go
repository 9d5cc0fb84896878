// Package filter defines the abstract query values DAOs hand to drivers:
// filters, sorts and change sets, plus a reference evaluator.
//
// Filters follow the MongoDB query shape: field paths map to a literal value
// (equality) or an operator document, and $and / $or / $nor / $not combine
// sub-filters. A path that reaches an array matches when any element does.
// Drivers that translate filters to a backend query language should agree
// with [Match], which the in-memory driver uses directly.
package filter

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrUnsupportedOperator is returned for an operator the evaluator does not know.
	ErrUnsupportedOperator = errors.New("lattice: unsupported filter operator")

	// ErrInvalidFilter is returned when an operator argument has the wrong shape.
	ErrInvalidFilter = errors.New("lattice: invalid filter")
)

// Operators.
const (
	OpEq     = "$eq"
	OpNe     = "$ne"
	OpIn     = "$in"
	OpNin    = "$nin"
	OpGt     = "$gt"
	OpGte    = "$gte"
	OpLt     = "$lt"
	OpLte    = "$lte"
	OpExists = "$exists"
	OpAnd    = "$and"
	OpOr     = "$or"
	OpNor    = "$nor"
	OpNot    = "$not"
)

// Filter is an abstract, driver-agnostic query.
type Filter map[string]any

// Sort orders results by a dotted field path.
type Sort struct {
	Field string `yaml:"field" json:"field"`
	Desc  bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// Asc and Desc build sorts.
func Asc(field string) Sort  { return Sort{Field: field} }
func Desc(field string) Sort { return Sort{Field: field, Desc: true} }

// Changes maps dotted paths to new values. A nil value unsets the path.
type Changes map[string]any

// Eq builds {field: value}.
func Eq(field string, value any) Filter {
	return Filter{field: value}
}

// In builds {field: {"$in": values}}.
func In(field string, values []any) Filter {
	return Filter{field: map[string]any{OpIn: values}}
}

// And combines filters, dropping empty ones. A single non-empty filter is
// returned as is.
func And(filters ...Filter) Filter {
	nonEmpty := make([]any, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			nonEmpty = append(nonEmpty, f)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return Filter{}
	case 1:
		return nonEmpty[0].(Filter)
	}
	return Filter{OpAnd: nonEmpty}
}

// IsOperator reports whether k names an operator.
func IsOperator(k string) bool {
	return strings.HasPrefix(k, "$")
}

// Operators returns the operator document held by a field condition, if any.
// A map qualifies when all of its keys are operators.
func Operators(cond any) (map[string]any, bool) {
	var m map[string]any
	switch t := cond.(type) {
	case map[string]any:
		m = t
	case Filter:
		m = t
	default:
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !IsOperator(k) {
			return nil, false
		}
	}
	return m, true
}

// Sub converts a logical operator argument into filters.
func Sub(v any) ([]Filter, error) {
	switch t := v.(type) {
	case []Filter:
		return t, nil
	case []map[string]any:
		out := make([]Filter, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, nil
	case []any:
		out := make([]Filter, 0, len(t))
		for _, e := range t {
			f, ok := asFilter(e)
			if !ok {
				return nil, fmt.Errorf("%w: expected a filter, got %T", ErrInvalidFilter, e)
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected a list of filters, got %T", ErrInvalidFilter, v)
}

func asFilter(v any) (Filter, bool) {
	switch t := v.(type) {
	case Filter:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

// List converts an operator argument such as the $in list into a []any.
func List(v any) ([]any, error) {
	if l, ok := v.([]any); ok {
		return l, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrInvalidFilter, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// Keys reports whether f is a plain key lookup on field: {field: v} or
// {field: {"$in": [...]}}. It returns the looked-up values.
func Keys(f Filter, field string) ([]any, bool) {
	if len(f) != 1 {
		return nil, false
	}
	cond, ok := f[field]
	if !ok {
		return nil, false
	}
	ops, isOps := Operators(cond)
	if !isOps {
		if cond == nil || isList(cond) || isMap(cond) {
			return nil, false
		}
		return []any{cond}, true
	}
	if len(ops) != 1 {
		return nil, false
	}
	if v, ok := ops[OpEq]; ok && v != nil && !isList(v) && !isMap(v) {
		return []any{v}, true
	}
	in, ok := ops[OpIn]
	if !ok {
		return nil, false
	}
	values, err := List(in)
	if err != nil {
		return nil, false
	}
	for _, v := range values {
		if v == nil || isList(v) || isMap(v) {
			return nil, false
		}
	}
	return values, true
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isMap(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Map
}
