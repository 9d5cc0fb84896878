package sqldoc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/schema"
)

// errNotPushable marks filters and sorts that cannot be evaluated in SQL
// with the same result as filter.Match. The driver evaluates those in Go.
var errNotPushable = errors.New("not pushable")

// where is a compiled SQL condition and its bind arguments.
type where struct {
	sql  string
	args []any
}

type compiler struct {
	schema schema.Schema
}

// jsonPath converts a dotted model path to a quoted sqlite JSON path over
// the storage document, e.g. "a.b" to `$."a"."b"`.
func (c compiler) jsonPath(path string) (string, error) {
	if path == "" {
		return "", errNotPushable
	}
	if c.crossesArray(path) {
		return "", errNotPushable
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(c.schema.StoragePath(path), ".") {
		if seg == "" || strings.ContainsAny(seg, `"\`) {
			return "", errNotPushable
		}
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String(), nil
}

// crossesArray reports whether a non-terminal hop of path is declared as an
// array. JSON paths do not map over arrays the way record paths do.
func (c compiler) crossesArray(path string) bool {
	parts := strings.Split(path, ".")
	for i := 1; i < len(parts); i++ {
		if f, ok := c.schema.Lookup(strings.Join(parts[:i], ".")); ok && f.Array {
			return true
		}
	}
	return false
}

// filter compiles f. An empty filter compiles to "1".
func (c compiler) filter(f filter.Filter) (where, error) {
	if len(f) == 0 {
		return where{sql: "1"}, nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	var args []any
	for _, k := range keys {
		w, err := c.key(k, f[k])
		if err != nil {
			return where{}, err
		}
		parts = append(parts, w.sql)
		args = append(args, w.args...)
	}
	return where{sql: "(" + strings.Join(parts, " AND ") + ")", args: args}, nil
}

func (c compiler) key(k string, cond any) (where, error) {
	switch k {
	case filter.OpAnd, filter.OpOr, filter.OpNor:
		subs, err := filter.Sub(cond)
		if err != nil {
			return where{}, err
		}
		return c.logical(k, subs)
	case filter.OpNot:
		sub, ok := cond.(filter.Filter)
		if !ok {
			m, isMap := cond.(map[string]any)
			if !isMap {
				return where{}, fmt.Errorf("%w: %s expects a filter, got %T", filter.ErrInvalidFilter, filter.OpNot, cond)
			}
			sub = m
		}
		w, err := c.filter(sub)
		if err != nil {
			return where{}, err
		}
		return where{sql: "NOT " + w.sql, args: w.args}, nil
	}
	if filter.IsOperator(k) {
		return where{}, fmt.Errorf("%w: %s", filter.ErrUnsupportedOperator, k)
	}
	path, err := c.jsonPath(k)
	if err != nil {
		return where{}, err
	}
	ops, isOps := filter.Operators(cond)
	if !isOps {
		return c.equals(path, cond)
	}
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(ops))
	var args []any
	for _, op := range names {
		w, err := c.op(path, op, ops[op])
		if err != nil {
			return where{}, err
		}
		parts = append(parts, w.sql)
		args = append(args, w.args...)
	}
	return where{sql: "(" + strings.Join(parts, " AND ") + ")", args: args}, nil
}

func (c compiler) logical(op string, subs []filter.Filter) (where, error) {
	if len(subs) == 0 {
		if op == filter.OpOr {
			return where{sql: "0"}, nil
		}
		return where{sql: "1"}, nil
	}
	parts := make([]string, 0, len(subs))
	var args []any
	for _, sub := range subs {
		w, err := c.filter(sub)
		if err != nil {
			return where{}, err
		}
		parts = append(parts, w.sql)
		args = append(args, w.args...)
	}
	switch op {
	case filter.OpAnd:
		return where{sql: "(" + strings.Join(parts, " AND ") + ")", args: args}, nil
	case filter.OpOr:
		return where{sql: "(" + strings.Join(parts, " OR ") + ")", args: args}, nil
	}
	return where{sql: "NOT (" + strings.Join(parts, " OR ") + ")", args: args}, nil
}

func (c compiler) op(path, op string, arg any) (where, error) {
	switch op {
	case filter.OpEq:
		return c.equals(path, arg)
	case filter.OpNe:
		w, err := c.equals(path, arg)
		if err != nil {
			return where{}, err
		}
		return where{sql: "NOT " + w.sql, args: w.args}, nil
	case filter.OpIn, filter.OpNin:
		values, err := filter.List(arg)
		if err != nil {
			return where{}, err
		}
		if len(values) == 0 {
			if op == filter.OpIn {
				return where{sql: "0"}, nil
			}
			return where{sql: "1"}, nil
		}
		parts := make([]string, 0, len(values))
		var args []any
		for _, v := range values {
			w, err := c.equals(path, v)
			if err != nil {
				return where{}, err
			}
			parts = append(parts, w.sql)
			args = append(args, w.args...)
		}
		sql := "(" + strings.Join(parts, " OR ") + ")"
		if op == filter.OpNin {
			sql = "NOT " + sql
		}
		return where{sql: sql, args: args}, nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		return c.compare(path, op, arg)
	case filter.OpExists:
		want, ok := arg.(bool)
		if !ok {
			return where{}, fmt.Errorf("%w: %s expects a bool, got %T", filter.ErrInvalidFilter, filter.OpExists, arg)
		}
		if want {
			return where{sql: "json_type(doc, ?) IS NOT NULL", args: []any{path}}, nil
		}
		return where{sql: "json_type(doc, ?) IS NULL", args: []any{path}}, nil
	}
	return where{}, fmt.Errorf("%w: %s", filter.ErrUnsupportedOperator, op)
}

// notObject guards json_each, which iterates the members of an object.
const notObject = "coalesce(json_type(doc, ?), '') <> 'object'"

// equals matches a scalar stored at path or held by the array at path.
// Nil matches missing, null and empty arrays.
func (c compiler) equals(path string, v any) (where, error) {
	if v == nil {
		return where{
			sql:  "(" + notObject + " AND NOT EXISTS (SELECT 1 FROM json_each(doc, ?) WHERE type <> 'null'))",
			args: []any{path, path},
		}, nil
	}
	switch t := v.(type) {
	case bool:
		kind := "false"
		if t {
			kind = "true"
		}
		return where{
			sql:  "(" + notObject + " AND EXISTS (SELECT 1 FROM json_each(doc, ?) WHERE type = ?))",
			args: []any{path, path, kind},
		}, nil
	case string:
		return where{
			sql:  "(" + notObject + " AND EXISTS (SELECT 1 FROM json_each(doc, ?) WHERE type = 'text' AND value = ?))",
			args: []any{path, path, t},
		}, nil
	}
	if n, ok := numeric(v); ok {
		return where{
			sql:  "(" + notObject + " AND EXISTS (SELECT 1 FROM json_each(doc, ?) WHERE type IN ('integer', 'real') AND value = ?))",
			args: []any{path, path, n},
		}, nil
	}
	return where{}, errNotPushable
}

var comparators = map[string]string{
	filter.OpGt:  ">",
	filter.OpGte: ">=",
	filter.OpLt:  "<",
	filter.OpLte: "<=",
}

func (c compiler) compare(path, op string, arg any) (where, error) {
	var types string
	switch t := arg.(type) {
	case string:
		types = "type = 'text'"
	default:
		n, ok := numeric(t)
		if !ok {
			return where{}, errNotPushable
		}
		arg = n
		types = "type IN ('integer', 'real')"
	}
	return where{
		sql:  "(" + notObject + " AND EXISTS (SELECT 1 FROM json_each(doc, ?) WHERE " + types + " AND value " + comparators[op] + " ?))",
		args: []any{path, path, arg},
	}, nil
}

// orderBy compiles sorts, with rowid as the final tie-breaker.
func (c compiler) orderBy(sorts []filter.Sort) (where, error) {
	parts := make([]string, 0, len(sorts)+1)
	args := make([]any, 0, len(sorts))
	for _, s := range sorts {
		if f, ok := c.schema.Lookup(s.Field); ok && f.Array {
			return where{}, errNotPushable
		}
		path, err := c.jsonPath(s.Field)
		if err != nil {
			return where{}, err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, "json_extract(doc, ?) "+dir)
		args = append(args, path)
	}
	parts = append(parts, "rowid ASC")
	return where{sql: strings.Join(parts, ", "), args: args}, nil
}

func numeric(v any) (any, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return nil, false
}
