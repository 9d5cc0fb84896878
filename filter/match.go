package filter

import (
	"fmt"

	"github.com/jacentio/lattice/record"
)

// Match reports whether rec satisfies f. An empty filter matches everything.
func Match(rec record.Record, f Filter) (bool, error) {
	for k, cond := range f {
		ok, err := matchKey(rec, k, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// MatchAll returns the records matching f, preserving order.
func MatchAll(recs []record.Record, f Filter) ([]record.Record, error) {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		ok, err := Match(r, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func matchKey(rec record.Record, k string, cond any) (bool, error) {
	switch k {
	case OpAnd, OpOr, OpNor:
		subs, err := Sub(cond)
		if err != nil {
			return false, err
		}
		return matchLogical(rec, k, subs)
	case OpNot:
		sub, ok := asFilter(cond)
		if !ok {
			return false, fmt.Errorf("%w: %s expects a filter, got %T", ErrInvalidFilter, OpNot, cond)
		}
		ok, err := Match(rec, sub)
		return !ok && err == nil, err
	}
	if IsOperator(k) {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, k)
	}
	ops, isOps := Operators(cond)
	if !isOps {
		return equals(rec, k, cond), nil
	}
	for op, arg := range ops {
		ok, err := matchOp(rec, k, op, arg)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(rec record.Record, op string, subs []Filter) (bool, error) {
	for _, sub := range subs {
		ok, err := Match(rec, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == OpAnd && !ok:
			return false, nil
		case op == OpOr && ok:
			return true, nil
		case op == OpNor && ok:
			return false, nil
		}
	}
	return op != OpOr, nil
}

func matchOp(rec record.Record, path, op string, arg any) (bool, error) {
	switch op {
	case OpEq:
		return equals(rec, path, arg), nil
	case OpNe:
		return !equals(rec, path, arg), nil
	case OpIn, OpNin:
		values, err := List(arg)
		if err != nil {
			return false, err
		}
		in := false
		for _, v := range values {
			if equals(rec, path, v) {
				in = true
				break
			}
		}
		return in == (op == OpIn), nil
	case OpGt, OpGte, OpLt, OpLte:
		return compares(rec, path, op, arg), nil
	case OpExists:
		want, ok := arg.(bool)
		if !ok {
			return false, fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidFilter, OpExists, arg)
		}
		return exists(rec, path) == want, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

// equals implements literal equality. A nil value matches a missing or null
// field; a list value matches an identical stored list.
func equals(rec record.Record, path string, v any) bool {
	values := record.Values(rec, path)
	if v == nil {
		return len(values) == 0
	}
	if isList(v) {
		raw, ok := record.Get(rec, path)
		if !ok || !isList(raw) {
			return false
		}
		return sameList(raw, v)
	}
	return record.Contains(values, v)
}

func sameList(a, b any) bool {
	la, err := List(a)
	if err != nil {
		return false
	}
	lb, err := List(b)
	if err != nil || len(la) != len(lb) {
		return false
	}
	for i := range la {
		if !record.Equal(la[i], lb[i]) {
			return false
		}
	}
	return true
}

func compares(rec record.Record, path, op string, arg any) bool {
	for _, v := range record.Values(rec, path) {
		c, ok := record.Compare(v, arg)
		if !ok {
			continue
		}
		switch {
		case op == OpGt && c > 0,
			op == OpGte && c >= 0,
			op == OpLt && c < 0,
			op == OpLte && c <= 0:
			return true
		}
	}
	return false
}

func exists(rec record.Record, path string) bool {
	if record.Has(rec, path) {
		return true
	}
	parent, terminal := record.Split(path)
	for _, obj := range record.Objects(rec, parent) {
		if _, ok := obj[terminal]; ok {
			return true
		}
	}
	return false
}
