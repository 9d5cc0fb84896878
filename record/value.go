package record

import (
	"time"
)

// Clone returns a deep copy of rec. Nested records and arrays are copied;
// scalars are shared.
func Clone(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneAll deep-copies every record of recs.
func CloneAll(recs []Record) []Record {
	if recs == nil {
		return nil
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Clone(r)
	}
	return out
}

// CloneValue deep-copies a record value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []Record:
		return CloneAll(t)
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case []int64:
		return append([]int64(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	default:
		return v
	}
}

// Equal reports whether two scalar values are equal. Numeric kinds compare
// by value, so int64(1) equals float64(1). Times compare with time.Equal.
func Equal(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if !hashable(a) || !hashable(b) {
		return false
	}
	return a == b
}

// Contains reports whether values holds v according to Equal.
func Contains(values []any, v any) bool {
	for _, e := range values {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

// Unique drops duplicate and nil values, keeping the first occurrence.
func Unique(values []any) []any {
	seen := make(map[any]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		k, ok := normalize(v)
		if !ok {
			if !Contains(out, v) {
				out = append(out, v)
			}
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Compare orders two scalars: numbers numerically, strings lexically,
// times chronologically, false before true. nil sorts first. Values of
// different kinds compare by kind rank; the second result is false when
// the values are of different kinds.
func Compare(a, b any) (int, bool) {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}
	switch ra {
	case rankNil:
		return 0, true
	case rankNumber:
		fa, _ := number(a)
		fb, _ := number(b)
		return cmp3(fa < fb, fa > fb), true
	case rankString:
		sa, sb := a.(string), b.(string)
		return cmp3(sa < sb, sa > sb), true
	case rankTime:
		ta, tb := a.(time.Time), b.(time.Time)
		return cmp3(ta.Before(tb), ta.After(tb)), true
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		return cmp3(!ba && bb, ba && !bb), true
	}
	return 0, false
}

const (
	rankNil = iota
	rankNumber
	rankString
	rankTime
	rankBool
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNil
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case time.Time:
		return rankTime
	case bool:
		return rankBool
	}
	return rankOther
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// normalize maps v onto a comparable map key consistent with Equal.
func normalize(v any) (any, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	if t, ok := v.(time.Time); ok {
		return t.UnixNano(), true
	}
	if !hashable(v) {
		return nil, false
	}
	return v, true
}

func hashable(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []Record, []string, []int, []int64, []float64:
		return false
	}
	return true
}
