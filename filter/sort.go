package filter

import (
	"sort"

	"github.com/jacentio/lattice/record"
)

// SortRecords sorts recs in place. Missing values sort first in ascending
// order; ties keep their input order.
func SortRecords(recs []record.Record, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, s := range sorts {
			c, _ := record.Compare(first(recs[i], s.Field), first(recs[j], s.Field))
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func first(rec record.Record, path string) any {
	values := record.Values(rec, path)
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// Window applies start and limit to n items and returns the slice bounds.
// A nil limit means no upper bound.
func Window(n, start int, limit *int) (lo, hi int) {
	lo = start
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi = n
	if limit != nil && *limit >= 0 && lo+*limit < hi {
		hi = lo + *limit
	}
	return lo, hi
}
