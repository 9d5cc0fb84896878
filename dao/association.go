package dao

import (
	"fmt"

	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/record"
)

// AssociationType is the cardinality of an association.
type AssociationType int

const (
	OneToOne AssociationType = iota + 1
	OneToMany
)

func (t AssociationType) String() string {
	switch t {
	case OneToOne:
		return "oneToOne"
	case OneToMany:
		return "oneToMany"
	}
	return fmt.Sprintf("AssociationType(%d)", int(t))
}

// AssociationReference says which side holds the key.
type AssociationReference int

const (
	// Inner: this entity stores the key of the related one (RefFrom here, RefTo there).
	Inner AssociationReference = iota + 1
	// Foreign: the related entity stores our key (RefFrom there, RefTo here).
	Foreign
)

func (r AssociationReference) String() string {
	switch r {
	case Inner:
		return "inner"
	case Foreign:
		return "foreign"
	}
	return fmt.Sprintf("AssociationReference(%d)", int(r))
}

// Association links a field of this DAO's records to records of another DAO.
type Association struct {
	// Field is the dotted path where related records are attached.
	Field     string
	Type      AssociationType
	Reference AssociationReference
	// RefFrom is the referencing key path: on this entity for Inner, on the
	// related entity for Foreign.
	RefFrom string
	// RefTo is the referenced key path: on the related entity for Inner, on
	// this entity for Foreign.
	RefTo string
	// DAO names the related DAO in the registry.
	DAO string
	// BuildFilter builds the batch query for a set of keys.
	// Default: {remoteKey: {"$in": keys}}.
	BuildFilter func(keys []any) filter.Filter
	// HasKey reports whether a loaded record belongs to key.
	// Default: the record's remote key values contain key.
	HasKey func(rec record.Record, key any) bool
	// Required is informational; resolution never enforces it.
	Required bool
}

func (a Association) validate() error {
	switch {
	case a.Field == "":
		return fmt.Errorf("%w: empty field", ErrInvalidAssociation)
	case a.RefFrom == "" || a.RefTo == "":
		return fmt.Errorf("%w: %s: refFrom and refTo are required", ErrInvalidAssociation, a.Field)
	case a.DAO == "":
		return fmt.Errorf("%w: %s: target dao is required", ErrInvalidAssociation, a.Field)
	case a.Type != OneToOne && a.Type != OneToMany:
		return fmt.Errorf("%w: %s: %s", ErrInvalidAssociation, a.Field, a.Type)
	case a.Reference != Inner && a.Reference != Foreign:
		return fmt.Errorf("%w: %s: %s", ErrInvalidAssociation, a.Field, a.Reference)
	}
	return nil
}

type resolverKind int

const (
	innerOneToOne resolverKind = iota
	innerOneToMany
	foreign
)

// resolver is the join plan of one association.
type resolver struct {
	kind        resolverKind
	assoc       Association
	parentPath  string
	terminal    string
	localKey    string
	remoteKey   string
	identifier  string
	buildFilter func(keys []any) filter.Filter
	hasKey      func(rec record.Record, key any) bool
}

func newResolver(owner string, a Association) resolver {
	r := resolver{assoc: a}
	r.parentPath, r.terminal = record.Split(a.Field)
	switch {
	case a.Reference == Inner && a.Type == OneToOne:
		r.kind = innerOneToOne
	case a.Reference == Inner:
		r.kind = innerOneToMany
	default:
		r.kind = foreign
	}
	if a.Reference == Inner {
		r.localKey, r.remoteKey = record.Last(a.RefFrom), a.RefTo
	} else {
		r.localKey, r.remoteKey = record.Last(a.RefTo), a.RefFrom
	}

	remote := r.remoteKey
	r.identifier = remote
	r.buildFilter = a.BuildFilter
	if r.buildFilter == nil {
		r.buildFilter = func(keys []any) filter.Filter {
			return filter.In(remote, keys)
		}
	} else {
		// a custom query must not share loaders with the default one
		r.identifier = owner + "." + a.Field + ":" + remote
	}
	r.hasKey = a.HasKey
	if r.hasKey == nil {
		r.hasKey = func(rec record.Record, key any) bool {
			return record.Contains(record.Values(rec, remote), key)
		}
	}
	return r
}

// keys returns the distinct non-nil local keys of parents, arrays
// flattened, in discovery order.
func (r resolver) keys(parents []record.Record) []any {
	var keys []any
	for _, p := range parents {
		keys = append(keys, record.Values(p, r.localKey)...)
	}
	return record.Unique(keys)
}

// match reports whether candidate is related to parent.
func (r resolver) match(parent, candidate record.Record) bool {
	remote := record.Values(candidate, r.remoteKey)
	switch r.kind {
	case innerOneToOne:
		local, ok := parent[r.localKey]
		if !ok || local == nil {
			return false
		}
		return record.Contains(remote, local)
	case innerOneToMany:
		local := record.Values(parent, r.localKey)
		for _, v := range remote {
			if record.Contains(local, v) {
				return true
			}
		}
		return false
	default:
		local, ok := parent[r.localKey]
		if !ok || local == nil {
			return false
		}
		return record.Contains(remote, local)
	}
}

// attach sets the association field of every parent from loaded.
func (r resolver) attach(parents, loaded []record.Record) {
	for _, p := range parents {
		switch r.assoc.Type {
		case OneToOne:
			var found any
			for _, c := range loaded {
				if r.match(p, c) {
					found = c
					break
				}
			}
			p[r.terminal] = found
		case OneToMany:
			matches := make([]record.Record, 0)
			for _, c := range loaded {
				if r.match(p, c) {
					matches = append(matches, c)
				}
			}
			p[r.terminal] = matches
		}
	}
}
