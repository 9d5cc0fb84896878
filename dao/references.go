package dao

import (
	"context"

	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// ReferenceViolation lists the INNER references of one record that match
// no related record.
type ReferenceViolation struct {
	Association      Association
	Record           record.Record
	FailedReferences []any
}

// CheckReferences verifies that every INNER reference of records points at
// an existing related record. It returns nil when all references resolve.
// It only reads; DAOs never call it on their own.
func (d *DAO) CheckReferences(ctx context.Context, records ...record.Record) ([]ReferenceViolation, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ctx = scoped(ctx)
	var violations []ReferenceViolation
	for _, r := range d.resolvers {
		if r.assoc.Reference != Inner {
			continue
		}
		target, err := d.registry.DAO(r.assoc.DAO)
		if err != nil {
			return nil, err
		}
		parents := record.Objects(records, r.parentPath)
		loaded, err := target.load(ctx, r.keys(parents), r.buildFilter, r.hasKey, projection.Of(r.remoteKey), r.identifier)
		if err != nil {
			return nil, err
		}
		var found []any
		for _, rec := range loaded {
			found = append(found, record.Values(rec, r.remoteKey)...)
		}
		for _, rec := range records {
			var failed []any
			for _, ref := range record.Values(rec, r.assoc.RefFrom) {
				if !record.Contains(found, ref) {
					failed = append(failed, ref)
				}
			}
			if len(failed) > 0 {
				violations = append(violations, ReferenceViolation{
					Association:      r.assoc,
					Record:           rec,
					FailedReferences: failed,
				})
			}
		}
	}
	return violations, nil
}
