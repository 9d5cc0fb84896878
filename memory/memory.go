// Package memory implements an in-memory dao.Driver for tests and prototypes.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

var (
	// ErrAlreadyExists is returned when inserting a key that is already stored.
	ErrAlreadyExists = errors.New("lattice: memory: record already exists")

	// ErrKeyChange is returned when an update or replace would change a key.
	ErrKeyChange = errors.New("lattice: memory: key cannot change")
)

// Options configures a Driver.
type Options struct {
	// KeyField is the primary key field. Default: "id"
	KeyField string
	// Generate assigns keys to records inserted without one.
	// Default: uuid.NewString.
	Generate func() any
}

// Driver stores records in insertion order. It is safe for concurrent use.
// Records are copied on the way in and on the way out.
type Driver struct {
	mu      sync.RWMutex
	opts    Options
	records map[any]record.Record
	order   []any
}

var _ dao.Driver = (*Driver)(nil)

// New creates an empty Driver.
func New(opts Options) *Driver {
	if opts.KeyField == "" {
		opts.KeyField = "id"
	}
	if opts.Generate == nil {
		opts.Generate = func() any { return uuid.NewString() }
	}
	return &Driver{opts: opts, records: make(map[any]record.Record)}
}

// Len returns the number of stored records.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// matching returns the stored records matching f in insertion order.
// Callers hold the lock.
func (d *Driver) matching(f filter.Filter) ([]record.Record, error) {
	all := make([]record.Record, 0, len(d.order))
	for _, k := range d.order {
		all = append(all, d.records[k])
	}
	return filter.MatchAll(all, f)
}

func (d *Driver) Find(_ context.Context, p dao.FindParams) ([]record.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recs, err := d.matching(p.Filter)
	if err != nil {
		return nil, err
	}
	filter.SortRecords(recs, p.Sorts)
	lo, hi := filter.Window(len(recs), p.Start, p.Limit)
	out := make([]record.Record, 0, hi-lo)
	for _, r := range recs[lo:hi] {
		out = append(out, projection.Apply(r, p.Projection))
	}
	return out, nil
}

func (d *Driver) FindOne(ctx context.Context, p dao.FindOneParams) (record.Record, error) {
	recs, err := d.Find(ctx, dao.FindParams{Filter: p.Filter, Projection: p.Projection, Limit: dao.Limit(1)})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (d *Driver) FindPage(ctx context.Context, p dao.FindParams) (dao.Page, error) {
	total, err := d.Count(ctx, dao.FilterParams{Filter: p.Filter})
	if err != nil {
		return dao.Page{}, err
	}
	recs, err := d.Find(ctx, p)
	if err != nil {
		return dao.Page{}, err
	}
	return dao.Page{TotalCount: total, Records: recs}, nil
}

func (d *Driver) Exists(ctx context.Context, p dao.FilterParams) (bool, error) {
	n, err := d.Count(ctx, p)
	return n > 0, err
}

func (d *Driver) Count(_ context.Context, p dao.FilterParams) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recs, err := d.matching(p.Filter)
	return len(recs), err
}

func (d *Driver) InsertOne(_ context.Context, p dao.InsertParams) (record.Record, error) {
	rec := record.Clone(p.Record)
	if rec == nil {
		rec = record.Record{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key, ok := rec[d.opts.KeyField]
	if !ok || key == nil {
		key = d.opts.Generate()
		rec[d.opts.KeyField] = key
	}
	if _, dup := d.records[key]; dup {
		return nil, fmt.Errorf("%w: %v", ErrAlreadyExists, key)
	}
	d.records[key] = rec
	d.order = append(d.order, key)
	return record.Clone(rec), nil
}

func (d *Driver) UpdateOne(_ context.Context, p dao.UpdateParams) error {
	return d.update(p, 1)
}

func (d *Driver) UpdateMany(_ context.Context, p dao.UpdateParams) error {
	return d.update(p, -1)
}

func (d *Driver) update(p dao.UpdateParams, limit int) error {
	if _, ok := p.Changes[d.opts.KeyField]; ok {
		return ErrKeyChange
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.matching(p.Filter)
	if err != nil {
		return err
	}
	for i, r := range recs {
		if limit >= 0 && i >= limit {
			break
		}
		filter.Apply(r, p.Changes)
	}
	return nil
}

func (d *Driver) ReplaceOne(_ context.Context, p dao.ReplaceParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.matching(p.Filter)
	if err != nil || len(recs) == 0 {
		return err
	}
	key := recs[0][d.opts.KeyField]
	rec := record.Clone(p.Replace)
	if rec == nil {
		rec = record.Record{}
	}
	if k, ok := rec[d.opts.KeyField]; ok && !record.Equal(k, key) {
		return ErrKeyChange
	}
	rec[d.opts.KeyField] = key
	d.records[key] = rec
	return nil
}

func (d *Driver) DeleteOne(_ context.Context, p dao.DeleteParams) error {
	return d.delete(p, 1)
}

func (d *Driver) DeleteMany(_ context.Context, p dao.DeleteParams) error {
	return d.delete(p, -1)
}

func (d *Driver) delete(p dao.DeleteParams, limit int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs, err := d.matching(p.Filter)
	if err != nil {
		return err
	}
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	drop := make(map[any]bool, len(recs))
	for _, r := range recs {
		k := r[d.opts.KeyField]
		drop[k] = true
		delete(d.records, k)
	}
	kept := d.order[:0]
	for _, k := range d.order {
		if !drop[k] {
			kept = append(kept, k)
		}
	}
	d.order = kept
	return nil
}
