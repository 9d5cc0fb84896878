package dao

import (
	"context"

	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// V1 is the positional API of a DAO. Record-addressed calls (Update,
// Replace, Delete) filter by the ID field of the given record.
type V1 struct {
	dao *DAO
}

// V1 returns the positional API of d.
func (d *DAO) V1() V1 {
	return V1{dao: d}
}

func (v V1) idFilter(rec record.Record) filter.Filter {
	return filter.Filter{v.dao.idField: rec[v.dao.idField]}
}

func (v V1) Find(ctx context.Context, f filter.Filter, p projection.Projection, sorts []filter.Sort, start int, limit *int) ([]record.Record, error) {
	return v.dao.FindAll(ctx, FindParams{Filter: f, Projection: p, Sorts: sorts, Start: start, Limit: limit})
}

func (v V1) FindPage(ctx context.Context, f filter.Filter, p projection.Projection, sorts []filter.Sort, start int, limit *int) (Page, error) {
	return v.dao.FindPage(ctx, FindParams{Filter: f, Projection: p, Sorts: sorts, Start: start, Limit: limit})
}

func (v V1) FindOne(ctx context.Context, f filter.Filter, p projection.Projection) (record.Record, error) {
	return v.dao.FindOne(ctx, FindOneParams{Filter: f, Projection: p})
}

func (v V1) Exists(ctx context.Context, f filter.Filter) (bool, error) {
	return v.dao.Exists(ctx, FilterParams{Filter: f})
}

func (v V1) Count(ctx context.Context, f filter.Filter) (int, error) {
	return v.dao.Count(ctx, FilterParams{Filter: f})
}

func (v V1) Insert(ctx context.Context, rec record.Record) (record.Record, error) {
	return v.dao.InsertOne(ctx, InsertParams{Record: rec})
}

func (v V1) Update(ctx context.Context, rec record.Record, changes filter.Changes) error {
	return v.dao.UpdateOne(ctx, UpdateParams{Filter: v.idFilter(rec), Changes: changes})
}

func (v V1) UpdateOne(ctx context.Context, f filter.Filter, changes filter.Changes) error {
	return v.dao.UpdateOne(ctx, UpdateParams{Filter: f, Changes: changes})
}

func (v V1) UpdateMany(ctx context.Context, f filter.Filter, changes filter.Changes) error {
	return v.dao.UpdateAll(ctx, UpdateParams{Filter: f, Changes: changes})
}

func (v V1) Replace(ctx context.Context, rec, replacement record.Record) error {
	return v.dao.ReplaceOne(ctx, ReplaceParams{Filter: v.idFilter(rec), Replace: replacement})
}

func (v V1) ReplaceOne(ctx context.Context, f filter.Filter, replacement record.Record) error {
	return v.dao.ReplaceOne(ctx, ReplaceParams{Filter: f, Replace: replacement})
}

func (v V1) Delete(ctx context.Context, rec record.Record) error {
	return v.dao.DeleteOne(ctx, DeleteParams{Filter: v.idFilter(rec)})
}

func (v V1) DeleteOne(ctx context.Context, f filter.Filter) error {
	return v.dao.DeleteOne(ctx, DeleteParams{Filter: f})
}

func (v V1) DeleteMany(ctx context.Context, f filter.Filter) error {
	return v.dao.DeleteAll(ctx, DeleteParams{Filter: f})
}
