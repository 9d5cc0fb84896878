package dao

import (
	"context"

	"github.com/jacentio/lattice/record"
)

// FindAll returns the records matching p, with the associations selected
// by the projection resolved. A limit of zero returns no records without
// querying the driver.
func (d *DAO) FindAll(ctx context.Context, p FindParams) ([]record.Record, error) {
	mc := d.middlewareContext(MethodFindAll)
	params, halted, halt, err := d.beforeRead(ctx, p, mc)
	if err != nil {
		return nil, err
	}
	res := FindResult{Params: params}
	switch {
	case halted != nil:
		res = *halted
	case params.Limit != nil && *params.Limit == 0:
		res.Records = []record.Record{}
	default:
		res.Records, err = d.driver.Find(ctx, params)
		if err != nil {
			return nil, err
		}
	}
	out, err := d.afterRead(ctx, res, halt, mc)
	if err != nil {
		return nil, err
	}
	return out.Records, nil
}

// FindOne returns the first record matching p, or nil.
func (d *DAO) FindOne(ctx context.Context, p FindOneParams) (record.Record, error) {
	mc := d.middlewareContext(MethodFindOne)
	params, halted, halt, err := d.beforeRead(ctx, FindParams{Filter: p.Filter, Projection: p.Projection}, mc)
	if err != nil {
		return nil, err
	}
	res := FindResult{Params: params}
	if halted != nil {
		res = *halted
		if len(res.Records) > 1 {
			res.Records = res.Records[:1]
		}
	} else {
		rec, err := d.driver.FindOne(ctx, FindOneParams{Filter: params.Filter, Projection: params.Projection})
		if err != nil {
			return nil, err
		}
		if rec != nil {
			res.Records = []record.Record{rec}
		}
	}
	out, err := d.afterRead(ctx, res, halt, mc)
	if err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	return out.Records[0], nil
}

// FindPage returns a window of the records matching p and the total count
// of matches before the window. A limit of zero only counts.
func (d *DAO) FindPage(ctx context.Context, p FindParams) (Page, error) {
	mc := d.middlewareContext(MethodFindPage)
	params, halted, halt, err := d.beforeRead(ctx, p, mc)
	if err != nil {
		return Page{}, err
	}
	res := FindResult{Params: params}
	switch {
	case halted != nil:
		res = *halted
	case params.Limit != nil && *params.Limit == 0:
		res.Records = []record.Record{}
		res.TotalCount, err = d.driver.Count(ctx, FilterParams{Filter: params.Filter})
		if err != nil {
			return Page{}, err
		}
	default:
		page, err := d.driver.FindPage(ctx, params)
		if err != nil {
			return Page{}, err
		}
		res.Records, res.TotalCount = page.Records, page.TotalCount
	}
	out, err := d.afterRead(ctx, res, halt, mc)
	if err != nil {
		return Page{}, err
	}
	return Page{TotalCount: out.TotalCount, Records: out.Records}, nil
}

// Exists reports whether any record matches p. Only before-middlewares run;
// a halting middleware answers with its records or TotalCount.
func (d *DAO) Exists(ctx context.Context, p FilterParams) (bool, error) {
	mc := d.middlewareContext(MethodExists)
	params, halted, _, err := d.beforeRead(ctx, FindParams{Filter: p.Filter}, mc)
	if err != nil {
		return false, err
	}
	if halted != nil {
		return len(halted.Records) > 0 || halted.TotalCount > 0, nil
	}
	return d.driver.Exists(ctx, FilterParams{Filter: params.Filter})
}

// Count returns the number of records matching p. Only before-middlewares
// run; a halting middleware answers with TotalCount, or its record count
// when TotalCount is zero.
func (d *DAO) Count(ctx context.Context, p FilterParams) (int, error) {
	mc := d.middlewareContext(MethodCount)
	params, halted, _, err := d.beforeRead(ctx, FindParams{Filter: p.Filter}, mc)
	if err != nil {
		return 0, err
	}
	if halted != nil {
		if halted.TotalCount > 0 {
			return halted.TotalCount, nil
		}
		return len(halted.Records), nil
	}
	return d.driver.Count(ctx, FilterParams{Filter: params.Filter})
}

func (d *DAO) beforeRead(ctx context.Context, p FindParams, mc *MiddlewareContext) (FindParams, *FindResult, int, error) {
	args, halted, halt, err := d.runBefore(ctx, FindArgs{Params: p}, mc)
	if err != nil {
		return FindParams{}, nil, -1, err
	}
	fa, err := argsAs[FindArgs](args)
	if err != nil {
		return FindParams{}, nil, -1, err
	}
	if halted == nil {
		return fa.Params, nil, -1, nil
	}
	res, err := resultAs[FindResult](halted)
	if err != nil {
		return FindParams{}, nil, -1, err
	}
	return fa.Params, &res, halt, nil
}

func (d *DAO) afterRead(ctx context.Context, res FindResult, halt int, mc *MiddlewareContext) (FindResult, error) {
	if err := d.resolveAssociations(ctx, res.Records, res.Params.Projection); err != nil {
		return FindResult{}, err
	}
	out, err := d.runAfter(ctx, res, halt, mc)
	if err != nil {
		return FindResult{}, err
	}
	return resultAs[FindResult](out)
}
