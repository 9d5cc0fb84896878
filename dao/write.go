package dao

import (
	"context"

	"github.com/jacentio/lattice/record"
)

// Writes never resolve associations.

// InsertOne inserts p.Record and returns it as stored.
func (d *DAO) InsertOne(ctx context.Context, p InsertParams) (record.Record, error) {
	mc := d.middlewareContext(MethodInsertOne)
	args, halted, halt, err := d.runBefore(ctx, InsertArgs{Params: p}, mc)
	if err != nil {
		return nil, err
	}
	ia, err := argsAs[InsertArgs](args)
	if err != nil {
		return nil, err
	}
	var res InsertResult
	if halted != nil {
		if res, err = resultAs[InsertResult](halted); err != nil {
			return nil, err
		}
	} else {
		rec, err := d.driver.InsertOne(ctx, ia.Params)
		if err != nil {
			return nil, err
		}
		res = InsertResult{Params: ia.Params, Record: rec}
	}
	out, err := d.runAfter(ctx, res, halt, mc)
	if err != nil {
		return nil, err
	}
	final, err := resultAs[InsertResult](out)
	if err != nil {
		return nil, err
	}
	return final.Record, nil
}

// UpdateOne applies p.Changes to the first record matching p.Filter.
func (d *DAO) UpdateOne(ctx context.Context, p UpdateParams) error {
	return d.update(ctx, OpUpdateOne, MethodUpdateOne, p)
}

// UpdateAll applies p.Changes to every record matching p.Filter.
func (d *DAO) UpdateAll(ctx context.Context, p UpdateParams) error {
	return d.update(ctx, OpUpdateAll, MethodUpdateAll, p)
}

func (d *DAO) update(ctx context.Context, op Operation, m Method, p UpdateParams) error {
	mc := d.middlewareContext(m)
	args, halted, halt, err := d.runBefore(ctx, UpdateArgs{Op: op, Params: p}, mc)
	if err != nil {
		return err
	}
	ua, err := argsAs[UpdateArgs](args)
	if err != nil {
		return err
	}
	res := UpdateResult{Op: op, Params: ua.Params}
	if halted != nil {
		if res, err = resultAs[UpdateResult](halted); err != nil {
			return err
		}
	} else {
		if op == OpUpdateOne {
			err = d.driver.UpdateOne(ctx, ua.Params)
		} else {
			err = d.driver.UpdateMany(ctx, ua.Params)
		}
		if err != nil {
			return err
		}
	}
	out, err := d.runAfter(ctx, res, halt, mc)
	if err != nil {
		return err
	}
	_, err = resultAs[UpdateResult](out)
	return err
}

// ReplaceOne replaces the first record matching p.Filter with p.Replace.
func (d *DAO) ReplaceOne(ctx context.Context, p ReplaceParams) error {
	mc := d.middlewareContext(MethodReplaceOne)
	args, halted, halt, err := d.runBefore(ctx, ReplaceArgs{Params: p}, mc)
	if err != nil {
		return err
	}
	ra, err := argsAs[ReplaceArgs](args)
	if err != nil {
		return err
	}
	res := ReplaceResult{Params: ra.Params}
	if halted != nil {
		if res, err = resultAs[ReplaceResult](halted); err != nil {
			return err
		}
	} else {
		err = d.driver.ReplaceOne(ctx, ra.Params)
		if err != nil {
			return err
		}
	}
	out, err := d.runAfter(ctx, res, halt, mc)
	if err != nil {
		return err
	}
	_, err = resultAs[ReplaceResult](out)
	return err
}

// DeleteOne deletes the first record matching p.Filter.
func (d *DAO) DeleteOne(ctx context.Context, p DeleteParams) error {
	return d.delete(ctx, OpDeleteOne, MethodDeleteOne, p)
}

// DeleteAll deletes every record matching p.Filter.
func (d *DAO) DeleteAll(ctx context.Context, p DeleteParams) error {
	return d.delete(ctx, OpDeleteAll, MethodDeleteAll, p)
}

func (d *DAO) delete(ctx context.Context, op Operation, m Method, p DeleteParams) error {
	mc := d.middlewareContext(m)
	args, halted, halt, err := d.runBefore(ctx, DeleteArgs{Op: op, Params: p}, mc)
	if err != nil {
		return err
	}
	da, err := argsAs[DeleteArgs](args)
	if err != nil {
		return err
	}
	res := DeleteResult{Op: op, Params: da.Params}
	if halted != nil {
		if res, err = resultAs[DeleteResult](halted); err != nil {
			return err
		}
	} else {
		if op == OpDeleteOne {
			err = d.driver.DeleteOne(ctx, da.Params)
		} else {
			err = d.driver.DeleteMany(ctx, da.Params)
		}
		if err != nil {
			return err
		}
	}
	out, err := d.runAfter(ctx, res, halt, mc)
	if err != nil {
		return err
	}
	_, err = resultAs[DeleteResult](out)
	return err
}
