package middleware

import (
	"context"
	"time"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
)

// SoftDelete marks records as deleted instead of removing them. Reads,
// updates and replaces skip records whose field is set. Deletes become an
// update setting field to now() through the DAO, so the middlewares of the
// update run as well; the delete itself is halted. A nil now uses time.Now.
func SoftDelete(field string, now func() time.Time) dao.Middleware {
	if now == nil {
		now = time.Now
	}
	live := filter.Eq(field, nil)
	return dao.Middleware{
		Name: "softDelete",
		Before: func(ctx context.Context, args dao.Args, mc *dao.MiddlewareContext) (dao.Before, error) {
			switch a := args.(type) {
			case dao.FindArgs:
				a.Params.Filter = filter.And(a.Params.Filter, live)
				return dao.Proceed(a), nil
			case dao.UpdateArgs:
				a.Params.Filter = filter.And(a.Params.Filter, live)
				return dao.Proceed(a), nil
			case dao.ReplaceArgs:
				a.Params.Filter = filter.And(a.Params.Filter, live)
				return dao.Proceed(a), nil
			case dao.DeleteArgs:
				p := dao.UpdateParams{Filter: a.Params.Filter, Changes: filter.Changes{field: now()}}
				var err error
				if a.Op == dao.OpDeleteOne {
					err = mc.DAO.UpdateOne(ctx, p)
				} else {
					err = mc.DAO.UpdateAll(ctx, p)
				}
				if err != nil {
					return dao.Before{}, err
				}
				return dao.Halt(dao.DeleteResult{Op: a.Op, Params: a.Params}), nil
			}
			return dao.Before{}, nil
		},
	}
}
