package middleware

import (
	"context"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/record"
)

// References rejects inserts and replaces whose INNER references point at
// missing records, with a *dao.ReferenceError.
func References() dao.Middleware {
	check := func(ctx context.Context, mc *dao.MiddlewareContext, rec record.Record) error {
		violations, err := mc.DAO.CheckReferences(ctx, rec)
		if err != nil {
			return err
		}
		if len(violations) > 0 {
			return &dao.ReferenceError{DAO: mc.Name, Violations: violations}
		}
		return nil
	}
	return dao.Middleware{
		Name: "references",
		Before: func(ctx context.Context, args dao.Args, mc *dao.MiddlewareContext) (dao.Before, error) {
			switch a := args.(type) {
			case dao.InsertArgs:
				return dao.Before{}, check(ctx, mc, a.Params.Record)
			case dao.ReplaceArgs:
				return dao.Before{}, check(ctx, mc, a.Params.Replace)
			}
			return dao.Before{}, nil
		},
	}
}
