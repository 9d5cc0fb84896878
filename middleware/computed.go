package middleware

import (
	"context"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// ComputedField derives fields from stored ones. When a read selects any of
// fields, the fields in required are added to the projection and every
// returned record is merged with compute(record).
func ComputedField(fields []string, required projection.Projection, compute func(record.Record) record.Record) dao.Middleware {
	wants := func(p projection.Projection) bool {
		for _, f := range fields {
			if p.Selects(f) {
				return true
			}
		}
		return false
	}
	return dao.Middleware{
		Name: "computedField",
		Before: func(_ context.Context, args dao.Args, _ *dao.MiddlewareContext) (dao.Before, error) {
			fa, ok := args.(dao.FindArgs)
			if !ok || fa.Params.Projection == nil || !wants(fa.Params.Projection) {
				return dao.Before{}, nil
			}
			fa.Params.Projection = projection.Merge(fa.Params.Projection, required)
			return dao.Proceed(fa), nil
		},
		After: func(_ context.Context, res dao.Result, _ *dao.MiddlewareContext) (dao.After, error) {
			fr, ok := res.(dao.FindResult)
			if !ok || !wants(fr.Params.Projection) {
				return dao.After{}, nil
			}
			for _, rec := range fr.Records {
				for k, v := range compute(rec) {
					rec[k] = v
				}
			}
			return dao.After{}, nil
		},
	}
}
