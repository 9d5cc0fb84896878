package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/record"
)

var (
	// ErrTenantRequired is returned when the context carries no tenant.
	ErrTenantRequired = errors.New("lattice: tenant required")

	// ErrTenantMismatch is returned when a write targets another tenant.
	ErrTenantMismatch = errors.New("lattice: tenant mismatch")
)

type tenantKey struct{}

// WithTenant returns a copy of ctx carrying tenant.
func WithTenant(ctx context.Context, tenant any) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the tenant set by WithTenant.
func TenantFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(tenantKey{})
	return v, v != nil
}

// Tenant scopes every operation to the tenant returned by from, stored in
// field. Reads, updates, replaces and deletes are filtered by it; inserts
// are stamped with it. A nil from uses TenantFromContext.
func Tenant(field string, from func(context.Context) (any, bool)) dao.Middleware {
	if from == nil {
		from = TenantFromContext
	}
	return dao.Middleware{
		Name: "tenant",
		Before: func(ctx context.Context, args dao.Args, mc *dao.MiddlewareContext) (dao.Before, error) {
			tenant, ok := from(ctx)
			if !ok {
				return dao.Before{}, fmt.Errorf("%w: %s.%s", ErrTenantRequired, mc.Name, mc.Method)
			}
			scope := filter.Eq(field, tenant)

			switch a := args.(type) {
			case dao.FindArgs:
				a.Params.Filter = filter.And(a.Params.Filter, scope)
				return dao.Proceed(a), nil
			case dao.InsertArgs:
				rec, err := stamp(a.Params.Record, field, tenant)
				if err != nil {
					return dao.Before{}, err
				}
				a.Params.Record = rec
				return dao.Proceed(a), nil
			case dao.UpdateArgs:
				if v, ok := a.Params.Changes[field]; ok && !record.Equal(v, tenant) {
					return dao.Before{}, fmt.Errorf("%w: cannot move records to %v", ErrTenantMismatch, v)
				}
				a.Params.Filter = filter.And(a.Params.Filter, scope)
				return dao.Proceed(a), nil
			case dao.ReplaceArgs:
				rec, err := stamp(a.Params.Replace, field, tenant)
				if err != nil {
					return dao.Before{}, err
				}
				a.Params.Replace = rec
				a.Params.Filter = filter.And(a.Params.Filter, scope)
				return dao.Proceed(a), nil
			case dao.DeleteArgs:
				a.Params.Filter = filter.And(a.Params.Filter, scope)
				return dao.Proceed(a), nil
			}
			return dao.Before{}, nil
		},
	}
}

// stamp returns a copy of rec with field set to tenant. A record already
// naming another tenant is rejected.
func stamp(rec record.Record, field string, tenant any) (record.Record, error) {
	if v, ok := rec[field]; ok && v != nil && !record.Equal(v, tenant) {
		return nil, fmt.Errorf("%w: record belongs to %v", ErrTenantMismatch, v)
	}
	out := make(record.Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[field] = tenant
	return out, nil
}
