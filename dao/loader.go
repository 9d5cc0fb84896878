package dao

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/graph-gophers/dataloader/v7"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

type batchLoader = dataloader.Loader[any, []record.Record]

// loadersKey is the context key of a loader scope.
type loadersKey struct{}

// loaderScope holds the batching loaders of one request, per DAO and per
// identifier and projection. Loaders keep no results: every load reaches
// the target DAO, middlewares included, under the caller's context.
type loaderScope struct {
	mu      sync.Mutex
	loaders map[*DAO]*lru.Cache[string, *batchLoader]
}

// WithLoaders returns a context carrying a fresh loader scope. Association
// lookups issued under it within BatchWait of each other share one query
// per PageSize keys, across calls and DAOs. A scope belongs to one request
// and one caller identity; reads without a scope batch within the call.
//
// Example:
//
//	ctx = dao.WithLoaders(r.Context())
//	posts, err := posts.FindAll(ctx, dao.FindParams{Projection: projection.Of("author.name")})
func WithLoaders(ctx context.Context) context.Context {
	return context.WithValue(ctx, loadersKey{}, &loaderScope{
		loaders: make(map[*DAO]*lru.Cache[string, *batchLoader]),
	})
}

// scoped returns ctx when it already carries a loader scope, or a child
// context with a new one.
func scoped(ctx context.Context) context.Context {
	if _, ok := ctx.Value(loadersKey{}).(*loaderScope); ok {
		return ctx
	}
	return WithLoaders(ctx)
}

func (s *loaderScope) loader(d *DAO, key string, create func() *batchLoader) (*batchLoader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.loaders[d]
	if !ok {
		var err error
		if c, err = lru.New[string, *batchLoader](d.cfg.LoaderCacheSize); err != nil {
			return nil, fmt.Errorf("create loader cache: %w", err)
		}
		s.loaders[d] = c
	}
	if l, ok := c.Get(key); ok {
		return l, nil
	}
	l := create()
	c.Add(key, l)
	return l, nil
}

// load returns the records of this DAO related to keys. Concurrent loads
// in one scope with the same identifier and projection are batched into one
// FindAll per PageSize keys. Results are deduplicated by ID and copied.
func (d *DAO) load(
	ctx context.Context,
	keys []any,
	buildFilter func([]any) filter.Filter,
	hasKey func(record.Record, any) bool,
	proj projection.Projection,
	identifier string,
) ([]record.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ctx = scoped(ctx)
	scope := ctx.Value(loadersKey{}).(*loaderScope)

	// the ID is loaded for deduplication and dropped again when unselected
	query, stripID := proj, false
	if proj != nil && !proj.Selects(d.idField) {
		query = proj.Clone()
		query.Set(d.idField)
		stripID = true
	}
	cacheKey, err := query.Key(identifier)
	if err != nil {
		return nil, err
	}
	loader, err := scope.loader(d, cacheKey, func() *batchLoader {
		return dataloader.NewBatchedLoader(
			d.batch(buildFilter, hasKey, query, identifier),
			dataloader.WithBatchCapacity[any, []record.Record](d.cfg.PageSize),
			dataloader.WithWait[any, []record.Record](d.cfg.BatchWait),
			dataloader.WithCache[any, []record.Record](&dataloader.NoCache[any, []record.Record]{}),
		)
	})
	if err != nil {
		return nil, err
	}

	groups, errs := loader.LoadMany(ctx, keys)()
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}

	var (
		ids  []any
		ptrs = make(map[uintptr]struct{})
		out  []record.Record
	)
	for _, group := range groups {
		for _, rec := range group {
			if id, ok := record.Get(rec, d.idField); ok && id != nil {
				if record.Contains(ids, id) {
					continue
				}
				ids = append(ids, id)
			} else {
				p := reflect.ValueOf(rec).Pointer()
				if _, dup := ptrs[p]; dup {
					continue
				}
				ptrs[p] = struct{}{}
			}
			c := record.Clone(rec)
			if stripID {
				record.Delete(c, d.idField)
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *DAO) batch(
	buildFilter func([]any) filter.Filter,
	hasKey func(record.Record, any) bool,
	proj projection.Projection,
	identifier string,
) dataloader.BatchFunc[any, []record.Record] {
	return func(ctx context.Context, keys []any) []*dataloader.Result[[]record.Record] {
		d.logger.Debug("loading batch", "dao", d.name, "identifier", identifier, "keys", len(keys))
		results := make([]*dataloader.Result[[]record.Record], len(keys))
		recs, err := d.FindAll(ctx, FindParams{Filter: buildFilter(keys), Projection: proj.Clone()})
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[[]record.Record]{Error: err}
				continue
			}
			var matched []record.Record
			for _, rec := range recs {
				if hasKey(rec, key) {
					matched = append(matched, rec)
				}
			}
			results[i] = &dataloader.Result[[]record.Record]{Data: matched}
		}
		return results
	}
}
