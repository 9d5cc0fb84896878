package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/internal/keyhash"
	"github.com/jacentio/lattice/record"
)

// CacheStore holds encoded read results.
type CacheStore interface {
	// Get returns the value at key. The second result is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value at key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheOptions configures Cache.
type CacheOptions struct {
	// Prefix namespaces the keys. Default: "lattice"
	Prefix string
	// TTL bounds how long results are served. Default: 1m
	TTL time.Duration
}

// cacheSlot keys the per-call state of one Cache middleware in
// MiddlewareContext.Locals.
type cacheSlot struct {
	prefix string
}

// cachedPage is the msgpack form of a read result.
type cachedPage struct {
	Records    []map[string]any `msgpack:"records"`
	TotalCount int              `msgpack:"total"`
}

// Cache serves FindAll, FindOne and FindPage from store and drops the
// DAO's entries after every write. Keys cover the read parameters as seen
// by the cache, so register it after the middlewares that scope reads. A
// miss is stored under the key it was looked up with, whatever later
// middlewares make of the parameters.
// Exists and Count are not cached. Store errors are logged and treated as
// misses. Cached records come back with msgpack's types: integers as
// int64, nested arrays as []any.
func Cache(store CacheStore, opts CacheOptions) dao.Middleware {
	if opts.Prefix == "" {
		opts.Prefix = "lattice"
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	namespace := func(daoName string) string {
		return opts.Prefix + ":" + daoName + ":"
	}
	slot := &cacheSlot{prefix: opts.Prefix}

	return dao.Middleware{
		Name: "cache",
		Before: func(ctx context.Context, args dao.Args, mc *dao.MiddlewareContext) (dao.Before, error) {
			fa, ok := args.(dao.FindArgs)
			if !ok || !cacheable(mc.Method) {
				return dao.Before{}, nil
			}
			key, err := keyhash.Of(namespace(mc.Name)+string(mc.Method), fa.Params)
			if err != nil {
				return dao.Before{}, err
			}
			raw, found, err := store.Get(ctx, key)
			if err != nil {
				mc.Logger.Warn("cache read failed", "dao", mc.Name, "key", key, "error", err)
				return dao.Before{}, nil
			}
			if !found {
				mc.Locals[slot] = key
				return dao.Before{}, nil
			}
			var page cachedPage
			if err := msgpack.Unmarshal(raw, &page); err != nil {
				mc.Logger.Warn("cache entry unreadable", "dao", mc.Name, "key", key, "error", err)
				return dao.Before{}, nil
			}
			recs := make([]record.Record, len(page.Records))
			for i, r := range page.Records {
				recs[i] = r
			}
			return dao.Halt(dao.FindResult{Params: fa.Params, Records: recs, TotalCount: page.TotalCount}), nil
		},
		After: func(ctx context.Context, res dao.Result, mc *dao.MiddlewareContext) (dao.After, error) {
			fr, ok := res.(dao.FindResult)
			if !ok {
				if err := store.DeletePrefix(ctx, namespace(mc.Name)); err != nil {
					mc.Logger.Warn("cache invalidation failed", "dao", mc.Name, "error", err)
				}
				return dao.After{}, nil
			}
			// only misses carry a key; hits and uncached methods have none
			key, ok := mc.Locals[slot].(string)
			if !ok {
				return dao.After{}, nil
			}
			delete(mc.Locals, slot)
			page := cachedPage{Records: make([]map[string]any, len(fr.Records)), TotalCount: fr.TotalCount}
			for i, r := range fr.Records {
				page.Records[i] = r
			}
			raw, err := msgpack.Marshal(page)
			if err != nil {
				return dao.After{}, fmt.Errorf("encode cache entry: %w", err)
			}
			if err := store.Set(ctx, key, raw, opts.TTL); err != nil {
				mc.Logger.Warn("cache write failed", "dao", mc.Name, "key", key, "error", err)
			}
			return dao.After{}, nil
		},
	}
}

func cacheable(m dao.Method) bool {
	return m == dao.MethodFindAll || m == dao.MethodFindOne || m == dao.MethodFindPage
}
