package middleware_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/middleware"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

func cachedUsers(t *testing.T, store middleware.CacheStore, opts middleware.CacheOptions) (*dao.DAO, *counting) {
	t.Helper()
	return newDAO(t, "users", dao.Options{Middlewares: []dao.Middleware{middleware.Cache(store, opts)}},
		record.Record{"id": "u1", "name": "Ada", "age": 36},
		record.Record{"id": "u2", "name": "Alan", "age": 41},
	)
}

// --- LRUCache Tests ---

func TestCache_LRU(t *testing.T) {
	ctx := context.Background()
	store := middleware.NewLRUCache(100, time.Minute)
	users, drv := cachedUsers(t, store, middleware.CacheOptions{})
	p := dao.FindParams{Filter: filter.Eq("id", "u1")}

	first, err := users.FindAll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{{"id": "u1", "name": "Ada", "age": 36}}, first)
	assert.Equal(t, 1, store.Len())

	second, err := users.FindAll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int32(1), drv.finds.Load(), "second read is served from the cache")
	assert.Equal(t, []record.Record{{"id": "u1", "name": "Ada", "age": int64(36)}}, second)

	t.Run("parameters are part of the key", func(t *testing.T) {
		_, err := users.FindAll(ctx, dao.FindParams{Filter: filter.Eq("id", "u1"), Projection: projection.Of("name")})
		require.NoError(t, err)
		assert.Equal(t, int32(2), drv.finds.Load())
		assert.Equal(t, 2, store.Len())
	})

	t.Run("pages keep their total", func(t *testing.T) {
		for range 2 {
			page, err := users.FindPage(ctx, dao.FindParams{Limit: dao.Limit(1)})
			require.NoError(t, err)
			assert.Equal(t, 2, page.TotalCount)
			assert.Len(t, page.Records, 1)
		}
		assert.Equal(t, 3, store.Len())
	})

	t.Run("counts are not cached", func(t *testing.T) {
		_, err := users.Count(ctx, dao.FilterParams{})
		require.NoError(t, err)
		assert.Equal(t, 3, store.Len())
	})

	t.Run("writes invalidate", func(t *testing.T) {
		require.NoError(t, users.UpdateOne(ctx, dao.UpdateParams{Filter: filter.Eq("id", "u1"), Changes: filter.Changes{"name": "Ada L."}}))
		assert.Zero(t, store.Len())

		got, err := users.FindAll(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "Ada L.", got[0]["name"])
	})
}

func TestCache_NamespacesByDAO(t *testing.T) {
	ctx := context.Background()
	store := middleware.NewLRUCache(100, time.Minute)
	reg := dao.NewRegistry()
	mw := []dao.Middleware{middleware.Cache(store, middleware.CacheOptions{Prefix: "app"})}
	users, _ := newDAO(t, "users", dao.Options{Registry: reg, Middlewares: mw}, record.Record{"id": "u1"})
	posts, _ := newDAO(t, "posts", dao.Options{Registry: reg, Middlewares: mw}, record.Record{"id": "p1"})

	_, err := users.FindAll(ctx, dao.FindParams{})
	require.NoError(t, err)
	_, err = posts.FindAll(ctx, dao.FindParams{})
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	require.NoError(t, posts.DeleteAll(ctx, dao.DeleteParams{}))
	assert.Equal(t, 1, store.Len(), "only the written DAO is invalidated")
}

func TestCache_KeyIgnoresLaterRewrites(t *testing.T) {
	ctx := context.Background()
	store := middleware.NewLRUCache(100, time.Minute)
	users, drv := newDAO(t, "users", dao.Options{Middlewares: []dao.Middleware{middleware.Cache(store, middleware.CacheOptions{}), fullName()}},
		record.Record{"id": "u1", "first": "Ada", "last": "Lovelace"},
	)
	p := dao.FindParams{Projection: projection.Of("fullName")}

	for range 3 {
		got, err := users.FindAll(ctx, p)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ada Lovelace", got[0]["fullName"])
	}
	assert.Equal(t, int32(1), drv.finds.Load())
	assert.Equal(t, 1, store.Len())
}

// --- RedisCache Tests ---

func TestCache_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users, drv := cachedUsers(t, middleware.NewRedisCache(client), middleware.CacheOptions{Prefix: "app", TTL: 30 * time.Second})

	_, err := users.FindOne(ctx, dao.FindOneParams{Filter: filter.Eq("id", "u2")})
	require.NoError(t, err)
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "app:users:findOne-"), keys[0])
	assert.Equal(t, 30*time.Second, mr.TTL(keys[0]))

	got, err := users.FindOne(ctx, dao.FindOneParams{Filter: filter.Eq("id", "u2")})
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": "u2", "name": "Alan", "age": int64(41)}, got)

	_, err = users.InsertOne(ctx, dao.InsertParams{Record: record.Record{"id": "u3"}})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
	assert.Equal(t, 3, drv.Len())
}

func TestCache_StoreFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	users, _ := cachedUsers(t, middleware.NewRedisCache(client), middleware.CacheOptions{})

	mr.Close()
	got, err := users.FindAll(ctx, dao.FindParams{Projection: projection.Of("id")})
	require.NoError(t, err)
	assert.Equal(t, []record.Record{{"id": "u1"}, {"id": "u2"}}, got)
}

func TestRedisCache_DeletePrefixEscapesGlobs(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := middleware.NewRedisCache(client)

	for _, k := range []string{"a*b:1", "a*b:2", "axb:1"} {
		require.NoError(t, store.Set(ctx, k, []byte("v"), 0))
	}
	require.NoError(t, store.DeletePrefix(ctx, "a*b:"))
	assert.Equal(t, []string{"axb:1"}, mr.Keys())

	v, ok, err := store.Get(ctx, "axb:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
