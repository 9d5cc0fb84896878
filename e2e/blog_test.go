// Package e2e contains end-to-end tests running the same registry of DAOs
// over every driver. In-process drivers run by default; the DynamoDB suite
// needs real tables.
// Run it with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/memory"
	"github.com/jacentio/lattice/middleware"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
	"github.com/jacentio/lattice/sqldoc"
)

// driverFactory opens an empty driver over the named table.
type driverFactory func(t *testing.T, table string) dao.Driver

func memoryDrivers(t *testing.T, _ string) dao.Driver {
	return memory.New(memory.Options{})
}

func sqliteDrivers(t *testing.T) driverFactory {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return func(t *testing.T, table string) dao.Driver {
		d, err := sqldoc.New(db, sqldoc.Options{Table: table})
		require.NoError(t, err)
		require.NoError(t, d.EnsureTable(context.Background()))
		return d
	}
}

// blog is a users/posts registry. Posts reference their author; users list
// their posts.
type blog struct {
	users *dao.DAO
	posts *dao.DAO
}

func newBlog(t *testing.T, open driverFactory) *blog {
	t.Helper()
	ctx := context.Background()
	reg := dao.NewRegistry()

	users, err := dao.New("users", open(t, "users"), dao.Options{
		Registry: reg,
		Associations: []dao.Association{
			{Field: "posts", Type: dao.OneToMany, Reference: dao.Foreign, RefFrom: "authorId", RefTo: "id", DAO: "posts"},
		},
		Middlewares: []dao.Middleware{
			middleware.ComputedField([]string{"handle"}, projection.Of("name"), func(rec record.Record) record.Record {
				name, _ := rec["name"].(string)
				return record.Record{"handle": "@" + name}
			}),
		},
	})
	require.NoError(t, err)

	posts, err := dao.New("posts", open(t, "posts"), dao.Options{
		Registry: reg,
		Associations: []dao.Association{
			{Field: "author", Type: dao.OneToOne, Reference: dao.Inner, RefFrom: "authorId", RefTo: "id", DAO: "users"},
		},
		Middlewares: []dao.Middleware{middleware.References()},
	})
	require.NoError(t, err)

	for _, r := range []record.Record{
		{"id": "u1", "name": "Ada", "age": 36},
		{"id": "u2", "name": "Alan", "age": 41},
		{"id": "u3", "name": "Grace", "age": 85},
	} {
		_, err := users.InsertOne(ctx, dao.InsertParams{Record: r})
		require.NoError(t, err)
	}
	for _, r := range []record.Record{
		{"id": "p1", "title": "First", "authorId": "u1"},
		{"id": "p2", "title": "Second", "authorId": "u1"},
		{"id": "p3", "title": "Third", "authorId": "u2"},
	} {
		_, err := posts.InsertOne(ctx, dao.InsertParams{Record: r})
		require.NoError(t, err)
	}
	return &blog{users: users, posts: posts}
}

func drivers(t *testing.T) map[string]driverFactory {
	return map[string]driverFactory{
		"memory": memoryDrivers,
		"sqlite": sqliteDrivers(t),
	}
}

func TestBlog(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := newBlog(t, open)

			t.Run("round trip", func(t *testing.T) {
				rec, err := b.users.InsertOne(ctx, dao.InsertParams{Record: record.Record{"name": "Linus", "age": 54}})
				require.NoError(t, err)
				require.NotEmpty(t, rec["id"])

				got, err := b.users.FindOne(ctx, dao.FindOneParams{
					Filter:     filter.Eq("id", rec["id"]),
					Projection: projection.Of("name", "age"),
				})
				require.NoError(t, err)
				assert.Equal(t, record.Record{"name": "Linus", "age": 54}, got)

				require.NoError(t, b.users.DeleteOne(ctx, dao.DeleteParams{Filter: filter.Eq("id", rec["id"])}))
			})

			t.Run("resolves associations both ways", func(t *testing.T) {
				users, err := b.users.FindAll(ctx, dao.FindParams{
					Projection: projection.Projection{"name": true, "posts": projection.Projection{"title": true}},
					Sorts:      []filter.Sort{filter.Asc("name")},
				})
				require.NoError(t, err)
				require.Len(t, users, 3)
				assert.Equal(t, []record.Record{
					{"title": "First", "authorId": "u1"},
					{"title": "Second", "authorId": "u1"},
				}, users[0]["posts"])
				assert.Equal(t, []record.Record{{"title": "Third", "authorId": "u2"}}, users[1]["posts"])
				assert.Equal(t, []record.Record{}, users[2]["posts"])

				post, err := b.posts.FindOne(ctx, dao.FindOneParams{
					Filter:     filter.Eq("id", "p3"),
					Projection: projection.Projection{"title": true, "author": projection.Projection{"handle": true}},
				})
				require.NoError(t, err)
				assert.Equal(t, "@Alan", post["author"].(record.Record)["handle"])
			})

			t.Run("pages", func(t *testing.T) {
				page, err := b.posts.FindPage(ctx, dao.FindParams{
					Projection: projection.Of("title"),
					Sorts:      []filter.Sort{filter.Desc("title")},
					Start:      1,
					Limit:      dao.Limit(1),
				})
				require.NoError(t, err)
				assert.Equal(t, 3, page.TotalCount)
				assert.Equal(t, []record.Record{{"title": "Second"}}, page.Records)

				none, err := b.posts.FindAll(ctx, dao.FindParams{Limit: dao.Limit(0)})
				require.NoError(t, err)
				assert.Empty(t, none)
			})

			t.Run("filters", func(t *testing.T) {
				n, err := b.users.Count(ctx, dao.FilterParams{Filter: filter.Filter{
					"$or": []filter.Filter{
						{"age": map[string]any{"$gte": 80}},
						{"name": map[string]any{"$in": []any{"Ada"}}},
					},
				}})
				require.NoError(t, err)
				assert.Equal(t, 2, n)

				ok, err := b.users.Exists(ctx, dao.FilterParams{Filter: filter.Filter{"nick": nil, "name": "Ada"}})
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("rejects dangling references", func(t *testing.T) {
				_, err := b.posts.InsertOne(ctx, dao.InsertParams{Record: record.Record{"id": "p9", "authorId": "u9"}})
				require.ErrorIs(t, err, dao.ErrReferenceViolation)
				var refErr *dao.ReferenceError
				require.True(t, errors.As(err, &refErr))
				assert.Equal(t, []any{"u9"}, refErr.Violations[0].FailedReferences)
			})

			t.Run("positional API", func(t *testing.T) {
				v := b.posts.V1()
				p3, err := v.FindOne(ctx, filter.Eq("id", "p3"), nil)
				require.NoError(t, err)

				require.NoError(t, v.Update(ctx, p3, filter.Changes{"title": "Third, revised"}))
				got, err := v.FindOne(ctx, filter.Eq("id", "p3"), projection.Of("title"))
				require.NoError(t, err)
				assert.Equal(t, "Third, revised", got["title"])

				require.NoError(t, v.Delete(ctx, p3))
				ok, err := v.Exists(ctx, filter.Eq("id", "p3"))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("bulk writes", func(t *testing.T) {
				require.NoError(t, b.posts.UpdateAll(ctx, dao.UpdateParams{
					Filter:  filter.Eq("authorId", "u1"),
					Changes: filter.Changes{"draft": true},
				}))
				n, err := b.posts.Count(ctx, dao.FilterParams{Filter: filter.Eq("draft", true)})
				require.NoError(t, err)
				assert.Equal(t, 2, n)

				require.NoError(t, b.posts.DeleteAll(ctx, dao.DeleteParams{Filter: filter.Eq("draft", true)}))
				users, err := b.users.FindAll(ctx, dao.FindParams{
					Filter:     filter.Eq("id", "u1"),
					Projection: projection.Projection{"posts": projection.Projection{"title": true}},
				})
				require.NoError(t, err)
				require.Len(t, users, 1)
				assert.Equal(t, []record.Record{}, users[0]["posts"])
			})
		})
	}
}
