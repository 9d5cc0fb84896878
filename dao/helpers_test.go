package dao_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/memory"
	"github.com/jacentio/lattice/record"
)

// spy wraps the memory driver and records the calls the DAO makes.
type spy struct {
	*memory.Driver

	mu     sync.Mutex
	finds  []dao.FindParams
	counts int
	fail   error
}

func newSpy() *spy {
	return &spy{Driver: memory.New(memory.Options{})}
}

func (s *spy) Find(ctx context.Context, p dao.FindParams) ([]record.Record, error) {
	s.mu.Lock()
	s.finds = append(s.finds, p)
	err := s.fail
	s.fail = nil
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Driver.Find(ctx, p)
}

func (s *spy) Count(ctx context.Context, p dao.FilterParams) (int, error) {
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()
	return s.Driver.Count(ctx, p)
}

func (s *spy) findCalls() []dao.FindParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dao.FindParams(nil), s.finds...)
}

func (s *spy) countCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func (s *spy) failNext(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *spy) reset() {
	s.mu.Lock()
	s.finds = nil
	s.counts = 0
	s.mu.Unlock()
}

func (s *spy) seed(t *testing.T, recs ...record.Record) {
	t.Helper()
	for _, r := range recs {
		_, err := s.Driver.InsertOne(context.Background(), dao.InsertParams{Record: r})
		require.NoError(t, err)
	}
}

// blog is a users / posts / tags registry:
//
//	users.posts  FOREIGN one-to-many  posts.authorId -> users.id
//	posts.author INNER   one-to-one   posts.authorId -> users.id
//	posts.tags   INNER   one-to-many  posts.tagIds   -> tags.id
type blog struct {
	reg                *dao.Registry
	users, posts, tags *dao.DAO
	usersDrv, postsDrv *spy
	tagsDrv            *spy
}

func newBlog(t *testing.T, cfg dao.Config) *blog {
	t.Helper()
	b := &blog{reg: dao.NewRegistry(), usersDrv: newSpy(), postsDrv: newSpy(), tagsDrv: newSpy()}

	var err error
	b.users, err = dao.New("users", b.usersDrv, dao.Options{
		Registry: b.reg,
		Config:   cfg,
		Associations: []dao.Association{
			{Field: "posts", Type: dao.OneToMany, Reference: dao.Foreign, RefFrom: "authorId", RefTo: "id", DAO: "posts"},
		},
	})
	require.NoError(t, err)

	b.posts, err = dao.New("posts", b.postsDrv, dao.Options{
		Registry: b.reg,
		Config:   cfg,
		Associations: []dao.Association{
			{Field: "author", Type: dao.OneToOne, Reference: dao.Inner, RefFrom: "authorId", RefTo: "id", DAO: "users"},
			{Field: "tags", Type: dao.OneToMany, Reference: dao.Inner, RefFrom: "tagIds", RefTo: "id", DAO: "tags"},
		},
	})
	require.NoError(t, err)

	b.tags, err = dao.New("tags", b.tagsDrv, dao.Options{Registry: b.reg, Config: cfg})
	require.NoError(t, err)

	b.usersDrv.seed(t,
		record.Record{"id": "u1", "name": "Ada"},
		record.Record{"id": "u2", "name": "Alan"},
		record.Record{"id": "u3", "name": "Grace"},
	)
	b.postsDrv.seed(t,
		record.Record{"id": "p1", "title": "First", "authorId": "u1", "tagIds": []any{"t1", "t2"}},
		record.Record{"id": "p2", "title": "Second", "authorId": "u1", "tagIds": []any{"t2"}},
		record.Record{"id": "p3", "title": "Third", "authorId": "u2", "tagIds": []any{}},
		record.Record{"id": "p4", "title": "Orphan", "authorId": "u9"},
	)
	b.tagsDrv.seed(t,
		record.Record{"id": "t1", "label": "go"},
		record.Record{"id": "t2", "label": "db"},
	)
	return b
}

// trace records middleware hook invocations in order.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	tr.calls = append(tr.calls, s)
	tr.mu.Unlock()
}

func (tr *trace) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

// traced returns a middleware logging "before:<name>" and "after:<name>".
func traced(tr *trace, name string) dao.Middleware {
	return dao.Middleware{
		Name: name,
		Before: func(_ context.Context, _ dao.Args, _ *dao.MiddlewareContext) (dao.Before, error) {
			tr.add("before:" + name)
			return dao.Before{}, nil
		},
		After: func(_ context.Context, _ dao.Result, _ *dao.MiddlewareContext) (dao.After, error) {
			tr.add("after:" + name)
			return dao.After{}, nil
		},
	}
}
