package dao_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/dao"
)

func TestRegistry_DAOsSortedByName(t *testing.T) {
	b := newBlog(t, dao.DefaultConfig())

	var names []string
	for _, d := range b.reg.DAOs() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"posts", "tags", "users"}, names)
}

func TestRegistry_UnknownDAO(t *testing.T) {
	_, err := dao.NewRegistry().DAO("nope")
	assert.ErrorIs(t, err, dao.ErrUnknownDAO)
}

func TestRegistry_DependentsOf(t *testing.T) {
	b := newBlog(t, dao.DefaultConfig())

	deps := b.reg.DependentsOf("users")
	require.Len(t, deps, 1)
	assert.Same(t, b.posts, deps[0].DAO)
	assert.Equal(t, "author", deps[0].Association.Field)

	assert.True(t, b.reg.HasDependents("tags"))
	// users.posts is FOREIGN: posts has no INNER dependents
	assert.False(t, b.reg.HasDependents("posts"))
}

func TestRegistry_IDGenerators(t *testing.T) {
	reg := dao.NewRegistry()
	require.NotNil(t, reg.IDGenerator("ID"))
	assert.Nil(t, reg.IDGenerator("Int"))

	reg.RegisterIDGenerator("Int", func() any { return 1 })
	assert.Equal(t, 1, reg.IDGenerator("Int")())
}
