package middleware_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/memory"
	"github.com/jacentio/lattice/record"
)

// counting wraps the memory driver and counts Find calls.
type counting struct {
	*memory.Driver
	finds atomic.Int32
}

func (c *counting) Find(ctx context.Context, p dao.FindParams) ([]record.Record, error) {
	c.finds.Add(1)
	return c.Driver.Find(ctx, p)
}

func newDAO(t *testing.T, name string, opts dao.Options, seed ...record.Record) (*dao.DAO, *counting) {
	t.Helper()
	drv := &counting{Driver: memory.New(memory.Options{})}
	for _, r := range seed {
		_, err := drv.Driver.InsertOne(context.Background(), dao.InsertParams{Record: r})
		require.NoError(t, err)
	}
	d, err := dao.New(name, drv, opts)
	require.NoError(t, err)
	return d, drv
}
