package dao_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/memory"
)

func TestDefaultConfig(t *testing.T) {
	cfg := dao.DefaultConfig()

	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, time.Millisecond, cfg.BatchWait)
	assert.Equal(t, 256, cfg.LoaderCacheSize)
}

func TestConfig_Clamping(t *testing.T) {
	tests := []struct {
		name string
		in   dao.Config
		want dao.Config
	}{
		{"zero", dao.Config{}, dao.DefaultConfig()},
		{"negative", dao.Config{PageSize: -1, BatchWait: -time.Second, LoaderCacheSize: -4}, dao.DefaultConfig()},
		{"too large", dao.Config{PageSize: 5000, BatchWait: time.Minute, LoaderCacheSize: 8},
			dao.Config{PageSize: 1000, BatchWait: time.Second, LoaderCacheSize: 8}},
		{"in range", dao.Config{PageSize: 10, BatchWait: 5 * time.Millisecond, LoaderCacheSize: 16},
			dao.Config{PageSize: 10, BatchWait: 5 * time.Millisecond, LoaderCacheSize: 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dao.New("things", memory.New(memory.Options{}), dao.Options{Config: tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Config())
		})
	}
}

const configYAML = `
defaults:
  pageSize: 100
  batchWait: 2ms
daos:
  posts:
    batchWait: 10ms
  tags:
    pageSize: 5000
`

func TestParseConfig(t *testing.T) {
	f, err := dao.ParseConfig(strings.NewReader(configYAML))
	require.NoError(t, err)

	assert.Equal(t, dao.Config{PageSize: 100, BatchWait: 2 * time.Millisecond, LoaderCacheSize: 256}, f.For("users"))
	assert.Equal(t, dao.Config{PageSize: 100, BatchWait: 10 * time.Millisecond, LoaderCacheSize: 256}, f.For("posts"))
	assert.Equal(t, 1000, f.For("tags").PageSize)
}

func TestParseConfig_Empty(t *testing.T) {
	f, err := dao.ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, dao.DefaultConfig(), f.For("anything"))
}

func TestParseConfig_RejectsUnknownKeys(t *testing.T) {
	_, err := dao.ParseConfig(strings.NewReader("defaults:\n  pagesize: 10\n"))
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	f, err := dao.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 100, f.For("users").PageSize)

	_, err = dao.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
