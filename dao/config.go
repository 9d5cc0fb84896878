package dao

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds tuning for a DAO.
type Config struct {
	// PageSize bounds how many keys a loader batches into one query.
	// Default: 50
	PageSize int `yaml:"pageSize"`

	// BatchWait is how long a loader collects keys before querying.
	// Lookups issued concurrently within the window share one query.
	// Default: 1ms
	BatchWait time.Duration `yaml:"batchWait"`

	// LoaderCacheSize bounds how many distinct (key, projection) loaders
	// a loader scope keeps for this DAO. The least recently used loader is
	// dropped first.
	// Default: 256
	LoaderCacheSize int `yaml:"loaderCacheSize"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:        50,
		BatchWait:       time.Millisecond,
		LoaderCacheSize: 256,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.PageSize < 1 {
		c.PageSize = 50
	}
	if c.PageSize > 1000 {
		c.PageSize = 1000
	}
	if c.BatchWait <= 0 {
		c.BatchWait = time.Millisecond
	}
	if c.BatchWait > time.Second {
		c.BatchWait = time.Second
	}
	if c.LoaderCacheSize < 1 {
		c.LoaderCacheSize = 256
	}
}

// ConfigFile holds DAO configs read from YAML:
//
//	defaults:
//	  pageSize: 100
//	daos:
//	  posts:
//	    batchWait: 5ms
type ConfigFile struct {
	Defaults Config            `yaml:"defaults"`
	DAOs     map[string]Config `yaml:"daos"`
}

// For returns the config for a DAO: its own entry over the defaults.
func (f ConfigFile) For(name string) Config {
	c := f.Defaults
	if o, ok := f.DAOs[name]; ok {
		if o.PageSize != 0 {
			c.PageSize = o.PageSize
		}
		if o.BatchWait != 0 {
			c.BatchWait = o.BatchWait
		}
		if o.LoaderCacheSize != 0 {
			c.LoaderCacheSize = o.LoaderCacheSize
		}
	}
	c.validate()
	return c
}

// ParseConfig decodes a ConfigFile from r. Unknown keys are rejected.
func ParseConfig(r io.Reader) (ConfigFile, error) {
	var f ConfigFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return ConfigFile{}, fmt.Errorf("decode dao config: %w", err)
	}
	return f, nil
}

// LoadConfigFile reads a ConfigFile from path.
func LoadConfigFile(path string) (ConfigFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return ConfigFile{}, fmt.Errorf("open dao config: %w", err)
	}
	defer fh.Close()
	return ParseConfig(fh)
}
