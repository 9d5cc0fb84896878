package dynamo

import (
	"log/slog"
	"time"

	"github.com/jacentio/lattice/schema"
)

// Config holds configuration for the Driver.
type Config struct {
	// Table is the DynamoDB table name. Required.
	Table string

	// KeyField is the model name of the partition key.
	// Default: "id"
	KeyField string

	// Schema supplies storage aliases and array fields.
	Schema schema.Schema

	// Generate assigns keys to records inserted without one.
	// Default: uuid.NewString
	Generate func() any

	// ConsistentRead requests strongly consistent reads.
	ConsistentRead bool

	// Concurrency bounds the BatchGetItem calls in flight for one lookup.
	// Default: 4
	// Max: 32
	Concurrency int

	// MaxBatchRetries bounds the retries of unprocessed BatchGetItem keys.
	// Default: 5
	// Max: 10
	MaxBatchRetries int

	// RetryBackoff is the delay before the first retry; it doubles per
	// attempt.
	// Default: 50ms
	RetryBackoff time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns defaults for table.
func DefaultConfig(table string) Config {
	c := Config{Table: table}
	c.validate()
	return c
}

// validate fills defaults and clamps values to acceptable bounds.
func (c *Config) validate() {
	if c.KeyField == "" {
		c.KeyField = "id"
	}
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.Concurrency > 32 {
		c.Concurrency = 32
	}
	if c.MaxBatchRetries < 1 {
		c.MaxBatchRetries = 5
	}
	if c.MaxBatchRetries > 10 {
		c.MaxBatchRetries = 10
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 50 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
