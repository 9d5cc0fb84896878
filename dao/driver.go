package dao

import (
	"context"

	"github.com/jacentio/lattice/record"
)

// Driver is the storage backend of a DAO. Parameters arrive after the
// middlewares ran, with projections already elaborated. Drivers return
// records in model shape; field aliasing and type adaptation are theirs.
type Driver interface {
	Find(ctx context.Context, p FindParams) ([]record.Record, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, p FindOneParams) (record.Record, error)
	FindPage(ctx context.Context, p FindParams) (Page, error)
	Exists(ctx context.Context, p FilterParams) (bool, error)
	Count(ctx context.Context, p FilterParams) (int, error)
	// InsertOne returns the record as stored, including generated fields.
	InsertOne(ctx context.Context, p InsertParams) (record.Record, error)
	UpdateOne(ctx context.Context, p UpdateParams) error
	UpdateMany(ctx context.Context, p UpdateParams) error
	ReplaceOne(ctx context.Context, p ReplaceParams) error
	DeleteOne(ctx context.Context, p DeleteParams) error
	DeleteMany(ctx context.Context, p DeleteParams) error
}
