package dao

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
	"github.com/jacentio/lattice/schema"
)

// IDGeneration says who assigns the ID of inserted records.
type IDGeneration string

const (
	// IDFromGenerator: the DAO injects a generated ID when the record has none.
	IDFromGenerator IDGeneration = "generator"
	// IDFromDatabase: the driver assigns the ID.
	IDFromDatabase IDGeneration = "db"
	// IDFromUser: the caller supplies the ID.
	IDFromUser IDGeneration = "user"
)

// Options configures a DAO.
type Options struct {
	// Registry is shared by DAOs that reference each other. Default: a new Registry.
	Registry *Registry
	Schema   schema.Schema

	// IDField is the ID field name. Default: "id"
	IDField string
	// IDScalar selects the registry generator. Default: the schema scalar
	// of IDField, or "ID".
	IDScalar string
	// IDGeneration defaults to IDFromGenerator.
	IDGeneration IDGeneration
	// IDGenerator overrides the registry generator.
	IDGenerator func() any

	Associations []Association
	Middlewares  []Middleware
	Config       Config
	Metadata     map[string]any

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DAO is the generic data access object of one entity type.
// It is safe for concurrent use.
type DAO struct {
	name         string
	driver       Driver
	registry     *Registry
	schema       schema.Schema
	idField      string
	idGeneration IDGeneration
	generator    func() any
	associations []Association
	resolvers    []resolver
	middlewares  []Middleware
	cfg          Config
	metadata     map[string]any
	logger       *slog.Logger
}

// New creates a DAO over drv and registers it under name.
func New(name string, drv Driver, opts Options) (*DAO, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidDAO)
	}
	if drv == nil {
		return nil, fmt.Errorf("%w: %s: nil driver", ErrInvalidDAO, name)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	cfg := opts.Config
	cfg.validate()

	d := &DAO{
		name:         name,
		driver:       drv,
		registry:     reg,
		schema:       opts.Schema,
		idField:      opts.IDField,
		idGeneration: opts.IDGeneration,
		cfg:          cfg,
		metadata:     opts.Metadata,
		logger:       logger,
	}
	if d.idField == "" {
		d.idField = "id"
	}
	if d.idGeneration == "" {
		d.idGeneration = IDFromGenerator
	}

	idScalar := opts.IDScalar
	if idScalar == "" {
		if f, ok := opts.Schema.Lookup(d.idField); ok && f.Scalar != "" {
			idScalar = f.Scalar
		} else {
			idScalar = "ID"
		}
	}
	d.generator = opts.IDGenerator
	if d.generator == nil {
		d.generator = reg.IDGenerator(idScalar)
	}
	if d.idGeneration == IDFromGenerator && d.generator == nil {
		return nil, fmt.Errorf("%w: %s: scalar %s", ErrMissingIDGenerator, name, idScalar)
	}

	seen := make(map[string]bool, len(opts.Associations))
	for _, a := range opts.Associations {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if seen[a.Field] {
			return nil, fmt.Errorf("%w: %s: duplicate field %s", ErrInvalidAssociation, name, a.Field)
		}
		seen[a.Field] = true
		d.associations = append(d.associations, a)
		d.resolvers = append(d.resolvers, newResolver(name, a))
	}

	shared := reg.shared()
	d.middlewares = make([]Middleware, 0, 1+len(opts.Middlewares)+len(shared))
	d.middlewares = append(d.middlewares, d.builtin())
	d.middlewares = append(d.middlewares, opts.Middlewares...)
	d.middlewares = append(d.middlewares, shared...)

	if err := reg.Register(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Name returns the registry name of the DAO.
func (d *DAO) Name() string { return d.name }

// IDField returns the ID field name.
func (d *DAO) IDField() string { return d.idField }

// Schema returns the entity schema, possibly nil.
func (d *DAO) Schema() schema.Schema { return d.schema }

// Registry returns the registry the DAO belongs to.
func (d *DAO) Registry() *Registry { return d.registry }

// Driver returns the underlying driver.
func (d *DAO) Driver() Driver { return d.driver }

// Config returns the validated config.
func (d *DAO) Config() Config { return d.cfg }

// Associations returns a copy of the declared associations.
func (d *DAO) Associations() []Association {
	return append([]Association(nil), d.associations...)
}

// builtin elaborates read projections with join keys and injects
// generated IDs on insert. It always runs first.
func (d *DAO) builtin() Middleware {
	return Middleware{
		Name: "builtin",
		Before: func(_ context.Context, args Args, _ *MiddlewareContext) (Before, error) {
			switch a := args.(type) {
			case FindArgs:
				a.Params.Projection = d.elaborate(a.Params.Projection)
				return Proceed(a), nil
			case InsertArgs:
				if d.idGeneration != IDFromGenerator || a.Params.Record == nil {
					return Before{}, nil
				}
				if _, ok := a.Params.Record[d.idField]; ok {
					return Before{}, nil
				}
				rec := make(record.Record, len(a.Params.Record)+1)
				for k, v := range a.Params.Record {
					rec[k] = v
				}
				rec[d.idField] = d.generator()
				a.Params.Record = rec
				return Proceed(a), nil
			}
			return Before{}, nil
		},
	}
}

// elaborate adds the join keys of selected associations to p.
func (d *DAO) elaborate(p projection.Projection) projection.Projection {
	if p == nil {
		return nil
	}
	out := p.Clone()
	for _, a := range d.associations {
		if a.Reference == Inner {
			out = out.AddAssociationRef(a.Field, a.RefFrom)
		} else {
			out = out.AddAssociationRef(a.Field, a.RefTo)
		}
	}
	return out
}

func (d *DAO) middlewareContext(m Method) *MiddlewareContext {
	return &MiddlewareContext{
		DAO:      d,
		Name:     d.name,
		Schema:   d.schema,
		IDField:  d.idField,
		Metadata: d.metadata,
		Logger:   d.logger,
		Method:   m,
		Locals:   make(map[any]any),
	}
}

// resolveAssociations attaches related records to recs in place, for every
// association selected by p. The nil projection resolves nothing.
func (d *DAO) resolveAssociations(ctx context.Context, recs []record.Record, p projection.Projection) error {
	if p == nil || len(recs) == 0 {
		return nil
	}
	ctx = scoped(ctx)
	for _, r := range d.resolvers {
		sub, ok := p.Lookup(r.assoc.Field)
		if !ok {
			continue
		}
		if sub != nil {
			sub = sub.Clone()
			sub.Set(r.remoteKey)
		}
		target, err := d.registry.DAO(r.assoc.DAO)
		if err != nil {
			return err
		}
		parents := record.Objects(recs, r.parentPath)
		loaded, err := target.load(ctx, r.keys(parents), r.buildFilter, r.hasKey, sub, r.identifier)
		if err != nil {
			return err
		}
		r.attach(parents, loaded)
	}
	return nil
}
