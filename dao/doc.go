// Package dao provides a generic data access object runtime over pluggable drivers.
//
// A [DAO] wraps a [Driver] for one entity type and adds the behavior every
// backend needs: a before/after middleware pipeline, association resolution
// with batched loading, projection elaboration and ID generation.
//
// # Key Features
//
//   - Ordered middlewares that may rewrite inputs and outputs or short-circuit
//   - INNER and FOREIGN associations, one-to-one and one-to-many
//   - Batched, per-projection loaders that coalesce concurrent lookups
//     within a request scope ([WithLoaders])
//   - Join keys added to projections automatically
//   - ID generation per scalar through the [Registry]
//   - Reference integrity reports with [DAO.CheckReferences]
//
// # Drivers
//
// A driver implements the [Driver] interface. It receives parameters that
// already went through the middlewares and returns records in model shape:
//
//	type Driver interface {
//	    Find(ctx context.Context, p FindParams) ([]record.Record, error)
//	    FindOne(ctx context.Context, p FindOneParams) (record.Record, error)
//	    ...
//	}
//
// # Registry
//
// DAOs reach each other by name through a [Registry], so associations can be
// declared before their target exists:
//
//	reg := dao.NewRegistry()
//	users, err := dao.New("users", usersDriver, dao.Options{Registry: reg})
//	posts, err := dao.New("posts", postsDriver, dao.Options{
//	    Registry: reg,
//	    Associations: []dao.Association{{
//	        Field: "author", Type: dao.OneToOne, Reference: dao.Inner,
//	        RefFrom: "authorId", RefTo: "id", DAO: "users",
//	    }},
//	})
//
// # Configuration
//
// Use [DefaultConfig] for typical page sizes. [ParseConfig] and
// [LoadConfigFile] read per-DAO overrides from YAML.
//
// # Errors
//
// The package defines configuration and integrity errors:
//
//   - [ErrMissingIDGenerator] - no generator for the ID scalar
//   - [ErrInvalidAssociation] - an association is incomplete or duplicated
//   - [ErrDuplicateDAO] - a name is registered twice
//   - [ErrUnknownDAO] - a lookup names no registered DAO
//   - [ErrOperationMismatch] - a middleware changed the operation
//   - [ErrReferenceViolation] - matched by [*ReferenceError]
package dao
