package dynamo

import "errors"

var (
	// ErrAlreadyExists is returned when inserting a key that is already stored.
	ErrAlreadyExists = errors.New("lattice: dynamo: record already exists")

	// ErrKeyChange is returned when an update or replace would change a key.
	ErrKeyChange = errors.New("lattice: dynamo: key cannot change")

	// ErrInvalidConfig is returned by New when the table is not set.
	ErrInvalidConfig = errors.New("lattice: dynamo: invalid config")

	// ErrUnprocessedKeys is returned when BatchGetItem keeps returning
	// unprocessed keys after every retry.
	ErrUnprocessedKeys = errors.New("lattice: dynamo: unprocessed keys")
)
