package dao

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingIDGenerator is returned by New when IDs are generated but no generator resolves.
	ErrMissingIDGenerator = errors.New("lattice: id generator missing")

	// ErrInvalidAssociation is returned by New for an incomplete or duplicated association.
	ErrInvalidAssociation = errors.New("lattice: invalid association")

	// ErrDuplicateDAO is returned when registering a name that is already taken.
	ErrDuplicateDAO = errors.New("lattice: dao already registered")

	// ErrUnknownDAO is returned when looking up a name that is not registered.
	ErrUnknownDAO = errors.New("lattice: unknown dao")

	// ErrOperationMismatch is returned when a middleware answers with another operation.
	ErrOperationMismatch = errors.New("lattice: middleware changed the operation")

	// ErrReferenceViolation is matched by *ReferenceError.
	ErrReferenceViolation = errors.New("lattice: reference violation")

	// ErrInvalidDAO is returned by New for an unusable name or driver.
	ErrInvalidDAO = errors.New("lattice: invalid dao")
)

// ReferenceError reports INNER references that point at missing records.
type ReferenceError struct {
	DAO        string
	Violations []ReferenceViolation
}

func (e *ReferenceError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, fmt.Sprintf("%s%v", v.Association.Field, v.FailedReferences))
	}
	return fmt.Sprintf("lattice: %s: unresolved references: %s", e.DAO, strings.Join(fields, ", "))
}

// Is matches ErrReferenceViolation.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReferenceViolation
}

func mismatch(want Operation, got Operation) error {
	return fmt.Errorf("%w: expecting %q, received %q", ErrOperationMismatch, want, got)
}
