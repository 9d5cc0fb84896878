package dao

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Dependent is an INNER association of one DAO that targets another.
type Dependent struct {
	DAO         *DAO
	Association Association
}

// Registry is the shared context of a set of DAOs: late-bound lookup by
// name, ID generators per scalar and middlewares applied to every DAO.
type Registry struct {
	mu          sync.RWMutex
	daos        map[string]*DAO
	generators  map[string]func() any
	middlewares []Middleware
}

// NewRegistry creates a Registry with a UUID generator for the "ID" scalar.
func NewRegistry() *Registry {
	return &Registry{
		daos: make(map[string]*DAO),
		generators: map[string]func() any{
			"ID": func() any { return uuid.NewString() },
		},
	}
}

// Register adds a DAO under its name. New calls it.
func (r *Registry) Register(d *DAO) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.daos[d.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDAO, d.name)
	}
	r.daos[d.name] = d
	return nil
}

// DAO returns the DAO registered under name.
func (r *Registry) DAO(name string) (*DAO, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.daos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDAO, name)
	}
	return d, nil
}

// DAOs returns every registered DAO sorted by name.
func (r *Registry) DAOs() []*DAO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DAO, 0, len(r.daos))
	for _, d := range r.daos {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// RegisterIDGenerator sets the generator for a scalar.
func (r *Registry) RegisterIDGenerator(scalar string, gen func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[scalar] = gen
}

// IDGenerator returns the generator for a scalar, or nil.
func (r *Registry) IDGenerator(scalar string) func() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generators[scalar]
}

// Use appends middlewares run by every DAO created afterwards, after the
// DAO's own middlewares.
func (r *Registry) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw...)
}

func (r *Registry) shared() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Middleware(nil), r.middlewares...)
}

// DependentsOf returns the INNER associations targeting the named DAO,
// ordered by owning DAO name.
func (r *Registry) DependentsOf(name string) []Dependent {
	var out []Dependent
	for _, d := range r.DAOs() {
		for _, a := range d.associations {
			if a.Reference == Inner && a.DAO == name {
				out = append(out, Dependent{DAO: d, Association: a})
			}
		}
	}
	return out
}

// HasDependents reports whether any INNER association targets the named DAO.
func (r *Registry) HasDependents(name string) bool {
	return len(r.DependentsOf(name)) > 0
}
