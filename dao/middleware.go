package dao

import (
	"context"
	"log/slog"

	"github.com/jacentio/lattice/schema"
)

// Middleware intercepts DAO operations. Both hooks are optional.
//
// Befores run in registration order and afters in reverse. When a before
// halts, the driver is skipped and only the afters of the halting
// middleware and those registered before it run.
type Middleware struct {
	// Name identifies the middleware in logs.
	Name   string
	Before func(ctx context.Context, args Args, mc *MiddlewareContext) (Before, error)
	After  func(ctx context.Context, result Result, mc *MiddlewareContext) (After, error)
}

// MiddlewareContext describes the DAO and the call a middleware runs in.
type MiddlewareContext struct {
	DAO      *DAO
	Name     string
	Schema   schema.Schema
	IDField  string
	Metadata map[string]any
	Logger   *slog.Logger
	// Method is the public entry point of the call.
	Method Method
	// Locals carries state from the before hook of a middleware to its
	// after hook within one call. Key it by a value private to the
	// middleware.
	Locals map[any]any
}

// Before is the decision of a before hook. The zero value passes the input
// through unchanged.
type Before struct {
	args   Args
	result Result
}

// Proceed continues the pipeline with args in place of the input.
func Proceed(args Args) Before {
	return Before{args: args}
}

// Halt skips the driver and the remaining befores; result becomes the
// output of the operation.
func Halt(result Result) Before {
	return Before{result: result}
}

// After is the decision of an after hook. The zero value passes the result
// through unchanged.
type After struct {
	result Result
	stop   bool
}

// Continue replaces the result and runs the remaining afters.
func Continue(result Result) After {
	return After{result: result}
}

// Stop returns result immediately, skipping the remaining afters.
func Stop(result Result) After {
	return After{result: result, stop: true}
}

// runBefore runs the befores. It returns the final input and, when a
// middleware halted, its result and index. halt is -1 otherwise.
func (d *DAO) runBefore(ctx context.Context, args Args, mc *MiddlewareContext) (Args, Result, int, error) {
	op := args.Operation()
	for i, m := range d.middlewares {
		if m.Before == nil {
			continue
		}
		decision, err := m.Before(ctx, args, mc)
		if err != nil {
			return nil, nil, -1, err
		}
		switch {
		case decision.result != nil:
			if got := decision.result.Operation(); got != op {
				return nil, nil, -1, mismatch(op, got)
			}
			d.logger.Debug("middleware halted", "dao", d.name, "middleware", m.Name, "method", mc.Method, "index", i)
			return args, decision.result, i, nil
		case decision.args != nil:
			if got := decision.args.Operation(); got != op {
				return nil, nil, -1, mismatch(op, got)
			}
			args = decision.args
		}
	}
	return args, nil, -1, nil
}

// runAfter runs the afters in reverse over [0, halt], or over every
// middleware when halt is -1.
func (d *DAO) runAfter(ctx context.Context, result Result, halt int, mc *MiddlewareContext) (Result, error) {
	op := result.Operation()
	last := len(d.middlewares) - 1
	if halt >= 0 {
		last = halt
	}
	for i := last; i >= 0; i-- {
		m := d.middlewares[i]
		if m.After == nil {
			continue
		}
		decision, err := m.After(ctx, result, mc)
		if err != nil {
			return nil, err
		}
		if decision.result == nil {
			continue
		}
		if got := decision.result.Operation(); got != op {
			return nil, mismatch(op, got)
		}
		result = decision.result
		if decision.stop {
			d.logger.Debug("middleware stopped", "dao", d.name, "middleware", m.Name, "method", mc.Method, "index", i)
			break
		}
	}
	return result, nil
}

func resultAs[T Result](r Result) (T, error) {
	t, ok := r.(T)
	if !ok {
		var zero T
		return zero, mismatch(zero.Operation(), r.Operation())
	}
	return t, nil
}

func argsAs[T Args](a Args) (T, error) {
	t, ok := a.(T)
	if !ok {
		var zero T
		return zero, mismatch(zero.Operation(), a.Operation())
	}
	return t, nil
}
