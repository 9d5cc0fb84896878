// Package stream provides DynamoDB Streams handlers that keep references
// between DAOs consistent after deletes.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// ErrUnknownTable is returned for events from a table no DAO is mapped to.
var ErrUnknownTable = errors.New("lattice: stream: no DAO for table")

// Action is what the sweeper does with records that still reference a
// removed one.
type Action int

const (
	// Report logs dangling references and leaves them in place.
	Report Action = iota
	// Unset removes scalar one-to-one references. Other associations are
	// reported.
	Unset
)

func (a Action) String() string {
	switch a {
	case Report:
		return "report"
	case Unset:
		return "unset"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Config configures a Sweeper.
type Config struct {
	// Tables maps DynamoDB table names to DAO names. Tables missing from
	// the map are looked up as DAO names.
	Tables map[string]string

	// Action applies to every dangling reference found.
	// Default: Report
	Action Action

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Sweeper processes REMOVE stream events and finds the records of other
// DAOs whose INNER associations still point at the removed record.
type Sweeper struct {
	registry *dao.Registry
	cfg      Config
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper over the DAOs of reg.
func NewSweeper(reg *dao.Registry, cfg Config) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{registry: reg, cfg: cfg, logger: logger}
}

// HandleRemove processes a batch of stream records. It is designed to be
// used as an AWS Lambda handler; a returned error makes Lambda retry the
// batch, and sweeps are idempotent.
func (s *Sweeper) HandleRemove(ctx context.Context, event events.DynamoDBEvent) error {
	for _, rec := range event.Records {
		if err := s.processRecord(ctx, rec); err != nil {
			s.logger.Error("failed to sweep record",
				"eventID", rec.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (s *Sweeper) processRecord(ctx context.Context, rec events.DynamoDBEventRecord) error {
	if rec.EventName != "REMOVE" {
		return nil
	}

	target, err := s.target(rec.EventSourceArn)
	if err != nil {
		return err
	}
	deps := s.registry.DependentsOf(target.Name())
	if len(deps) == 0 {
		return nil
	}

	// The old image carries every referenced path; keys alone only carry
	// the primary key.
	img := rec.Change.OldImage
	if len(img) == 0 {
		img = rec.Change.Keys
	}
	removed := target.Schema().FromStorage(Image(img))

	var errs []error
	swept := 0
	for _, dep := range deps {
		n, err := s.sweep(ctx, dep, removed)
		if err != nil {
			s.logger.Warn("failed to sweep dependent",
				"dao", dep.DAO.Name(),
				"field", dep.Association.Field,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("sweep %s.%s: %w", dep.DAO.Name(), dep.Association.Field, err))
			continue
		}
		swept += n
	}

	s.logger.Info("sweep completed",
		"dao", target.Name(),
		"dependents", len(deps),
		"records", swept,
		"action", s.cfg.Action.String(),
	)
	return errors.Join(errs...)
}

// target resolves the DAO stored in the table of a stream ARN.
func (s *Sweeper) target(arn string) (*dao.DAO, error) {
	table := TableName(arn)
	if table == "" {
		return nil, fmt.Errorf("%w: cannot parse %q", ErrUnknownTable, arn)
	}
	name := table
	if mapped, ok := s.cfg.Tables[table]; ok {
		name = mapped
	}
	d, err := s.registry.DAO(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownTable, table, err)
	}
	return d, nil
}

// sweep handles the records of one dependent association that reference
// removed. It returns how many were found.
func (s *Sweeper) sweep(ctx context.Context, dep dao.Dependent, removed record.Record) (int, error) {
	a := dep.Association
	key, ok := record.Get(removed, a.RefTo)
	if !ok || key == nil {
		s.logger.Debug("removed record has no referenced key",
			"dao", dep.DAO.Name(),
			"refTo", a.RefTo,
		)
		return 0, nil
	}

	f := filter.Eq(a.RefFrom, key)
	found, err := dep.DAO.FindAll(ctx, dao.FindParams{
		Filter:     f,
		Projection: projection.Of(dep.DAO.IDField()),
	})
	if err != nil {
		return 0, fmt.Errorf("find references: %w", err)
	}
	if len(found) == 0 {
		return 0, nil
	}

	ids := make([]any, len(found))
	for i, r := range found {
		ids[i] = r[dep.DAO.IDField()]
	}

	if s.cfg.Action == Unset {
		if unsettable(dep) {
			err := dep.DAO.UpdateAll(ctx, dao.UpdateParams{
				Filter:  f,
				Changes: filter.Changes{a.RefFrom: nil},
			})
			if err != nil {
				return 0, fmt.Errorf("unset references: %w", err)
			}
			s.logger.Info("unset dangling references",
				"dao", dep.DAO.Name(),
				"field", a.RefFrom,
				"count", len(found),
			)
			return len(found), nil
		}
		s.logger.Warn("cannot unset reference, reporting instead",
			"dao", dep.DAO.Name(),
			"field", a.RefFrom,
			"type", a.Type.String(),
		)
	}

	s.logger.Warn("dangling references",
		"dao", dep.DAO.Name(),
		"field", a.RefFrom,
		"key", key,
		"ids", ids,
	)
	return len(found), nil
}

// unsettable reports whether the reference of dep is a single scalar that
// can be removed without touching other references.
func unsettable(dep dao.Dependent) bool {
	if dep.Association.Type != dao.OneToOne {
		return false
	}
	f, ok := dep.DAO.Schema().Lookup(dep.Association.RefFrom)
	return !ok || !f.Array
}

// TableName extracts the table name from a DynamoDB stream ARN such as
// arn:aws:dynamodb:us-east-1:123456789012:table/users/stream/2024-01-01T00:00:00.000.
func TableName(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}
