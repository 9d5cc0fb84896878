// Package sqldoc implements a dao.Driver storing records as JSON documents
// in a SQL table, one table per DAO.
//
// The table holds the record key and the document in storage shape:
//
//	CREATE TABLE "<name>" (id PRIMARY KEY, doc TEXT NOT NULL)
//
// Filters, sorts and windows are evaluated by sqlite's JSON functions when
// they translate exactly. Filters that do not (list literals, paths through
// schema arrays, time comparisons) are evaluated in Go over a table scan.
// The package is written against modernc.org/sqlite; import it for its
// side effect and open the database with the "sqlite" driver name.
package sqldoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
	"github.com/jacentio/lattice/schema"
)

var (
	// ErrAlreadyExists is returned when inserting a key that is already stored.
	ErrAlreadyExists = errors.New("lattice: sqldoc: record already exists")

	// ErrKeyChange is returned when an update or replace would change a key.
	ErrKeyChange = errors.New("lattice: sqldoc: key cannot change")

	// ErrInvalidTable is returned by New for a table name that is not a
	// plain identifier.
	ErrInvalidTable = errors.New("lattice: sqldoc: invalid table name")
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures a Driver.
type Options struct {
	// Table is the table name. Required.
	Table string
	// KeyField is the model name of the key field. Default: "id"
	KeyField string
	// Schema supplies storage aliases and array fields.
	Schema schema.Schema
	// Generate assigns keys to records inserted without one.
	// Default: uuid.NewString.
	Generate func() any
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Driver is a dao.Driver over a *sql.DB. It is safe for concurrent use.
type Driver struct {
	db       *sql.DB
	opts     Options
	compiler compiler
	logger   *slog.Logger
}

var _ dao.Driver = (*Driver)(nil)

// New creates a Driver over db. Call EnsureTable before first use unless
// the table already exists.
func New(db *sql.DB, opts Options) (*Driver, error) {
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, opts.Table)
	}
	if opts.KeyField == "" {
		opts.KeyField = "id"
	}
	if opts.Generate == nil {
		opts.Generate = func() any { return uuid.NewString() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		db:       db,
		opts:     opts,
		compiler: compiler{schema: opts.Schema},
		logger:   logger.With("table", opts.Table),
	}, nil
}

// EnsureTable creates the table if it does not exist.
func (d *Driver) EnsureTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (id PRIMARY KEY, doc TEXT NOT NULL)`, d.opts.Table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", d.opts.Table, err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// stored is a matched row: its key and the decoded record in model shape.
type stored struct {
	key any
	rec record.Record
}

// query returns the rows matching f in sort order, windowed by start and
// limit. It compiles to SQL when possible and scans otherwise.
func (d *Driver) query(ctx context.Context, q querier, f filter.Filter, sorts []filter.Sort, start int, limit *int) ([]stored, error) {
	cond, err := d.compiler.filter(f)
	if err != nil {
		return d.scan(ctx, q, f, sorts, start, limit)
	}
	order, err := d.compiler.orderBy(sorts)
	if err != nil {
		return d.scan(ctx, q, f, sorts, start, limit)
	}
	args := append(append([]any(nil), cond.args...), order.args...)
	stmt := fmt.Sprintf(`SELECT id, doc FROM %q WHERE %s ORDER BY %s`, d.opts.Table, cond.sql, order.sql)
	switch {
	case limit != nil && *limit >= 0:
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, *limit, max(start, 0))
	case start > 0:
		stmt += " LIMIT -1 OFFSET ?"
		args = append(args, start)
	}
	return d.rows(ctx, q, stmt, args...)
}

// scan evaluates f, sorts and the window in Go over every row.
func (d *Driver) scan(ctx context.Context, q querier, f filter.Filter, sorts []filter.Sort, start int, limit *int) ([]stored, error) {
	d.logger.Debug("filter not translatable, scanning table")
	all, err := d.rows(ctx, q, fmt.Sprintf(`SELECT id, doc FROM %q ORDER BY rowid`, d.opts.Table))
	if err != nil {
		return nil, err
	}
	keys := make(map[uintptr]any, len(all))
	recs := make([]record.Record, len(all))
	for i, s := range all {
		recs[i] = s.rec
		keys[reflect.ValueOf(s.rec).Pointer()] = s.key
	}
	matched, err := filter.MatchAll(recs, f)
	if err != nil {
		return nil, err
	}
	filter.SortRecords(matched, sorts)
	lo, hi := filter.Window(len(matched), start, limit)
	out := make([]stored, 0, hi-lo)
	for _, rec := range matched[lo:hi] {
		out = append(out, stored{key: keys[reflect.ValueOf(rec).Pointer()], rec: rec})
	}
	return out, nil
}

func (d *Driver) rows(ctx context.Context, q querier, stmt string, args ...any) ([]stored, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", d.opts.Table, err)
	}
	defer rows.Close()

	var out []stored
	for rows.Next() {
		var (
			key any
			doc string
		)
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.opts.Table, err)
		}
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, stored{key: key, rec: d.opts.Schema.FromStorage(rec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", d.opts.Table, err)
	}
	return out, nil
}

func (d *Driver) Find(ctx context.Context, p dao.FindParams) ([]record.Record, error) {
	found, err := d.query(ctx, d.db, p.Filter, p.Sorts, p.Start, p.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(found))
	for _, s := range found {
		out = append(out, projection.Apply(s.rec, p.Projection))
	}
	return out, nil
}

func (d *Driver) FindOne(ctx context.Context, p dao.FindOneParams) (record.Record, error) {
	recs, err := d.Find(ctx, dao.FindParams{Filter: p.Filter, Projection: p.Projection, Limit: dao.Limit(1)})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (d *Driver) FindPage(ctx context.Context, p dao.FindParams) (dao.Page, error) {
	total, err := d.Count(ctx, dao.FilterParams{Filter: p.Filter})
	if err != nil {
		return dao.Page{}, err
	}
	recs, err := d.Find(ctx, p)
	if err != nil {
		return dao.Page{}, err
	}
	return dao.Page{TotalCount: total, Records: recs}, nil
}

func (d *Driver) Exists(ctx context.Context, p dao.FilterParams) (bool, error) {
	found, err := d.query(ctx, d.db, p.Filter, nil, 0, dao.Limit(1))
	return len(found) > 0, err
}

func (d *Driver) Count(ctx context.Context, p dao.FilterParams) (int, error) {
	cond, err := d.compiler.filter(p.Filter)
	if err != nil {
		found, err := d.scan(ctx, d.db, p.Filter, nil, 0, nil)
		return len(found), err
	}
	var n int
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE %s`, d.opts.Table, cond.sql)
	if err := d.db.QueryRowContext(ctx, stmt, cond.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", d.opts.Table, err)
	}
	return n, nil
}

func (d *Driver) InsertOne(ctx context.Context, p dao.InsertParams) (record.Record, error) {
	rec := record.Clone(p.Record)
	if rec == nil {
		rec = record.Record{}
	}
	key, ok := rec[d.opts.KeyField]
	if !ok || key == nil {
		key = d.opts.Generate()
		rec[d.opts.KeyField] = key
	}
	doc, err := encode(d.opts.Schema.ToStorage(rec))
	if err != nil {
		return nil, err
	}

	err = d.tx(ctx, func(tx *sql.Tx) error {
		var n int
		stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE id = ?`, d.opts.Table)
		if err := tx.QueryRowContext(ctx, stmt, key).Scan(&n); err != nil {
			return fmt.Errorf("insert %s: %w", d.opts.Table, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %v", ErrAlreadyExists, key)
		}
		stmt = fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)`, d.opts.Table)
		if _, err := tx.ExecContext(ctx, stmt, key, doc); err != nil {
			return fmt.Errorf("insert %s: %w", d.opts.Table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *Driver) UpdateOne(ctx context.Context, p dao.UpdateParams) error {
	return d.update(ctx, p, dao.Limit(1))
}

func (d *Driver) UpdateMany(ctx context.Context, p dao.UpdateParams) error {
	return d.update(ctx, p, nil)
}

func (d *Driver) update(ctx context.Context, p dao.UpdateParams, limit *int) error {
	if _, ok := p.Changes[d.opts.KeyField]; ok {
		return ErrKeyChange
	}
	return d.tx(ctx, func(tx *sql.Tx) error {
		found, err := d.query(ctx, tx, p.Filter, nil, 0, limit)
		if err != nil {
			return err
		}
		for _, s := range found {
			filter.Apply(s.rec, p.Changes)
			if err := d.write(ctx, tx, s.key, s.rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) ReplaceOne(ctx context.Context, p dao.ReplaceParams) error {
	return d.tx(ctx, func(tx *sql.Tx) error {
		found, err := d.query(ctx, tx, p.Filter, nil, 0, dao.Limit(1))
		if err != nil || len(found) == 0 {
			return err
		}
		key := found[0].rec[d.opts.KeyField]
		rec := record.Clone(p.Replace)
		if rec == nil {
			rec = record.Record{}
		}
		if k, ok := rec[d.opts.KeyField]; ok && !record.Equal(k, key) {
			return ErrKeyChange
		}
		rec[d.opts.KeyField] = key
		return d.write(ctx, tx, found[0].key, rec)
	})
}

func (d *Driver) write(ctx context.Context, q querier, key any, rec record.Record) error {
	doc, err := encode(d.opts.Schema.ToStorage(rec))
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`UPDATE %q SET doc = ? WHERE id = ?`, d.opts.Table)
	if _, err := q.ExecContext(ctx, stmt, doc, key); err != nil {
		return fmt.Errorf("update %s: %w", d.opts.Table, err)
	}
	return nil
}

func (d *Driver) DeleteOne(ctx context.Context, p dao.DeleteParams) error {
	return d.delete(ctx, p, dao.Limit(1))
}

func (d *Driver) DeleteMany(ctx context.Context, p dao.DeleteParams) error {
	return d.delete(ctx, p, nil)
}

func (d *Driver) delete(ctx context.Context, p dao.DeleteParams, limit *int) error {
	return d.tx(ctx, func(tx *sql.Tx) error {
		found, err := d.query(ctx, tx, p.Filter, nil, 0, limit)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, d.opts.Table)
		for _, s := range found {
			if _, err := tx.ExecContext(ctx, stmt, s.key); err != nil {
				return fmt.Errorf("delete %s: %w", d.opts.Table, err)
			}
		}
		return nil
	})
}

func (d *Driver) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", d.opts.Table, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", d.opts.Table, err)
	}
	return nil
}
