package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/lattice/dao"
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// Driver is a dao.Driver over one DynamoDB table. It is safe for
// concurrent use.
type Driver struct {
	client  API
	cfg     Config
	keyAttr string
}

var _ dao.Driver = (*Driver)(nil)

// New creates a Driver over client.
func New(client API, cfg Config) (*Driver, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}
	cfg.validate()
	if cfg.Generate == nil {
		cfg.Generate = func() any { return uuid.NewString() }
	}
	return &Driver{
		client:  client,
		cfg:     cfg,
		keyAttr: cfg.Schema.StoragePath(cfg.KeyField),
	}, nil
}

// Config returns the driver configuration with defaults applied.
func (d *Driver) Config() Config { return d.cfg }

// matching returns the records matching f in model shape, sorted by sorts.
// Records carry at least the paths selected by p, the key and the sort
// fields; a nil p loads whole items.
func (d *Driver) matching(ctx context.Context, f filter.Filter, sorts []filter.Sort, p projection.Projection) ([]record.Record, error) {
	extra := []string{d.cfg.KeyField}
	for _, s := range sorts {
		extra = append(extra, s.Field)
	}

	var (
		items []map[string]types.AttributeValue
		err   error
	)
	if keys, ok := filter.Keys(f, d.cfg.KeyField); ok {
		c := newCompiler(d.cfg.Schema)
		proj := c.projection(p, extra...)
		items, err = d.getKeys(ctx, keys, proj, c.e.attrNames())
	} else {
		c := newCompiler(d.cfg.Schema)
		cond, cerr := c.filter(f)
		if cerr != nil {
			d.cfg.Logger.Debug("scanning without filter expression",
				"table", d.cfg.Table,
				"reason", cerr,
			)
			c, cond = newCompiler(d.cfg.Schema), ""
		}
		proj := ""
		if cerr == nil {
			proj = c.projection(p, append(extra, c.paths...)...)
		}
		c.e.prune(cond, proj)
		items, err = d.scan(ctx, cond, proj, c.e)
	}
	if err != nil {
		return nil, err
	}

	recs, err := d.fromItems(items)
	if err != nil {
		return nil, err
	}
	recs, err = filter.MatchAll(recs, f)
	if err != nil {
		return nil, err
	}
	filter.SortRecords(recs, sorts)
	return recs, nil
}

// scan reads every item the condition selects.
func (d *Driver) scan(ctx context.Context, cond, proj string, e *expr) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.ScanInput{
		TableName:                 aws.String(d.cfg.Table),
		ConsistentRead:            aws.Bool(d.cfg.ConsistentRead),
		ExpressionAttributeNames:  e.attrNames(),
		ExpressionAttributeValues: e.attrValues(),
	}
	if cond != "" {
		in.FilterExpression = aws.String(cond)
	}
	if proj != "" {
		in.ProjectionExpression = aws.String(proj)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(d.client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.cfg.Table, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func project(recs []record.Record, p projection.Projection) []record.Record {
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = projection.Apply(r, p)
	}
	return out
}

func (d *Driver) Find(ctx context.Context, p dao.FindParams) ([]record.Record, error) {
	recs, err := d.matching(ctx, p.Filter, p.Sorts, p.Projection)
	if err != nil {
		return nil, err
	}
	lo, hi := filter.Window(len(recs), p.Start, p.Limit)
	return project(recs[lo:hi], p.Projection), nil
}

func (d *Driver) FindOne(ctx context.Context, p dao.FindOneParams) (record.Record, error) {
	recs, err := d.Find(ctx, dao.FindParams{Filter: p.Filter, Projection: p.Projection, Limit: dao.Limit(1)})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (d *Driver) FindPage(ctx context.Context, p dao.FindParams) (dao.Page, error) {
	recs, err := d.matching(ctx, p.Filter, p.Sorts, p.Projection)
	if err != nil {
		return dao.Page{}, err
	}
	lo, hi := filter.Window(len(recs), p.Start, p.Limit)
	return dao.Page{TotalCount: len(recs), Records: project(recs[lo:hi], p.Projection)}, nil
}

func (d *Driver) Exists(ctx context.Context, p dao.FilterParams) (bool, error) {
	n, err := d.Count(ctx, p)
	return n > 0, err
}

func (d *Driver) Count(ctx context.Context, p dao.FilterParams) (int, error) {
	recs, err := d.matching(ctx, p.Filter, nil, projection.Of(d.cfg.KeyField))
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (d *Driver) InsertOne(ctx context.Context, p dao.InsertParams) (record.Record, error) {
	rec := record.Clone(p.Record)
	if rec == nil {
		rec = record.Record{}
	}
	key, ok := rec[d.cfg.KeyField]
	if !ok || key == nil {
		key = d.cfg.Generate()
		rec[d.cfg.KeyField] = key
	}
	item, err := d.toItem(rec)
	if err != nil {
		return nil, err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.cfg.Table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": d.keyAttr},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyExists, key)
		}
		return nil, fmt.Errorf("put %s: %w", d.cfg.Table, err)
	}
	return record.Clone(rec), nil
}

func (d *Driver) UpdateOne(ctx context.Context, p dao.UpdateParams) error {
	return d.update(ctx, p, dao.Limit(1))
}

func (d *Driver) UpdateMany(ctx context.Context, p dao.UpdateParams) error {
	return d.update(ctx, p, nil)
}

func (d *Driver) update(ctx context.Context, p dao.UpdateParams, limit *int) error {
	if _, ok := p.Changes[d.cfg.KeyField]; ok {
		return ErrKeyChange
	}
	if len(p.Changes) == 0 {
		return nil
	}
	recs, err := d.matching(ctx, p.Filter, nil, nil)
	if err != nil {
		return err
	}
	lo, hi := filter.Window(len(recs), 0, limit)
	for _, rec := range recs[lo:hi] {
		in, err := d.updateInput(rec, p.Changes)
		if err != nil {
			return err
		}
		if in == nil {
			continue
		}
		if _, err := d.client.UpdateItem(ctx, in); err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				// Deleted since it was read.
				continue
			}
			return fmt.Errorf("update %s: %w", d.cfg.Table, err)
		}
	}
	return nil
}

// updateInput builds the UpdateItem request applying changes to rec. A
// change under a missing map, or under a list, rewrites the attribute from
// the first missing ancestor down. It returns nil when nothing changes.
func (d *Driver) updateInput(rec record.Record, changes filter.Changes) (*dynamodb.UpdateItemInput, error) {
	next := record.Clone(rec)
	filter.Apply(next, changes)
	stored := d.cfg.Schema.ToStorage(next)

	targets := make([]string, 0, len(changes))
	for _, path := range changes.Paths() {
		targets = append(targets, anchor(rec, path))
	}
	sort.Strings(targets)

	e := newExpr()
	var sets, removes, seen []string
	for _, target := range targets {
		if covered(seen, target) {
			continue
		}
		seen = append(seen, target)
		storage := d.cfg.Schema.StoragePath(target)
		attr := e.path(storage)
		if v, ok := record.Get(stored, storage); ok {
			val, err := e.value(v)
			if err != nil {
				return nil, err
			}
			sets = append(sets, attr+" = "+val)
			continue
		}
		if record.Has(rec, target) {
			removes = append(removes, attr)
		}
	}
	if len(sets) == 0 && len(removes) == 0 {
		return nil, nil
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	key, err := d.key(rec[d.cfg.KeyField])
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.cfg.Table),
		Key:                       key,
		UpdateExpression:          aws.String(strings.Join(clauses, " ")),
		ConditionExpression:       aws.String("attribute_exists(" + e.name(d.keyAttr) + ")"),
		ExpressionAttributeNames:  e.attrNames(),
		ExpressionAttributeValues: e.attrValues(),
	}, nil
}

// anchor returns the longest prefix of path whose ancestors are all maps
// in rec.
func anchor(rec record.Record, path string) string {
	parts := strings.Split(path, ".")
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		v, ok := record.Get(rec, prefix)
		if !ok || !record.IsRecord(v) {
			return prefix
		}
	}
	return path
}

func (d *Driver) ReplaceOne(ctx context.Context, p dao.ReplaceParams) error {
	recs, err := d.matching(ctx, p.Filter, nil, projection.Of(d.cfg.KeyField))
	if err != nil || len(recs) == 0 {
		return err
	}
	key := recs[0][d.cfg.KeyField]
	rec := record.Clone(p.Replace)
	if rec == nil {
		rec = record.Record{}
	}
	if k, ok := rec[d.cfg.KeyField]; ok && !record.Equal(k, key) {
		return ErrKeyChange
	}
	rec[d.cfg.KeyField] = key
	item, err := d.toItem(rec)
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.cfg.Table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": d.keyAttr},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil
		}
		return fmt.Errorf("replace %s: %w", d.cfg.Table, err)
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
	recs, err := d.matching(ctx, p.Filter, nil, projection.Of(d.cfg.KeyField))
	if err != nil {
		return err
	}
	lo, hi := filter.Window(len(recs), 0, limit)
	for _, rec := range recs[lo:hi] {
		key, err := d.key(rec[d.cfg.KeyField])
		if err != nil {
			return err
		}
		_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.cfg.Table),
			Key:       key,
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", d.cfg.Table, err)
		}
	}
	return nil
}
