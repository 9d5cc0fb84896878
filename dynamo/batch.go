package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
)

// maxBatchKeys is the BatchGetItem limit per request.
const maxBatchKeys = 100

// getKeys loads the items holding keys, in the order of keys. Missing keys
// are skipped and duplicates collapse.
func (d *Driver) getKeys(ctx context.Context, keys []any, proj string, names map[string]string) ([]map[string]types.AttributeValue, error) {
	var (
		order   []string
		request []map[string]types.AttributeValue
	)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		key, err := d.key(k)
		if err != nil {
			return nil, err
		}
		id := keyString(key[d.keyAttr])
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		request = append(request, key)
	}

	var projExpr *string
	if proj != "" {
		projExpr = aws.String(proj)
	}

	if len(request) == 1 {
		out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:                aws.String(d.cfg.Table),
			Key:                      request[0],
			ConsistentRead:           aws.Bool(d.cfg.ConsistentRead),
			ProjectionExpression:     projExpr,
			ExpressionAttributeNames: names,
		})
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", d.cfg.Table, err)
		}
		if out.Item == nil {
			return nil, nil
		}
		return []map[string]types.AttributeValue{out.Item}, nil
	}

	chunks := make([][]map[string]types.AttributeValue, 0, len(request)/maxBatchKeys+1)
	for start := 0; start < len(request); start += maxBatchKeys {
		end := min(start+maxBatchKeys, len(request))
		chunks = append(chunks, request[start:end])
	}
	results := make([][]map[string]types.AttributeValue, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			items, err := d.batchGet(gctx, types.KeysAndAttributes{
				Keys:                     chunk,
				ConsistentRead:           aws.Bool(d.cfg.ConsistentRead),
				ProjectionExpression:     projExpr,
				ExpressionAttributeNames: names,
			})
			results[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byKey := make(map[string]map[string]types.AttributeValue, len(request))
	for _, items := range results {
		for _, item := range items {
			byKey[keyString(item[d.keyAttr])] = item
		}
	}
	out := make([]map[string]types.AttributeValue, 0, len(byKey))
	for _, id := range order {
		if item, ok := byKey[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// batchGet runs one BatchGetItem request and retries its unprocessed keys
// with exponential backoff.
func (d *Driver) batchGet(ctx context.Context, req types.KeysAndAttributes) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	backoff := d.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		out, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{d.cfg.Table: req},
		})
		if err != nil {
			return nil, fmt.Errorf("batch get %s: %w", d.cfg.Table, err)
		}
		items = append(items, out.Responses[d.cfg.Table]...)

		pending, ok := out.UnprocessedKeys[d.cfg.Table]
		if !ok || len(pending.Keys) == 0 {
			return items, nil
		}
		if attempt >= d.cfg.MaxBatchRetries {
			return nil, fmt.Errorf("%w: %d keys of %s after %d retries", ErrUnprocessedKeys, len(pending.Keys), d.cfg.Table, attempt)
		}
		d.cfg.Logger.Debug("retrying unprocessed keys",
			"table", d.cfg.Table,
			"keys", len(pending.Keys),
			"attempt", attempt+1,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		req.Keys = pending.Keys
	}
}
