package dynamo

import (
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/record"
)

// toItem converts a model record to a storage item.
func (d *Driver) toItem(rec record.Record) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(d.cfg.Schema.ToStorage(rec)))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return item, nil
}

// fromItem converts a storage item to a model record.
func (d *Driver) fromItem(item map[string]types.AttributeValue) (record.Record, error) {
	var m map[string]any
	err := attributevalue.UnmarshalMapWithOptions(item, &m, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return d.cfg.Schema.FromStorage(record.Record(numbers(m).(map[string]any))), nil
}

func (d *Driver) fromItems(items []map[string]types.AttributeValue) ([]record.Record, error) {
	recs := make([]record.Record, 0, len(items))
	for _, item := range items {
		rec, err := d.fromItem(item)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// key returns the primary key of the item holding v.
func (d *Driver) key(v any) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal key %v: %w", v, err)
	}
	return map[string]types.AttributeValue{d.keyAttr: av}, nil
}

// keyString identifies a key attribute value. Numbers are compared by
// their canonical text.
func keyString(av types.AttributeValue) string {
	switch t := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + t.Value
	case *types.AttributeValueMemberN:
		return "N:" + t.Value
	case *types.AttributeValueMemberB:
		return "B:" + string(t.Value)
	}
	return fmt.Sprintf("%T", av)
}

// numbers converts decoded numbers to int when integral, float64 otherwise.
func numbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
		return t
	case []attributevalue.Number:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = number(n)
		}
		return out
	case attributevalue.Number:
		return number(t)
	}
	return v
}

func number(n attributevalue.Number) any {
	if i, err := n.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
