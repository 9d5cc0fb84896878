package dynamo_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/dynamo"
	"github.com/jacentio/lattice/record"
)

// fakeTable is an in-memory dynamo.API over one table. Scans ignore
// FilterExpression and ProjectionExpression; the driver matches and trims
// in Go. Placeholders are checked the way DynamoDB checks them.
type fakeTable struct {
	mu      sync.Mutex
	keyAttr string
	items   map[string]map[string]types.AttributeValue
	order   []string

	// pageSize splits scans into pages when positive.
	pageSize int
	// unprocessed makes the next BatchGetItem calls hand back their last key.
	unprocessed int

	scans      []*dynamodb.ScanInput
	gets       int
	batchSizes []int
	updates    []*dynamodb.UpdateItemInput
}

var _ dynamo.API = (*fakeTable)(nil)

func newFakeTable(keyAttr string) *fakeTable {
	return &fakeTable{keyAttr: keyAttr, items: make(map[string]map[string]types.AttributeValue)}
}

func idOf(av types.AttributeValue) string {
	switch t := av.(type) {
	case *types.AttributeValueMemberS:
		return "S" + t.Value
	case *types.AttributeValueMemberN:
		return "N" + t.Value
	}
	return fmt.Sprintf("%T", av)
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

var placeholderRE = regexp.MustCompile(`[#:][a-z]+[0-9]*`)

// checkPlaceholders fails like DynamoDB on undefined or unused placeholders.
func checkPlaceholders(names map[string]string, values map[string]types.AttributeValue, exprs ...*string) error {
	used := map[string]bool{}
	for _, x := range exprs {
		if x == nil {
			continue
		}
		for _, p := range placeholderRE.FindAllString(*x, -1) {
			used[p] = true
			_, isName := names[p]
			_, isValue := values[p]
			if !isName && !isValue {
				return fmt.Errorf("ValidationException: undefined placeholder %s", p)
			}
		}
	}
	for p := range names {
		if !used[p] {
			return fmt.Errorf("ValidationException: unused name %s", p)
		}
	}
	for p := range values {
		if !used[p] {
			return fmt.Errorf("ValidationException: unused value %s", p)
		}
	}
	return nil
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkPlaceholders(in.ExpressionAttributeNames, nil, in.ProjectionExpression); err != nil {
		return nil, err
	}
	f.gets++
	return &dynamodb.GetItemOutput{Item: f.items[idOf(in.Key[f.keyAttr])]}, nil
}

func (f *fakeTable) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	for table, req := range in.RequestItems {
		if len(req.Keys) > 100 {
			return nil, errors.New("ValidationException: too many keys")
		}
		if err := checkPlaceholders(req.ExpressionAttributeNames, nil, req.ProjectionExpression); err != nil {
			return nil, err
		}
		f.batchSizes = append(f.batchSizes, len(req.Keys))
		keys := req.Keys
		if f.unprocessed > 0 && len(keys) > 0 {
			f.unprocessed--
			rest := req
			rest.Keys = keys[len(keys)-1:]
			out.UnprocessedKeys[table] = rest
			keys = keys[:len(keys)-1]
		}
		for _, k := range keys {
			if item, ok := f.items[idOf(k[f.keyAttr])]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (f *fakeTable) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkPlaceholders(in.ExpressionAttributeNames, in.ExpressionAttributeValues, in.FilterExpression, in.ProjectionExpression); err != nil {
		return nil, err
	}
	f.scans = append(f.scans, in)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := idOf(in.ExclusiveStartKey[f.keyAttr])
		for i, id := range f.order {
			if id == last {
				start = i + 1
			}
		}
	}
	end := len(f.order)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	out := &dynamodb.ScanOutput{}
	for _, id := range f.order[start:end] {
		out.Items = append(out.Items, f.items[id])
	}
	if end < len(f.order) {
		id := f.order[end-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{f.keyAttr: f.items[id][f.keyAttr]}
	}
	return out, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkPlaceholders(in.ExpressionAttributeNames, in.ExpressionAttributeValues, in.ConditionExpression); err != nil {
		return nil, err
	}
	id := idOf(in.Item[f.keyAttr])
	_, exists := f.items[id]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_not_exists(#k)":
		if exists {
			return nil, conditionFailed()
		}
	case "attribute_exists(#k)":
		if !exists {
			return nil, conditionFailed()
		}
	}
	if !exists {
		f.order = append(f.order, id)
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkPlaceholders(in.ExpressionAttributeNames, in.ExpressionAttributeValues, in.UpdateExpression, in.ConditionExpression); err != nil {
		return nil, err
	}
	f.updates = append(f.updates, in)
	id := idOf(in.Key[f.keyAttr])
	item, ok := f.items[id]
	if !ok {
		return nil, conditionFailed()
	}
	var rec record.Record
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, err
	}

	resolve := func(p string) string {
		parts := strings.Split(strings.TrimSpace(p), ".")
		for i, part := range parts {
			parts[i] = in.ExpressionAttributeNames[part]
		}
		return strings.Join(parts, ".")
	}
	parentExists := func(path string) bool {
		parent, _ := record.Split(path)
		if parent == "" {
			return true
		}
		v, ok := record.Get(rec, parent)
		return ok && record.IsRecord(v)
	}

	expr := aws.ToString(in.UpdateExpression)
	setPart, removePart := expr, ""
	if i := strings.Index(expr, "REMOVE "); i >= 0 {
		setPart, removePart = expr[:i], expr[i+len("REMOVE "):]
	}
	if s := strings.TrimSpace(strings.TrimPrefix(setPart, "SET ")); s != "" {
		for _, assign := range strings.Split(s, ", ") {
			lhs, rhs, _ := strings.Cut(assign, " = ")
			path := resolve(lhs)
			if !parentExists(path) {
				return nil, fmt.Errorf("ValidationException: invalid document path %s", path)
			}
			var v any
			if err := attributevalue.Unmarshal(in.ExpressionAttributeValues[strings.TrimSpace(rhs)], &v); err != nil {
				return nil, err
			}
			record.Set(rec, path, v)
		}
	}
	if removePart != "" {
		for _, p := range strings.Split(removePart, ", ") {
			record.Delete(rec, resolve(p))
		}
	}

	next, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		return nil, err
	}
	f.items[id] = next
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := idOf(in.Key[f.keyAttr])
	if _, ok := f.items[id]; !ok {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	delete(f.items, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// raw returns the stored item of key decoded without the driver.
func (f *fakeTable) raw(key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items["S"+key]
	if !ok {
		return nil
	}
	var m map[string]any
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		panic(err)
	}
	return m
}
