// Package dynamo implements a dao.Driver over a DynamoDB table, one table
// per DAO.
//
// # Overview
//
// Records are stored as items in storage shape: schema aliases replace
// model names and the key field is the table's partition key. Items are
// converted with the attributevalue package, so numbers come back as int
// when integral and float64 otherwise.
//
// # Reads
//
// Plain key lookups, {key: v} and {key: {"$in": [...]}}, use GetItem and
// BatchGetItem. Every other filter becomes a Scan whose FilterExpression
// narrows the items sent back; the driver then matches the returned items
// in Go, so results follow filter.Match exactly. Filters without an exact
// expression scan the whole table. Sorting and paging happen client side.
//
// # Writes
//
//   - InsertOne is a conditional PutItem and fails with ErrAlreadyExists
//   - UpdateOne and UpdateMany send one UpdateItem per matched key with
//     SET and REMOVE clauses
//   - ReplaceOne is a PutItem that keeps the matched key
//   - DeleteOne and DeleteMany send one DeleteItem per matched key
//
// Writes are not transactional across items.
//
// # Usage
//
//	drv, err := dynamo.Open(ctx, dynamo.Config{Table: "users"})
//	if err != nil {
//		return err
//	}
//	users, err := dao.New("users", drv, dao.Options{Registry: reg})
package dynamo
