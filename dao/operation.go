package dao

import (
	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// Operation tags the generic operation a middleware sees.
// Every read (FindAll, FindOne, FindPage, Exists, Count) is OpFindAll;
// MiddlewareContext.Method names the entry point.
type Operation string

const (
	OpFindAll    Operation = "findAll"
	OpInsertOne  Operation = "insertOne"
	OpUpdateOne  Operation = "updateOne"
	OpUpdateAll  Operation = "updateAll"
	OpReplaceOne Operation = "replaceOne"
	OpDeleteOne  Operation = "deleteOne"
	OpDeleteAll  Operation = "deleteAll"
)

// Method names a public DAO entry point.
type Method string

const (
	MethodFindAll    Method = "findAll"
	MethodFindOne    Method = "findOne"
	MethodFindPage   Method = "findPage"
	MethodExists     Method = "exists"
	MethodCount      Method = "count"
	MethodInsertOne  Method = "insertOne"
	MethodUpdateOne  Method = "updateOne"
	MethodUpdateAll  Method = "updateAll"
	MethodReplaceOne Method = "replaceOne"
	MethodDeleteOne  Method = "deleteOne"
	MethodDeleteAll  Method = "deleteAll"
)

// IsRead reports whether m is a read entry point.
func (m Method) IsRead() bool {
	switch m {
	case MethodFindAll, MethodFindOne, MethodFindPage, MethodExists, MethodCount:
		return true
	}
	return false
}

// FindParams selects records.
type FindParams struct {
	Filter     filter.Filter
	Projection projection.Projection
	Sorts      []filter.Sort
	Start      int
	// Limit caps the number of records. Nil means no cap; a limit of zero
	// returns no records without querying the driver.
	Limit *int
}

// Limit returns a pointer to n for FindParams.Limit.
func Limit(n int) *int {
	return &n
}

// FindOneParams selects a single record.
type FindOneParams struct {
	Filter     filter.Filter
	Projection projection.Projection
}

// FilterParams carries a filter for Exists and Count.
type FilterParams struct {
	Filter filter.Filter
}

// InsertParams carries a record to insert.
type InsertParams struct {
	Record record.Record
}

// UpdateParams carries a filter and the changes to apply.
type UpdateParams struct {
	Filter  filter.Filter
	Changes filter.Changes
}

// ReplaceParams carries a filter and a replacement record.
type ReplaceParams struct {
	Filter  filter.Filter
	Replace record.Record
}

// DeleteParams carries a filter.
type DeleteParams struct {
	Filter filter.Filter
}

// Page is a window of records with the total count of matches.
type Page struct {
	TotalCount int
	Records    []record.Record
}

// Args is the input a before-middleware sees.
type Args interface {
	Operation() Operation
}

// Result is the output an after-middleware sees, or a before-middleware
// halts with.
type Result interface {
	Operation() Operation
}

// FindArgs is the input of every read.
type FindArgs struct {
	Params FindParams
}

func (FindArgs) Operation() Operation { return OpFindAll }

// InsertArgs is the input of InsertOne.
type InsertArgs struct {
	Params InsertParams
}

func (InsertArgs) Operation() Operation { return OpInsertOne }

// UpdateArgs is the input of UpdateOne (Op OpUpdateOne) and UpdateAll (Op OpUpdateAll).
type UpdateArgs struct {
	Op     Operation
	Params UpdateParams
}

func (a UpdateArgs) Operation() Operation { return a.Op }

// ReplaceArgs is the input of ReplaceOne.
type ReplaceArgs struct {
	Params ReplaceParams
}

func (ReplaceArgs) Operation() Operation { return OpReplaceOne }

// DeleteArgs is the input of DeleteOne (Op OpDeleteOne) and DeleteAll (Op OpDeleteAll).
type DeleteArgs struct {
	Op     Operation
	Params DeleteParams
}

func (a DeleteArgs) Operation() Operation { return a.Op }

// FindResult is the output of every read. TotalCount is set by FindPage;
// a halting middleware may set it for Count and Exists.
type FindResult struct {
	Params     FindParams
	Records    []record.Record
	TotalCount int
}

func (FindResult) Operation() Operation { return OpFindAll }

// InsertResult is the output of InsertOne.
type InsertResult struct {
	Params InsertParams
	Record record.Record
}

func (InsertResult) Operation() Operation { return OpInsertOne }

// UpdateResult is the output of UpdateOne and UpdateAll.
type UpdateResult struct {
	Op     Operation
	Params UpdateParams
}

func (r UpdateResult) Operation() Operation { return r.Op }

// ReplaceResult is the output of ReplaceOne.
type ReplaceResult struct {
	Params ReplaceParams
}

func (ReplaceResult) Operation() Operation { return OpReplaceOne }

// DeleteResult is the output of DeleteOne and DeleteAll.
type DeleteResult struct {
	Op     Operation
	Params DeleteParams
}

func (r DeleteResult) Operation() Operation { return r.Op }
