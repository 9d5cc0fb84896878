package dynamo

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/filter"
	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/schema"
)

// errNotPushable marks filters that have no DynamoDB condition expression
// selecting at least the records filter.Match selects.
var errNotPushable = errors.New("not pushable")

// expr collects the placeholders of one request. DynamoDB rejects unused
// placeholders, so a request gets a fresh expr per attempt.
type expr struct {
	names  map[string]string
	byName map[string]string
	values map[string]types.AttributeValue
	nn, nv int
}

func newExpr() *expr {
	return &expr{
		names:  make(map[string]string),
		byName: make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

// name returns the "#nN" placeholder of an attribute name.
func (e *expr) name(attr string) string {
	if p, ok := e.byName[attr]; ok {
		return p
	}
	p := fmt.Sprintf("#n%d", e.nn)
	e.nn++
	e.names[p] = attr
	e.byName[attr] = p
	return p
}

// path returns the placeholder form of a dotted storage path.
func (e *expr) path(storage string) string {
	parts := strings.Split(storage, ".")
	for i, part := range parts {
		parts[i] = e.name(part)
	}
	return strings.Join(parts, ".")
}

// value returns the ":vN" placeholder of v.
func (e *expr) value(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal expression value: %w", err)
	}
	p := fmt.Sprintf(":v%d", e.nv)
	e.nv++
	e.values[p] = av
	return p, nil
}

var placeholder = regexp.MustCompile(`[#:][nv][0-9]+`)

// prune drops placeholders the expressions do not use, such as those of
// branches that compiled to nothing.
func (e *expr) prune(exprs ...string) {
	used := make(map[string]bool)
	for _, x := range exprs {
		for _, p := range placeholder.FindAllString(x, -1) {
			used[p] = true
		}
	}
	for p, attr := range e.names {
		if !used[p] {
			delete(e.names, p)
			delete(e.byName, attr)
		}
	}
	for p := range e.values {
		if !used[p] {
			delete(e.values, p)
		}
	}
}

func (e *expr) attrNames() map[string]string {
	if len(e.names) == 0 {
		return nil
	}
	return e.names
}

func (e *expr) attrValues() map[string]types.AttributeValue {
	if len(e.values) == 0 {
		return nil
	}
	return e.values
}

// compiler translates filters and projections to expressions over one expr.
// Without a schema every path is assumed to hop through maps and to end in
// a scalar or a list of scalars.
type compiler struct {
	schema schema.Schema
	e      *expr
	// paths holds the model paths a compiled filter reads.
	paths []string
}

func newCompiler(s schema.Schema) *compiler {
	return &compiler{schema: s, e: newExpr()}
}

// attr returns the placeholder path of a model path.
func (c *compiler) attr(path string) (string, error) {
	if path == "" || c.crossesArray(path) {
		return "", errNotPushable
	}
	storage := c.schema.StoragePath(path)
	for _, seg := range strings.Split(storage, ".") {
		if seg == "" {
			return "", errNotPushable
		}
	}
	return c.e.path(storage), nil
}

// crossesArray reports whether a non-terminal hop of path is declared as an
// array. Document paths do not map over lists the way record paths do.
func (c *compiler) crossesArray(path string) bool {
	parts := strings.Split(path, ".")
	for i := 1; i < len(parts); i++ {
		if f, ok := c.schema.Lookup(strings.Join(parts[:i], ".")); ok && f.Array {
			return true
		}
	}
	return false
}

// array reports whether path may hold a list. Undeclared paths may.
func (c *compiler) array(path string) bool {
	f, ok := c.schema.Lookup(path)
	return !ok || f.Array
}

// filter compiles f to a condition expression. The empty string selects
// everything.
func (c *compiler) filter(f filter.Filter) (string, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		cond, err := c.key(k, f[k])
		if err != nil {
			return "", err
		}
		if cond != "" {
			parts = append(parts, cond)
		}
	}
	return and(parts), nil
}

func and(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func or(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (c *compiler) key(k string, cond any) (string, error) {
	switch k {
	case filter.OpAnd, filter.OpOr, filter.OpNor:
		subs, err := filter.Sub(cond)
		if err != nil {
			return "", err
		}
		return c.logical(k, subs)
	case filter.OpNot:
		sub, ok := cond.(filter.Filter)
		if !ok {
			m, isMap := cond.(map[string]any)
			if !isMap {
				return "", fmt.Errorf("%w: %s expects a filter, got %T", filter.ErrInvalidFilter, filter.OpNot, cond)
			}
			sub = m
		}
		inner, err := c.filter(sub)
		if err != nil {
			return "", err
		}
		return not(inner)
	}
	if filter.IsOperator(k) {
		return "", fmt.Errorf("%w: %s", filter.ErrUnsupportedOperator, k)
	}
	path, err := c.attr(k)
	if err != nil {
		return "", err
	}
	c.paths = append(c.paths, k)

	ops, isOps := filter.Operators(cond)
	if !isOps {
		return c.equals(k, path, cond)
	}
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(ops))
	for _, op := range names {
		part, err := c.op(k, path, op, ops[op])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return and(parts), nil
}

// not negates a condition. The negation of everything has no expression.
func not(cond string) (string, error) {
	if cond == "" {
		return "", errNotPushable
	}
	if !strings.HasPrefix(cond, "(") {
		cond = "(" + cond + ")"
	}
	return "NOT " + cond, nil
}

func (c *compiler) logical(op string, subs []filter.Filter) (string, error) {
	parts := make([]string, 0, len(subs))
	for _, sub := range subs {
		cond, err := c.filter(sub)
		if err != nil {
			return "", err
		}
		if cond == "" {
			switch op {
			case filter.OpOr:
				return "", nil
			case filter.OpNor:
				return "", errNotPushable
			}
			continue
		}
		parts = append(parts, cond)
	}
	switch op {
	case filter.OpAnd:
		return and(parts), nil
	case filter.OpOr:
		if len(parts) == 0 {
			return "", errNotPushable
		}
		return or(parts), nil
	}
	if len(parts) == 0 {
		return "", nil
	}
	return not(or(parts))
}

func (c *compiler) op(model, path, op string, arg any) (string, error) {
	switch op {
	case filter.OpEq:
		return c.equals(model, path, arg)
	case filter.OpNe:
		cond, err := c.equals(model, path, arg)
		if err != nil {
			return "", err
		}
		return not(cond)
	case filter.OpIn, filter.OpNin:
		values, err := filter.List(arg)
		if err != nil {
			return "", err
		}
		if len(values) == 0 {
			return "", errNotPushable
		}
		parts := make([]string, 0, len(values))
		for _, v := range values {
			cond, err := c.equals(model, path, v)
			if err != nil {
				return "", err
			}
			parts = append(parts, cond)
		}
		if op == filter.OpNin {
			return not(or(parts))
		}
		return or(parts), nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		return c.compare(model, path, op, arg)
	case filter.OpExists:
		want, ok := arg.(bool)
		if !ok {
			return "", fmt.Errorf("%w: %s expects a bool, got %T", filter.ErrInvalidFilter, filter.OpExists, arg)
		}
		if want {
			return "attribute_exists(" + path + ")", nil
		}
		return "attribute_not_exists(" + path + ")", nil
	}
	return "", fmt.Errorf("%w: %s", filter.ErrUnsupportedOperator, op)
}

// scalar reports whether v has an exact attribute value counterpart.
func scalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// equals matches a scalar stored at path or held by the list at path.
// Nil matches missing, null and empty lists.
func (c *compiler) equals(model, path string, v any) (string, error) {
	if v == nil {
		typ, err := c.e.value("NULL")
		if err != nil {
			return "", err
		}
		if !c.array(model) {
			return "(attribute_not_exists(" + path + ") OR attribute_type(" + path + ", " + typ + "))", nil
		}
		list, err := c.e.value("L")
		if err != nil {
			return "", err
		}
		zero, err := c.e.value(0)
		if err != nil {
			return "", err
		}
		return "(attribute_not_exists(" + path + ") OR attribute_type(" + path + ", " + typ + ") OR " +
			"(attribute_type(" + path + ", " + list + ") AND size(" + path + ") = " + zero + "))", nil
	}
	if !scalar(v) {
		return "", errNotPushable
	}
	val, err := c.e.value(v)
	if err != nil {
		return "", err
	}
	if !c.array(model) {
		return path + " = " + val, nil
	}
	list, err := c.e.value("L")
	if err != nil {
		return "", err
	}
	return "(" + path + " = " + val + " OR (attribute_type(" + path + ", " + list + ") AND contains(" + path + ", " + val + ")))", nil
}

var comparators = map[string]string{
	filter.OpGt:  ">",
	filter.OpGte: ">=",
	filter.OpLt:  "<",
	filter.OpLte: "<=",
}

// compare handles strings and numbers stored as scalars. Declared arrays
// compare per element and have no expression.
func (c *compiler) compare(model, path, op string, arg any) (string, error) {
	if f, ok := c.schema.Lookup(model); ok && f.Array {
		return "", errNotPushable
	}
	if _, isTime := arg.(time.Time); isTime || !scalar(arg) {
		return "", errNotPushable
	}
	if _, isBool := arg.(bool); isBool {
		return "", errNotPushable
	}
	val, err := c.e.value(arg)
	if err != nil {
		return "", err
	}
	return path + " " + comparators[op] + " " + val, nil
}

// projection compiles the paths a read needs: the selected paths of p and
// the extra model paths. It returns "" when every attribute is needed.
func (c *compiler) projection(p projection.Projection, extra ...string) string {
	if p == nil {
		return ""
	}
	paths := append(p.Paths(), extra...)
	for _, path := range paths {
		if c.crossesArray(path) {
			return ""
		}
	}
	storage := make([]string, 0, len(paths))
	for _, path := range paths {
		storage = append(storage, c.schema.StoragePath(path))
	}
	sort.Strings(storage)

	// Overlapping document paths are rejected, keep the shortest.
	var kept []string
	for _, s := range storage {
		if !covered(kept, s) {
			kept = append(kept, s)
		}
	}
	out := make([]string, len(kept))
	for i, s := range kept {
		out[i] = c.e.path(s)
	}
	return strings.Join(out, ", ")
}

// covered reports whether path equals or descends from one of paths.
func covered(paths []string, path string) bool {
	for _, p := range paths {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}
