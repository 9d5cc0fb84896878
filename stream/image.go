package stream

import (
	"math"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/record"
)

// Image converts a stream image to a storage-shaped record. Integral
// numbers become int, other numbers float64, sets become lists.
func Image(image map[string]events.DynamoDBAttributeValue) record.Record {
	rec := make(record.Record, len(image))
	for k, v := range image {
		rec[k] = value(v)
	}
	return rec
}

func value(v events.DynamoDBAttributeValue) any {
	switch v.DataType() {
	case events.DataTypeString:
		return v.String()
	case events.DataTypeNumber:
		return number(v.Number())
	case events.DataTypeBinary:
		return v.Binary()
	case events.DataTypeBoolean:
		return v.Boolean()
	case events.DataTypeList:
		list := v.List()
		out := make([]any, len(list))
		for i, e := range list {
			out[i] = value(e)
		}
		return out
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = value(e)
		}
		return out
	case events.DataTypeStringSet:
		set := v.StringSet()
		out := make([]any, len(set))
		for i, s := range set {
			out[i] = s
		}
		return out
	case events.DataTypeNumberSet:
		set := v.NumberSet()
		out := make([]any, len(set))
		for i, n := range set {
			out[i] = number(n)
		}
		return out
	case events.DataTypeBinarySet:
		set := v.BinarySet()
		out := make([]any, len(set))
		for i, b := range set {
			out[i] = b
		}
		return out
	}
	return nil
}

func number(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && i >= math.MinInt && i <= math.MaxInt {
		return int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
