package mongostore

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// EncodePipeline converts p to the driver's pipeline form.
func EncodePipeline(p ir.Pipeline) bson.A {
	out := make(bson.A, len(p))
	for i, s := range p {
		out[i] = bson.D{{Key: s.Op, Value: EncodeValue(s.Spec)}}
	}
	return out
}

// EncodeValue converts ir values to bson values. Documents become bson.D
// with sorted keys; ir.Sort keeps its order.
func EncodeValue(v any) any {
	switch val := v.(type) {
	case ir.Sort:
		d := make(bson.D, len(val))
		for i, k := range val {
			d[i] = bson.E{Key: k.Field, Value: int32(k.Dir)}
		}
		return d
	case ir.Direction:
		return int32(val)
	case ir.Stage:
		return bson.D{{Key: val.Op, Value: EncodeValue(val.Spec)}}
	case ir.Pipeline:
		return EncodePipeline(val)
	case ir.Doc:
		return encodeDoc(val)
	case map[string]any:
		return encodeDoc(val)
	case []any:
		out := make(bson.A, len(val))
		for i, elem := range val {
			out[i] = EncodeValue(elem)
		}
		return out
	default:
		return v
	}
}

func encodeDoc(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, len(keys))
	for i, k := range keys {
		d[i] = bson.E{Key: k, Value: EncodeValue(m[k])}
	}
	return d
}

// DecodeDocument converts a decoded result into an ir.Doc.
func DecodeDocument(m bson.M) ir.Doc {
	out := make(ir.Doc, len(m))
	for k, v := range m {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return DecodeDocument(val)
	case map[string]any:
		return DecodeDocument(bson.M(val))
	case bson.D:
		out := make(ir.Doc, len(val))
		for _, e := range val {
			out[e.Key] = decodeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = decodeValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = decodeValue(elem)
		}
		return out
	case bson.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	default:
		return v
	}
}
