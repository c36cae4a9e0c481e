// Package convert holds the converters of the bundled scientific object
// families, their schemas and migrations, and the extension manifest that
// ties them together.
//
// Converters report problems relative to the node they convert; the session
// pipeline makes paths absolute.
package convert

import (
	"fmt"
	"math"
	"time"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/codec"
	"github.com/reoring/tagtree/tree"
)

// as accepts both T and *T for objects handed to a converter.
func as[T any](obj tagtree.Object) (T, error) {
	switch v := any(obj).(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("convert: got %T, want %T", obj, zero)
}

// child asserts the object decoded from a nested tagged node.
func child[T any](p tagtree.Path, obj tagtree.Object) (T, error) {
	v, err := as[T](obj)
	if err != nil {
		var zero T
		return zero, tagtree.Malformed(p, "expected %T, got %T", zero, obj)
	}
	return v, nil
}

func field(node *tree.Map, key string) (any, error) {
	v, ok := node.Get(key)
	if !ok {
		return nil, tagtree.Malformed(tagtree.Path{key}, "missing %q", key)
	}
	return v, nil
}

func stringField(node *tree.Map, key string) (string, error) {
	v, err := field(node, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", tagtree.Malformed(tagtree.Path{key}, "expected a string, got %T", v)
	}
	return s, nil
}

func mapField(node *tree.Map, key string) (*tree.Map, error) {
	v, err := field(node, key)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*tree.Map)
	if !ok {
		return nil, tagtree.Malformed(tagtree.Path{key}, "expected a mapping, got %T", v)
	}
	return m, nil
}

func metadata(node *tree.Map) (*tree.Map, error) {
	if !node.Has("metadata") {
		return nil, nil
	}
	m, err := mapField(node, "metadata")
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

func setMetadata(node, md *tree.Map) {
	if md.Len() > 0 {
		node.Set("metadata", md.Clone())
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func integer(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

// magnitude flattens a number or a rectangular nested sequence of numbers in
// row-major order. The shape of a plain number is nil.
func magnitude(p tagtree.Path, v any) ([]float64, []int, error) {
	if f, ok := number(v); ok {
		return []float64{f}, nil, nil
	}
	var shape []int
	for cur := v; ; {
		s, ok := cur.([]any)
		if !ok {
			break
		}
		shape = append(shape, len(s))
		if len(s) == 0 {
			break
		}
		cur = s[0]
	}
	if shape == nil {
		return nil, nil, tagtree.Malformed(p, "expected a number or a sequence of numbers, got %T", v)
	}
	var flat []float64
	var walk func(p tagtree.Path, v any, depth int) error
	walk = func(p tagtree.Path, v any, depth int) error {
		if depth == len(shape) {
			f, ok := number(v)
			if !ok {
				return tagtree.Malformed(p, "expected a number, got %T", v)
			}
			flat = append(flat, f)
			return nil
		}
		s, ok := v.([]any)
		if !ok || len(s) != shape[depth] {
			return tagtree.Malformed(p, "ragged array: want %d elements at depth %d", shape[depth], depth)
		}
		for i, it := range s {
			if err := walk(p.Index(i), it, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(p, v, 0); err != nil {
		return nil, nil, err
	}
	return flat, shape, nil
}

// nested is the inverse of magnitude.
func nested(shape []int, flat []float64) any {
	if len(shape) == 0 {
		if len(flat) == 0 {
			return nil
		}
		return flat[0]
	}
	stride := 1
	for _, d := range shape[1:] {
		stride *= d
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i] = nested(shape[1:], flat[i*stride:(i+1)*stride])
	}
	return out
}

func encodeTimes(ts []time.Time) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = codec.FormatTimestamp(t)
	}
	return out
}

func decodeTimes(p tagtree.Path, v any) ([]time.Time, error) {
	s, ok := v.([]any)
	if !ok {
		return nil, tagtree.Malformed(p, "expected a sequence of timestamps, got %T", v)
	}
	out := make([]time.Time, len(s))
	for i, it := range s {
		str, ok := it.(string)
		if !ok {
			return nil, tagtree.Malformed(p.Index(i), "expected a timestamp string, got %T", it)
		}
		t, err := codec.ParseTimestamp(str)
		if err != nil {
			return nil, tagtree.Malformed(p.Index(i), "%v", err)
		}
		out[i] = t
	}
	return out, nil
}

func stringsOf(p tagtree.Path, v any) ([]string, error) {
	s, ok := v.([]any)
	if !ok {
		return nil, tagtree.Malformed(p, "expected a sequence of strings, got %T", v)
	}
	out := make([]string, len(s))
	for i, it := range s {
		str, ok := it.(string)
		if !ok {
			return nil, tagtree.Malformed(p.Index(i), "expected a string, got %T", it)
		}
		out[i] = str
	}
	return out, nil
}
