package tree

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// TagKey is the reserved mapping key carrying the tag of a tagged node.
const TagKey = "$tag"

// Map is an insertion-ordered mapping from string keys to tree values.
//
// Tree values are *Map, []any, string, bool, nil, int64 and float64. Other
// integer and float kinds are accepted by Set and normalized.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{vals: map[string]any{}}
}

// MapOf builds a Map from alternating key/value pairs. Odd trailing keys are
// ignored.
func MapOf(kv ...any) *Map {
	m := NewMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return m
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (m *Map) Set(key string, v any) *Map {
	if m.vals == nil {
		m.vals = map[string]any{}
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = normalize(v)
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key. Missing keys are ignored.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the value of oldKey to newKey at the same position. It returns
// false when oldKey is missing or newKey already exists.
func (m *Map) Rename(oldKey, newKey string) bool {
	if m == nil || oldKey == newKey {
		return false
	}
	v, ok := m.vals[oldKey]
	if !ok || m.Has(newKey) {
		return false
	}
	for i, k := range m.keys {
		if k == oldKey {
			m.keys[i] = newKey
			break
		}
	}
	delete(m.vals, oldKey)
	m.vals[newKey] = v
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, v any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Tag returns the tag string of a tagged node, or "" when untagged.
func (m *Map) Tag() string {
	v, _ := m.Get(TagKey)
	s, _ := v.(string)
	return s
}

// SetTag attaches tag as the first key of the mapping.
func (m *Map) SetTag(tag string) *Map {
	if m.Has(TagKey) {
		m.vals[TagKey] = tag
		return m
	}
	if m.vals == nil {
		m.vals = map[string]any{}
	}
	m.keys = append([]string{TagKey}, m.keys...)
	m.vals[TagKey] = tag
	return m
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := &Map{keys: append([]string(nil), m.keys...), vals: make(map[string]any, len(m.vals))}
	for k, v := range m.vals {
		out.vals[k] = Clone(v)
	}
	return out
}

// Clone deep-copies a tree value.
func Clone(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Clone(t[i])
		}
		return out
	default:
		return v
	}
}

// Equal reports structural equality of two tree values, including key order.
func Equal(a, b any) bool {
	switch ta := a.(type) {
	case *Map:
		tb, ok := b.(*Map)
		if !ok || ta.Len() != tb.Len() {
			return false
		}
		for i, k := range ta.keys {
			if tb.keys[i] != k || !Equal(ta.vals[k], tb.vals[k]) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case float64:
		tb, ok := b.(float64)
		return ok && (ta == tb || (math.IsNaN(ta) && math.IsNaN(tb)))
	default:
		return a == b
	}
}

func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint:
		if uint64(t) <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	case []float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return v
	}
}

// Plain converts a tree value into JSON-compatible values: map[string]any,
// []any, json.Number, string, bool and nil. Non-finite floats and values that
// are not tree values are rejected with a *ValueError.
func Plain(v any) (any, error) {
	return plain(v, nil)
}

func plain(v any, path []string) (any, error) {
	switch t := normalize(v).(type) {
	case nil, bool, string:
		return t, nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, &ValueError{Path: path, Reason: "non-finite number"}
		}
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case *Map:
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			pv, err := plain(t.vals[k], append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = pv
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			pv, err := plain(t[k], append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = pv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i := range t {
			pv, err := plain(t[i], append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = pv
		}
		return out, nil
	default:
		return nil, &ValueError{Path: path, Reason: fmt.Sprintf("unsupported value of type %T", v)}
	}
}

// FromPlain converts decoded YAML/JSON/CBOR values into tree values. Keys of
// plain maps are sorted since their input order is unknown.
func FromPlain(v any) (any, error) {
	return fromPlain(v, nil)
}

func fromPlain(v any, path []string) (any, error) {
	switch t := normalize(v).(type) {
	case nil, bool, string, int64, float64, *Map:
		return t, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			tv, err := fromPlain(t[k], append(path, k))
			if err != nil {
				return nil, err
			}
			m.Set(k, tv)
		}
		return m, nil
	case map[any]any:
		conv := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, &ValueError{Path: path, Reason: fmt.Sprintf("non-string key %v", k)}
			}
			conv[ks] = vv
		}
		return fromPlain(conv, path)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			tv, err := fromPlain(t[i], append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = tv
		}
		return out, nil
	default:
		return nil, &ValueError{Path: path, Reason: fmt.Sprintf("unsupported value of type %T", v)}
	}
}

// ValueError reports a value that cannot be represented in a tree.
type ValueError struct {
	Path   []string
	Reason string
}

func (e *ValueError) Error() string {
	p := "/"
	for i, s := range e.Path {
		if i > 0 {
			p += "/"
		}
		p += s
	}
	return fmt.Sprintf("tree: %s at %s", e.Reason, p)
}
