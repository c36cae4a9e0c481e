package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Shape expressions describe the dimensions of nested arrays:
//
//	3       exactly 3
//	":" "~" any length (also null)
//	"2~4"   2, 3 or 4; "2~" at least 2; "~4" 1 to 4
//	"n"     any length, equal wherever "n" appears in the same keyword
//	"(3)"   optional dimension; optional dimensions close the list
//	"..."   any number of further dimensions
//
// A list starting with "..." or an optional dimension is matched from the
// innermost dimension outwards.

type dimKind int

const (
	dimExact dimKind = iota
	dimAny
	dimRange
	dimSymbol
	dimEllipsis
)

type dim struct {
	kind     dimKind
	n        int
	lo, hi   int // hi < 0: unbounded
	sym      string
	optional bool
	text     string
}

type shapeSpec struct {
	dims     []dim
	reversed bool
}

func (s shapeSpec) String() string {
	parts := make([]string, len(s.dims))
	for i, d := range s.dims {
		parts[i] = d.text
	}
	if s.reversed {
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// shapeNode mirrors the wx_shape keyword: either a shape for the instance
// itself or shapes for named properties.
type shapeNode struct {
	spec  *shapeSpec
	props map[string]*shapeNode
}

func parseShapeNode(v any) (*shapeNode, error) {
	switch t := v.(type) {
	case []any:
		s, err := parseShape(t)
		if err != nil {
			return nil, err
		}
		return &shapeNode{spec: &s}, nil
	case map[string]any:
		n := &shapeNode{props: make(map[string]*shapeNode, len(t))}
		for k, c := range t {
			cn, err := parseShapeNode(c)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			n.props[k] = cn
		}
		return n, nil
	default:
		return nil, fmt.Errorf("shape must be a list or a mapping, got %T", v)
	}
}

func parseShape(items []any) (shapeSpec, error) {
	if len(items) == 0 {
		return shapeSpec{}, nil
	}
	dims := make([]dim, len(items))
	for i, it := range items {
		d, err := parseDim(it)
		if err != nil {
			return shapeSpec{}, err
		}
		dims[i] = d
	}
	s := shapeSpec{dims: dims}
	if dims[0].kind == dimEllipsis || dims[0].optional {
		s.reversed = true
		for i, j := 0, len(dims)-1; i < j; i, j = i+1, j-1 {
			dims[i], dims[j] = dims[j], dims[i]
		}
	}
	seenOptional, seenEllipsis := false, false
	for _, d := range dims {
		switch {
		case seenEllipsis:
			return shapeSpec{}, fmt.Errorf("no dimension may follow \"...\" in %s", s)
		case seenOptional && !d.optional:
			return shapeSpec{}, fmt.Errorf("optional dimensions must close the list in %s", s)
		case d.kind == dimEllipsis:
			seenEllipsis = true
		case d.optional:
			seenOptional = true
		}
	}
	return s, nil
}

func parseDim(v any) (dim, error) {
	switch t := v.(type) {
	case nil:
		return dim{kind: dimAny, text: ":"}, nil
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil || n < 0 {
			return dim{}, fmt.Errorf("bad dimension %s", t)
		}
		return dim{kind: dimExact, n: n, text: t.String()}, nil
	case float64:
		if t < 0 || t != float64(int(t)) {
			return dim{}, fmt.Errorf("bad dimension %v", t)
		}
		return dim{kind: dimExact, n: int(t), text: strconv.Itoa(int(t))}, nil
	case int:
		return parseDim(float64(t))
	case int64:
		return parseDim(float64(t))
	case string:
		return parseDimString(t)
	default:
		return dim{}, fmt.Errorf("bad dimension %v", v)
	}
}

func parseDimString(raw string) (dim, error) {
	s := strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), "~", ":")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		inner, err := parseDimString(s[1 : len(s)-1])
		if err != nil {
			return dim{}, err
		}
		if inner.kind == dimEllipsis || inner.kind == dimAny {
			return dim{}, fmt.Errorf("dimension %q cannot be optional", raw)
		}
		inner.optional = true
		inner.text = "(" + inner.text + ")"
		return inner, nil
	}
	switch {
	case s == "...":
		return dim{kind: dimEllipsis, text: s}, nil
	case s == ":":
		return dim{kind: dimAny, text: s}, nil
	case strings.Contains(s, "..."):
		return dim{}, fmt.Errorf("\"...\" cannot be combined with other text in %q", raw)
	case strings.Contains(s, ":"):
		lo, hi, _ := strings.Cut(s, ":")
		d := dim{kind: dimRange, lo: 1, hi: -1, text: s}
		if lo != "" {
			n, err := strconv.Atoi(lo)
			if err != nil || n < 0 {
				return dim{}, fmt.Errorf("bad range %q", raw)
			}
			d.lo = n
		}
		if hi != "" {
			n, err := strconv.Atoi(hi)
			if err != nil || n < 0 {
				return dim{}, fmt.Errorf("bad range %q", raw)
			}
			d.hi = n
		}
		if d.hi >= 0 && d.lo > d.hi {
			return dim{}, fmt.Errorf("descending range %q", raw)
		}
		return d, nil
	case isSymbol(s):
		return dim{kind: dimSymbol, sym: s, text: s}, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return dim{}, fmt.Errorf("bad dimension %q", raw)
		}
		return dim{kind: dimExact, n: n, text: s}, nil
	}
}

// isSymbol accepts alphanumeric names that are not plain numbers.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	digits := true
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			digits = false
		default:
			return false
		}
	}
	return !digits
}

// match reports whether shape satisfies s, binding symbols in syms.
func (s shapeSpec) match(shape []int, syms map[string]int) bool {
	if s.reversed {
		rev := make([]int, len(shape))
		for i := range shape {
			rev[len(shape)-1-i] = shape[i]
		}
		shape = rev
	}
	for i, d := range s.dims {
		if d.kind == dimEllipsis {
			return true
		}
		if i >= len(shape) {
			if d.optional {
				continue
			}
			return false
		}
		if !d.accepts(shape[i], syms) {
			return false
		}
	}
	return len(shape) <= len(s.dims)
}

func (d dim) accepts(n int, syms map[string]int) bool {
	switch d.kind {
	case dimExact:
		return n == d.n
	case dimRange:
		return n >= d.lo && (d.hi < 0 || n <= d.hi)
	case dimSymbol:
		if bound, ok := syms[d.sym]; ok {
			return bound == n
		}
		syms[d.sym] = n
		return true
	default:
		return true
	}
}

// shapeOf computes the dimensions of an instance: nested sequences give
// their lengths, a mapping with an integer "shape" list gives that list, and
// a mapping with a "value" gives the shape of the value. Scalars have no
// dimensions. Ragged sequences are an error.
func shapeOf(v any) ([]int, error) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return []int{0}, nil
		}
		inner, err := shapeOf(t[0])
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(t); i++ {
			other, err := shapeOf(t[i])
			if err != nil {
				return nil, err
			}
			if !equalInts(inner, other) {
				return nil, fmt.Errorf("ragged sequence: element %d has shape %v, element 0 has %v", i, other, inner)
			}
		}
		return append([]int{len(t)}, inner...), nil
	case map[string]any:
		if raw, ok := t["shape"].([]any); ok {
			out := make([]int, len(raw))
			for i, x := range raw {
				n, err := strconv.Atoi(fmt.Sprint(x))
				if err != nil {
					return nil, fmt.Errorf("bad shape entry %v", x)
				}
				out[i] = n
			}
			return out, nil
		}
		if val, ok := t["value"]; ok {
			return shapeOf(val)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// shapeMismatch is one failed expectation of a wx_shape keyword.
type shapeMismatch struct {
	path    []string
	message string
}

// check walks node and v in parallel. Properties missing from v are
// skipped; symbols bind across the whole walk in sorted property order.
func (n *shapeNode) check(v any, path []string, syms map[string]int) []shapeMismatch {
	if n.spec != nil {
		shape, err := shapeOf(v)
		if err != nil {
			return []shapeMismatch{{path: path, message: err.Error()}}
		}
		if !n.spec.match(shape, syms) {
			return []shapeMismatch{{path: path, message: fmt.Sprintf("shape %v does not match %s", shape, n.spec)}}
		}
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(n.props))
	for k := range n.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []shapeMismatch
	for _, k := range keys {
		cv, ok := m[k]
		if !ok {
			continue
		}
		out = append(out, n.props[k].check(cv, append(append([]string(nil), path...), k), syms)...)
	}
	return out
}
