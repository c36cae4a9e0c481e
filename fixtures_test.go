package tagtree_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

var (
	pointName   = tagtree.Name{Namespace: "test.dev", Name: "geo/point"}
	segmentName = tagtree.Name{Namespace: "test.dev", Name: "geo/segment"}
)

type point struct {
	X     float64
	Label string
}

func (point) TagName() tagtree.Name { return pointName }

type segment struct {
	From, To point
}

func (segment) TagName() tagtree.Name { return segmentName }

var pointConverter = tagtree.ConverterFuncs{
	To: func(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
		p := obj.(point)
		if p.Label == "unwritable" {
			return nil, tagtree.Malformed(tagtree.Path{"label"}, "label cannot be written")
		}
		return tree.MapOf("x", p.X, "label", p.Label), nil
	},
	From: func(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
		v, _ := node.Get("x")
		var x float64
		switch n := v.(type) {
		case int64:
			x = float64(n)
		case float64:
			x = n
		}
		label, _ := node.Get("label")
		s, _ := label.(string)
		if s == "bad" {
			return nil, tagtree.Malformed(tagtree.Path{"label"}, "label %q is reserved", s)
		}
		return point{X: x, Label: s}, nil
	},
}

var segmentConverter = tagtree.ConverterFuncs{
	To: func(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
		s := obj.(segment)
		from, err := enc.Encode(tagtree.Path{"from"}, s.From)
		if err != nil {
			return nil, err
		}
		to, err := enc.Encode(tagtree.Path{"to"}, s.To)
		if err != nil {
			return nil, err
		}
		return tree.MapOf("from", from, "to", to), nil
	},
	From: func(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
		var out segment
		for _, k := range []string{"from", "to"} {
			v, _ := node.Get(k)
			obj, err := dec.Decode(tagtree.Path{k}, v)
			if err != nil {
				return nil, err
			}
			p, ok := obj.(point)
			if !ok {
				return nil, tagtree.Malformed(tagtree.Path{k}, "expected a point")
			}
			if k == "from" {
				out.From = p
			} else {
				out.To = p
			}
		}
		return out, nil
	},
}

func testRegistry() *tagtree.Registry {
	b := tagtree.NewRegistryBuilder()
	b.MustRegister(pointName, tagtree.Major(1), tagtree.V(1, 1, 0), pointConverter)
	b.MustRegister(segmentName, tagtree.Major(1), tagtree.V(1, 0, 0), segmentConverter)
	return b.Build()
}

func testMigrator() *tagtree.Migrator {
	b := tagtree.NewMigratorBuilder()
	b.MustAdd(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), func(node *tree.Map) (*tree.Map, error) {
		if !node.Rename("X", "x") && !node.Has("x") {
			return nil, fmt.Errorf("no X coordinate")
		}
		return node, nil
	})
	return b.Build()
}

// resolverFunc serves schema content from a function.
type resolverFunc func(uri string) ([]byte, error)

func (f resolverFunc) Content(_ context.Context, uri string) ([]byte, error) { return f(uri) }

var emptySchemas = resolverFunc(func(uri string) ([]byte, error) { return []byte("{}"), nil })

func testManifest() *tagtree.Manifest {
	m, err := tagtree.NewManifest(tagtree.ManifestConfig{
		ID:           "asdf://test.dev/manifests/geo-1.0.0",
		ExtensionURI: "asdf://test.dev/extensions/geo-1.0.0",
		Title:        "geometry",
		Registry:     testRegistry(),
		Migrator:     testMigrator(),
		Resolver:     emptySchemas,
		TagMappings:  []tagtree.TagMapping{{TagPrefix: "test.dev:", SchemaPrefix: "asdf://test.dev/schemas/"}},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// fakeValidator requires a numeric x on points and both ends, in the
// current point shape, on segments.
type fakeValidator struct {
	calls atomic.Int64
}

func (v *fakeValidator) Validate(_ context.Context, node any, uri string) (tagtree.Violations, error) {
	v.calls.Add(1)
	m, ok := node.(*tree.Map)
	if !ok {
		return tagtree.Violations{{Message: "expected a mapping"}}, nil
	}
	var vs tagtree.Violations
	switch {
	case strings.HasSuffix(uri, "geo/point-1.1.0"):
		x, _ := m.Get("x")
		switch x.(type) {
		case int64, float64:
		default:
			vs = append(vs, tagtree.Violation{Path: tagtree.Path{"x"}, Keyword: "type", Message: "x must be a number"})
		}
	case strings.HasSuffix(uri, "geo/segment-1.0.0"):
		for _, k := range []string{"from", "to"} {
			end, ok := m.Get(k)
			if !ok {
				vs = append(vs, tagtree.Violation{Path: tagtree.Path{k}, Keyword: "required", Message: k + " is required"})
				continue
			}
			// Ends must already be in the current point shape.
			if p, ok := end.(*tree.Map); ok && p.Has("X") {
				vs = append(vs, tagtree.Violation{Path: tagtree.Path{k, "X"}, Keyword: "additionalProperties", Message: "X is not allowed"})
			}
		}
	default:
		return nil, &tagtree.SchemaNotFoundError{URI: uri}
	}
	return vs, nil
}

func pointNode(tag string, kv ...any) *tree.Map {
	return tree.MapOf(kv...).SetTag(tag)
}
