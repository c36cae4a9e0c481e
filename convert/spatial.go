package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type spatialConverter struct{}

func (spatialConverter) ToTree(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	s, err := as[sci.SpatialData](obj)
	if err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	coords := make([]any, len(s.Coordinates))
	for i, c := range s.Coordinates {
		coords[i] = []any{c[0], c[1], c[2]}
	}
	node := tree.NewMap().Set("coordinates", coords)
	if len(s.Triangles) > 0 {
		tris := make([]any, len(s.Triangles))
		for i, t := range s.Triangles {
			tris[i] = []any{int64(t[0]), int64(t[1]), int64(t[2])}
		}
		node.Set("triangles", tris)
	}
	setMetadata(node, s.Metadata)
	return node, nil
}

func (spatialConverter) FromTree(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var s sci.SpatialData
	v, err := field(node, "coordinates")
	if err != nil {
		return nil, err
	}
	flat, shape, err := magnitude(tagtree.Path{"coordinates"}, v)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 || shape[1] != 3 {
		return nil, tagtree.Malformed(tagtree.Path{"coordinates"}, "coordinates must have shape [n 3], got %v", shape)
	}
	s.Coordinates = make([][3]float64, shape[0])
	for i := range s.Coordinates {
		copy(s.Coordinates[i][:], flat[i*3:i*3+3])
	}
	if v, ok := node.Get("triangles"); ok {
		if s.Triangles, err = decodeTriangles(tagtree.Path{"triangles"}, v); err != nil {
			return nil, err
		}
	}
	if s.Metadata, err = metadata(node); err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeTriangles(p tagtree.Path, v any) ([][3]int, error) {
	rows, ok := v.([]any)
	if !ok {
		return nil, tagtree.Malformed(p, "expected a sequence of triangles, got %T", v)
	}
	out := make([][3]int, len(rows))
	for i, r := range rows {
		idx, ok := r.([]any)
		if !ok || len(idx) != 3 {
			return nil, tagtree.Malformed(p.Index(i), "a triangle has exactly 3 vertex indices")
		}
		for j, x := range idx {
			n, ok := integer(x)
			if !ok {
				return nil, tagtree.Malformed(p.Index(i).Index(j), "expected an integer index, got %v", x)
			}
			out[i][j] = n
		}
	}
	return out, nil
}
