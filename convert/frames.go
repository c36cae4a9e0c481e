package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type lcsConverter struct{}

func (lcsConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	l, err := as[sci.LocalCoordinateSystem](obj)
	if err != nil {
		return nil, err
	}
	if err := l.Check(); err != nil {
		return nil, err
	}
	coords, err := enc.Encode(tagtree.Path{"coordinates"}, l.Coordinates)
	if err != nil {
		return nil, err
	}
	node := tree.NewMap().
		Set("orientation", encodeOrientations(l.Orientations)).
		Set("coordinates", coords)
	if l.TimeDependent() {
		node.Set("time", encodeTimes(l.Time))
	}
	return node, nil
}

func (lcsConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var l sci.LocalCoordinateSystem
	v, err := field(node, "orientation")
	if err != nil {
		return nil, err
	}
	if l.Orientations, err = decodeOrientations(tagtree.Path{"orientation"}, v); err != nil {
		return nil, err
	}
	p := tagtree.Path{"coordinates"}
	if v, err = field(node, "coordinates"); err != nil {
		return nil, err
	}
	obj, err := dec.Decode(p, v)
	if err != nil {
		return nil, err
	}
	if l.Coordinates, err = child[sci.Quantity](p, obj); err != nil {
		return nil, err
	}
	if v, ok := node.Get("time"); ok {
		if l.Time, err = decodeTimes(tagtree.Path{"time"}, v); err != nil {
			return nil, err
		}
	}
	if err := l.Check(); err != nil {
		return nil, err
	}
	return l, nil
}

// encodeOrientations writes a single matrix as [3][3] and a time-dependent
// set as [n][3][3].
func encodeOrientations(os []sci.Orientation) any {
	flat := make([]float64, 0, 9*len(os))
	for _, o := range os {
		for _, row := range o {
			flat = append(flat, row[:]...)
		}
	}
	if len(os) == 1 {
		return nested([]int{3, 3}, flat)
	}
	return nested([]int{len(os), 3, 3}, flat)
}

func decodeOrientations(p tagtree.Path, v any) ([]sci.Orientation, error) {
	flat, shape, err := magnitude(p, v)
	if err != nil {
		return nil, err
	}
	n := 0
	switch {
	case len(shape) == 2 && shape[0] == 3 && shape[1] == 3:
		n = 1
	case len(shape) == 3 && shape[1] == 3 && shape[2] == 3:
		n = shape[0]
	default:
		return nil, tagtree.Malformed(p, "orientation must have shape [3 3] or [n 3 3], got %v", shape)
	}
	out := make([]sci.Orientation, n)
	for i := range out {
		for r := 0; r < 3; r++ {
			copy(out[i][r][:], flat[i*9+r*3:i*9+r*3+3])
		}
	}
	return out, nil
}

type transformationConverter struct{}

func (transformationConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	c, err := as[sci.CoordinateTransformation](obj)
	if err != nil {
		return nil, err
	}
	lcs, err := enc.Encode(tagtree.Path{"transformation"}, c.Transformation)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().
		Set("name", c.Name).
		Set("reference_system", c.ReferenceSystem).
		Set("transformation", lcs), nil
}

func (transformationConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var c sci.CoordinateTransformation
	var err error
	if c.Name, err = stringField(node, "name"); err != nil {
		return nil, err
	}
	if c.ReferenceSystem, err = stringField(node, "reference_system"); err != nil {
		return nil, err
	}
	p := tagtree.Path{"transformation"}
	v, err := field(node, "transformation")
	if err != nil {
		return nil, err
	}
	obj, err := dec.Decode(p, v)
	if err != nil {
		return nil, err
	}
	if c.Transformation, err = child[sci.LocalCoordinateSystem](p, obj); err != nil {
		return nil, err
	}
	return c, nil
}
