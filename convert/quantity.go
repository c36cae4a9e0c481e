package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type quantityConverter struct{}

func (quantityConverter) ToTree(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	q, err := as[sci.Quantity](obj)
	if err != nil {
		return nil, err
	}
	return encodeQuantity(q)
}

func (quantityConverter) FromTree(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	return decodeQuantity(node)
}

func encodeQuantity(q sci.Quantity) (*tree.Map, error) {
	if !q.Valid() {
		return nil, tagtree.Malformed(tagtree.Path{"value"}, "%d elements do not fill shape %v", len(q.Magnitude), q.Shape)
	}
	return tree.NewMap().
		Set("value", nested(q.Shape, q.Magnitude)).
		Set("unit", q.Unit), nil
}

func decodeQuantity(node *tree.Map) (sci.Quantity, error) {
	v, err := field(node, "value")
	if err != nil {
		return sci.Quantity{}, err
	}
	flat, shape, err := magnitude(tagtree.Path{"value"}, v)
	if err != nil {
		return sci.Quantity{}, err
	}
	unit, err := stringField(node, "unit")
	if err != nil {
		return sci.Quantity{}, err
	}
	return sci.Quantity{Magnitude: flat, Shape: shape, Unit: unit}, nil
}

type unitConverter struct{}

func (unitConverter) ToTree(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	u, err := as[sci.Unit](obj)
	if err != nil {
		return nil, err
	}
	if u.Symbol == "" {
		return nil, tagtree.Malformed(tagtree.Path{"unit"}, "empty unit")
	}
	return tree.NewMap().Set("unit", u.Symbol), nil
}

func (unitConverter) FromTree(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	s, err := stringField(node, "unit")
	if err != nil {
		return nil, err
	}
	return sci.Unit{Symbol: s}, nil
}
