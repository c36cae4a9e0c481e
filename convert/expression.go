package convert

import (
	"maps"
	"slices"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type expressionConverter struct{}

func (expressionConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	e, err := as[sci.Expression](obj)
	if err != nil {
		return nil, err
	}
	if err := e.Check(); err != nil {
		return nil, err
	}
	params, err := encodeParams(enc, e.Parameters)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().Set("expression", e.Source).Set("parameters", params), nil
}

func (expressionConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	src, err := stringField(node, "expression")
	if err != nil {
		return nil, err
	}
	params, err := decodeParams(dec, node)
	if err != nil {
		return nil, err
	}
	e := sci.Expression{Source: src, Parameters: params}
	if err := e.Check(); err != nil {
		return nil, err
	}
	return e, nil
}

// encodeParams writes each quantity as a tagged child under parameters, in
// name order.
func encodeParams(enc tagtree.Encoder, params map[string]sci.Quantity) (*tree.Map, error) {
	out := tree.NewMap()
	for _, name := range slices.Sorted(maps.Keys(params)) {
		node, err := enc.Encode(tagtree.Path{"parameters", name}, params[name])
		if err != nil {
			return nil, err
		}
		out.Set(name, node)
	}
	return out, nil
}

func decodeParams(dec tagtree.Decoder, node *tree.Map) (map[string]sci.Quantity, error) {
	m, err := mapField(node, "parameters")
	if err != nil {
		return nil, err
	}
	out := make(map[string]sci.Quantity, m.Len())
	for _, name := range m.Keys() {
		v, _ := m.Get(name)
		p := tagtree.Path{"parameters", name}
		obj, err := dec.Decode(p, v)
		if err != nil {
			return nil, err
		}
		if out[name], err = child[sci.Quantity](p, obj); err != nil {
			return nil, err
		}
	}
	return out, nil
}
