package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

// grooveConverter dispatches on shape_kind. Unknown kinds are rejected with
// a *tagtree.UnknownShapeError before any parameter is decoded.
type grooveConverter struct{}

func (grooveConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	g, err := as[sci.Groove](obj)
	if err != nil {
		return nil, err
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	params, err := encodeParams(enc, g.Params)
	if err != nil {
		return nil, err
	}
	node := tree.NewMap().Set("shape_kind", string(g.Kind)).Set("parameters", params)
	if len(g.CodeNumber) > 0 {
		node.Set("code_number", g.CodeNumber)
	}
	setMetadata(node, g.Metadata)
	return node, nil
}

func (grooveConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	kind, err := stringField(node, "shape_kind")
	if err != nil {
		return nil, err
	}
	if _, ok := sci.LookupGroove(sci.GrooveKind(kind)); !ok {
		return nil, &tagtree.UnknownShapeError{Path: tagtree.Path{"shape_kind"}, Kind: kind, Want: sci.GrooveKinds()}
	}
	g := sci.Groove{Kind: sci.GrooveKind(kind)}
	if g.Params, err = decodeParams(dec, node); err != nil {
		return nil, err
	}
	if v, ok := node.Get("code_number"); ok {
		if g.CodeNumber, err = stringsOf(tagtree.Path{"code_number"}, v); err != nil {
			return nil, err
		}
	}
	if g.Metadata, err = metadata(node); err != nil {
		return nil, err
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}
