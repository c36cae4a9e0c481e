package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type hierarchyConverter struct{}

func (hierarchyConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	m, err := as[sci.CoordinateSystemManager](obj)
	if err != nil {
		return nil, err
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	systems := make([]any, len(m.Systems))
	for i, s := range m.Systems {
		if systems[i], err = enc.Encode(tagtree.Path{"coordinate_systems"}.Index(i), s); err != nil {
			return nil, err
		}
	}
	node := tree.NewMap().
		Set("name", m.Name).
		Set("root_system_name", m.RootSystem).
		Set("coordinate_systems", systems)
	if len(m.Subsystems) > 0 {
		subs := make([]any, len(m.Subsystems))
		for i, sub := range m.Subsystems {
			members := make([]any, len(sub.Members))
			for j, name := range sub.Members {
				members[j] = name
			}
			n := tree.NewMap().Set("name", sub.Name).Set("root_cs", sub.RootSystem)
			if sub.ParentSystem != "" {
				n.Set("parent_system", sub.ParentSystem)
			}
			subs[i] = n.Set("members", members)
		}
		node.Set("subsystems", subs)
	}
	return node, nil
}

func (hierarchyConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var m sci.CoordinateSystemManager
	var err error
	if m.Name, err = stringField(node, "name"); err != nil {
		return nil, err
	}
	if m.RootSystem, err = stringField(node, "root_system_name"); err != nil {
		return nil, err
	}
	p := tagtree.Path{"coordinate_systems"}
	v, err := field(node, "coordinate_systems")
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, tagtree.Malformed(p, "expected a sequence, got %T", v)
	}
	for i, it := range items {
		obj, err := dec.Decode(p.Index(i), it)
		if err != nil {
			return nil, err
		}
		ct, err := child[sci.CoordinateTransformation](p.Index(i), obj)
		if err != nil {
			return nil, err
		}
		m.Systems = append(m.Systems, ct)
	}
	if v, ok := node.Get("subsystems"); ok {
		if m.Subsystems, err = decodeSubsystems(tagtree.Path{"subsystems"}, v); err != nil {
			return nil, err
		}
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSubsystems(p tagtree.Path, v any) ([]sci.Subsystem, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, tagtree.Malformed(p, "expected a sequence, got %T", v)
	}
	out := make([]sci.Subsystem, len(items))
	for i, it := range items {
		q := p.Index(i)
		n, ok := it.(*tree.Map)
		if !ok {
			return nil, tagtree.Malformed(q, "expected a mapping, got %T", it)
		}
		var err error
		if out[i].Name, err = stringField(n, "name"); err != nil {
			return nil, rebase(q, err)
		}
		if out[i].RootSystem, err = stringField(n, "root_cs"); err != nil {
			return nil, rebase(q, err)
		}
		if n.Has("parent_system") {
			if out[i].ParentSystem, err = stringField(n, "parent_system"); err != nil {
				return nil, rebase(q, err)
			}
		}
		mv, err := field(n, "members")
		if err != nil {
			return nil, rebase(q, err)
		}
		if out[i].Members, err = stringsOf(q.Key("members"), mv); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rebase moves a malformed-node error found in a plain sub-mapping under p.
func rebase(p tagtree.Path, err error) error {
	if me, ok := err.(*tagtree.MalformedNodeError); ok {
		return &tagtree.MalformedNodeError{Path: p.Join(me.Path), Reason: me.Reason}
	}
	return err
}
