package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type errorConverter struct{}

func (errorConverter) ToTree(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	e, err := as[sci.MeasurementError](obj)
	if err != nil {
		return nil, err
	}
	if err := e.Check(); err != nil {
		return nil, err
	}
	return tree.NewMap().Set("deviation", e.Deviation), nil
}

func (errorConverter) FromTree(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	v, err := field(node, "deviation")
	if err != nil {
		return nil, err
	}
	d, ok := number(v)
	if !ok {
		return nil, tagtree.Malformed(tagtree.Path{"deviation"}, "expected a number, got %T", v)
	}
	e := sci.MeasurementError{Deviation: d}
	if err := e.Check(); err != nil {
		return nil, err
	}
	return e, nil
}

type sourceConverter struct{}

func (sourceConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	s, err := as[sci.Source](obj)
	if err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	e, err := enc.Encode(tagtree.Path{"error"}, s.Error)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().
		Set("name", s.Name).
		Set("output_signal", encodeSignal(s.Output)).
		Set("error", e), nil
}

func (sourceConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var s sci.Source
	var err error
	if s.Name, err = stringField(node, "name"); err != nil {
		return nil, err
	}
	if s.Output, err = decodeSignal(node, "output_signal"); err != nil {
		return nil, err
	}
	if s.Error, err = decodeError(dec, tagtree.Path{}, node); err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

type equipmentConverter struct{}

func (equipmentConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	g, err := as[sci.GenericEquipment](obj)
	if err != nil {
		return nil, err
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	sources := make([]any, len(g.Sources))
	for i, s := range g.Sources {
		if sources[i], err = enc.Encode(tagtree.Path{"sources"}.Index(i), s); err != nil {
			return nil, err
		}
	}
	ts, err := encodeTransformations(enc, tagtree.Path{"data_transformations"}, g.Transformations)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().
		Set("name", g.Name).
		Set("sources", sources).
		Set("data_transformations", ts), nil
}

func (equipmentConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var g sci.GenericEquipment
	var err error
	if g.Name, err = stringField(node, "name"); err != nil {
		return nil, err
	}
	if v, ok := node.Get("sources"); ok {
		p := tagtree.Path{"sources"}
		items, ok := v.([]any)
		if !ok {
			return nil, tagtree.Malformed(p, "expected a sequence, got %T", v)
		}
		for i, it := range items {
			obj, err := dec.Decode(p.Index(i), it)
			if err != nil {
				return nil, err
			}
			s, err := child[sci.Source](p.Index(i), obj)
			if err != nil {
				return nil, err
			}
			g.Sources = append(g.Sources, s)
		}
	}
	if v, ok := node.Get("data_transformations"); ok {
		if g.Transformations, err = decodeTransformations(dec, tagtree.Path{"data_transformations"}, v); err != nil {
			return nil, err
		}
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}

type measurementConverter struct{}

func (measurementConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	m, err := as[sci.Measurement](obj)
	if err != nil {
		return nil, err
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	data, err := enc.Encode(tagtree.Path{"data", "data"}, m.Data)
	if err != nil {
		return nil, err
	}
	src, err := enc.Encode(tagtree.Path{"measurement_chain", "data_source"}, m.Chain.Source)
	if err != nil {
		return nil, err
	}
	procs, err := encodeTransformations(enc, tagtree.Path{"measurement_chain", "data_processors"}, m.Chain.Processors)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().
		Set("name", m.Name).
		Set("data", tree.NewMap().Set("name", m.DataName).Set("data", data)).
		Set("measurement_chain", tree.NewMap().
			Set("name", m.Chain.Name).
			Set("data_source", src).
			Set("data_processors", procs)), nil
}

func (measurementConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var m sci.Measurement
	var err error
	if m.Name, err = stringField(node, "name"); err != nil {
		return nil, err
	}
	data, err := mapField(node, "data")
	if err != nil {
		return nil, err
	}
	if m.DataName, err = stringField(data, "name"); err != nil {
		return nil, rebase(tagtree.Path{"data"}, err)
	}
	p := tagtree.Path{"data", "data"}
	v, err := field(data, "data")
	if err != nil {
		return nil, rebase(tagtree.Path{"data"}, err)
	}
	obj, err := dec.Decode(p, v)
	if err != nil {
		return nil, err
	}
	if m.Data, err = child[sci.TimeSeries](p, obj); err != nil {
		return nil, err
	}

	cp := tagtree.Path{"measurement_chain"}
	chain, err := mapField(node, "measurement_chain")
	if err != nil {
		return nil, err
	}
	if m.Chain.Name, err = stringField(chain, "name"); err != nil {
		return nil, rebase(cp, err)
	}
	if v, err = field(chain, "data_source"); err != nil {
		return nil, rebase(cp, err)
	}
	if obj, err = dec.Decode(cp.Key("data_source"), v); err != nil {
		return nil, err
	}
	if m.Chain.Source, err = child[sci.Source](cp.Key("data_source"), obj); err != nil {
		return nil, err
	}
	if v, ok := chain.Get("data_processors"); ok {
		if m.Chain.Processors, err = decodeTransformations(dec, cp.Key("data_processors"), v); err != nil {
			return nil, err
		}
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeSignal(s sci.Signal) *tree.Map {
	return tree.NewMap().Set("signal_type", string(s.Type)).Set("unit", s.Unit)
}

// decodeSignal reads the signal mapping under key. Errors are relative to
// node.
func decodeSignal(node *tree.Map, key string) (sci.Signal, error) {
	m, err := mapField(node, key)
	if err != nil {
		return sci.Signal{}, err
	}
	typ, err := stringField(m, "signal_type")
	if err != nil {
		return sci.Signal{}, rebase(tagtree.Path{key}, err)
	}
	unit, err := stringField(m, "unit")
	if err != nil {
		return sci.Signal{}, rebase(tagtree.Path{key}, err)
	}
	return sci.Signal{Type: sci.SignalType(typ), Unit: unit}, nil
}

// decodeError reads the tagged error child of node, which sits at p.
func decodeError(dec tagtree.Decoder, p tagtree.Path, node *tree.Map) (sci.MeasurementError, error) {
	v, err := field(node, "error")
	if err != nil {
		return sci.MeasurementError{}, rebase(p, err)
	}
	obj, err := dec.Decode(p.Key("error"), v)
	if err != nil {
		return sci.MeasurementError{}, err
	}
	return child[sci.MeasurementError](p.Key("error"), obj)
}

func encodeTransformations(enc tagtree.Encoder, p tagtree.Path, ds []sci.DataTransformation) ([]any, error) {
	out := make([]any, len(ds))
	for i, d := range ds {
		q := p.Index(i)
		e, err := enc.Encode(q.Key("error"), d.Error)
		if err != nil {
			return nil, err
		}
		n := tree.NewMap().
			Set("name", d.Name).
			Set("input_signal", encodeSignal(d.Input)).
			Set("output_signal", encodeSignal(d.Output)).
			Set("error", e)
		if d.Func != nil {
			f, err := enc.Encode(q.Key("func"), *d.Func)
			if err != nil {
				return nil, err
			}
			n.Set("func", f)
		}
		if d.Meta != "" {
			n.Set("meta", d.Meta)
		}
		out[i] = n
	}
	return out, nil
}

func decodeTransformations(dec tagtree.Decoder, p tagtree.Path, v any) ([]sci.DataTransformation, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, tagtree.Malformed(p, "expected a sequence, got %T", v)
	}
	out := make([]sci.DataTransformation, len(items))
	for i, it := range items {
		q := p.Index(i)
		n, ok := it.(*tree.Map)
		if !ok {
			return nil, tagtree.Malformed(q, "expected a mapping, got %T", it)
		}
		d := &out[i]
		var err error
		if d.Name, err = stringField(n, "name"); err != nil {
			return nil, rebase(q, err)
		}
		if d.Input, err = decodeSignal(n, "input_signal"); err != nil {
			return nil, rebase(q, err)
		}
		if d.Output, err = decodeSignal(n, "output_signal"); err != nil {
			return nil, rebase(q, err)
		}
		if d.Error, err = decodeError(dec, q, n); err != nil {
			return nil, err
		}
		if fv, ok := n.Get("func"); ok {
			obj, err := dec.Decode(q.Key("func"), fv)
			if err != nil {
				return nil, err
			}
			f, err := child[sci.Expression](q.Key("func"), obj)
			if err != nil {
				return nil, err
			}
			d.Func = &f
		}
		if n.Has("meta") {
			if d.Meta, err = stringField(n, "meta"); err != nil {
				return nil, rebase(q, err)
			}
		}
	}
	return out, nil
}
