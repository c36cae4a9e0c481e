package convert

import (
	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/codec"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

type timestampConverter struct{}

func (timestampConverter) ToTree(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	t, err := as[sci.Timestamp](obj)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().Set("value", codec.FormatTimestamp(t.Time)), nil
}

func (timestampConverter) FromTree(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	s, err := stringField(node, "value")
	if err != nil {
		return nil, err
	}
	t, err := codec.ParseTimestamp(s)
	if err != nil {
		return nil, tagtree.Malformed(tagtree.Path{"value"}, "%v", err)
	}
	return sci.Timestamp{Time: t}, nil
}

type timedeltaConverter struct{}

func (timedeltaConverter) ToTree(_ tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	d, err := as[sci.Timedelta](obj)
	if err != nil {
		return nil, err
	}
	return tree.NewMap().Set("value", codec.FormatDuration(d.Duration)), nil
}

func (timedeltaConverter) FromTree(_ tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	s, err := stringField(node, "value")
	if err != nil {
		return nil, err
	}
	d, err := codec.ParseDuration(s)
	if err != nil {
		return nil, tagtree.Malformed(tagtree.Path{"value"}, "%v", err)
	}
	return sci.Timedelta{Duration: d}, nil
}

type timeSeriesConverter struct{}

func (timeSeriesConverter) ToTree(enc tagtree.Encoder, obj tagtree.Object) (*tree.Map, error) {
	ts, err := as[sci.TimeSeries](obj)
	if err != nil {
		return nil, err
	}
	if err := ts.Check(); err != nil {
		return nil, err
	}
	node := tree.NewMap()
	if ts.IsExpression() {
		expr, err := enc.Encode(tagtree.Path{"expression"}, *ts.Expression)
		if err != nil {
			return nil, err
		}
		node.Set("expression", expr).Set("unit", ts.Unit)
	} else {
		interp := ts.Interpolation
		if interp == "" {
			interp = sci.Linear
		}
		node.Set("timestamps", encodeTimes(ts.Times)).
			Set("values", nested(ts.Values.Shape, ts.Values.Magnitude)).
			Set("unit", ts.Values.Unit).
			Set("interpolation", string(interp))
	}
	setMetadata(node, ts.Metadata)
	return node, nil
}

func (timeSeriesConverter) FromTree(dec tagtree.Decoder, node *tree.Map) (tagtree.Object, error) {
	var ts sci.TimeSeries
	unit, err := stringField(node, "unit")
	if err != nil {
		return nil, err
	}
	if ts.Metadata, err = metadata(node); err != nil {
		return nil, err
	}
	if v, ok := node.Get("expression"); ok {
		p := tagtree.Path{"expression"}
		obj, err := dec.Decode(p, v)
		if err != nil {
			return nil, err
		}
		expr, err := child[sci.Expression](p, obj)
		if err != nil {
			return nil, err
		}
		ts.Expression = &expr
		ts.Unit = unit
	} else {
		v, err := field(node, "timestamps")
		if err != nil {
			return nil, err
		}
		if ts.Times, err = decodeTimes(tagtree.Path{"timestamps"}, v); err != nil {
			return nil, err
		}
		if v, err = field(node, "values"); err != nil {
			return nil, err
		}
		flat, shape, err := magnitude(tagtree.Path{"values"}, v)
		if err != nil {
			return nil, err
		}
		ts.Values = sci.Quantity{Magnitude: flat, Shape: shape, Unit: unit}
		interp, err := stringField(node, "interpolation")
		if err != nil {
			return nil, err
		}
		ts.Interpolation = sci.Interpolation(interp)
	}
	if err := ts.Check(); err != nil {
		return nil, err
	}
	return ts, nil
}
