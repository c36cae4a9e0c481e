package tree

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// MarshalJSON encodes the mapping with keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("tree: encode %q: %w", k, err)
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// MarshalYAML encodes the mapping as an ordered YAML mapping node.
func (m *Map) MarshalYAML() (any, error) {
	return ToYAMLNode(m)
}

// ToYAMLNode converts a tree value into a yaml.v3 node preserving key order.
func ToYAMLNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.keys {
			vn, err := ToYAMLNode(t.vals[k])
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, vn)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range t {
			vn, err := ToYAMLNode(it)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, vn)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(normalize(v)); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// MaxYAMLNodes bounds the number of values FromYAMLNode produces, counting
// every expansion of an alias.
const MaxYAMLNodes = 1 << 20

// FromYAMLNode converts a decoded yaml.v3 node into a tree value, keeping the
// document key order. Aliases are expanded; an alias that refers to a node
// containing it is rejected, as are duplicate keys and documents expanding
// to more than MaxYAMLNodes values.
func FromYAMLNode(n *yaml.Node) (any, error) {
	d := &yamlDecoder{expanding: map[*yaml.Node]bool{}}
	return d.value(n, nil)
}

type yamlDecoder struct {
	expanding map[*yaml.Node]bool
	count     int
}

func (d *yamlDecoder) value(n *yaml.Node, path []string) (any, error) {
	if d.count++; d.count > MaxYAMLNodes {
		return nil, &ValueError{Path: path, Reason: fmt.Sprintf("document expands to more than %d values", MaxYAMLNodes)}
	}
	// An anchored collection can be reached again through an alias inside it.
	if n.Anchor != "" && (n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode) {
		if d.expanding[n] {
			return nil, &ValueError{Path: path, Reason: fmt.Sprintf("anchor &%s contains an alias to itself", n.Anchor)}
		}
		d.expanding[n] = true
		defer delete(d.expanding, n)
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.value(n.Content[0], path)
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("tree: line %d: unresolved alias *%s", n.Line, n.Value)
		}
		return d.value(n.Alias, path)
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			kn := n.Content[i]
			if kn.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("tree: line %d: non-scalar mapping key", kn.Line)
			}
			if kn.Tag == "!!merge" {
				return nil, fmt.Errorf("tree: line %d: merge keys are not supported", kn.Line)
			}
			if m.Has(kn.Value) {
				return nil, &ValueError{Path: path, Reason: fmt.Sprintf("duplicate key %q on line %d", kn.Value, kn.Line)}
			}
			v, err := d.value(n.Content[i+1], append(path, kn.Value))
			if err != nil {
				return nil, err
			}
			m.Set(kn.Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := d.value(c, append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("tree: line %d: %w", n.Line, err)
		}
		return normalize(v), nil
	default:
		return nil, fmt.Errorf("tree: unsupported YAML node kind %d", n.Kind)
	}
}

// DecodeJSON reads one JSON value from r, keeping object key order. Duplicate
// object keys are rejected.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeJSONValue(dec, nil)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("tree: trailing data after JSON value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder, path []string) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				k, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("tree: expected object key, got %v", kt)
				}
				if m.Has(k) {
					return nil, &ValueError{Path: path, Reason: fmt.Sprintf("duplicate key %q", k)}
				}
				v, err := decodeJSONValue(dec, append(path, k))
				if err != nil {
					return nil, err
				}
				m.Set(k, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			out := []any{}
			for i := 0; dec.More(); i++ {
				v, err := decodeJSONValue(dec, append(path, strconv.Itoa(i)))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		default:
			return nil, fmt.Errorf("tree: unexpected delimiter %v", t)
		}
	default:
		return normalize(t), nil
	}
}
