package container

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/tagtree/tree"
)

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Decode(r io.Reader) (any, error) {
	var n yaml.Node
	if err := yaml.NewDecoder(r).Decode(&n); err != nil {
		return nil, err
	}
	return tree.FromYAMLNode(&n)
}

func (yamlCodec) Encode(w io.Writer, doc *tree.Map) error {
	n, err := tree.ToYAMLNode(doc)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return err
	}
	return enc.Close()
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Decode(r io.Reader) (any, error) { return tree.DecodeJSON(r) }

func (jsonCodec) Encode(w io.Writer, doc *tree.Map) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	if cborEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if cborDec, err = (cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}).DecMode(); err != nil {
		panic(err)
	}
}

type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Decode(r io.Reader) (any, error) {
	var v any
	if err := cborDec.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return tree.FromPlain(v)
}

func (cborCodec) Encode(w io.Writer, doc *tree.Map) error {
	return cborEnc.NewEncoder(w).Encode(native(doc))
}

// native turns ordered mappings into Go maps for the CBOR encoder.
func native(v any) any {
	switch t := v.(type) {
	case *tree.Map:
		out := make(map[string]any, t.Len())
		t.Range(func(k string, cv any) bool {
			out[k] = native(cv)
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = native(t[i])
		}
		return out
	default:
		return v
	}
}
