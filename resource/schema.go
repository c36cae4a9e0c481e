package resource

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// Schema is an immutable, decoded schema document.
type Schema struct {
	uri    string
	bytes  []byte
	digest string
	refs   []string
}

// URI is the identifier the schema was resolved under.
func (s *Schema) URI() string { return s.uri }

// Bytes returns a copy of the canonical JSON encoding.
func (s *Schema) Bytes() []byte { return bytes.Clone(s.bytes) }

// Digest is the hex BLAKE3-256 digest of the canonical JSON encoding.
func (s *Schema) Digest() string { return s.digest }

// Refs lists the other documents referenced through $ref, without
// fragments, resolved against the schema URI.
func (s *Schema) Refs() []string { return append([]string(nil), s.refs...) }

// Parse decodes a raw document into a Schema.
func Parse(uri string, raw Raw) (*Schema, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", uri, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		if _, isBool := doc.(bool); !isBool {
			return nil, fmt.Errorf("resource: parse %s: schema must be a mapping or boolean", uri)
		}
	}
	canon, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("resource: encode %s: %w", uri, err)
	}
	sum := blake3.Sum256(canon)
	refs, err := collectRefs(uri, doc)
	if err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", uri, err)
	}
	return &Schema{uri: uri, bytes: canon, digest: hex.EncodeToString(sum[:]), refs: refs}, nil
}

func decode(raw Raw) (any, error) {
	switch raw.Format {
	case FormatJSON, FormatJSONC:
		data := raw.Data
		if raw.Format == FormatJSONC {
			data = jsonc.ToJSON(data)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		var v any
		if err := yaml.Unmarshal(raw.Data, &v); err != nil {
			return nil, err
		}
		return normalizeYAML(v)
	}
}

// normalizeYAML converts YAML-decoded values into JSON-like values.
func normalizeYAML(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			nv, err := normalizeYAML(vv)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			nv, err := normalizeYAML(vv)
			if err != nil {
				return nil, err
			}
			out[ks] = nv
		}
		return out, nil
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			nv, err := normalizeYAML(t[i])
			if err != nil {
				return nil, err
			}
			arr[i] = nv
		}
		return arr, nil
	default:
		return v, nil
	}
}

// collectRefs returns the distinct external documents referenced by doc.
func collectRefs(uri string, doc any) ([]string, error) {
	base, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	self := withoutFragment(uri)
	seen := map[string]bool{}
	var out []string
	var walk func(v any) error
	walk = func(v any) error {
		switch t := v.(type) {
		case map[string]any:
			if ref, ok := t["$ref"].(string); ok && !strings.HasPrefix(ref, "#") {
				u, err := url.Parse(ref)
				if err != nil {
					return fmt.Errorf("bad $ref %q: %w", ref, err)
				}
				target := withoutFragment(base.ResolveReference(u).String())
				if target != self && !seen[target] {
					seen[target] = true
					out = append(out, target)
				}
			}
			for k, c := range t {
				// Enum and const values are data, not subschemas.
				if k == "enum" || k == "const" {
					continue
				}
				if err := walk(c); err != nil {
					return err
				}
			}
		case []any:
			for _, c := range t {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(doc); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func withoutFragment(uri string) string {
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		return uri[:i]
	}
	return uri
}
