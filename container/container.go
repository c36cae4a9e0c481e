// Package container reads and writes tagtree documents in YAML, JSON or
// CBOR. A document wraps the tree with a format version:
//
//	tagtree_version: 1.0.0
//	tree:
//	  force: {$tag: "tagtree.dev:unit/quantity-1.1.0", value: 12, unit: kN}
//
// YAML and JSON keep the key order of the tree. CBOR is written with core
// deterministic encoding, so mapping keys come back sorted.
package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

const (
	// Version is the container format version written by this package.
	Version    = "1.0.0"
	VersionKey = "tagtree_version"
	TreeKey    = "tree"
)

var (
	// ErrNotContainer is returned for input lacking the document envelope.
	ErrNotContainer = errors.New("container: not a tagtree document")
	// ErrUnknownFormat is returned for file names with no registered codec.
	ErrUnknownFormat = errors.New("container: unknown format")
)

// Codec reads and writes one serialization of a document envelope.
type Codec interface {
	Name() string
	Decode(r io.Reader) (any, error)
	Encode(w io.Writer, doc *tree.Map) error
}

var codecs = map[string]Codec{
	".yaml": yamlCodec{},
	".yml":  yamlCodec{},
	".json": jsonCodec{},
	".cbor": cborCodec{},
}

// CodecFor selects a codec from a file name extension.
func CodecFor(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return c, nil
}

// Read decodes a document and returns its tree.
func Read(r io.Reader, c Codec) (*tree.Map, error) {
	v, err := c.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("container: %s: %w", c.Name(), err)
	}
	return unwrap(v)
}

// Write encodes doc inside a document envelope.
func Write(w io.Writer, c Codec, doc *tree.Map) error {
	if doc == nil {
		doc = tree.NewMap()
	}
	env := tree.NewMap().Set(VersionKey, Version).Set(TreeKey, doc)
	if err := c.Encode(w, env); err != nil {
		return fmt.Errorf("container: %s: %w", c.Name(), err)
	}
	return nil
}

// ReadFile reads the document at path, choosing the codec by extension.
func ReadFile(path string) (*tree.Map, error) {
	c, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, c)
}

// WriteFile writes doc to path, choosing the codec by extension.
func WriteFile(path string, doc *tree.Map) error {
	c, err := CodecFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, c, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func unwrap(v any) (*tree.Map, error) {
	env, ok := v.(*tree.Map)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not a mapping", ErrNotContainer)
	}
	raw, ok := env.Get(VersionKey)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotContainer, VersionKey)
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", ErrNotContainer, VersionKey)
	}
	ver, err := tagtree.ParseVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotContainer, VersionKey, err)
	}
	if want, _ := tagtree.ParseVersion(Version); ver.Major != want.Major {
		return nil, fmt.Errorf("container: document version %s is not readable by %s", ver, Version)
	}
	body, ok := env.Get(TreeKey)
	if !ok {
		return tree.NewMap(), nil
	}
	m, ok := body.(*tree.Map)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a mapping", ErrNotContainer, TreeKey)
	}
	return m, nil
}
