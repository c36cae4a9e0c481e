package tagtree

import (
	"context"

	"github.com/reoring/tagtree/tree"
)

// Object is implemented by every domain value the registry can serialize. The
// tag family is declared by the type itself; the registry never inspects
// values to pick a converter.
type Object interface {
	TagName() Name
}

// Converter maps one domain object family to and from its tree shape.
//
// ToTree must be total over valid instances. FromTree returns a
// *MalformedNodeError when a schema-valid node violates a cross-field
// invariant. Converters must not perform I/O or retain the node.
type Converter interface {
	ToTree(enc Encoder, obj Object) (*tree.Map, error)
	FromTree(dec Decoder, node *tree.Map) (Object, error)
}

// Encoder is handed to Converter.ToTree to encode tagged children. Encode runs
// the whole write pipeline for the child, which ends up under key in the
// parent node.
type Encoder interface {
	Context() context.Context
	Encode(path Path, obj Object) (*tree.Map, error)
}

// Decoder is handed to Converter.FromTree to decode tagged children found at
// path (relative to the parent node).
type Decoder interface {
	Context() context.Context
	Decode(path Path, node any) (Object, error)
}

// ConverterFuncs adapts a pair of functions to Converter.
type ConverterFuncs struct {
	To   func(enc Encoder, obj Object) (*tree.Map, error)
	From func(dec Decoder, node *tree.Map) (Object, error)
}

func (c ConverterFuncs) ToTree(enc Encoder, obj Object) (*tree.Map, error) { return c.To(enc, obj) }
func (c ConverterFuncs) FromTree(dec Decoder, node *tree.Map) (Object, error) {
	return c.From(dec, node)
}

// Validator checks a plain or tree value against the schema at schemaURI.
// The error return is reserved for resolution failures; conformance problems
// are returned as violations.
type Validator interface {
	Validate(ctx context.Context, node any, schemaURI string) (Violations, error)
}

// ContentResolver provides raw schema content by URI.
type ContentResolver interface {
	Content(ctx context.Context, uri string) ([]byte, error)
}

// ---- context options ----

type contextKey int

const (
	_ctxKeyFailFast contextKey = iota
)

// WithFailFast returns a child context requesting that validation and
// document processing stop at the first problem.
func WithFailFast(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, _ctxKeyFailFast, enabled)
}

// IsFailFast reports whether fail-fast processing was requested.
func IsFailFast(ctx context.Context) bool {
	v := ctx.Value(_ctxKeyFailFast)
	b, _ := v.(bool)
	return b
}
