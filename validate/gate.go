// Package validate enforces schema conformance of tree nodes.
//
// The Gate compiles schemas resolved through a resource.Resolver with a
// JSON Schema (draft 2020-12) engine extended with the "tag" and "wx_shape"
// keywords, and reports conformance failures as tagtree.Violations.
package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/internal/metrics"
	"github.com/reoring/tagtree/resource"
	"github.com/reoring/tagtree/tree"
)

// Gate validates nodes against schemas by URI. Compiled schemas are cached
// for the lifetime of the Gate; it is safe for concurrent use.
type Gate struct {
	resolver *resource.Resolver
	strict   bool
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
	group    singleflight.Group
}

type Option func(g *Gate)

// WithStrict reports only the first violation of each node.
func WithStrict(strict bool) Option {
	return func(g *Gate) {
		g.strict = strict
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New returns a Gate loading schemas through r.
func New(r *resource.Resolver, opts ...Option) *Gate {
	g := &Gate{resolver: r, compiled: map[string]*jsonschema.Schema{}}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	return g
}

var _ tagtree.Validator = (*Gate)(nil)

// Validate checks node against the schema at schemaURI. node may be a tree
// value or a plain JSON-like value. The error return is reserved for schemas
// that cannot be resolved or compiled; the node is never modified.
func (g *Gate) Validate(ctx context.Context, node any, schemaURI string) (tagtree.Violations, error) {
	sch, err := g.Compile(ctx, schemaURI)
	if err != nil {
		return nil, err
	}
	inst, err := tree.Plain(node)
	if err != nil {
		var ve *tree.ValueError
		if errors.As(err, &ve) {
			p := make(tagtree.Path, len(ve.Path))
			for i, s := range ve.Path {
				p[i] = s
			}
			return tagtree.Violations{{Path: typedPath(node, p), Message: ve.Reason}}, nil
		}
		return nil, err
	}
	var vs tagtree.Violations
	if err := sch.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return nil, fmt.Errorf("validate: %s: %w", schemaURI, err)
		}
		vs = flatten(inst, verr, nil)
	}
	vs.Sort()
	if len(vs) > 1 && (g.strict || tagtree.IsFailFast(ctx)) {
		vs = vs[:1]
	}
	g.metrics.AddViolations(len(vs))
	return vs, nil
}

// Compile returns the compiled schema for uri. The reference graph is
// resolved and checked for cross-document cycles first.
func (g *Gate) Compile(ctx context.Context, uri string) (*jsonschema.Schema, error) {
	if s := g.cached(uri); s != nil {
		return s, nil
	}
	ch := g.group.DoChan(uri, func() (any, error) {
		if s := g.cached(uri); s != nil {
			return s, nil
		}
		cctx := context.WithoutCancel(ctx)
		if err := g.resolver.Walk(cctx, uri, nil); err != nil {
			return nil, err
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		c.LoadURL = func(u string) (io.ReadCloser, error) {
			b, err := g.resolver.Content(cctx, u)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(bytes.NewReader(b)), nil
		}
		registerKeywords(c)
		s, err := c.Compile(uri)
		if err != nil {
			g.logger.WarnContext(ctx, "schema compile failed", "uri", uri, "error", err)
			return nil, &tagtree.SchemaNotFoundError{URI: uri, Err: err}
		}
		g.mu.Lock()
		g.compiled[uri] = s
		g.mu.Unlock()
		g.logger.DebugContext(ctx, "schema compiled", "uri", uri)
		return s, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*jsonschema.Schema), nil
	case <-ctx.Done():
		return nil, &tagtree.SchemaNotFoundError{URI: uri, Err: ctx.Err()}
	}
}

func (g *Gate) cached(uri string) *jsonschema.Schema {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.compiled[uri]
}

// flatten collects the leaf causes of a validation error.
func flatten(inst any, e *jsonschema.ValidationError, out tagtree.Violations) tagtree.Violations {
	if len(e.Causes) == 0 {
		return append(out, tagtree.Violation{
			Path:    pointerPath(inst, e.InstanceLocation),
			Keyword: lastSegment(e.KeywordLocation),
			Message: e.Message,
		})
	}
	for _, c := range e.Causes {
		out = flatten(inst, c, out)
	}
	return out
}

// pointerPath converts an instance location into a Path, turning segments
// that index sequences into ints.
func pointerPath(inst any, ptr string) tagtree.Path {
	segs := tagtree.ParsePointer(ptr)
	p := make(tagtree.Path, 0, len(segs))
	cur := inst
	for _, s := range segs {
		switch t := cur.(type) {
		case []any:
			if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(t) {
				p = append(p, i)
				cur = t[i]
				continue
			}
			cur = nil
		case map[string]any:
			cur = t[s]
		default:
			cur = nil
		}
		p = append(p, s)
	}
	return p
}

// typedPath re-types string segments that index sequences of a tree value.
func typedPath(node any, p tagtree.Path) tagtree.Path {
	out := make(tagtree.Path, 0, len(p))
	cur := node
	for _, e := range p {
		s, _ := e.(string)
		switch t := cur.(type) {
		case []any:
			if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(t) {
				out = append(out, i)
				cur = t[i]
				continue
			}
			cur = nil
		case *tree.Map:
			cur, _ = t.Get(s)
		default:
			cur = nil
		}
		out = append(out, s)
	}
	return out
}

func lastSegment(ptr string) string {
	if i := strings.LastIndexByte(ptr, '/'); i >= 0 {
		return ptr[i+1:]
	}
	return ptr
}
