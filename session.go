package tagtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reoring/tagtree/internal/metrics"
	"github.com/reoring/tagtree/tree"
)

// Entry is one top-level item of a document. Object is nil for untagged
// values, which are carried verbatim in Raw.
type Entry struct {
	Key    string
	Object Object
	Raw    any
}

// Session runs the write and read pipelines of one manifest. It holds no
// per-call state and is safe for concurrent use.
type Session struct {
	manifest  *Manifest
	validator Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	parallel  int
}

type SessionOption func(s *Session)

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithParallel processes up to n top-level entries concurrently. Values
// below 2 keep processing sequential.
func WithParallel(n int) SessionOption {
	return func(s *Session) {
		s.parallel = n
	}
}

// NewSession binds a manifest to the validator that enforces its schemas.
func NewSession(m *Manifest, v Validator, opts ...SessionOption) (*Session, error) {
	if m == nil || v == nil {
		return nil, errors.New("tagtree: session needs a manifest and a validator")
	}
	s := &Session{manifest: m, validator: v, parallel: 1}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Manifest returns the manifest the session serves.
func (s *Session) Manifest() *Manifest { return s.manifest }

// Encode converts one object into a validated tagged tree.
func (s *Session) Encode(ctx context.Context, obj Object) (*tree.Map, error) {
	c := &collector{failFast: IsFailFast(ctx)}
	node, _ := s.encodeNode(ctx, c, nil, obj)
	if err := c.report().Err(); err != nil {
		return nil, err
	}
	return node, nil
}

// Decode converts one tagged tree into its object. Older versions are
// migrated and every node is validated before conversion.
func (s *Session) Decode(ctx context.Context, node any) (Object, error) {
	c := &collector{failFast: IsFailFast(ctx)}
	obj, _ := s.decodeNode(ctx, c, nil, node)
	if err := c.report().Err(); err != nil {
		return nil, err
	}
	return obj, nil
}

// Dump encodes the entries into one document tree keyed by Entry.Key. Raw
// entries are written as given, after every tagged node inside them passes
// the same checks as Check. The tree is returned only when the report is
// valid.
func (s *Session) Dump(ctx context.Context, entries ...Entry) (*tree.Map, *Report) {
	c := &collector{failFast: IsFailFast(ctx)}
	out := make([]any, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Key] {
			c.add(Path{e.Key}, "", Malformed(nil, "duplicate document key %q", e.Key))
		}
		seen[e.Key] = true
	}
	s.each(ctx, c, len(entries), func(i int) {
		e := entries[i]
		p := Path{e.Key}
		if e.Object == nil {
			s.checkValue(ctx, c, p, e.Raw)
			out[i] = tree.Clone(e.Raw)
			return
		}
		if node, err := s.encodeNode(ctx, c, p, e.Object); err == nil {
			out[i] = node
		}
	})
	r := c.report()
	if !r.Valid() {
		s.logger.DebugContext(ctx, "document rejected on write", "problems", len(r.Problems))
		return nil, r
	}
	doc := tree.NewMap()
	for i, e := range entries {
		doc.Set(e.Key, out[i])
	}
	return doc, r
}

// Load decodes every top-level entry of doc. Tagged entries that fail are
// returned with a nil Object and reported; untagged entries are carried in
// Raw.
func (s *Session) Load(ctx context.Context, doc *tree.Map) ([]Entry, *Report) {
	c := &collector{failFast: IsFailFast(ctx)}
	keys := doc.Keys()
	out := make([]Entry, len(keys))
	s.each(ctx, c, len(keys), func(i int) {
		k := keys[i]
		v, _ := doc.Get(k)
		out[i] = Entry{Key: k}
		if m, ok := v.(*tree.Map); !ok || m.Tag() == "" {
			out[i].Raw = tree.Clone(v)
			return
		}
		if obj, err := s.decodeNode(ctx, c, Path{k}, v); err == nil {
			out[i].Object = obj
		}
	})
	r := c.report()
	if !r.Valid() {
		s.logger.DebugContext(ctx, "document rejected on read", "problems", len(r.Problems))
	}
	return out, r
}

// Check resolves, migrates and validates every tagged node in doc, nested
// ones included, without converting to objects.
func (s *Session) Check(ctx context.Context, doc any) *Report {
	c := &collector{failFast: IsFailFast(ctx)}
	root, ok := doc.(*tree.Map)
	if !ok || root.Tag() != "" {
		s.checkValue(ctx, c, nil, doc)
		return c.report()
	}
	keys := root.Keys()
	s.each(ctx, c, len(keys), func(i int) {
		v, _ := root.Get(keys[i])
		s.checkValue(ctx, c, Path{keys[i]}, v)
	})
	return c.report()
}

// each runs fn for 0..n-1, concurrently when the session is parallel, and
// stops scheduling once fail-fast processing has recorded a problem.
func (s *Session) each(ctx context.Context, c *collector, n int, fn func(i int)) {
	if s.parallel < 2 || n < 2 {
		for i := 0; i < n; i++ {
			if c.stopped() {
				return
			}
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i := 0; i < n; i++ {
		if c.stopped() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !c.stopped() {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Session) checkValue(ctx context.Context, c *collector, p Path, v any) {
	if c.stopped() {
		return
	}
	switch t := v.(type) {
	case *tree.Map:
		if t.Tag() != "" {
			s.checkNode(ctx, c, p, t)
		}
		t.Range(func(k string, cv any) bool {
			if k != tree.TagKey {
				s.checkValue(ctx, c, p.Key(k), cv)
			}
			return !c.stopped()
		})
	case []any:
		for i, it := range t {
			s.checkValue(ctx, c, p.Index(i), it)
		}
	}
}

func (s *Session) checkNode(ctx context.Context, c *collector, p Path, node *tree.Map) {
	raw := node.Tag()
	_, b, migrated, err := s.prepare(c, p, node)
	if err == nil {
		err = s.validate(ctx, b.Tag(), migrated)
	}
	if err != nil {
		c.add(p, raw, err)
	}
}

func (s *Session) encodeNode(ctx context.Context, c *collector, p Path, obj Object) (*tree.Map, error) {
	start := time.Now()
	node, err := s.encodeOne(ctx, c, p, obj)
	s.metrics.ObserveConversion("encode", err, start)
	return node, err
}

func (s *Session) encodeOne(ctx context.Context, c *collector, p Path, obj Object) (*tree.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.add(p, "", err)
	}
	if obj == nil {
		return nil, c.add(p, "", Malformed(nil, "nil object"))
	}
	b, err := s.manifest.Registry().Lookup(obj.TagName())
	if err != nil {
		return nil, c.add(p, obj.TagName().String(), err)
	}
	tag := b.Tag()
	node, err := b.Converter.ToTree(&encodeState{s: s, ctx: ctx, c: c, base: p}, obj)
	if err != nil {
		return nil, c.add(p, tag.String(), err)
	}
	if node == nil {
		return nil, c.add(p, tag.String(), fmt.Errorf("tagtree: converter for %s returned no tree", tag))
	}
	node.SetTag(tag.String())
	if err := s.validate(ctx, tag, node); err != nil {
		return nil, c.add(p, tag.String(), err)
	}
	s.logger.DebugContext(ctx, "encoded node", "path", p.Pointer(), "tag", tag.String())
	return node, nil
}

func (s *Session) decodeNode(ctx context.Context, c *collector, p Path, v any) (Object, error) {
	start := time.Now()
	obj, err := s.decodeOne(ctx, c, p, v)
	s.metrics.ObserveConversion("decode", err, start)
	return obj, err
}

func (s *Session) decodeOne(ctx context.Context, c *collector, p Path, v any) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.add(p, "", err)
	}
	node, ok := v.(*tree.Map)
	if !ok || node.Tag() == "" {
		return nil, c.add(p, "", Malformed(nil, "expected a tagged mapping, got %s", describe(v)))
	}
	raw := node.Tag()
	tag, b, migrated, err := s.prepare(c, p, node)
	if err != nil {
		return nil, c.add(p, raw, err)
	}
	if err := s.validate(ctx, b.Tag(), migrated); err != nil {
		return nil, c.add(p, raw, err)
	}
	obj, err := b.Converter.FromTree(&decodeState{s: s, ctx: ctx, c: c, base: p}, migrated)
	if err != nil {
		return nil, c.add(p, raw, err)
	}
	if obj == nil {
		return nil, c.add(p, raw, fmt.Errorf("tagtree: converter for %s returned no object", b.Tag()))
	}
	if tag.Version != b.Current {
		s.logger.DebugContext(ctx, "decoded migrated node", "path", p.Pointer(), "from", tag.String(), "to", b.Tag().String())
	}
	return obj, nil
}

// prepare resolves the binding of a tagged node and migrates it, and every
// tagged node below it, to the current version of its binding. Children are
// migrated before their parent so the parent schema sees current children.
// Failures of nested nodes are recorded at their own path.
func (s *Session) prepare(c *collector, p Path, node *tree.Map) (Tag, Binding, *tree.Map, error) {
	tag, b, err := s.manifest.Registry().ResolveString(node.Tag())
	if err != nil {
		return Tag{}, Binding{}, nil, err
	}
	inner, _, err := s.upgradeChildren(c, p, node)
	if err != nil {
		return Tag{}, Binding{}, nil, err
	}
	migrated, err := s.manifest.Migrator().Migrate(tag.Name, inner, tag.Version, b.Current)
	if err != nil {
		return Tag{}, Binding{}, nil, err
	}
	return tag, b, migrated, nil
}

// upgradeChildren migrates the tagged nodes below m. Unchanged subtrees are
// shared with m; m itself is never modified.
func (s *Session) upgradeChildren(c *collector, p Path, m *tree.Map) (*tree.Map, bool, error) {
	var out *tree.Map
	for _, k := range m.Keys() {
		if k == tree.TagKey {
			continue
		}
		cv, _ := m.Get(k)
		nv, changed, err := s.upgradeValue(c, p.Key(k), cv)
		if err != nil {
			return nil, false, err
		}
		if changed && out == nil {
			out = tree.NewMap()
			for _, kk := range m.Keys() {
				v, _ := m.Get(kk)
				out.Set(kk, v)
			}
		}
		if changed {
			out.Set(k, nv)
		}
	}
	if out == nil {
		return m, false, nil
	}
	return out, true, nil
}

func (s *Session) upgradeValue(c *collector, p Path, v any) (any, bool, error) {
	switch t := v.(type) {
	case *tree.Map:
		if t.Tag() == "" {
			return s.upgradeChildren(c, p, t)
		}
		_, _, migrated, err := s.prepare(c, p, t)
		if err != nil {
			return nil, false, c.add(p, t.Tag(), err)
		}
		return migrated, migrated != t, nil
	case []any:
		var out []any
		for i, it := range t {
			nv, changed, err := s.upgradeValue(c, p.Index(i), it)
			if err != nil {
				return nil, false, err
			}
			if changed && out == nil {
				out = append([]any(nil), t...)
			}
			if changed {
				out[i] = nv
			}
		}
		if out == nil {
			return t, false, nil
		}
		return out, true, nil
	default:
		return v, false, nil
	}
}

func (s *Session) validate(ctx context.Context, tag Tag, node *tree.Map) error {
	uri, ok := s.manifest.SchemaURI(tag)
	if !ok {
		return &SchemaNotFoundError{URI: tag.String(), Err: errors.New("no schema mapping for tag")}
	}
	vs, err := s.validator.Validate(ctx, node, uri)
	if err != nil {
		return err
	}
	if len(vs) > 0 {
		return &ValidationError{Tag: tag, SchemaURI: uri, Violations: vs}
	}
	return nil
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case *tree.Map:
		return "an untagged mapping"
	case []any:
		return "a sequence"
	default:
		return fmt.Sprintf("%T", t)
	}
}

type encodeState struct {
	s    *Session
	ctx  context.Context
	c    *collector
	base Path
}

func (e *encodeState) Context() context.Context { return e.ctx }

func (e *encodeState) Encode(p Path, obj Object) (*tree.Map, error) {
	return e.s.encodeNode(e.ctx, e.c, e.base.Join(p), obj)
}

type decodeState struct {
	s    *Session
	ctx  context.Context
	c    *collector
	base Path
}

func (d *decodeState) Context() context.Context { return d.ctx }

func (d *decodeState) Decode(p Path, node any) (Object, error) {
	return d.s.decodeNode(d.ctx, d.c, d.base.Join(p), node)
}
