// Package resource resolves schema URIs to schema documents.
//
// A Resolver consults its sources in order (bundled stores first, then an
// optional remote fetcher) and caches each successfully loaded schema for
// its lifetime. Concurrent requests for the same URI share one load.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/internal/metrics"
)

// DefaultTimeout bounds a single underlying load.
const DefaultTimeout = 10 * time.Second

// Resolver maps schema URIs to immutable Schemas.
type Resolver struct {
	sources []Source
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	cache map[string]*Schema
	group singleflight.Group
	loads atomic.Int64
}

type Option func(r *Resolver)

// WithSource appends a source. Sources are consulted in the order added.
func WithSource(src Source) Option {
	return func(r *Resolver) {
		if src != nil {
			r.sources = append(r.sources, src)
		}
	}
}

// WithTimeout bounds each underlying load.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New constructs a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{timeout: DefaultTimeout, cache: map[string]*Schema{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Resolve returns the schema for uri, loading it on first use. Failures are
// reported as *tagtree.SchemaNotFoundError and are not cached.
func (r *Resolver) Resolve(ctx context.Context, uri string) (*Schema, error) {
	uri = withoutFragment(uri)
	if s := r.cached(uri); s != nil {
		r.metrics.IncSchemaCacheHit()
		return s, nil
	}
	ch := r.group.DoChan(uri, func() (any, error) {
		if s := r.cached(uri); s != nil {
			return s, nil
		}
		// The load is shared by every waiter, so it must outlive the
		// context of whichever caller started it.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		s, err := r.load(lctx, uri)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if prev, ok := r.cache[uri]; ok {
			s = prev
		} else {
			r.cache[uri] = s
		}
		r.mu.Unlock()
		return s, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Schema), nil
	case <-ctx.Done():
		return nil, &tagtree.SchemaNotFoundError{URI: uri, Err: ctx.Err()}
	}
}

// Content returns the canonical JSON bytes of the schema at uri.
func (r *Resolver) Content(ctx context.Context, uri string) ([]byte, error) {
	s, err := r.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// Walk resolves uri and every document reachable through $ref, depth
// first, calling fn once per schema before its references. A reference
// chain leading back to a document still being walked is reported as a
// *tagtree.SchemaCycleError.
func (r *Resolver) Walk(ctx context.Context, uri string, fn func(*Schema) error) error {
	done := map[string]bool{}
	var stack []string
	var visit func(u string) error
	visit = func(u string) error {
		if i := slices.Index(stack, u); i >= 0 {
			chain := append(append([]string(nil), stack[i:]...), u)
			return &tagtree.SchemaCycleError{Chain: chain}
		}
		if done[u] {
			return nil
		}
		s, err := r.Resolve(ctx, u)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(s); err != nil {
				return err
			}
		}
		stack = append(stack, u)
		for _, ref := range s.refs {
			if err := visit(ref); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		done[u] = true
		return nil
	}
	return visit(withoutFragment(uri))
}

// Loads returns the number of underlying loads performed.
func (r *Resolver) Loads() int64 { return r.loads.Load() }

// URIs lists the URIs of every source that can enumerate them.
func (r *Resolver) URIs() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, src := range r.sources {
		l, ok := src.(Lister)
		if !ok {
			continue
		}
		uris, err := l.URIs()
		if err != nil {
			return nil, err
		}
		for _, u := range uris {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Resolver) cached(uri string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[uri]
}

func (r *Resolver) load(ctx context.Context, uri string) (*Schema, error) {
	var lastErr error
	for _, src := range r.sources {
		start := time.Now()
		raw, err := src.Load(ctx, uri)
		if errors.Is(err, ErrNotServed) {
			continue
		}
		r.loads.Add(1)
		if err == nil {
			var s *Schema
			s, err = Parse(uri, raw)
			if err == nil {
				r.metrics.ObserveSchemaLoad(sourceName(src), nil, start)
				r.logger.DebugContext(ctx, "schema loaded", "uri", uri, "source", sourceName(src), "digest", s.Digest())
				return s, nil
			}
		}
		r.metrics.ObserveSchemaLoad(sourceName(src), err, start)
		r.logger.WarnContext(ctx, "schema load failed", "uri", uri, "source", sourceName(src), "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no source serves %q", uri)
	}
	return nil, &tagtree.SchemaNotFoundError{URI: uri, Err: lastErr}
}

func sourceName(src Source) string {
	switch src.(type) {
	case *FSStore:
		return "fs"
	case MapStore:
		return "memory"
	case *HTTPFetcher:
		return "http"
	default:
		return "custom"
	}
}
