package tagtree

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// TagMapping derives schema URIs from tags: a tag starting with TagPrefix is
// governed by SchemaPrefix followed by the rest of the tag.
//
//	{TagPrefix: "tagtree.dev:", SchemaPrefix: "asdf://tagtree.dev/schemas/"}
//	tagtree.dev:unit/quantity-1.1.0 -> asdf://tagtree.dev/schemas/unit/quantity-1.1.0
type TagMapping struct {
	TagPrefix    string
	SchemaPrefix string
}

// ManifestConfig describes an extension.
type ManifestConfig struct {
	ID           string
	ExtensionURI string
	Title        string
	Registry     *Registry
	Migrator     *Migrator
	Resolver     ContentResolver
	TagMappings  []TagMapping
	// SchemaPatterns lists the schema URI patterns Resolver answers for. When
	// empty, the SchemaPrefix of every TagMapping is used.
	SchemaPatterns []string
}

// TagBinding is one entry of the tag collection exposed to a document engine.
type TagBinding struct {
	Pattern   string // Tag pattern accepted on read.
	Tag       Tag    // Tag written.
	SchemaURI string // Schema of the written tag.
	Converter Converter
}

// SchemaBinding is one entry of the schema collection exposed to a document
// engine.
type SchemaBinding struct {
	Pattern  string
	Resolver ContentResolver
}

// Manifest aggregates tag and schema bindings. It is immutable.
type Manifest struct {
	id, extensionURI, title string
	registry                *Registry
	migrator                *Migrator
	resolver                ContentResolver
	mappings                []TagMapping
	tags                    []TagBinding
	schemas                 []SchemaBinding
}

// NewManifest checks that every binding maps to a schema URI and freezes the
// aggregated collections.
func NewManifest(cfg ManifestConfig) (*Manifest, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tagtree: manifest %q: nil registry", cfg.ID)
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("tagtree: manifest %q: nil resolver", cfg.ID)
	}
	if cfg.Migrator == nil {
		cfg.Migrator = NewMigratorBuilder().Build()
	}
	m := &Manifest{
		id:           cfg.ID,
		extensionURI: cfg.ExtensionURI,
		title:        cfg.Title,
		registry:     cfg.Registry,
		migrator:     cfg.Migrator,
		resolver:     cfg.Resolver,
		mappings:     append([]TagMapping(nil), cfg.TagMappings...),
	}
	for _, b := range cfg.Registry.Bindings() {
		uri, ok := m.SchemaURI(b.Tag())
		if !ok {
			return nil, fmt.Errorf("tagtree: manifest %q: no schema mapping for %s", cfg.ID, b.Tag())
		}
		m.tags = append(m.tags, TagBinding{Pattern: b.Pattern(), Tag: b.Tag(), SchemaURI: uri, Converter: b.Converter})
	}
	patterns := cfg.SchemaPatterns
	if len(patterns) == 0 {
		for _, tm := range m.mappings {
			patterns = append(patterns, tm.SchemaPrefix+"*")
		}
	}
	seen := map[string]bool{}
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		m.schemas = append(m.schemas, SchemaBinding{Pattern: p, Resolver: cfg.Resolver})
	}
	sort.Slice(m.schemas, func(i, j int) bool { return m.schemas[i].Pattern < m.schemas[j].Pattern })
	return m, nil
}

func (m *Manifest) ID() string                { return m.id }
func (m *Manifest) ExtensionURI() string      { return m.extensionURI }
func (m *Manifest) Registry() *Registry       { return m.registry }
func (m *Manifest) Migrator() *Migrator       { return m.migrator }
func (m *Manifest) Resolver() ContentResolver { return m.resolver }

// TagBindings returns the tag collection, ordered by tag.
func (m *Manifest) TagBindings() []TagBinding { return append([]TagBinding(nil), m.tags...) }

// SchemaBindings returns the schema collection, ordered by pattern.
func (m *Manifest) SchemaBindings() []SchemaBinding {
	return append([]SchemaBinding(nil), m.schemas...)
}

// SchemaURI maps a tag to its schema URI using the longest matching prefix.
func (m *Manifest) SchemaURI(t Tag) (string, bool) {
	s := t.String()
	best := -1
	for i, tm := range m.mappings {
		if strings.HasPrefix(s, tm.TagPrefix) && (best < 0 || len(tm.TagPrefix) > len(m.mappings[best].TagPrefix)) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return m.mappings[best].SchemaPrefix + strings.TrimPrefix(s, m.mappings[best].TagPrefix), true
}

// ServesSchema reports whether a schema binding covers uri.
func (m *Manifest) ServesSchema(uri string) bool {
	for _, sb := range m.schemas {
		if MatchTag(sb.Pattern, uri) {
			return true
		}
	}
	return false
}

// ManifestEntry is one tag_uri/schema_uri pair of the manifest document.
type ManifestEntry struct {
	TagURI    string `yaml:"tag_uri"`
	SchemaURI string `yaml:"schema_uri"`
}

type manifestDoc struct {
	ID           string          `yaml:"id"`
	ExtensionURI string          `yaml:"extension_uri"`
	Title        string          `yaml:"title,omitempty"`
	Tags         []ManifestEntry `yaml:"tags"`
}

// Entries returns the tag_uri/schema_uri pairs in tag order.
func (m *Manifest) Entries() []ManifestEntry {
	out := make([]ManifestEntry, len(m.tags))
	for i, tb := range m.tags {
		out[i] = ManifestEntry{TagURI: tb.Tag.String(), SchemaURI: tb.SchemaURI}
	}
	return out
}

// YAML renders the manifest document.
func (m *Manifest) YAML() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("%YAML 1.1\n---\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(manifestDoc{ID: m.id, ExtensionURI: m.extensionURI, Title: m.title, Tags: m.Entries()}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	b.WriteString("...\n")
	return b.Bytes(), nil
}

// ParseManifestEntries reads the tag entries of a manifest document.
func ParseManifestEntries(data []byte) ([]ManifestEntry, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tagtree: manifest: %w", err)
	}
	return doc.Tags, nil
}

// Extension builds a manifest once per process. Concurrent and repeated
// calls share one build; a build error is returned to every caller.
type Extension struct {
	once  sync.Once
	build func() (*Manifest, error)
	m     *Manifest
	err   error
}

// NewExtension wraps a manifest constructor behind a single-flight guard.
func NewExtension(build func() (*Manifest, error)) *Extension {
	return &Extension{build: build}
}

// Manifest returns the built manifest.
func (e *Extension) Manifest() (*Manifest, error) {
	e.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				e.err = fmt.Errorf("tagtree: extension init: %v", r)
			}
		}()
		e.m, e.err = e.build()
	})
	return e.m, e.err
}
