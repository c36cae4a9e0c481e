package tagtree_test

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/tagtree"
)

func TestManifestBindings(t *testing.T) {
	m := testManifest()
	tbs := m.TagBindings()
	require.Len(t, tbs, 2)
	assert.Equal(t, "test.dev:geo/point-1.*", tbs[0].Pattern)
	assert.Equal(t, "test.dev:geo/point-1.1.0", tbs[0].Tag.String())
	assert.Equal(t, "asdf://test.dev/schemas/geo/point-1.1.0", tbs[0].SchemaURI)

	sbs := m.SchemaBindings()
	require.Len(t, sbs, 1)
	assert.Equal(t, "asdf://test.dev/schemas/*", sbs[0].Pattern)
	assert.True(t, m.ServesSchema("asdf://test.dev/schemas/geo/point-1.0.0"))
	assert.False(t, m.ServesSchema("asdf://other.dev/schemas/geo/point-1.0.0"))
}

func TestSchemaURIPrefersLongestPrefix(t *testing.T) {
	m, err := tagtree.NewManifest(tagtree.ManifestConfig{
		ID:       "m",
		Registry: testRegistry(),
		Resolver: emptySchemas,
		TagMappings: []tagtree.TagMapping{
			{TagPrefix: "test.dev:", SchemaPrefix: "asdf://test.dev/schemas/"},
			{TagPrefix: "test.dev:geo/segment", SchemaPrefix: "asdf://test.dev/legacy/segment"},
		},
	})
	require.NoError(t, err)
	uri, ok := m.SchemaURI(segmentName.At(tagtree.V(1, 0, 0)))
	require.True(t, ok)
	assert.Equal(t, "asdf://test.dev/legacy/segment-1.0.0", uri)

	_, ok = m.SchemaURI(tagtree.MustParseTag("other.dev:x-1.0.0"))
	assert.False(t, ok)
	assert.Empty(t, m.Migrator().Rules(pointName))
}

func TestNewManifestRejects(t *testing.T) {
	_, err := tagtree.NewManifest(tagtree.ManifestConfig{ID: "m", Resolver: emptySchemas})
	assert.Error(t, err)
	_, err = tagtree.NewManifest(tagtree.ManifestConfig{ID: "m", Registry: testRegistry()})
	assert.Error(t, err)
	_, err = tagtree.NewManifest(tagtree.ManifestConfig{
		ID:          "m",
		Registry:    testRegistry(),
		Resolver:    emptySchemas,
		TagMappings: []tagtree.TagMapping{{TagPrefix: "elsewhere:", SchemaPrefix: "asdf://elsewhere/"}},
	})
	assert.ErrorContains(t, err, "no schema mapping")
}

func TestManifestYAML(t *testing.T) {
	data, err := testManifest().YAML()
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, "%YAML 1.1\n---\n"), s)
	assert.True(t, strings.HasSuffix(s, "...\n"), s)
	assert.Contains(t, s, "extension_uri: asdf://test.dev/extensions/geo-1.0.0")

	entries, err := tagtree.ParseManifestEntries([]byte(strings.TrimPrefix(strings.TrimSuffix(s, "...\n"), "%YAML 1.1\n")))
	require.NoError(t, err)
	assert.Equal(t, []tagtree.ManifestEntry{
		{TagURI: "test.dev:geo/point-1.1.0", SchemaURI: "asdf://test.dev/schemas/geo/point-1.1.0"},
		{TagURI: "test.dev:geo/segment-1.0.0", SchemaURI: "asdf://test.dev/schemas/geo/segment-1.0.0"},
	}, entries)
}

func TestExtensionBuildsOnce(t *testing.T) {
	var builds atomic.Int64
	ext := tagtree.NewExtension(func() (*tagtree.Manifest, error) {
		builds.Add(1)
		return testManifest(), nil
	})
	var wg sync.WaitGroup
	got := make([]*tagtree.Manifest, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := ext.Manifest()
			assert.NoError(t, err)
			got[i] = m
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), builds.Load())
	for _, m := range got {
		assert.Same(t, got[0], m)
	}
}

func TestExtensionKeepsBuildError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	ext := tagtree.NewExtension(func() (*tagtree.Manifest, error) {
		calls++
		return nil, boom
	})
	_, err := ext.Manifest()
	assert.ErrorIs(t, err, boom)
	_, err = ext.Manifest()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	panicky := tagtree.NewExtension(func() (*tagtree.Manifest, error) { panic("half built") })
	_, err = panicky.Manifest()
	assert.ErrorContains(t, err, "half built")
}
