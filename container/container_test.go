package container_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/tagtree/container"
	"github.com/reoring/tagtree/tree"
)

// sample keeps keys sorted so that CBOR, which sorts keys, round-trips
// to an identical tree.
func sample() *tree.Map {
	return tree.NewMap().
		Set("force", tree.NewMap().SetTag("tagtree.dev:unit/quantity-1.1.0").Set("unit", "kN").Set("value", 12.5)).
		Set("note", "calibrated").
		Set("samples", []any{int64(1), int64(-2), 3.25, true, nil})
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"doc.yaml", "doc.yml", "doc.json", "doc.cbor"} {
		t.Run(name, func(t *testing.T) {
			c, err := container.CodecFor(name)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, container.Write(&buf, c, sample()))
			got, err := container.Read(&buf, c)
			require.NoError(t, err)
			assert.True(t, tree.Equal(sample(), got), "got keys %v", got.Keys())
		})
	}
}

func TestYAMLKeepsKeyOrder(t *testing.T) {
	c, err := container.CodecFor("x.yaml")
	require.NoError(t, err)
	doc := tree.NewMap().Set("zeta", int64(1)).Set("alpha", int64(2))
	var buf bytes.Buffer
	require.NoError(t, container.Write(&buf, c, doc))
	assert.True(t, strings.HasPrefix(buf.String(), "tagtree_version: 1.0.0\n"), buf.String())

	got, err := container.Read(&buf, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, got.Keys())
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "a.json", "a.cbor"} {
		p := filepath.Join(dir, name)
		require.NoError(t, container.WriteFile(p, sample()))
		got, err := container.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, tree.Equal(sample(), got), name)
	}

	_, err := container.ReadFile(filepath.Join(dir, "a.toml"))
	assert.ErrorIs(t, err, container.ErrUnknownFormat)
}

func TestRejectsForeignDocuments(t *testing.T) {
	c, err := container.CodecFor("x.yaml")
	require.NoError(t, err)
	cases := map[string]string{
		"not a mapping":   "- 1\n- 2\n",
		"missing version": "tree: {}\n",
		"bad version":     "tagtree_version: one\ntree: {}\n",
		"tree not a map":  "tagtree_version: 1.0.0\ntree: [1]\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := container.Read(strings.NewReader(in), c)
			assert.ErrorIs(t, err, container.ErrNotContainer)
		})
	}

	_, err = container.Read(strings.NewReader("tagtree_version: 2.0.0\ntree: {}\n"), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2.0.0")
}

func TestMissingTreeIsEmpty(t *testing.T) {
	c, err := container.CodecFor("x.json")
	require.NoError(t, err)
	got, err := container.Read(strings.NewReader(`{"tagtree_version": "1.0.0"}`), c)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}
