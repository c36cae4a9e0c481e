package tagtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/tagtree"
)

func TestRegisterRejectsOverlap(t *testing.T) {
	b := tagtree.NewRegistryBuilder()
	require.NoError(t, b.Register(pointName, tagtree.Major(1), tagtree.V(1, 1, 0), pointConverter))
	require.NoError(t, b.Register(pointName, tagtree.Major(2), tagtree.V(2, 0, 0), pointConverter))

	err := b.Register(pointName, tagtree.VersionRange{Min: tagtree.V(1, 5, 0), Max: tagtree.V(2, 1, 0)}, tagtree.V(1, 5, 0), pointConverter)
	var de *tagtree.DuplicateBindingError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, tagtree.Major(1), de.Existing)
	assert.Equal(t, tagtree.CodeDuplicateBinding, tagtree.CodeOf(err))

	assert.Error(t, b.Register(segmentName, tagtree.Major(1), tagtree.V(2, 0, 0), segmentConverter), "current outside range")
	assert.Error(t, b.Register(segmentName, tagtree.Major(1), tagtree.V(1, 0, 0), nil), "nil converter")
	assert.Error(t, b.Register(tagtree.Name{Name: "x"}, tagtree.Major(1), tagtree.V(1, 0, 0), segmentConverter), "no namespace")
	assert.Error(t, b.Register(segmentName, tagtree.VersionRange{}, tagtree.V(0, 0, 0), segmentConverter), "empty range")

	reg := b.Build()
	assert.ErrorIs(t, b.Register(segmentName, tagtree.Major(1), tagtree.V(1, 0, 0), segmentConverter), tagtree.ErrRegistryFrozen)
	assert.Equal(t, 2, reg.Len())
	assert.Panics(t, func() { b.MustRegister(segmentName, tagtree.Major(1), tagtree.V(1, 0, 0), segmentConverter) })
}

func TestResolve(t *testing.T) {
	b := tagtree.NewRegistryBuilder()
	b.MustRegister(pointName, tagtree.Major(2), tagtree.V(2, 0, 0), pointConverter)
	b.MustRegister(pointName, tagtree.Major(1), tagtree.V(1, 1, 0), pointConverter)
	b.MustRegister(segmentName, tagtree.Major(1), tagtree.V(1, 0, 0), segmentConverter)
	reg := b.Build()

	bnd, err := reg.Resolve(pointName.At(tagtree.V(1, 0, 3)))
	require.NoError(t, err)
	assert.Equal(t, tagtree.V(1, 1, 0), bnd.Current)
	assert.Equal(t, "test.dev:geo/point-1.*", bnd.Pattern())

	tag, bnd, err := reg.ResolveString("test.dev:geo/point-2.4.0")
	require.NoError(t, err)
	assert.Equal(t, tagtree.V(2, 4, 0), tag.Version)
	assert.Equal(t, "test.dev:geo/point-2.0.0", bnd.Tag().String())

	_, err = reg.Resolve(pointName.At(tagtree.V(3, 0, 0)))
	var uv *tagtree.UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, []tagtree.VersionRange{tagtree.Major(1), tagtree.Major(2)}, uv.Supported)

	_, _, err = reg.ResolveString("test.dev:geo/circle-1.0.0")
	assert.ErrorIs(t, err, tagtree.ErrUnknownTag)
	_, _, err = reg.ResolveString("circle")
	assert.ErrorIs(t, err, tagtree.ErrUnknownTag)

	newest, err := reg.Lookup(pointName)
	require.NoError(t, err)
	assert.Equal(t, tagtree.V(2, 0, 0), newest.Current)
	_, err = reg.Lookup(tagtree.Name{Namespace: "test.dev", Name: "nope"})
	assert.ErrorIs(t, err, tagtree.ErrUnknownTag)

	var tags []string
	for _, b := range reg.Bindings() {
		tags = append(tags, b.Tag().String())
	}
	assert.Equal(t, []string{"test.dev:geo/point-1.1.0", "test.dev:geo/point-2.0.0", "test.dev:geo/segment-1.0.0"}, tags)
}

func TestBindingPatternForPartialRange(t *testing.T) {
	bnd := tagtree.Binding{Name: pointName, Range: tagtree.VersionRange{Min: tagtree.V(1, 2, 0), Max: tagtree.V(1, 5, 0)}, Current: tagtree.V(1, 4, 0)}
	assert.Equal(t, "test.dev:geo/point-[1.2.0, 1.5.0)", bnd.Pattern())
}
