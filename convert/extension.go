package convert

import (
	"embed"
	"sync"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/resource"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/validate"
)

//go:embed schemas
var schemaFS embed.FS

const (
	ManifestID   = "asdf://tagtree.dev/manifests/tagtree-1.0.0"
	ExtensionURI = "asdf://tagtree.dev/extensions/tagtree-1.0.0"
	SchemaPrefix = "asdf://tagtree.dev/schemas/"
)

// Mapping derives the schema URI of every bundled tag.
var Mapping = tagtree.TagMapping{TagPrefix: sci.Namespace + ":", SchemaPrefix: SchemaPrefix}

// Schemas returns a source serving the bundled schema documents.
func Schemas() *resource.FSStore {
	return resource.NewFSStore(schemaFS, resource.Mount{Prefix: SchemaPrefix, Dir: "schemas"})
}

// Register binds the converter of every bundled family. Each binding
// accepts the whole major version and writes the latest minor.
func Register(b *tagtree.RegistryBuilder) error {
	bindings := []struct {
		name    tagtree.Name
		current tagtree.Version
		conv    tagtree.Converter
	}{
		{sci.QuantityName, tagtree.V(1, 1, 0), quantityConverter{}},
		{sci.UnitName, tagtree.V(1, 0, 0), unitConverter{}},
		{sci.TimestampName, tagtree.V(1, 0, 0), timestampConverter{}},
		{sci.TimedeltaName, tagtree.V(1, 0, 0), timedeltaConverter{}},
		{sci.TimeSeriesName, tagtree.V(1, 2, 0), timeSeriesConverter{}},
		{sci.ExpressionName, tagtree.V(1, 0, 0), expressionConverter{}},
		{sci.LCSName, tagtree.V(1, 0, 0), lcsConverter{}},
		{sci.TransformationName, tagtree.V(1, 0, 0), transformationConverter{}},
		{sci.GrooveName, tagtree.V(1, 0, 0), grooveConverter{}},
		{sci.SpatialDataName, tagtree.V(1, 0, 0), spatialConverter{}},
		{sci.HierarchyName, tagtree.V(1, 0, 0), hierarchyConverter{}},
		{sci.MeasurementErrorName, tagtree.V(1, 0, 0), errorConverter{}},
		{sci.SourceName, tagtree.V(1, 0, 0), sourceConverter{}},
		{sci.EquipmentName, tagtree.V(1, 0, 0), equipmentConverter{}},
		{sci.MeasurementName, tagtree.V(1, 0, 0), measurementConverter{}},
	}
	for _, bd := range bindings {
		if err := b.Register(bd.name, tagtree.Major(bd.current.Major), bd.current, bd.conv); err != nil {
			return err
		}
	}
	return nil
}

// NewManifest builds the bundled manifest. The resolver must serve
// SchemaPrefix, normally by carrying Schemas() as a source.
func NewManifest(resolver tagtree.ContentResolver) (*tagtree.Manifest, error) {
	rb := tagtree.NewRegistryBuilder()
	if err := Register(rb); err != nil {
		return nil, err
	}
	mb := tagtree.NewMigratorBuilder()
	if err := Migrations(mb); err != nil {
		return nil, err
	}
	return tagtree.NewManifest(tagtree.ManifestConfig{
		ID:           ManifestID,
		ExtensionURI: ExtensionURI,
		Title:        "tagtree scientific objects",
		Registry:     rb.Build(),
		Migrator:     mb.Build(),
		Resolver:     resolver,
		TagMappings:  []tagtree.TagMapping{Mapping},
	})
}

// NewResolver returns a resolver over the bundled schemas followed by the
// sources in opts.
func NewResolver(opts ...resource.Option) *resource.Resolver {
	return resource.New(append([]resource.Option{resource.WithSource(Schemas())}, opts...)...)
}

var defaultResolver = sync.OnceValue(func() *resource.Resolver { return NewResolver() })

var extension = tagtree.NewExtension(func() (*tagtree.Manifest, error) {
	return NewManifest(defaultResolver())
})

// Default returns the bundled manifest. It is built once per process;
// concurrent first calls share the build.
func Default() (*tagtree.Manifest, error) {
	return extension.Manifest()
}

// NewSession returns a session over the default manifest, validated
// against the bundled schemas.
func NewSession(opts ...tagtree.SessionOption) (*tagtree.Session, error) {
	m, err := Default()
	if err != nil {
		return nil, err
	}
	return tagtree.NewSession(m, validate.New(defaultResolver()), opts...)
}
