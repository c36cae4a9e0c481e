package tagtree

import (
	"errors"
	"fmt"
	"sort"
)

// Binding attaches a converter to a tag family over a version range. Current
// is the version the converter writes and expects after migration.
type Binding struct {
	Name      Name
	Range     VersionRange
	Current   Version
	Converter Converter
}

// Tag returns the tag written by this binding.
func (b Binding) Tag() Tag { return b.Name.At(b.Current) }

// Pattern returns the tag pattern this binding answers to on read, e.g.
// "ns:unit/quantity-1.*" for a single-major range.
func (b Binding) Pattern() string {
	if b.Range.Min.Minor == 0 && b.Range.Min.Patch == 0 && b.Range.Max == V(b.Range.Min.Major+1, 0, 0) {
		return fmt.Sprintf("%s-%d.*", b.Name, b.Range.Min.Major)
	}
	return b.Name.String() + "-" + b.Range.String()
}

// RegistryBuilder collects bindings during initialization. It is not safe for
// concurrent use.
type RegistryBuilder struct {
	byName map[Name][]Binding
	built  bool
}

// ErrRegistryFrozen is returned by Register after Build.
var ErrRegistryFrozen = errors.New("tagtree: registry is frozen")

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{byName: map[Name][]Binding{}}
}

// Register binds c to name for versions in r. current must lie in r. A range
// overlapping an existing binding for the same name is a
// *DuplicateBindingError.
func (b *RegistryBuilder) Register(name Name, r VersionRange, current Version, c Converter) error {
	if b.built {
		return ErrRegistryFrozen
	}
	if name.Namespace == "" || name.Name == "" {
		return fmt.Errorf("tagtree: register %q: empty namespace or name", name)
	}
	if c == nil {
		return fmt.Errorf("tagtree: register %s: nil converter", name)
	}
	if r.Empty() {
		return fmt.Errorf("tagtree: register %s: empty range %s", name, r)
	}
	if !r.Contains(current) {
		return fmt.Errorf("tagtree: register %s: current version %s outside %s", name, current, r)
	}
	for _, ex := range b.byName[name] {
		if ex.Range.Overlaps(r) {
			return &DuplicateBindingError{Name: name, Existing: ex.Range, Added: r}
		}
	}
	b.byName[name] = append(b.byName[name], Binding{Name: name, Range: r, Current: current, Converter: c})
	return nil
}

// MustRegister is Register for static initialization; it panics on error.
func (b *RegistryBuilder) MustRegister(name Name, r VersionRange, current Version, c Converter) {
	if err := b.Register(name, r, current, c); err != nil {
		panic(err)
	}
}

// Build freezes the builder and returns the registry.
func (b *RegistryBuilder) Build() *Registry {
	b.built = true
	reg := &Registry{byName: make(map[Name][]Binding, len(b.byName))}
	for name, bs := range b.byName {
		sorted := append([]Binding(nil), bs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Min.Less(sorted[j].Range.Min) })
		reg.byName[name] = sorted
	}
	return reg
}

// Registry maps tags to converter bindings. It is immutable and safe for
// concurrent reads.
type Registry struct {
	byName map[Name][]Binding
}

// Resolve returns the binding covering tag.
func (r *Registry) Resolve(tag Tag) (Binding, error) {
	bs, ok := r.byName[tag.Name]
	if !ok {
		return Binding{}, &UnknownTagError{Tag: tag.String()}
	}
	for _, b := range bs {
		if b.Range.Contains(tag.Version) {
			return b, nil
		}
	}
	ranges := make([]VersionRange, len(bs))
	for i, b := range bs {
		ranges[i] = b.Range
	}
	return Binding{}, &UnsupportedVersionError{Tag: tag, Supported: ranges}
}

// ResolveString parses and resolves a wire tag.
func (r *Registry) ResolveString(s string) (Tag, Binding, error) {
	t, err := ParseTag(s)
	if err != nil {
		return Tag{}, Binding{}, err
	}
	b, err := r.Resolve(t)
	return t, b, err
}

// Lookup returns the newest binding for a tag family; used on write.
func (r *Registry) Lookup(name Name) (Binding, error) {
	bs, ok := r.byName[name]
	if !ok || len(bs) == 0 {
		return Binding{}, &UnknownTagError{Tag: name.String()}
	}
	return bs[len(bs)-1], nil
}

// Bindings returns every binding ordered by written tag.
func (r *Registry) Bindings() []Binding {
	var out []Binding
	for _, bs := range r.byName {
		out = append(out, bs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name.String() < out[j].Name.String()
		}
		return out[i].Current.Less(out[j].Current)
	})
	return out
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	n := 0
	for _, bs := range r.byName {
		n += len(bs)
	}
	return n
}
