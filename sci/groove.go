package sci

import (
	"maps"
	"slices"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

// GrooveKind discriminates the ISO 9692-1 groove shapes.
type GrooveKind string

const (
	VGroove   GrooveKind = "VGroove"
	VVGroove  GrooveKind = "VVGroove"
	UVGroove  GrooveKind = "UVGroove"
	UGroove   GrooveKind = "UGroove"
	IGroove   GrooveKind = "IGroove"
	HVGroove  GrooveKind = "HVGroove"
	HUGroove  GrooveKind = "HUGroove"
	DVGroove  GrooveKind = "DVGroove"
	DUGroove  GrooveKind = "DUGroove"
	DHVGroove GrooveKind = "DHVGroove"
	DHUGroove GrooveKind = "DHUGroove"
	FFGroove  GrooveKind = "FFGroove"
)

// GrooveSpec lists the parameters of one groove kind and the ISO 9692-1
// code numbers it covers.
type GrooveSpec struct {
	Required    []string
	Optional    []string
	CodeNumbers []string
}

var grooveSpecs = map[GrooveKind]GrooveSpec{
	IGroove:   {Required: []string{"t"}, Optional: []string{"b"}, CodeNumbers: []string{"1.2.1", "1.2.2", "2.1"}},
	VGroove:   {Required: []string{"t", "alpha"}, Optional: []string{"b", "c"}, CodeNumbers: []string{"1.3", "1.5"}},
	VVGroove:  {Required: []string{"t", "alpha", "beta", "h"}, Optional: []string{"b", "c"}, CodeNumbers: []string{"1.7"}},
	UVGroove:  {Required: []string{"t", "alpha", "beta", "R"}, Optional: []string{"b", "h"}, CodeNumbers: []string{"1.6"}},
	UGroove:   {Required: []string{"t", "beta", "R"}, Optional: []string{"b", "c"}, CodeNumbers: []string{"1.8"}},
	HVGroove:  {Required: []string{"t", "beta"}, Optional: []string{"b", "c"}, CodeNumbers: []string{"1.9.1", "1.9.2", "2.8"}},
	HUGroove:  {Required: []string{"t", "beta", "R"}, Optional: []string{"b", "c"}, CodeNumbers: []string{"1.11", "2.10"}},
	DVGroove:  {Required: []string{"t", "alpha_1", "alpha_2"}, Optional: []string{"b", "c", "h1", "h2"}, CodeNumbers: []string{"2.4", "2.5.1", "2.5.2"}},
	DUGroove:  {Required: []string{"t", "beta_1", "beta_2", "R", "R2"}, Optional: []string{"b", "c", "h1", "h2"}, CodeNumbers: []string{"2.7"}},
	DHVGroove: {Required: []string{"t", "beta_1", "beta_2"}, Optional: []string{"b", "c", "h1", "h2"}, CodeNumbers: []string{"2.9.1", "2.9.2"}},
	DHUGroove: {Required: []string{"t", "beta_1", "beta_2", "R", "R2"}, Optional: []string{"b", "c", "h1", "h2"}, CodeNumbers: []string{"2.11"}},
	FFGroove:  {Required: []string{"t_1"}, Optional: []string{"t_2", "alpha", "b", "e"}},
}

// GrooveKinds returns every known kind, sorted.
func GrooveKinds() []string {
	out := make([]string, 0, len(grooveSpecs))
	for k := range grooveSpecs {
		out = append(out, string(k))
	}
	slices.Sort(out)
	return out
}

// LookupGroove returns the parameter spec of kind.
func LookupGroove(kind GrooveKind) (GrooveSpec, bool) {
	s, ok := grooveSpecs[kind]
	return s, ok
}

// Groove is a parametric ISO 9692-1 groove shape.
type Groove struct {
	Kind       GrooveKind
	Params     map[string]Quantity
	CodeNumber []string
	Metadata   *tree.Map
}

func (Groove) TagName() tagtree.Name { return GrooveName }

// Check verifies the kind and its parameter set. An unknown kind is a
// *tagtree.UnknownShapeError at shape_kind; a missing or unexpected
// parameter is a *tagtree.MalformedNodeError under parameters.
func (g Groove) Check() error {
	spec, ok := grooveSpecs[g.Kind]
	if !ok {
		return &tagtree.UnknownShapeError{Path: tagtree.Path{"shape_kind"}, Kind: string(g.Kind), Want: GrooveKinds()}
	}
	for _, name := range spec.Required {
		if _, ok := g.Params[name]; !ok {
			return tagtree.Malformed(tagtree.Path{"parameters", name}, "%s requires parameter %q", g.Kind, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(g.Params)) {
		if !slices.Contains(spec.Required, name) && !slices.Contains(spec.Optional, name) {
			return tagtree.Malformed(tagtree.Path{"parameters", name}, "%s has no parameter %q", g.Kind, name)
		}
		if q := g.Params[name]; !q.IsScalar() || !q.Valid() {
			return tagtree.Malformed(tagtree.Path{"parameters", name}, "parameter %q must be a scalar quantity", name)
		}
	}
	return nil
}

func (g Groove) Equal(o Groove) bool {
	if g.Kind != o.Kind || len(g.Params) != len(o.Params) || !slices.Equal(g.CodeNumber, o.CodeNumber) {
		return false
	}
	for k, q := range g.Params {
		oq, ok := o.Params[k]
		if !ok || !q.Equal(oq) {
			return false
		}
	}
	return metadataEqual(g.Metadata, o.Metadata)
}
