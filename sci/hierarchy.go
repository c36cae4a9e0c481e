package sci

import (
	"slices"

	"github.com/reoring/tagtree"
)

// CoordinateSystemManager is a tree of named frames rooted at RootSystem.
// Every entry of Systems places one frame relative to its reference
// system, which is either the root or another entry.
type CoordinateSystemManager struct {
	Name       string
	RootSystem string
	Systems    []CoordinateTransformation
	Subsystems []Subsystem
}

// Subsystem groups frames that were merged in from another hierarchy.
type Subsystem struct {
	Name         string
	RootSystem   string
	ParentSystem string
	Members      []string
}

func (CoordinateSystemManager) TagName() tagtree.Name { return HierarchyName }

// Has reports whether name is the root or one of the placed systems.
func (m CoordinateSystemManager) Has(name string) bool {
	if name == m.RootSystem {
		return true
	}
	for _, s := range m.Systems {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Lineage returns the chain of reference systems from name up to the root,
// starting with name itself.
func (m CoordinateSystemManager) Lineage(name string) ([]string, bool) {
	parent := make(map[string]string, len(m.Systems))
	for _, s := range m.Systems {
		parent[s.Name] = s.ReferenceSystem
	}
	out := []string{name}
	for cur := name; cur != m.RootSystem; {
		next, ok := parent[cur]
		if !ok || len(out) > len(m.Systems) {
			return nil, false
		}
		out = append(out, next)
		cur = next
	}
	return out, true
}

// Check verifies that the systems form a tree under the root. Problems are
// reported as *tagtree.MalformedNodeError at the tree key of the field.
func (m CoordinateSystemManager) Check() error {
	if m.RootSystem == "" {
		return tagtree.Malformed(tagtree.Path{"root_system_name"}, "missing root system")
	}
	seen := map[string]bool{m.RootSystem: true}
	for i, s := range m.Systems {
		p := tagtree.Path{"coordinate_systems"}.Index(i)
		if s.Name == "" {
			return tagtree.Malformed(p.Key("name"), "missing system name")
		}
		if seen[s.Name] {
			return tagtree.Malformed(p.Key("name"), "system %q is defined twice", s.Name)
		}
		seen[s.Name] = true
	}
	for i, s := range m.Systems {
		p := tagtree.Path{"coordinate_systems"}.Index(i)
		if !seen[s.ReferenceSystem] {
			return tagtree.Malformed(p.Key("reference_system"), "unknown reference system %q", s.ReferenceSystem)
		}
		if _, ok := m.Lineage(s.Name); !ok {
			return tagtree.Malformed(p.Key("reference_system"), "system %q does not lead to root %q", s.Name, m.RootSystem)
		}
	}
	for i, sub := range m.Subsystems {
		p := tagtree.Path{"subsystems"}.Index(i)
		if sub.Name == "" {
			return tagtree.Malformed(p.Key("name"), "missing subsystem name")
		}
		if !seen[sub.RootSystem] {
			return tagtree.Malformed(p.Key("root_cs"), "unknown system %q", sub.RootSystem)
		}
		if sub.ParentSystem != "" && sub.ParentSystem != m.Name &&
			!slices.ContainsFunc(m.Subsystems, func(o Subsystem) bool { return o.Name == sub.ParentSystem }) {
			return tagtree.Malformed(p.Key("parent_system"), "unknown parent %q", sub.ParentSystem)
		}
		for j, member := range sub.Members {
			if !seen[member] {
				return tagtree.Malformed(p.Key("members").Index(j), "unknown system %q", member)
			}
		}
	}
	return nil
}

func (m CoordinateSystemManager) Equal(o CoordinateSystemManager) bool {
	if m.Name != o.Name || m.RootSystem != o.RootSystem || len(m.Systems) != len(o.Systems) || len(m.Subsystems) != len(o.Subsystems) {
		return false
	}
	for i := range m.Systems {
		if !m.Systems[i].Equal(o.Systems[i]) {
			return false
		}
	}
	for i, s := range m.Subsystems {
		t := o.Subsystems[i]
		if s.Name != t.Name || s.RootSystem != t.RootSystem || s.ParentSystem != t.ParentSystem || !slices.Equal(s.Members, t.Members) {
			return false
		}
	}
	return true
}
