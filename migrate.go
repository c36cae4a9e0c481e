package tagtree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/reoring/tagtree/tree"
)

// MigrationFunc rewrites a node of one minor version into the shape of a
// later minor version. It receives a tree it may modify and returns the tree
// for the next step.
type MigrationFunc func(node *tree.Map) (*tree.Map, error)

// Rule migrates a tag family from one minor version to a later minor version
// of the same major. Patch components are ignored.
type Rule struct {
	Name     Name
	From, To Version
	Apply    MigrationFunc
}

// MigratorBuilder collects migration rules during initialization.
type MigratorBuilder struct {
	rules map[Name][]Rule
	built bool
}

// NewMigratorBuilder returns an empty builder.
func NewMigratorBuilder() *MigratorBuilder {
	return &MigratorBuilder{rules: map[Name][]Rule{}}
}

// Add registers a rule from 'from' to 'to'.
func (b *MigratorBuilder) Add(name Name, from, to Version, fn MigrationFunc) error {
	if b.built {
		return errors.New("tagtree: migrator is frozen")
	}
	if fn == nil {
		return fmt.Errorf("tagtree: migration %s %s->%s: nil func", name, from, to)
	}
	if from.Major != to.Major {
		return fmt.Errorf("tagtree: migration %s %s->%s: crosses a major version", name, from, to)
	}
	if from.Minor >= to.Minor {
		return fmt.Errorf("tagtree: migration %s %s->%s: must increase the minor version", name, from, to)
	}
	for _, r := range b.rules[name] {
		if r.From.Major == from.Major && r.From.Minor == from.Minor && r.To.Minor == to.Minor {
			return fmt.Errorf("tagtree: migration %s %s->%s: already registered", name, from, to)
		}
	}
	b.rules[name] = append(b.rules[name], Rule{Name: name, From: from, To: to, Apply: fn})
	return nil
}

// MustAdd is Add for static initialization; it panics on error.
func (b *MigratorBuilder) MustAdd(name Name, from, to Version, fn MigrationFunc) {
	if err := b.Add(name, from, to, fn); err != nil {
		panic(err)
	}
}

// Build freezes the builder.
func (b *MigratorBuilder) Build() *Migrator {
	b.built = true
	m := &Migrator{rules: make(map[Name][]Rule, len(b.rules))}
	for name, rs := range b.rules {
		sorted := append([]Rule(nil), rs...)
		// Larger jumps first so the shortest chain is tried first.
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].From.Minor != sorted[j].From.Minor {
				return sorted[i].From.Minor < sorted[j].From.Minor
			}
			return sorted[i].To.Minor > sorted[j].To.Minor
		})
		m.rules[name] = sorted
	}
	return m
}

// Migrator upgrades older trees to the current version of their tag family.
// It is immutable and safe for concurrent use.
type Migrator struct {
	rules map[Name][]Rule
}

// Plan returns the chain of rules that migrates from to to. The relation
// between the two versions decides the outcome:
//
//   - same major and minor: empty chain
//   - same major, older minor: the registered chain
//   - same major, newer minor: *UnsupportedVersionError
//   - different major: *UnsupportedVersionError
func (m *Migrator) Plan(name Name, from, to Version) ([]Rule, error) {
	if from.Major != to.Major {
		return nil, &UnsupportedVersionError{Tag: name.At(from), Current: to, Reason: fmt.Sprintf("major version %d has no migration path to %d", from.Major, to.Major)}
	}
	if from.Minor > to.Minor {
		return nil, &UnsupportedVersionError{Tag: name.At(from), Current: to, Reason: fmt.Sprintf("newer than supported %s", to)}
	}
	if from.Minor == to.Minor {
		return nil, nil
	}
	var rules []Rule
	if m != nil {
		rules = m.rules[name]
	}
	dead := map[int]bool{}
	furthest := from.Minor
	var walk func(minor int) ([]Rule, bool)
	walk = func(minor int) ([]Rule, bool) {
		if minor == to.Minor {
			return nil, true
		}
		if dead[minor] {
			return nil, false
		}
		furthest = max(furthest, minor)
		for _, r := range rules {
			if r.From.Major != from.Major || r.From.Minor != minor || r.To.Minor > to.Minor {
				continue
			}
			if rest, ok := walk(r.To.Minor); ok {
				return append([]Rule{r}, rest...), true
			}
		}
		dead[minor] = true
		return nil, false
	}
	chain, ok := walk(from.Minor)
	if !ok {
		return nil, &MigrationFailedError{
			Name:   name,
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("no migration registered from %d.%d toward %d.%d", from.Major, furthest, to.Major, to.Minor),
		}
	}
	return chain, nil
}

// Migrate returns node upgraded from version from to version to. The input is
// never modified. Equal minor versions return node itself.
func (m *Migrator) Migrate(name Name, node *tree.Map, from, to Version) (*tree.Map, error) {
	chain, err := m.Plan(name, from, to)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return node, nil
	}
	cur := node.Clone()
	for _, r := range chain {
		next, err := r.Apply(cur)
		if err != nil {
			return nil, &MigrationFailedError{Name: name, From: r.From, To: r.To, Err: err}
		}
		if next == nil {
			return nil, &MigrationFailedError{Name: name, From: r.From, To: r.To, Reason: "rule returned no tree"}
		}
		cur = next
	}
	cur.SetTag(name.At(to).String())
	return cur, nil
}

// Rules returns the registered rules of a tag family.
func (m *Migrator) Rules(name Name) []Rule {
	if m == nil {
		return nil
	}
	return append([]Rule(nil), m.rules[name]...)
}
