package convert

import (
	"fmt"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/sci"
	"github.com/reoring/tagtree/tree"
)

// Migrations registers the upgrade rules of the bundled families.
//
//	unit/quantity    1.0 -> 1.1  magnitude renamed to value
//	core/time_series 1.0 -> 1.1  data renamed to values
//	core/time_series 1.1 -> 1.2  interpolation added, defaults to linear
//	core/time_series 1.0 -> 1.2  both of the above
func Migrations(b *tagtree.MigratorBuilder) error {
	rules := []struct {
		name     tagtree.Name
		from, to tagtree.Version
		fn       tagtree.MigrationFunc
	}{
		{sci.QuantityName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), renameField("magnitude", "value")},
		{sci.TimeSeriesName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), renameField("data", "values")},
		{sci.TimeSeriesName, tagtree.V(1, 1, 0), tagtree.V(1, 2, 0), defaultInterpolation},
		{sci.TimeSeriesName, tagtree.V(1, 0, 0), tagtree.V(1, 2, 0), chain(renameField("data", "values"), defaultInterpolation)},
	}
	for _, r := range rules {
		if err := b.Add(r.name, r.from, r.to, r.fn); err != nil {
			return err
		}
	}
	return nil
}

// renameField moves from to to in place. A node without from is left
// alone; one carrying both keys cannot be migrated.
func renameField(from, to string) tagtree.MigrationFunc {
	return func(node *tree.Map) (*tree.Map, error) {
		if !node.Has(from) {
			return node, nil
		}
		if node.Has(to) {
			return nil, fmt.Errorf("both %q and %q are present", from, to)
		}
		node.Rename(from, to)
		return node, nil
	}
}

func defaultInterpolation(node *tree.Map) (*tree.Map, error) {
	if node.Has("timestamps") && !node.Has("interpolation") {
		node.Set("interpolation", string(sci.Linear))
	}
	return node, nil
}

func chain(fns ...tagtree.MigrationFunc) tagtree.MigrationFunc {
	return func(node *tree.Map) (*tree.Map, error) {
		var err error
		for _, fn := range fns {
			if node, err = fn(node); err != nil {
				return nil, err
			}
		}
		return node, nil
	}
}
