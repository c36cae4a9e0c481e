package tagtree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

func appendStep(label string) tagtree.MigrationFunc {
	return func(node *tree.Map) (*tree.Map, error) {
		v, _ := node.Get("steps")
		steps, _ := v.([]any)
		node.Set("steps", append(steps, label))
		return node, nil
	}
}

func chainMigrator(t *testing.T) *tagtree.Migrator {
	t.Helper()
	b := tagtree.NewMigratorBuilder()
	require.NoError(t, b.Add(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), appendStep("0-1")))
	require.NoError(t, b.Add(pointName, tagtree.V(1, 1, 0), tagtree.V(1, 2, 0), appendStep("1-2")))
	require.NoError(t, b.Add(pointName, tagtree.V(1, 2, 0), tagtree.V(1, 3, 0), appendStep("2-3")))
	require.NoError(t, b.Add(pointName, tagtree.V(1, 1, 0), tagtree.V(1, 3, 0), appendStep("1-3")))
	return b.Build()
}

func steps(t *testing.T, rules []tagtree.Rule) []string {
	t.Helper()
	var out []string
	for _, r := range rules {
		out = append(out, r.From.String()+"->"+r.To.String())
	}
	return out
}

func TestPlan(t *testing.T) {
	m := chainMigrator(t)

	chain, err := m.Plan(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0->1.1.0", "1.1.0->1.3.0"}, steps(t, chain))

	chain, err = m.Plan(pointName, tagtree.V(1, 1, 0), tagtree.V(1, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.0->1.2.0"}, steps(t, chain))

	chain, err = m.Plan(pointName, tagtree.V(1, 3, 4), tagtree.V(1, 3, 0))
	require.NoError(t, err)
	assert.Empty(t, chain)

	_, err = m.Plan(pointName, tagtree.V(1, 4, 0), tagtree.V(1, 3, 0))
	assert.ErrorIs(t, err, tagtree.ErrUnsupportedVersion)
	_, err = m.Plan(pointName, tagtree.V(0, 9, 0), tagtree.V(1, 3, 0))
	assert.ErrorIs(t, err, tagtree.ErrUnsupportedVersion)

	_, err = m.Plan(segmentName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0))
	var mf *tagtree.MigrationFailedError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, tagtree.CodeMigrationFailed, tagtree.CodeOf(err))
}

func TestPlanReportsGap(t *testing.T) {
	b := tagtree.NewMigratorBuilder()
	b.MustAdd(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), appendStep("0-1"))
	b.MustAdd(pointName, tagtree.V(1, 2, 0), tagtree.V(1, 3, 0), appendStep("2-3"))
	_, err := b.Build().Plan(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 3, 0))
	var mf *tagtree.MigrationFailedError
	require.ErrorAs(t, err, &mf)
	assert.Contains(t, mf.Reason, "from 1.1 toward 1.3")
}

func TestMigrateLeavesInputAlone(t *testing.T) {
	m := chainMigrator(t)
	in := pointNode("test.dev:geo/point-1.0.0", "x", 1)
	out, err := m.Migrate(pointName, in, tagtree.V(1, 0, 0), tagtree.V(1, 3, 0))
	require.NoError(t, err)

	assert.Equal(t, "test.dev:geo/point-1.3.0", out.Tag())
	v, _ := out.Get("steps")
	assert.Equal(t, []any{"0-1", "1-3"}, v)
	assert.Equal(t, "test.dev:geo/point-1.0.0", in.Tag())
	assert.False(t, in.Has("steps"))

	same, err := m.Migrate(pointName, in, tagtree.V(1, 0, 1), tagtree.V(1, 0, 0))
	require.NoError(t, err)
	assert.Same(t, in, same)
}

func TestMigrateWrapsRuleErrors(t *testing.T) {
	boom := errors.New("boom")
	b := tagtree.NewMigratorBuilder()
	b.MustAdd(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), func(*tree.Map) (*tree.Map, error) { return nil, boom })
	b.MustAdd(segmentName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), func(*tree.Map) (*tree.Map, error) { return nil, nil })
	m := b.Build()

	_, err := m.Migrate(pointName, tree.NewMap(), tagtree.V(1, 0, 0), tagtree.V(1, 1, 0))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, tagtree.ErrMigrationFailed)

	_, err = m.Migrate(segmentName, tree.NewMap(), tagtree.V(1, 0, 0), tagtree.V(1, 1, 0))
	assert.ErrorIs(t, err, tagtree.ErrMigrationFailed)
}

func TestMigratorBuilderRejects(t *testing.T) {
	b := tagtree.NewMigratorBuilder()
	fn := appendStep("x")
	assert.Error(t, b.Add(pointName, tagtree.V(1, 0, 0), tagtree.V(2, 0, 0), fn), "crosses major")
	assert.Error(t, b.Add(pointName, tagtree.V(1, 1, 0), tagtree.V(1, 1, 0), fn), "same minor")
	assert.Error(t, b.Add(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), nil), "nil func")
	require.NoError(t, b.Add(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), fn))
	assert.Error(t, b.Add(pointName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), fn), "duplicate")
	m := b.Build()
	assert.Error(t, b.Add(segmentName, tagtree.V(1, 0, 0), tagtree.V(1, 1, 0), fn), "frozen")
	assert.Len(t, m.Rules(pointName), 1)
	assert.Empty(t, m.Rules(segmentName))
}
