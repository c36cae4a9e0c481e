package tagtree_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

func newTestSession(t *testing.T, opts ...tagtree.SessionOption) *tagtree.Session {
	t.Helper()
	s, err := tagtree.NewSession(testManifest(), &fakeValidator{}, opts...)
	require.NoError(t, err)
	return s
}

func problems(t *testing.T, err error) []tagtree.Problem {
	t.Helper()
	var re *tagtree.ReportError
	require.ErrorAs(t, err, &re)
	return re.Problems
}

func TestNewSessionNeedsManifestAndValidator(t *testing.T) {
	_, err := tagtree.NewSession(nil, &fakeValidator{})
	assert.Error(t, err)
	_, err = tagtree.NewSession(testManifest(), nil)
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	node, err := s.Encode(ctx, point{X: 1.5, Label: "p"})
	require.NoError(t, err)
	assert.Equal(t, []string{tree.TagKey, "x", "label"}, node.Keys())
	assert.Equal(t, "test.dev:geo/point-1.1.0", node.Tag())

	obj, err := s.Decode(ctx, node)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1.5, Label: "p"}, obj)
}

func TestDecodeMigratesOlderVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	old := pointNode("test.dev:geo/point-1.0.0", "X", 3, "label", "legacy")
	obj, err := s.Decode(ctx, old)
	require.NoError(t, err)
	assert.Equal(t, point{X: 3, Label: "legacy"}, obj)
	assert.True(t, old.Has("X"), "input must not be modified")

	_, err = s.Decode(ctx, pointNode("test.dev:geo/point-1.0.0", "label", "lost"))
	assert.ErrorIs(t, err, tagtree.ErrMigrationFailed)

	// Patch versions of the current minor need no migration.
	_, err = s.Decode(ctx, pointNode("test.dev:geo/point-1.1.7", "x", 1))
	assert.NoError(t, err)
}

func TestDecodeRejectsUnknownAndUnsupported(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	cases := []struct {
		node any
		code string
	}{
		{pointNode("test.dev:geo/point-2.0.0", "x", 1), tagtree.CodeUnsupportedVersion},
		{pointNode("test.dev:geo/point-1.2.0", "x", 1), tagtree.CodeUnsupportedVersion},
		{pointNode("test.dev:geo/circle-1.0.0", "r", 1), tagtree.CodeUnknownTag},
		{pointNode("not a tag", "x", 1), tagtree.CodeUnknownTag},
		{tree.MapOf("x", 1), tagtree.CodeMalformedNode},
		{"just a string", tagtree.CodeMalformedNode},
	}
	for _, tc := range cases {
		_, err := s.Decode(ctx, tc.node)
		ps := problems(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, tc.code, ps[0].Code, "%v", tc.node)
	}
}

func TestValidationRunsBeforeConversion(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Decode(context.Background(), pointNode("test.dev:geo/point-1.1.0", "x", "one", "label", "bad"))
	ps := problems(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, tagtree.CodeValidation, ps[0].Code)
	assert.Equal(t, "/x", ps[0].Path.Pointer())
	assert.ErrorIs(t, err, tagtree.ErrValidation)
}

func TestNestedProblemsCarryAbsolutePaths(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	seg := tree.MapOf(
		"from", pointNode("test.dev:geo/point-1.1.0", "x", 0, "label", "bad"),
		"to", pointNode("test.dev:geo/point-1.1.0", "x", 1),
	).SetTag("test.dev:geo/segment-1.0.0")
	_, err := s.Decode(ctx, seg)
	ps := problems(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "/from/label", ps[0].Path.Pointer())
	assert.Equal(t, "/from", ps[0].Node.Pointer())
	assert.Equal(t, "test.dev:geo/point-1.1.0", ps[0].Tag)

	_, err = s.Encode(ctx, segment{From: point{X: 1}, To: point{Label: "unwritable"}})
	ps = problems(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "/to/label", ps[0].Path.Pointer())

	node, err := s.Encode(ctx, segment{From: point{X: 1}, To: point{X: 2}})
	require.NoError(t, err)
	obj, err := s.Decode(ctx, node)
	require.NoError(t, err)
	assert.Equal(t, segment{From: point{X: 1}, To: point{X: 2}}, obj)
}

func TestDecodeMigratesNestedNodesFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	from := pointNode("test.dev:geo/point-1.0.0", "X", 1, "label", "a")
	seg := tree.MapOf("from", from, "to", pointNode("test.dev:geo/point-1.1.0", "x", 2)).
		SetTag("test.dev:geo/segment-1.0.0")
	obj, err := s.Decode(ctx, seg)
	require.NoError(t, err)
	assert.Equal(t, segment{From: point{X: 1, Label: "a"}, To: point{X: 2}}, obj)
	assert.True(t, from.Has("X"), "input must not be modified")
	assert.True(t, s.Check(ctx, seg).Valid())

	broken := tree.MapOf(
		"from", pointNode("test.dev:geo/point-1.0.0", "label", "lost"),
		"to", pointNode("test.dev:geo/point-1.1.0", "x", 2),
	).SetTag("test.dev:geo/segment-1.0.0")
	_, err = s.Decode(ctx, broken)
	ps := problems(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "/from", ps[0].Path.Pointer())
	assert.Equal(t, tagtree.CodeMigrationFailed, ps[0].Code)

	report := s.Check(ctx, broken)
	require.Len(t, report.Problems, 1)
	assert.Equal(t, "/from", report.Problems[0].Path.Pointer())
}

func TestDumpChecksTaggedRawEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	doc, report := s.Dump(ctx,
		tagtree.Entry{Key: "bad", Raw: pointNode("test.dev:geo/point-1.1.0", "x", "one")},
		tagtree.Entry{Key: "nested", Raw: tree.MapOf("items", []any{pointNode("test.dev:geo/point-9.0.0", "x", 1)})},
		tagtree.Entry{Key: "plain", Raw: tree.MapOf("text", "hi")},
	)
	assert.Nil(t, doc)
	var got []string
	for _, p := range report.Problems {
		got = append(got, p.Path.Pointer()+" "+p.Code)
	}
	assert.Equal(t, []string{"/bad/x validation", "/nested/items/0 unsupported_version"}, got)

	doc, report = s.Dump(ctx, tagtree.Entry{Key: "p", Raw: pointNode("test.dev:geo/point-1.0.0", "X", 2)})
	require.True(t, report.Valid(), "%v", report.Err())
	entries, report := s.Load(ctx, doc)
	require.True(t, report.Valid(), "%v", report.Err())
	assert.Equal(t, point{X: 2}, entries[0].Object)
}

func TestDumpAndLoadDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	doc, report := s.Dump(ctx,
		tagtree.Entry{Key: "origin", Object: point{Label: "o"}},
		tagtree.Entry{Key: "note", Raw: tree.MapOf("text", "hi")},
		tagtree.Entry{Key: "edge", Object: segment{From: point{X: 1}, To: point{X: 2}}},
	)
	require.True(t, report.Valid(), "%v", report.Err())
	assert.Equal(t, []string{"origin", "note", "edge"}, doc.Keys())

	entries, report := s.Load(ctx, doc)
	require.True(t, report.Valid(), "%v", report.Err())
	require.Len(t, entries, 3)
	assert.Equal(t, point{Label: "o"}, entries[0].Object)
	assert.Nil(t, entries[1].Object)
	assert.True(t, tree.Equal(tree.MapOf("text", "hi"), entries[1].Raw))
	assert.Equal(t, segment{From: point{X: 1}, To: point{X: 2}}, entries[2].Object)
}

func TestDumpRejectsDocument(t *testing.T) {
	s := newTestSession(t)
	doc, report := s.Dump(context.Background(),
		tagtree.Entry{Key: "a", Object: point{Label: "unwritable"}},
		tagtree.Entry{Key: "a", Object: point{X: 1}},
		tagtree.Entry{Key: "b", Object: nil, Raw: 1},
	)
	assert.Nil(t, doc)
	assert.Equal(t, tagtree.StatusInvalid, report.Status)
	var got []string
	for _, p := range report.Problems {
		got = append(got, p.Path.Pointer()+" "+p.Code)
	}
	assert.Equal(t, []string{"/a malformed_node", "/a/label malformed_node"}, got)
}

func TestLoadReportsEveryBadEntry(t *testing.T) {
	s := newTestSession(t)
	doc := tree.MapOf(
		"good", pointNode("test.dev:geo/point-1.1.0", "x", 1),
		"bad1", pointNode("test.dev:geo/point-1.1.0", "x", "no"),
		"raw", []any{"x", "y"},
		"bad2", pointNode("test.dev:geo/circle-1.0.0"),
	)
	entries, report := s.Load(context.Background(), doc)
	require.Len(t, entries, 4)
	assert.NotNil(t, entries[0].Object)
	assert.Nil(t, entries[1].Object)
	assert.Equal(t, []any{"x", "y"}, entries[2].Raw)
	require.Len(t, report.Problems, 2)
	assert.Equal(t, "/bad1/x", report.Problems[0].Path.Pointer())
	assert.Equal(t, "/bad2", report.Problems[1].Path.Pointer())

	ctx := tagtree.WithFailFast(context.Background(), true)
	assert.True(t, tagtree.IsFailFast(ctx))
	_, report = s.Load(ctx, doc)
	assert.Len(t, report.Problems, 1)
}

func TestCheckWalksNestedNodes(t *testing.T) {
	s := newTestSession(t)
	doc := tree.MapOf(
		"edge", tree.MapOf(
			"from", pointNode("test.dev:geo/point-1.1.0", "x", "far"),
			"to", pointNode("test.dev:geo/point-1.0.0", "X", 1),
		).SetTag("test.dev:geo/segment-1.0.0"),
		"bundle", tree.MapOf("items", []any{pointNode("test.dev:geo/point-9.0.0", "x", 1)}),
	)
	report := s.Check(context.Background(), doc)
	var got []string
	for _, p := range report.Problems {
		got = append(got, p.Path.Pointer()+" "+p.Code)
	}
	assert.Equal(t, []string{"/bundle/items/0 unsupported_version", "/edge/from/x validation"}, got)

	report = s.Check(context.Background(), pointNode("test.dev:geo/point-1.1.0", "x", 1))
	assert.True(t, report.Valid())
}

func TestParallelLoadIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, tagtree.WithParallel(4))

	var entries []tagtree.Entry
	for i := range 20 {
		entries = append(entries, tagtree.Entry{Key: fmt.Sprintf("p%02d", i), Object: point{X: float64(i)}})
	}
	doc, report := s.Dump(ctx, entries...)
	require.True(t, report.Valid())

	doc.Set("p07", pointNode("test.dev:geo/point-1.1.0", "x", "seven"))
	doc.Set("p03", pointNode("test.dev:geo/point-1.1.0", "x", "three"))
	loaded, report := s.Load(ctx, doc)
	require.Len(t, loaded, 20)
	for i, e := range loaded {
		assert.Equal(t, fmt.Sprintf("p%02d", i), e.Key)
	}
	require.Len(t, report.Problems, 2)
	assert.Equal(t, "/p03/x", report.Problems[0].Path.Pointer())
	assert.Equal(t, "/p07/x", report.Problems[1].Path.Pointer())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSession(t).Encode(ctx, point{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, tagtree.CodeInternal, problems(t, err)[0].Code)
}
