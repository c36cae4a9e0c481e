package validate

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/tree"
)

var (
	tagMeta = jsonschema.MustCompileString("tagtree:meta/tag", `{
		"properties": {"tag": {"type": "string", "minLength": 1}}
	}`)
	shapeMeta = jsonschema.MustCompileString("tagtree:meta/wx_shape", `{
		"properties": {"wx_shape": {"type": ["array", "object"]}}
	}`)
)

// tagCompiler handles the "tag" keyword: the instance must be a tagged
// mapping whose tag matches the pattern ("*" suffix wildcard).
type tagCompiler struct{}

func (tagCompiler) Compile(_ jsonschema.CompilerContext, m map[string]any) (jsonschema.ExtSchema, error) {
	v, ok := m["tag"]
	if !ok {
		return nil, nil
	}
	pattern, _ := v.(string)
	return tagSchema(pattern), nil
}

type tagSchema string

func (s tagSchema) Validate(ctx jsonschema.ValidationContext, v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return ctx.Error("tag", "expected a node tagged %s", string(s))
	}
	got, _ := m[tree.TagKey].(string)
	if got == "" {
		return ctx.Error("tag", "missing %s, expected a node tagged %s", tree.TagKey, string(s))
	}
	if !tagtree.MatchTag(string(s), got) {
		return ctx.Error("tag", "tag %s does not match %s", got, string(s))
	}
	return nil
}

// shapeCompiler handles the "wx_shape" keyword.
type shapeCompiler struct{}

func (shapeCompiler) Compile(_ jsonschema.CompilerContext, m map[string]any) (jsonschema.ExtSchema, error) {
	v, ok := m["wx_shape"]
	if !ok {
		return nil, nil
	}
	n, err := parseShapeNode(v)
	if err != nil {
		return nil, fmt.Errorf("wx_shape: %w", err)
	}
	return &shapeSchema{root: n}, nil
}

type shapeSchema struct {
	root *shapeNode
}

func (s *shapeSchema) Validate(ctx jsonschema.ValidationContext, v any) error {
	ms := s.root.check(v, nil, map[string]int{})
	if len(ms) == 0 {
		return nil
	}
	causes := make([]*jsonschema.ValidationError, len(ms))
	for i, m := range ms {
		e := ctx.Error("wx_shape", "%s", m.message)
		for _, seg := range m.path {
			e.InstanceLocation += "/" + escapePointer(seg)
		}
		causes[i] = e
	}
	if len(causes) == 1 {
		return causes[0]
	}
	parent := ctx.Error("wx_shape", "%d shape mismatches", len(causes))
	parent.Causes = causes
	return parent
}

func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func registerKeywords(c *jsonschema.Compiler) {
	c.RegisterExtension("tag", tagMeta, tagCompiler{})
	c.RegisterExtension("wx_shape", shapeMeta, shapeCompiler{})
}
