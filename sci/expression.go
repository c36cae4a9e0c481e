package sci

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/reoring/tagtree"
)

// Expression is a mathematical expression with named quantity parameters.
// Identifiers that are not parameters are free variables supplied at
// evaluation time.
type Expression struct {
	Source     string
	Parameters map[string]Quantity
}

func (Expression) TagName() tagtree.Name { return ExpressionName }

// Identifiers parses the source and returns its variable names, sorted.
// Function names are excluded.
func (e Expression) Identifiers() ([]string, error) {
	t, err := parser.Parse(e.Source)
	if err != nil {
		return nil, err
	}
	v := &identCollector{uses: map[string]int{}, callees: map[string]int{}}
	ast.Walk(&t.Node, v)
	return v.variables(), nil
}

// FreeVariables returns the identifiers that are not parameters.
func (e Expression) FreeVariables() ([]string, error) {
	ids, err := e.Identifiers()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(ids, func(id string) bool {
		_, ok := e.Parameters[id]
		return ok
	}), nil
}

// Check parses the source and verifies that every parameter is used.
// Problems are reported as *tagtree.MalformedNodeError at the tree key of
// the offending field.
func (e Expression) Check() error {
	ids, err := e.Identifiers()
	if err != nil {
		return tagtree.Malformed(tagtree.Path{"expression"}, "cannot parse expression: %v", err)
	}
	for _, name := range slices.Sorted(maps.Keys(e.Parameters)) {
		if !slices.Contains(ids, name) {
			return tagtree.Malformed(tagtree.Path{"parameters", name}, "parameter %q is not used by %q", name, e.Source)
		}
	}
	return nil
}

// Eval evaluates the expression with scalar parameter magnitudes and the
// given free variables. Units are not checked.
func (e Expression) Eval(vars map[string]any) (any, error) {
	env := make(map[string]any, len(e.Parameters)+len(vars))
	for k, q := range e.Parameters {
		if !q.IsScalar() {
			return nil, fmt.Errorf("sci: parameter %q is not a scalar", k)
		}
		env[k] = q.Value()
	}
	for k, v := range vars {
		env[k] = v
	}
	return exprlang.Eval(e.Source, env)
}

func (e Expression) Equal(o Expression) bool {
	if e.Source != o.Source || len(e.Parameters) != len(o.Parameters) {
		return false
	}
	for k, q := range e.Parameters {
		oq, ok := o.Parameters[k]
		if !ok || !q.Equal(oq) {
			return false
		}
	}
	return true
}

// identCollector counts identifier uses; names used only as callees are
// functions, not variables.
type identCollector struct {
	uses    map[string]int
	callees map[string]int
}

func (c *identCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.callees[id.Value]++
		}
	case *ast.IdentifierNode:
		c.uses[n.Value]++
	}
}

func (c *identCollector) variables() []string {
	var out []string
	for id, n := range c.uses {
		if n > c.callees[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
