package resource

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Expression is a parsed resource requirement predicate. Its root variable
// names the resource job whose records it constrains; the expression is
// satisfied when at least one record makes it evaluate to true.
type Expression struct {
	text       string
	resourceID string
	expr       hcl.Expression
}

// ParseExpression parses a requirement predicate such as
// `mem.total >= 4096`. The expression must reference exactly one resource.
func ParseExpression(text string) (*Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(text), "<requires>", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing requirement %q: %w", text, diags)
	}

	roots := map[string]struct{}{}
	var root string
	for _, traversal := range expr.Variables() {
		root = traversal.RootName()
		roots[root] = struct{}{}
	}
	if len(roots) != 1 {
		return nil, fmt.Errorf("requirement %q must reference exactly one resource, found %d", text, len(roots))
	}

	return &Expression{text: text, resourceID: root, expr: expr}, nil
}

// ResourceID returns the id of the resource job this expression depends on.
func (e *Expression) ResourceID() string { return e.resourceID }

// Text returns the original predicate source.
func (e *Expression) Text() string { return e.text }

func (e *Expression) String() string { return e.text }

// SatisfiedBy reports whether any of the given records makes the predicate
// evaluate to true. Records missing a referenced attribute simply do not
// match; they are not an error.
func (e *Expression) SatisfiedBy(records []Record) bool {
	for _, rec := range records {
		val, diags := e.expr.Value(&hcl.EvalContext{
			Variables: map[string]cty.Value{
				e.resourceID: recordValue(rec),
			},
		})
		if diags.HasErrors() {
			continue
		}
		if val.Type() == cty.Bool && val.True() {
			return true
		}
	}
	return false
}

// recordValue converts a record into a cty object. Attribute values that
// look numeric become numbers so comparisons like `>= 4096` work without
// explicit casts in the predicate.
func recordValue(rec Record) cty.Value {
	attrs := make(map[string]cty.Value, len(rec))
	for k, v := range rec {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			attrs[k] = cty.NumberFloatVal(n)
		} else {
			attrs[k] = cty.StringVal(v)
		}
	}
	return cty.ObjectVal(attrs)
}
