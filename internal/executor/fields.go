package executor

import (
	"slices"

	language "github.com/hanpama/procgraph/internal/language"
	schema "github.com/hanpama/procgraph/internal/schema"
)

// collectedField is every field node selected under one response name.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// collectFields flattens selectionSet for objectType into response names in
// the order they first appear. Fragments that do not apply to objectType and
// nodes excluded by @skip or @include are dropped.
func collectFields(st *executionState, objectType *schema.Type, selectionSet language.SelectionSet) []collectedField {
	c := &collector{
		st:         st,
		objectType: objectType,
		index:      make(map[string]int),
		seen:       make(map[string]bool),
	}
	c.collect(selectionSet)
	return c.out
}

type collector struct {
	st         *executionState
	objectType *schema.Type
	out        []collectedField
	index      map[string]int
	seen       map[string]bool
}

func (c *collector) collect(set language.SelectionSet) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if c.st.included(sel.Directives) {
				c.add(sel)
			}
		case *language.InlineFragment:
			if c.st.included(sel.Directives) && c.applies(sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.st.included(sel.Directives) || c.seen[sel.Name] {
				continue
			}
			c.seen[sel.Name] = true
			def := c.st.document.Fragments.ForName(sel.Name)
			if def == nil || !c.applies(def.TypeCondition) || !c.st.included(def.Directives) {
				continue
			}
			c.collect(def.SelectionSet)
		}
	}
}

func (c *collector) add(f *language.Field) {
	name := f.Alias
	if name == "" {
		name = f.Name
	}
	if i, ok := c.index[name]; ok {
		c.out[i].Fields = append(c.out[i].Fields, f)
		return
	}
	c.index[name] = len(c.out)
	c.out = append(c.out, collectedField{ResponseName: name, Fields: []*language.Field{f}})
}

// applies reports whether a fragment on typeCondition selects from
// objectType: the object itself, or an interface or union it belongs to.
func (c *collector) applies(typeCondition string) bool {
	if typeCondition == "" || typeCondition == c.objectType.Name {
		return true
	}
	return c.st.schema.IsPossibleType(typeCondition, c.objectType.Name) ||
		slices.Contains(c.objectType.Interfaces, typeCondition)
}

// included evaluates @skip and @include. A condition that is not a boolean
// leaves the node in.
func (st *executionState) included(directives language.DirectiveList) bool {
	if skip, ok := st.condition(directives.ForName("skip")); ok && skip {
		return false
	}
	if include, ok := st.condition(directives.ForName("include")); ok && !include {
		return false
	}
	return true
}

func (st *executionState) condition(d *language.Directive) (value bool, ok bool) {
	if d == nil {
		return false, false
	}
	for _, arg := range d.Arguments {
		if arg.Name == "if" {
			value, ok = valueFromASTWithVars(arg.Value, st.variableValues).(bool)
			return value, ok
		}
	}
	return false, false
}
