/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package filter

import (
	"fmt"
	"strings"

	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun"
)

// expr is a SQL fragment with positional "?" placeholders.
type expr struct {
	sql  string
	args []interface{}
}

func (e expr) empty() bool { return e.sql == "" }

type compiler struct {
	root      Scope
	rootAlias interface{}
	aliases   int
}

func newCompiler(root Scope) *compiler {
	return &compiler{root: root, rootAlias: root.Model().Table.SQLAlias}
}

// Compile turns a parsed expression into a predicate over the root model's
// table alias. An Empty expression compiles to nil.
func Compile(root Scope, node Node) (*types.QueryFilter, error) {
	c := newCompiler(root)
	e, err := c.node(root, c.rootAlias, node)
	if err != nil || e.empty() {
		return nil, err
	}
	return types.NewQueryFilter(e.sql, e.args...), nil
}

// CompileJSON parses and compiles a filter query parameter.
func CompileJSON(root Scope, data string) (*types.QueryFilter, error) {
	node, err := Parse([]byte(data))
	if err != nil {
		return nil, err
	}
	return Compile(root, node)
}

func (c *compiler) nextAlias() bun.Ident {
	c.aliases++
	return bun.Ident(fmt.Sprintf("r%d", c.aliases))
}

func (c *compiler) node(scope Scope, alias interface{}, node Node) (expr, error) {
	switch n := node.(type) {
	case Empty:
		return expr{}, nil
	case And:
		return c.group(scope, alias, n, " AND ")
	case Or:
		return c.group(scope, alias, n, " OR ")
	case Not:
		inner, err := c.node(scope, alias, n.Node)
		if err != nil || inner.empty() {
			return inner, err
		}
		return expr{"NOT COALESCE((" + inner.sql + "), FALSE)", inner.args}, nil
	case *Condition:
		return c.condition(scope, alias, n.Path, n)
	}
	return expr{}, errorf("Unsupported expression %T", node)
}

func (c *compiler) group(scope Scope, alias interface{}, nodes []Node, sep string) (expr, error) {
	parts := make([]string, 0, len(nodes))
	var args []interface{}
	for _, n := range nodes {
		e, err := c.node(scope, alias, n)
		if err != nil {
			return expr{}, err
		}
		if e.empty() {
			continue
		}
		parts = append(parts, "("+e.sql+")")
		args = append(args, e.args...)
	}
	return expr{strings.Join(parts, sep), args}, nil
}

func (c *compiler) condition(scope Scope, alias interface{}, path []string, cond *Condition) (expr, error) {
	model := scope.Model()
	name, rest := path[0], path[1:]
	if err := scope.CheckField(name); err != nil {
		return expr{}, err
	}

	if field, ok := model.Field(name); ok {
		lookup := "exact"
		switch {
		case len(rest) == 1 && isLookup(rest[0]):
			lookup = rest[0]
		case len(rest) == 1:
			return expr{}, errorf("Unsupported lookup '%s' for field '%s'", rest[0], name)
		case len(rest) > 1:
			return expr{}, errorf("Field '%s' does not support nested lookups", name)
		}
		return c.compare(column(alias, field), field, lookup, cond)
	}

	rel, ok := model.Relation(name)
	if !ok {
		return expr{}, errorf("Cannot resolve keyword '%s' into field of '%s'", name, model)
	}
	target, err := scope.Follow(rel)
	if err != nil {
		return expr{}, err
	}
	if len(rest) == 0 || len(rest) == 1 && isLookup(rest[0]) && !hasMember(target.Model(), rest[0]) {
		lookup := "exact"
		if len(rest) == 1 {
			lookup = rest[0]
		}
		return c.relation(scope, alias, rel, target, lookup, cond)
	}

	sub := c.nextAlias()
	inner, err := c.condition(target, sub, rest, cond)
	if err != nil {
		return expr{}, err
	}
	e := c.exists(alias, rel, sub, inner)
	if matchesNull(cond) {
		// A missing related row reads as null, as with an outer join.
		missing := c.exists(alias, rel, c.nextAlias(), expr{})
		e = expr{"(NOT " + missing.sql + " OR " + e.sql + ")", concat(missing.args, e.args)}
	}
	return e, nil
}

// matchesNull reports whether cond holds for a null value: "isnull": true
// or an exact comparison with null.
func matchesNull(cond *Condition) bool {
	if cond.Ref != nil {
		return false
	}
	if cond.Path[len(cond.Path)-1] == "isnull" {
		isnull, _ := cond.Value.(bool)
		return isnull
	}
	return cond.Value == nil
}

// relation compares the related primary key, or tests for the presence of
// related rows with isnull.
func (c *compiler) relation(scope Scope, alias interface{}, rel *meta.Relation, target Scope, lookup string, cond *Condition) (expr, error) {
	model := scope.Model()
	if lookup == "isnull" || lookup == "exact" && cond.Value == nil && cond.Ref == nil {
		isnull, err := isNullArg(lookup, cond.Value)
		if err != nil {
			return expr{}, err
		}
		if rel.Kind == meta.BelongsTo {
			return nullCheck(column(alias, model.FieldOf(rel.BaseColumn)), isnull), nil
		}
		e := c.exists(alias, rel, c.nextAlias(), expr{})
		if isnull {
			e.sql = "NOT " + e.sql
		}
		return e, nil
	}

	if rel.Kind == meta.BelongsTo {
		fk := model.FieldOf(rel.BaseColumn)
		return c.compare(column(alias, fk), fk, lookup, cond)
	}
	sub := c.nextAlias()
	pk := target.Model().PK
	inner, err := c.compare(column(sub, pk), pk, lookup, cond)
	if err != nil {
		return expr{}, err
	}
	return c.exists(alias, rel, sub, inner), nil
}

// exists correlates the rows of rel's target, aliased as sub, with the row
// aliased as alias.
func (c *compiler) exists(alias interface{}, rel *meta.Relation, sub bun.Ident, inner expr) expr {
	var e expr
	if rel.Kind == meta.ManyToMany {
		through := c.nextAlias()
		e = expr{
			"EXISTS (SELECT 1 FROM ? AS ? JOIN ? AS ? ON ?.? = ?.? WHERE ?.? = ?.?",
			[]interface{}{
				rel.Through.SQLName, through, rel.TargetTable.SQLName, sub,
				sub, rel.TargetColumn.SQLName, through, rel.ThroughTarget.SQLName,
				through, rel.ThroughBase.SQLName, alias, rel.BaseColumn.SQLName,
			},
		}
	} else {
		e = expr{
			"EXISTS (SELECT 1 FROM ? AS ? WHERE ?.? = ?.?",
			[]interface{}{
				rel.TargetTable.SQLName, sub,
				sub, rel.TargetColumn.SQLName, alias, rel.BaseColumn.SQLName,
			},
		}
	}
	if !inner.empty() {
		e.sql += " AND (" + inner.sql + ")"
		e.args = append(e.args, inner.args...)
	}
	e.sql += ")"
	return e
}

func column(alias interface{}, field *meta.Field) expr {
	return expr{"?.?", []interface{}{alias, field.SQLName()}}
}

func hasMember(model *meta.Model, name string) bool {
	if _, ok := model.Field(name); ok {
		return true
	}
	_, ok := model.Relation(name)
	return ok
}
