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
	"strings"

	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/types"
)

// Order compiles order_by terms. Each term may hold several comma separated
// paths; a leading "-" sorts descending. Paths may cross to-one relations.
func Order(root Scope, terms []string) ([]*types.QueryFilter, error) {
	c := newCompiler(root)
	orders := make([]*types.QueryFilter, 0, len(terms))
	for _, term := range terms {
		for _, part := range strings.Split(term, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			direction := " ASC"
			if strings.HasPrefix(part, "-") {
				direction = " DESC"
				part = part[1:]
			}
			path, err := splitPath(part)
			if err != nil {
				return nil, err
			}
			e, err := c.path(root, c.rootAlias, path)
			if err != nil {
				return nil, err
			}
			orders = append(orders, types.NewQueryFilter(e.sql+direction, e.args...))
		}
	}
	return orders, nil
}

// path resolves a field path to a scalar expression. To-one relations are
// followed with correlated scalar subqueries; to-many relations are refused.
func (c *compiler) path(scope Scope, alias interface{}, path []string) (expr, error) {
	model := scope.Model()
	name, rest := path[0], path[1:]
	if err := scope.CheckField(name); err != nil {
		return expr{}, err
	}

	if field, ok := model.Field(name); ok {
		if len(rest) > 0 {
			return expr{}, errorf("Field '%s' does not support nested lookups", name)
		}
		return column(alias, field), nil
	}

	rel, ok := model.Relation(name)
	if !ok {
		return expr{}, errorf("Cannot resolve keyword '%s' into field of '%s'", name, model)
	}
	if rel.Many() {
		return expr{}, errorf("Cannot use to-many relation '%s' here", name)
	}
	target, err := scope.Follow(rel)
	if err != nil {
		return expr{}, err
	}
	if len(rest) == 0 {
		if rel.Kind == meta.BelongsTo {
			return column(alias, model.FieldOf(rel.BaseColumn)), nil
		}
		rest = []string{target.Model().PK.Name}
	}

	sub := c.nextAlias()
	inner, err := c.path(target, sub, rest)
	if err != nil {
		return expr{}, err
	}
	return expr{
		"(SELECT " + inner.sql + " FROM ? AS ? WHERE ?.? = ?.?)",
		concat(inner.args, []interface{}{
			rel.TargetTable.SQLName, sub,
			sub, rel.TargetColumn.SQLName, alias, rel.BaseColumn.SQLName,
		}),
	}, nil
}
