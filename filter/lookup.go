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
	"encoding/json"
	"strings"

	"github.com/tomoncle/bunrest/meta"
	"github.com/uptrace/bun"
)

var lookups = map[string]bool{
	"exact": true, "iexact": true,
	"contains": true, "icontains": true,
	"startswith": true, "istartswith": true,
	"endswith": true, "iendswith": true,
	"in": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"isnull": true, "range": true,
}

var operators = map[string]string{
	"exact": "=",
	"gt":    ">",
	"gte":   ">=",
	"lt":    "<",
	"lte":   "<=",
}

const likeEscape = '!'

func isLookup(name string) bool {
	return lookups[name]
}

// compare builds "<col> <lookup> <value>" with the value coerced to the
// field's Go type.
func (c *compiler) compare(col expr, field *meta.Field, lookup string, cond *Condition) (expr, error) {
	if cond.Ref != nil {
		op, ok := operators[lookup]
		if !ok {
			return expr{}, errorf("Lookup '%s' cannot compare with a field reference", lookup)
		}
		ref, err := c.path(c.root, c.rootAlias, cond.Ref)
		if err != nil {
			return expr{}, err
		}
		return expr{col.sql + " " + op + " " + ref.sql, concat(col.args, ref.args)}, nil
	}

	value := cond.Value
	if value == nil && lookup != "exact" && lookup != "isnull" {
		return expr{}, errorf("Lookup '%s' does not accept null", lookup)
	}

	switch lookup {
	case "exact", "gt", "gte", "lt", "lte":
		if value == nil {
			return nullCheck(col, true), nil
		}
		v, err := field.Coerce(value)
		if err != nil {
			return expr{}, errorf("%v", err)
		}
		return expr{col.sql + " " + operators[lookup] + " ?", concat(col.args, []interface{}{v})}, nil

	case "isnull":
		isnull, err := isNullArg(lookup, value)
		if err != nil {
			return expr{}, err
		}
		return nullCheck(col, isnull), nil

	case "in":
		values, err := field.CoerceList(value)
		if err != nil {
			return expr{}, errorf("%v", err)
		}
		if len(values) == 0 {
			return expr{"1 = 0", nil}, nil
		}
		return expr{col.sql + " IN (?)", concat(col.args, []interface{}{bun.In(values)})}, nil

	case "range":
		values, err := field.CoerceList(value)
		if err != nil {
			return expr{}, errorf("%v", err)
		}
		if len(values) != 2 {
			return expr{}, errorf("Lookup 'range' expects a list of two values")
		}
		return expr{col.sql + " BETWEEN ? AND ?", concat(col.args, values)}, nil

	case "iexact":
		s, err := stringArg(lookup, value)
		if err != nil {
			return expr{}, err
		}
		return expr{"LOWER(" + col.sql + ") = LOWER(?)", concat(col.args, []interface{}{s})}, nil

	default:
		s, err := stringArg(lookup, value)
		if err != nil {
			return expr{}, err
		}
		insensitive := strings.HasPrefix(lookup, "i")
		pattern := escapeLike(s)
		switch strings.TrimPrefix(lookup, "i") {
		case "contains":
			pattern = "%" + pattern + "%"
		case "startswith":
			pattern += "%"
		case "endswith":
			pattern = "%" + pattern
		}
		if insensitive {
			return expr{"LOWER(" + col.sql + ") LIKE LOWER(?) ESCAPE '!'", concat(col.args, []interface{}{pattern})}, nil
		}
		return expr{col.sql + " LIKE ? ESCAPE '!'", concat(col.args, []interface{}{pattern})}, nil
	}
}

func nullCheck(col expr, isnull bool) expr {
	if isnull {
		return expr{col.sql + " IS NULL", col.args}
	}
	return expr{col.sql + " IS NOT NULL", col.args}
}

func isNullArg(lookup string, value interface{}) (bool, error) {
	if value == nil && lookup == "exact" {
		return true, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, errorf("Lookup 'isnull' expects a boolean, found %s", describe(value))
	}
	return b, nil
}

func stringArg(lookup string, value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	}
	return "", errorf("Lookup '%s' expects a string, found %s", lookup, describe(value))
}

func escapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '%' || r == '_' || r == likeEscape {
			b.WriteRune(likeEscape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func concat(a, b []interface{}) []interface{} {
	out := make([]interface{}, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}
