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
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Node is a parsed filter expression.
type Node interface {
	isNode()
}

// And matches when every item matches.
type And []Node

// Or matches when any item matches.
type Or []Node

// Not negates a condition.
type Not struct {
	Node Node
}

// Empty matches everything.
type Empty struct{}

// Condition compares the field at Path with Value, or with the field at
// Ref when the value was a "~path" reference. The last path segment may be
// a lookup name; which it is gets decided against the model at compile time.
type Condition struct {
	Path  []string
	Value interface{}
	Ref   []string
}

func (And) isNode()        {}
func (Or) isNode()         {}
func (Not) isNode()        {}
func (Empty) isNode()      {}
func (*Condition) isNode() {}

// Parse decodes a JSON filter expression. Numbers are kept as json.Number
// until they are coerced to a column type.
func Parse(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, errorf("Invalid JSON: %v", err)
	}
	if dec.More() {
		return nil, errorf("Invalid JSON: unexpected data after expression")
	}
	return ParseValue(value)
}

// ParseValue parses an already decoded expression.
func ParseValue(value interface{}) (Node, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			return Empty{}, nil
		}
		if len(v) > 1 {
			return parseList(splitDict(v), false)
		}
		for key, item := range v {
			return parseItem(key, item)
		}
	case []interface{}:
		return parseList(v, false)
	}
	return nil, errorf("Found %s, dictionary (or list) expected", describe(value))
}

func parseItem(key string, value interface{}) (Node, error) {
	switch {
	case key == "and" || key == "or":
		items, err := asList(value)
		if err != nil {
			return nil, err
		}
		return parseList(items, key == "or")
	case key == "not":
		node, err := ParseValue(value)
		if err != nil {
			return nil, err
		}
		if _, ok := node.(Empty); ok {
			return node, nil
		}
		return Not{Node: node}, nil
	case strings.HasPrefix(key, "-"):
		return ParseValue(value)
	}

	path, err := splitPath(key)
	if err != nil {
		return nil, err
	}
	cond := &Condition{Path: path, Value: value}
	if s, ok := value.(string); ok && strings.HasPrefix(s, "~") {
		if cond.Ref, err = splitPath(s[1:]); err != nil {
			return nil, err
		}
		cond.Value = nil
	}
	return cond, nil
}

func parseList(items []interface{}, or bool) (Node, error) {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		node, err := ParseValue(item)
		if err != nil {
			return nil, err
		}
		if _, ok := node.(Empty); ok {
			continue
		}
		nodes = append(nodes, node)
	}
	switch {
	case len(nodes) == 0:
		return nil, errorf("At least one condition must be specified")
	case len(nodes) == 1:
		return nodes[0], nil
	case or:
		return Or(nodes), nil
	default:
		return And(nodes), nil
	}
}

func asList(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		return splitDict(v), nil
	}
	return nil, errorf("Found %s, list or tuple expected", describe(value))
}

// splitDict turns {"a": 1, "b": 2} into [{"a": 1}, {"b": 2}] by key order.
func splitDict(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]interface{}, len(keys))
	for i, k := range keys {
		items[i] = map[string]interface{}{k: m[k]}
	}
	return items
}

// splitPath splits "author.books__title" into its segments.
func splitPath(path string) ([]string, error) {
	segs := strings.Split(strings.ReplaceAll(path, ".", "__"), "__")
	for _, seg := range segs {
		if seg == "" {
			return nil, errorf("Invalid field path '%s'", path)
		}
	}
	return segs, nil
}

func describe(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dictionary"
	}
	return "unknown value"
}
