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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShapes(t *testing.T) {
	node, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Empty{}, node)

	node, err = Parse([]byte(`{"b": 2, "a": 1}`))
	require.NoError(t, err)
	and, ok := node.(And)
	require.True(t, ok)
	require.Len(t, and, 2)
	assert.Equal(t, []string{"a"}, and[0].(*Condition).Path)
	assert.Equal(t, json.Number("2"), and[1].(*Condition).Value)

	node, err = Parse([]byte(`{"or": {"x": 1, "y": 2}}`))
	require.NoError(t, err)
	assert.IsType(t, Or{}, node)

	node, err = Parse([]byte(`{"and": [{"x": 1}]}`))
	require.NoError(t, err)
	assert.IsType(t, &Condition{}, node, "single item lists collapse")

	node, err = Parse([]byte(`{"not": {"author.name__startswith": "F"}}`))
	require.NoError(t, err)
	not, ok := node.(Not)
	require.True(t, ok)
	assert.Equal(t, []string{"author", "name", "startswith"}, not.Node.(*Condition).Path)

	node, err = Parse([]byte(`{"-first": {"pages.gt": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"pages", "gt"}, node.(*Condition).Path)

	node, err = Parse([]byte(`{"price.gt": "~author.birth_year"}`))
	require.NoError(t, err)
	cond := node.(*Condition)
	assert.Equal(t, []string{"author", "birth_year"}, cond.Ref)
	assert.Nil(t, cond.Value)

	node, err = Parse([]byte(`[{}, {"x": null}]`))
	require.NoError(t, err)
	assert.Nil(t, node.(*Condition).Value)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		`[]`:                  "At least one condition must be specified",
		`{"or": []}`:          "At least one condition must be specified",
		`[{}]`:                "At least one condition must be specified",
		`3`:                   "Found number, dictionary (or list) expected",
		`"x"`:                 "Found string, dictionary (or list) expected",
		`{"and": 3}`:          "Found number, list or tuple expected",
		`{"a..b": 1}`:         "Invalid field path 'a..b'",
		`{"a": 1`:             "Invalid JSON",
		`{"a": 1} {"b": 2}`:   "Invalid JSON",
		`{"x": "~"}`:          "Invalid field path ''",
		`{"not": [1]}`:        "Found number, dictionary (or list) expected",
		`{"or": {"a": 1}, "x": []}`: "",
	}
	for input, message := range cases {
		_, err := Parse([]byte(input))
		if message == "" {
			assert.NoError(t, err, input)
			continue
		}
		require.Error(t, err, input)
		assert.IsType(t, &Error{}, err)
		assert.Contains(t, err.Error(), message, input)
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!% !_x!!", escapeLike("100% _x!"))
}
