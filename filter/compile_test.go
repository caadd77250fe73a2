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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest/database/dbtest"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun"
)

type library struct {
	db     *bun.DB
	models map[string]*meta.Model
	all    []*meta.Model
}

func openLibrary(t *testing.T) *library {
	t.Helper()
	db, registry := dbtest.Open(t, someapp.Register)
	require.NoError(t, someapp.Seed(context.Background(), db))

	lib := &library{db: db, models: make(map[string]*meta.Model)}
	for _, reg := range registry.Models(someapp.AppLabel) {
		m, err := meta.Inspect(db, reg)
		require.NoError(t, err)
		lib.models[m.Name] = m
		lib.all = append(lib.all, m)
	}
	return lib
}

func (l *library) scope(name string, exclude ...string) Scope {
	return NewModelScope(l.models[name], l.all, exclude...)
}

func (l *library) ids(t *testing.T, name string, where *types.QueryFilter, orders ...*types.QueryFilter) []int64 {
	t.Helper()
	model := l.models[name]
	slice := model.NewSlice()
	q := l.db.NewSelect().Model(slice)
	if !where.IsEmpty() {
		q = q.Where(where.Schema, where.Args...)
	}
	for _, o := range orders {
		q = q.OrderExpr(o.Schema, o.Args...)
	}
	if len(orders) == 0 {
		q = q.OrderExpr("?.? ASC", model.Table.SQLAlias, model.PK.SQLName())
	}
	require.NoError(t, q.Scan(context.Background()))

	ids := make([]int64, 0)
	for _, item := range model.Items(slice) {
		ids = append(ids, model.PKValue(item).(int64))
	}
	return ids
}

func (l *library) filter(t *testing.T, name, expression string) []int64 {
	t.Helper()
	where, err := CompileJSON(l.scope(name), expression)
	require.NoError(t, err, expression)
	return l.ids(t, name, where)
}

func TestCompileFieldLookups(t *testing.T) {
	lib := openLibrary(t)
	cases := []struct {
		expression string
		expected   []int64
	}{
		{`{}`, []int64{1, 2, 3, 4}},
		{`{"title": "Dune"}`, []int64{1}},
		{`{"title.exact": "Dune"}`, []int64{1}},
		{`{"title.iexact": "dune"}`, []int64{1}},
		{`{"title.startswith": "Dune"}`, []int64{1, 2}},
		{`{"title.istartswith": "dune"}`, []int64{1, 2}},
		{`{"title.endswith": "Messiah"}`, []int64{2}},
		{`{"title.iendswith": "SSED"}`, []int64{3}},
		{`{"title.icontains": "DUNE"}`, []int64{1, 2}},
		{`{"title.contains": "100%"}`, []int64{4}},
		{`{"title.contains": "_"}`, []int64{}},
		{`{"pages.gte": 387}`, []int64{1, 3}},
		{`{"pages.gt": "387"}`, []int64{1}},
		{`{"pages.lt": 256}`, []int64{4}},
		{`{"pages.lte": 256}`, []int64{2, 4}},
		{`{"pages.range": [200, 400]}`, []int64{2, 3}},
		{`{"id.in": [1, 3, 9]}`, []int64{1, 3}},
		{`{"id.in": []}`, []int64{}},
		{`{"status": "published"}`, []int64{1, 3}},
		{`{"author_id": null}`, []int64{4}},
		{`{"author_id.isnull": false}`, []int64{1, 2, 3}},
		{`{"price.gte": "~pages"}`, []int64{4}},
		{`{"pages.lt": "~author.birth_year"}`, []int64{1, 2, 3}},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, lib.filter(t, "book", c.expression), c.expression)
	}
}

func TestCompileRelations(t *testing.T) {
	lib := openLibrary(t)
	cases := []struct {
		model      string
		expression string
		expected   []int64
	}{
		{"book", `{"author": 1}`, []int64{1, 2}},
		{"book", `{"author.in": [1, 2]}`, []int64{1, 2, 3}},
		{"book", `{"author": null}`, []int64{4}},
		{"book", `{"author.isnull": false}`, []int64{1, 2, 3}},
		{"book", `{"author.name.startswith": "Ursula"}`, []int64{3}},
		{"book", `{"author__profile__bio__icontains": "science"}`, []int64{1, 2}},
		{"book", `{"tags.name": "classic"}`, []int64{1, 3}},
		{"book", `{"tags": 2}`, []int64{1, 2, 3}},
		{"book", `{"tags.in": [1, 2]}`, []int64{1, 2, 3}},
		{"book", `{"tags.isnull": true}`, []int64{4}},
		{"author", `{"books.tags.name": "classic"}`, []int64{1, 2}},
		{"author", `{"books.isnull": true}`, []int64{3}},
		{"author", `{"books": 3}`, []int64{2}},
		{"author", `{"profile.isnull": true}`, []int64{2, 3}},
		{"author", `{"profile": 1}`, []int64{1}},
		{"tag", `{"books.author.name": "Frank Herbert"}`, []int64{1, 2}},
		{"profile", `{"author.books.status": "draft"}`, []int64{1}},
		{"book", `{"author.name": null}`, []int64{4}},
		{"book", `{"author.email": null}`, []int64{3, 4}},
		{"book", `{"author.email.isnull": true}`, []int64{3, 4}},
		{"book", `{"author.email.isnull": false}`, []int64{1, 2}},
		{"book", `{"not": {"author.email": null}}`, []int64{1, 2}},
		{"book", `{"author.profile": null}`, []int64{3, 4}},
		{"book", `{"tags.name": null}`, []int64{4}},
		{"author", `{"books.tags.name": null}`, []int64{3}},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, lib.filter(t, c.model, c.expression), c.model+" "+c.expression)
	}
}

func TestCompileBooleanOperators(t *testing.T) {
	lib := openLibrary(t)
	cases := []struct {
		expression string
		expected   []int64
	}{
		{`{"or": [{"status": "draft"}, {"status": "archived"}]}`, []int64{2, 4}},
		{`{"and": {"status": "published", "pages.lt": 400}}`, []int64{3}},
		{`{"status": "published", "pages.lt": 400}`, []int64{3}},
		{`[{"status": "published"}, {"-label": {"author.birth_year.lt": 1925}}]`, []int64{1}},
		{`{"not": {"tags.name": "classic"}}`, []int64{2, 4}},
		{`{"not": {"author.birth_year": 1920}}`, []int64{3, 4}},
		{`{"not": {"author_id": 1}}`, []int64{3, 4}},
		{`{"not": {"not": {"status": "draft"}}}`, []int64{2}},
		{`{"or": [{"tags.name": "classic"}, {"author": null}], "pages.gt": 200}`, []int64{1, 3}},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, lib.filter(t, "book", c.expression), c.expression)
	}
}

func TestCompileErrors(t *testing.T) {
	lib := openLibrary(t)
	cases := []struct {
		scope      Scope
		expression string
		message    string
	}{
		{lib.scope("book"), `{"nope": 1}`, "Cannot resolve keyword 'nope'"},
		{lib.scope("book"), `{"title.foo": 1}`, "Unsupported lookup 'foo'"},
		{lib.scope("book"), `{"title.exact.x": 1}`, "does not support nested lookups"},
		{lib.scope("book"), `{"pages.gt": null}`, "does not accept null"},
		{lib.scope("book"), `{"pages": "many"}`, "invalid value"},
		{lib.scope("book"), `{"pages.range": [1]}`, "expects a list of two values"},
		{lib.scope("book"), `{"pages.in": 1}`, "expects a list"},
		{lib.scope("book"), `{"title.isnull": "yes"}`, "expects a boolean"},
		{lib.scope("book"), `{"title.contains": ["x"]}`, "expects a string"},
		{lib.scope("book"), `{"pages.in": "~price"}`, "cannot compare with a field reference"},
		{lib.scope("book"), `{"pages.gt": "~tags.id"}`, "to-many relation 'tags'"},
		{lib.scope("book", "someapp.book.price"), `{"price": 1}`, "Field 'price' is excluded"},
		{lib.scope("book", "someapp.author.email"), `{"author.email": "x"}`, "Field 'email' is excluded"},
		{lib.scope("book", "someapp.tag"), `{"tags.name": "x"}`, "Model 'tag' is excluded"},
		{lib.scope("book", "someapp"), `{"author": 1}`, "Application 'someapp' is excluded"},
		{NewModelScope(lib.models["book"], nil), `{"author": 1}`, "Model 'author' is excluded"},
	}
	for _, c := range cases {
		_, err := CompileJSON(c.scope, c.expression)
		require.Error(t, err, c.expression)
		assert.IsType(t, &Error{}, err)
		assert.Contains(t, err.Error(), c.message, c.expression)
	}
}

func TestOrder(t *testing.T) {
	lib := openLibrary(t)
	scope := lib.scope("book")

	orders, err := Order(scope, []string{"-pages"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2, 4}, lib.ids(t, "book", nil, orders...))

	orders, err = Order(scope, []string{"author.name,-id"})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2, 1, 3}, lib.ids(t, "book", nil, orders...))

	orders, err = Order(lib.scope("author"), []string{"-profile", "id"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, lib.ids(t, "author", nil, orders...))

	orders, err = Order(scope, []string{"", " , "})
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = Order(scope, []string{"tags"})
	assert.ErrorContains(t, err, "to-many relation 'tags'")
	_, err = Order(scope, []string{"-nope"})
	assert.ErrorContains(t, err, "Cannot resolve keyword 'nope'")
	_, err = Order(lib.scope("book", "someapp.book.pages"), []string{"pages"})
	assert.ErrorContains(t, err, "Field 'pages' is excluded")
}
