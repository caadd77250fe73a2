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

package meta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest/database/dbtest"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/uptrace/bun"
)

func inspectAll(t *testing.T) map[string]*Model {
	t.Helper()
	db, registry := dbtest.Open(t, someapp.Register)
	models := make(map[string]*Model)
	for _, reg := range registry.Models(someapp.AppLabel) {
		m, err := Inspect(db, reg)
		require.NoError(t, err)
		models[m.Name] = m
	}
	return models
}

func TestInspectFields(t *testing.T) {
	models := inspectAll(t)
	author := models["author"]
	require.NotNil(t, author)

	assert.Equal(t, "someapp.author", author.String())
	assert.Equal(t, "id", author.PK.Name)
	assert.True(t, author.PK.Readonly)
	assert.True(t, author.PK.Unique)

	names := make([]string, 0)
	for _, f := range author.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "name", "email", "birth_year", "created_at"}, names)

	name, _ := author.Field("name")
	assert.Equal(t, TypeString, name.Type)
	assert.False(t, name.Nullable)
	assert.False(t, name.Blank)
	assert.Equal(t, "Full name of the author", name.HelpText)
	assert.Equal(t, "name", name.VerboseName)

	email, _ := author.Field("email")
	assert.True(t, email.Nullable)
	assert.True(t, email.Unique)

	year, _ := author.Field("birth_year")
	assert.Equal(t, TypeInteger, year.Type)
	assert.Equal(t, "year of birth", year.VerboseName)

	created, _ := author.Field("created_at")
	assert.Equal(t, TypeDateTime, created.Type)
	assert.True(t, created.Readonly)
	assert.Equal(t, "current_timestamp", created.Default)

	book := models["book"]
	status, _ := book.Field("status")
	assert.Contains(t, status.Default, "draft")
	require.Len(t, status.Choices, 3)
	assert.Equal(t, "draft", status.Choices[0].Value)
	assert.Equal(t, "Draft", status.Choices[0].Label)

	extra, _ := book.Field("extra")
	assert.Equal(t, TypeDict, extra.Type)
	price, _ := book.Field("price")
	assert.Equal(t, TypeFloat, price.Type)
}

func TestInspectRelations(t *testing.T) {
	models := inspectAll(t)

	author := models["author"]
	require.Len(t, author.Relations, 2)
	books, ok := author.Relation("books")
	require.True(t, ok)
	assert.Equal(t, HasMany, books.Kind)
	assert.True(t, books.Many())
	assert.False(t, books.Original())
	assert.True(t, books.Nullable())
	assert.Equal(t, []string{"add", "remove"}, books.Methods())
	assert.Equal(t, "author_id", books.TargetColumn.Name)

	profile, _ := author.Relation("profile")
	assert.Equal(t, HasOne, profile.Kind)
	assert.Equal(t, []string{"set"}, profile.Methods())
	assert.True(t, profile.Unique())

	book := models["book"]
	toAuthor, _ := book.Relation("author")
	assert.Equal(t, BelongsTo, toAuthor.Kind)
	assert.True(t, toAuthor.Original())
	assert.Equal(t, "author_id", toAuthor.BaseColumn.Name)
	assert.Equal(t, "id", toAuthor.TargetColumn.Name)
	assert.True(t, books.IsReverseOf(toAuthor))
	assert.True(t, toAuthor.IsReverseOf(books))

	tags, _ := book.Relation("tags")
	assert.Equal(t, ManyToMany, tags.Kind)
	assert.True(t, tags.Original())
	assert.Equal(t, "book_id", tags.ThroughBase.Name)
	assert.Equal(t, "tag_id", tags.ThroughTarget.Name)

	tagBooks, _ := models["tag"].Relation("books")
	assert.True(t, tags.IsReverseOf(tagBooks))
	assert.False(t, tags.IsReverseOf(toAuthor))
}

type compositeKey struct {
	bun.BaseModel `bun:"table:composite"`
	A             int64 `bun:"a,pk"`
	B             int64 `bun:"b,pk"`
}

func TestInspectRejectsCompositeKeys(t *testing.T) {
	db, registry := dbtest.Open(t, nil)
	reg, err := registry.Register("x", (*compositeKey)(nil))
	require.NoError(t, err)
	db.RegisterModel((*compositeKey)(nil))

	_, err = Inspect(db, reg)
	assert.ErrorContains(t, err, "exactly one primary key")
}

func TestModelValues(t *testing.T) {
	models := inspectAll(t)
	book := models["book"]

	obj := book.New().(*someapp.Book)
	title, _ := book.Field("title")
	authorID, _ := book.Field("author_id")
	status, _ := book.Field("status")

	require.NoError(t, book.Set(obj, title, "Dune"))
	require.NoError(t, book.Set(obj, authorID, "7"))
	require.NoError(t, book.Set(obj, status, "published"))
	assert.Equal(t, "Dune", obj.Title)
	require.NotNil(t, obj.AuthorID)
	assert.Equal(t, int64(7), *obj.AuthorID)
	assert.Equal(t, someapp.StatusPublished, obj.Status)
	assert.Equal(t, int64(7), book.Get(obj, authorID))

	require.NoError(t, book.Set(obj, authorID, nil))
	assert.Nil(t, obj.AuthorID)
	assert.Nil(t, book.Get(obj, authorID))

	pk, err := book.ParsePK("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), pk)
	_, err = book.ParsePK("abc")
	assert.Error(t, err)

	obj.ID = 3
	assert.Equal(t, int64(3), book.PKValue(obj))

	slice := book.NewSlice().(*[]*someapp.Book)
	*slice = append(*slice, obj)
	assert.Equal(t, []interface{}{obj}, book.Items(slice))
}

func TestCoerce(t *testing.T) {
	models := inspectAll(t)
	author := models["author"]
	created, _ := author.Field("created_at")

	v, err := created.Coerce("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), v)

	name, _ := author.Field("name")
	v, err = name.Coerce("x")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = name.CoerceList("x")
	assert.Error(t, err)
	list, err := name.CoerceList([]interface{}{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, list)
}

func TestUnderscore(t *testing.T) {
	assert.Equal(t, "author_profile", underscore("AuthorProfile"))
	assert.Equal(t, "http_server", underscore("HTTPServer"))
	assert.Equal(t, "id", underscore("ID"))
}
