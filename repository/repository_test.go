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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest/database/dbtest"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun"
)

type fixture struct {
	db    *bun.DB
	repos map[string]Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, registry := dbtest.Open(t, someapp.Register)
	require.NoError(t, someapp.Seed(context.Background(), db))
	f := &fixture{db: db, repos: make(map[string]Repository)}
	for _, reg := range registry.Models(someapp.AppLabel) {
		m, err := meta.Inspect(db, reg)
		require.NoError(t, err)
		f.repos[m.Name] = NewRepository(db, m)
	}
	return f
}

func (f *fixture) get(t *testing.T, model string, pk int64) interface{} {
	t.Helper()
	obj, err := f.repos[model].GetOne(context.Background(), pk, nil)
	require.NoError(t, err)
	return obj
}

func (f *fixture) relation(model, name string) *meta.Relation {
	rel, _ := f.repos[model].Model().Relation(name)
	return rel
}

func (f *fixture) tagIDs(t *testing.T, bookID int64) []int64 {
	t.Helper()
	var ids []int64
	err := f.db.NewSelect().
		TableExpr("someapp_book_tags").
		Column("tag_id").
		Where("book_id = ?", bookID).
		Order("tag_id").
		Scan(context.Background(), &ids)
	require.NoError(t, err)
	return ids
}

func TestGetOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	book := f.get(t, "book", 1).(*someapp.Book)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, someapp.StatusPublished, book.Status)

	_, err := f.repos["book"].GetOne(ctx, int64(99), nil)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	onlyDrafts := func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return q.Where("?TableAlias.status = ?", someapp.StatusDraft), nil
	}
	_, err = f.repos["book"].GetOne(ctx, int64(1), onlyDrafts)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	_, err = f.repos["book"].GetOne(ctx, int64(2), onlyDrafts)
	assert.NoError(t, err)

	denied := errors.New("denied")
	_, err = f.repos["book"].GetOne(ctx, int64(2), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return nil, denied
	})
	assert.Equal(t, denied, err)
}

func TestPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["book"]

	page, err := repo.Page(ctx, types.NewDefaultPageRequest(2, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Items[0].(*someapp.Book).ID)

	filter := types.NewQueryFilter("?TableAlias.pages > ?", 300)
	orders := []*types.QueryFilter{types.NewQueryFilter("?TableAlias.pages ASC")}
	page, err = repo.Page(ctx, types.NewPageRequest(0, 0, filter, orders), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Items[0].(*someapp.Book).ID)
	assert.Equal(t, int64(1), page.Items[1].(*someapp.Book).ID)

	empty := types.NewQueryFilter("?TableAlias.pages > ?", 10000)
	page, err = repo.Page(ctx, types.NewPageRequest(10, 0, empty, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
}

func TestCreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["author"]

	author := &someapp.Author{Name: "Iain Banks"}
	require.NoError(t, repo.Create(ctx, author))
	assert.NotZero(t, author.ID)
	assert.False(t, author.CreatedAt.IsZero(), "defaults are reloaded")

	author.Name = "Iain M. Banks"
	year := int64(1954)
	author.BirthYear = &year
	require.NoError(t, repo.Update(ctx, author, "name"))
	reloaded := f.get(t, "author", author.ID).(*someapp.Author)
	assert.Equal(t, "Iain M. Banks", reloaded.Name)
	assert.Nil(t, reloaded.BirthYear, "only listed columns are written")

	require.NoError(t, repo.Update(ctx, author))
	reloaded = f.get(t, "author", author.ID).(*someapp.Author)
	require.NotNil(t, reloaded.BirthYear)
	assert.Equal(t, int64(1954), *reloaded.BirthYear)

	require.NoError(t, repo.Delete(ctx, author))
	_, err := repo.GetOne(ctx, author.ID, nil)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestBelongsTo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["book"]
	rel := f.relation("book", "author")

	orphan := f.get(t, "book", 4)
	pk, err := repo.RelatedPK(ctx, orphan, rel)
	require.NoError(t, err)
	assert.Nil(t, pk)

	require.NoError(t, repo.SetRelated(ctx, orphan, rel, int64(2)))
	assert.Equal(t, int64(2), *f.get(t, "book", 4).(*someapp.Book).AuthorID)
	pk, err = repo.RelatedPK(ctx, orphan, rel)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pk)

	err = repo.SetRelated(ctx, orphan, rel, int64(99))
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	require.NoError(t, repo.SetRelated(ctx, orphan, rel, nil))
	assert.Nil(t, f.get(t, "book", 4).(*someapp.Book).AuthorID)

	assert.Equal(t, ErrUnsupported, repo.AddRelated(ctx, orphan, rel, []interface{}{int64(1)}))
}

func TestHasOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["author"]
	rel := f.relation("author", "profile")

	frank := f.get(t, "author", 1)
	pk, err := repo.RelatedPK(ctx, frank, rel)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pk)

	profile := &someapp.Profile{Bio: "Earthsea"}
	require.NoError(t, f.repos["profile"].Create(ctx, profile))

	ursula := f.get(t, "author", 2)
	require.NoError(t, repo.SetRelated(ctx, ursula, rel, profile.ID))
	pk, err = repo.RelatedPK(ctx, ursula, rel)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, pk)

	require.NoError(t, repo.SetRelated(ctx, ursula, rel, profile.ID), "setting the same object again is a no-op")

	require.NoError(t, repo.SetRelated(ctx, frank, rel, profile.ID), "the profile moves to frank")
	pk, err = repo.RelatedPK(ctx, ursula, rel)
	require.NoError(t, err)
	assert.Nil(t, pk)
	old := f.get(t, "profile", 1).(*someapp.Profile)
	assert.Nil(t, old.AuthorID, "frank's previous profile was detached")

	require.NoError(t, repo.SetRelated(ctx, frank, rel, nil))
	pk, err = repo.RelatedPK(ctx, frank, rel)
	require.NoError(t, err)
	assert.Nil(t, pk)

	err = repo.SetRelated(ctx, frank, rel, int64(99))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestHasMany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["author"]
	rel := f.relation("author", "books")
	ursula := f.get(t, "author", 2)

	require.NoError(t, repo.AddRelated(ctx, ursula, rel, []interface{}{int64(4), int64(2)}))
	assert.Equal(t, int64(2), *f.get(t, "book", 4).(*someapp.Book).AuthorID)
	assert.Equal(t, int64(2), *f.get(t, "book", 2).(*someapp.Book).AuthorID)

	require.NoError(t, repo.RemoveRelated(ctx, ursula, rel, []interface{}{int64(4), int64(1)}))
	assert.Nil(t, f.get(t, "book", 4).(*someapp.Book).AuthorID)
	assert.Equal(t, int64(1), *f.get(t, "book", 1).(*someapp.Book).AuthorID, "books of other authors are untouched")

	err := repo.AddRelated(ctx, ursula, rel, []interface{}{int64(1), int64(99)})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Equal(t, int64(1), *f.get(t, "book", 1).(*someapp.Book).AuthorID, "failed additions roll back")

	_, err = repo.RelatedPK(ctx, ursula, rel)
	assert.Equal(t, ErrUnsupported, err)
	assert.Equal(t, ErrUnsupported, repo.SetRelated(ctx, ursula, rel, int64(1)))
}

func TestManyToMany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["book"]
	rel := f.relation("book", "tags")
	messiah := f.get(t, "book", 2)

	require.NoError(t, repo.AddRelated(ctx, messiah, rel, []interface{}{int64(1), int64(2), int64(1)}))
	assert.Equal(t, []int64{1, 2}, f.tagIDs(t, 2))

	require.NoError(t, repo.RemoveRelated(ctx, messiah, rel, []interface{}{int64(2)}))
	assert.Equal(t, []int64{1}, f.tagIDs(t, 2))
	assert.Equal(t, []int64{1, 2}, f.tagIDs(t, 1), "other books keep their tags")

	err := repo.AddRelated(ctx, messiah, rel, []interface{}{int64(42)})
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	reverse := f.relation("tag", "books")
	classic := f.get(t, "tag", 1)
	require.NoError(t, f.repos["tag"].RemoveRelated(ctx, classic, reverse, []interface{}{int64(1), int64(2), int64(3)}))
	assert.Equal(t, []int64{2}, f.tagIDs(t, 1))
	assert.Empty(t, f.tagIDs(t, 2))
}

func TestRunInTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.repos["tag"]

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.Create(ctx, &someapp.Tag{Name: "fantasy"}); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	count, err := f.db.NewSelect().Model((*someapp.Tag)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
