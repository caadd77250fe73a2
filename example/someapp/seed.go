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

package someapp

import (
	"context"

	"github.com/uptrace/bun"
)

func ptr[T any](v T) *T { return &v }

// Seed inserts a small fixed data set:
//
//	authors: 1 Frank Herbert, 2 Ursula K. Le Guin, 3 Anonymous
//	books:   1 Dune, 2 Dune Messiah (author 1), 3 The Dispossessed (author 2),
//	         4 100% Orphan (no author)
//	tags:    1 classic (books 1, 3), 2 scifi (books 1, 2, 3)
func Seed(ctx context.Context, db bun.IDB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		authors := []*Author{
			{ID: 1, Name: "Frank Herbert", Email: ptr("frank@dune.org"), BirthYear: ptr(int64(1920))},
			{ID: 2, Name: "Ursula K. Le Guin", BirthYear: ptr(int64(1929))},
			{ID: 3, Name: "Anonymous"},
		}
		profiles := []*Profile{
			{ID: 1, AuthorID: ptr(int64(1)), Bio: "Science fiction writer", Website: "https://dune.org"},
		}
		books := []*Book{
			{ID: 1, Title: "Dune", Status: StatusPublished, Pages: 412, Price: 9.99, AuthorID: ptr(int64(1))},
			{ID: 2, Title: "Dune Messiah", Status: StatusDraft, Pages: 256, Price: 8.5, AuthorID: ptr(int64(1))},
			{ID: 3, Title: "The Dispossessed", Status: StatusPublished, Pages: 387, Price: 12, AuthorID: ptr(int64(2))},
			{ID: 4, Title: "100% Orphan", Status: StatusArchived, Pages: 100, Price: 100},
		}
		tags := []*Tag{{ID: 1, Name: "classic"}, {ID: 2, Name: "scifi"}}
		bookTags := []*BookTag{
			{BookID: 1, TagID: 1}, {BookID: 1, TagID: 2},
			{BookID: 2, TagID: 2},
			{BookID: 3, TagID: 1}, {BookID: 3, TagID: 2},
		}
		for _, rows := range []interface{}{&authors, &profiles, &books, &tags, &bookTags} {
			if _, err := tx.NewInsert().Model(rows).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
