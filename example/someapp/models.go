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

// Package someapp is a small library application used to demonstrate and
// test the REST layer: authors with profiles, books and tags.
package someapp

import (
	"time"

	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun"
)

const AppLabel = "someapp"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

var statusLabels = map[Status]string{
	StatusDraft:     "Draft",
	StatusPublished: "Published",
	StatusArchived:  "Archived",
}

func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Number() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusPublished:
		return 1
	case StatusArchived:
		return 2
	}
	return types.IllegalValue
}

func (s Status) String() string { return string(s) }

func (s Status) Name() string { return string(s) }

func (s Status) Desc() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return types.IllegalDesc
}

func (s Status) Values() []types.BaseEnum {
	return []types.BaseEnum{StatusDraft, StatusPublished, StatusArchived}
}

type Author struct {
	bun.BaseModel `bun:"table:someapp_author,alias:author"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name" help:"Full name of the author"`
	Email     *string   `bun:"email,unique" json:"email"`
	BirthYear *int64    `bun:"birth_year" json:"birth_year" verbose:"year of birth"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at" api:"readonly"`

	Profile *Profile `bun:"rel:has-one,join:id=author_id" json:"profile"`
	Books   []*Book  `bun:"rel:has-many,join:id=author_id" json:"books"`
}

type Profile struct {
	bun.BaseModel `bun:"table:someapp_profile,alias:profile"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	AuthorID *int64 `bun:"author_id,unique" json:"author_id"`
	Bio      string `bun:"bio" json:"bio"`
	Website  string `bun:"website" json:"website"`

	Author *Author `bun:"rel:belongs-to,join:author_id=id" json:"author"`
}

type Book struct {
	bun.BaseModel `bun:"table:someapp_book,alias:book"`

	ID       int64            `bun:"id,pk,autoincrement" json:"id"`
	Title    string           `bun:"title,notnull" json:"title"`
	Status   Status           `bun:"status,nullzero,notnull,default:'draft'" json:"status"`
	Pages    int64            `bun:"pages" json:"pages"`
	Price    float64          `bun:"price" json:"price"`
	Extra    types.JsonObject `bun:"extra,type:text" json:"extra"`
	AuthorID *int64           `bun:"author_id" json:"author_id"`

	Author *Author `bun:"rel:belongs-to,join:author_id=id" json:"author"`
	Tags   []*Tag  `bun:"m2m:someapp_book_tags,join:Book=Tag" json:"tags"`
}

type Tag struct {
	bun.BaseModel `bun:"table:someapp_tag,alias:tag"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`

	Books []*Book `bun:"m2m:someapp_book_tags,join:Tag=Book" json:"books"`
}

// BookTag joins books and tags.
type BookTag struct {
	bun.BaseModel `bun:"table:someapp_book_tags,alias:book_tag"`

	BookID int64 `bun:"book_id,pk"`
	Book   *Book `bun:"rel:belongs-to,join:book_id=id"`
	TagID  int64 `bun:"tag_id,pk"`
	Tag    *Tag  `bun:"rel:belongs-to,join:tag_id=id"`
}

// Register adds the application and its models to registry.
func Register(registry database.ModelRegistry) error {
	registry.RegisterApp(database.AppConfig{
		Label:       AppLabel,
		VerboseName: "Some application",
		Description: "Authors, their books and tags.",
		Version:     "1.0",
	})
	models := []struct {
		instance interface{}
		opts     []database.ModelOption
	}{
		{(*Author)(nil), []database.ModelOption{database.WithPriority(10), database.WithDescription("A person who writes books.")}},
		{(*Tag)(nil), []database.ModelOption{database.WithPriority(10)}},
		{(*Profile)(nil), []database.ModelOption{database.WithPriority(20)}},
		{(*Book)(nil), []database.ModelOption{database.WithPriority(20)}},
		{(*BookTag)(nil), []database.ModelOption{database.WithPriority(30), database.WithName("booktag"), database.AsThrough()}},
	}
	for _, m := range models {
		if _, err := registry.Register(AppLabel, m.instance, m.opts...); err != nil {
			return err
		}
	}
	return nil
}
