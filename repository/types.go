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
	"errors"

	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun"
)

var (
	// ErrNotNullable is returned when unlinking would leave a required
	// foreign key empty.
	ErrNotNullable = errors.New("relation is not nullable")
	// ErrUnsupported is returned for a mutation the relation kind lacks.
	ErrUnsupported = errors.New("operation is not supported by this relation")
)

// QueryScope narrows a select query, typically for authorization.
type QueryScope func(q *bun.SelectQuery) (*bun.SelectQuery, error)

// CrudRepository defines basic CRUD operations over one model.
type CrudRepository interface {
	GetOne(ctx context.Context, pk interface{}, scope QueryScope) (interface{}, error)

	Page(ctx context.Context, page *types.PageRequest, scope QueryScope) (*types.Pagination, error)

	Create(ctx context.Context, entity interface{}) error

	Update(ctx context.Context, entity interface{}, columns ...string) error

	Delete(ctx context.Context, entity interface{}) error
}

// RelationRepository reads and mutates the relations of an entity. Related
// objects are addressed by primary key.
type RelationRepository interface {
	RelatedPK(ctx context.Context, entity interface{}, rel *meta.Relation) (interface{}, error)

	SetRelated(ctx context.Context, entity interface{}, rel *meta.Relation, pk interface{}) error

	AddRelated(ctx context.Context, entity interface{}, rel *meta.Relation, pks []interface{}) error

	RemoveRelated(ctx context.Context, entity interface{}, rel *meta.Relation, pks []interface{}) error
}

// TransactionRepository runs operations inside a transaction.
type TransactionRepository interface {
	WithTx(tx bun.Tx) Repository
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Repository combines CRUD, pagination, relation and transactional
// operations and exposes the Bun handle for advanced use cases.
type Repository interface {
	CrudRepository
	RelationRepository
	TransactionRepository
	Model() *meta.Model
	DB() bun.IDB
	NewSelect() *bun.SelectQuery
}
