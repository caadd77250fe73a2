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

	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun"
)

type baseRepositoryImpl struct {
	db    bun.IDB
	model *meta.Model
}

// NewRepository returns a repository for model backed by the provided Bun
// handle, which may be a *bun.DB or a bun.Tx.
func NewRepository(db bun.IDB, model *meta.Model) Repository {
	return &baseRepositoryImpl{db: db, model: model}
}

func (r *baseRepositoryImpl) Model() *meta.Model { return r.model }

func (r *baseRepositoryImpl) DB() bun.IDB { return r.db }

// NewSelect starts a query over the model's table without a destination.
func (r *baseRepositoryImpl) NewSelect() *bun.SelectQuery {
	return r.db.NewSelect().Model(r.model.New())
}

func (r *baseRepositoryImpl) WithTx(tx bun.Tx) Repository {
	return &baseRepositoryImpl{db: tx, model: r.model}
}

func (r *baseRepositoryImpl) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
}

func (r *baseRepositoryImpl) GetOne(ctx context.Context, pk interface{}, scope QueryScope) (interface{}, error) {
	entity := r.model.New()
	query := r.db.NewSelect().Model(entity).
		Where("?.? = ?", r.model.Table.SQLAlias, r.model.PK.SQLName(), pk)
	query, err := applyScope(query, scope)
	if err != nil {
		return nil, err
	}
	if err := query.Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl) Page(ctx context.Context, pageRequest *types.PageRequest, scope QueryScope) (*types.Pagination, error) {
	entities := r.model.NewSlice()
	query, err := applyScope(r.db.NewSelect().Model(entities), scope)
	if err != nil {
		return nil, err
	}
	if filter := pageRequest.GetFilter(); !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}

	pagination := types.NewPagination(pageRequest.GetLimit(), pageRequest.GetOffset())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}

	for _, order := range pageRequest.GetOrders() {
		query = query.OrderExpr(order.Schema, order.Args...)
	}
	query = query.OrderExpr("?.? ASC", r.model.Table.SQLAlias, r.model.PK.SQLName())
	if pageRequest.GetOffset() > 0 {
		query = query.Offset(pageRequest.GetOffset())
	}
	if pageRequest.GetLimit() > 0 {
		query = query.Limit(pageRequest.GetLimit())
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = r.model.Items(entities)
	return pagination, nil
}

// Create inserts entity and reloads it so database defaults are visible.
func (r *baseRepositoryImpl) Create(ctx context.Context, entity interface{}) error {
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return err
	}
	return r.db.NewSelect().Model(entity).WherePK().Scan(ctx)
}

// Update writes entity back, restricted to columns when any are given.
func (r *baseRepositoryImpl) Update(ctx context.Context, entity interface{}, columns ...string) error {
	query := r.db.NewUpdate().Model(entity).WherePK()
	if len(columns) > 0 {
		query = query.Column(columns...)
	}
	_, err := query.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl) Delete(ctx context.Context, entity interface{}) error {
	_, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	return err
}

func applyScope(query *bun.SelectQuery, scope QueryScope) (*bun.SelectQuery, error) {
	if scope == nil {
		return query, nil
	}
	return scope(query)
}
