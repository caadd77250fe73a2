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
	"fmt"
	"reflect"

	"github.com/tomoncle/bunrest/meta"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// RelatedPK returns the primary key of the object a to-one relation points
// at, or nil when there is none.
func (r *baseRepositoryImpl) RelatedPK(ctx context.Context, entity interface{}, rel *meta.Relation) (interface{}, error) {
	switch rel.Kind {
	case meta.BelongsTo:
		return columnValue(entity, rel.BaseColumn), nil
	case meta.HasOne:
		dest := newColumnValue(rel.TargetTable.PKs[0])
		err := r.db.NewSelect().
			TableExpr("?", rel.TargetTable.SQLName).
			ColumnExpr("?", rel.TargetTable.PKs[0].SQLName).
			Where("? = ?", rel.TargetColumn.SQLName, columnValue(entity, rel.BaseColumn)).
			Limit(1).
			Scan(ctx, dest.Interface())
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return dest.Elem().Interface(), nil
	}
	return nil, ErrUnsupported
}

// SetRelated points a to-one relation at the object with the given primary
// key, or clears it when pk is nil.
func (r *baseRepositoryImpl) SetRelated(ctx context.Context, entity interface{}, rel *meta.Relation, pk interface{}) error {
	switch rel.Kind {
	case meta.BelongsTo:
		if pk == nil && !rel.Nullable() {
			return ErrNotNullable
		}
		if pk != nil {
			if err := r.requireTargets(ctx, rel, []interface{}{pk}); err != nil {
				return err
			}
		}
		fk := r.model.FieldOf(rel.BaseColumn)
		if err := r.model.Set(entity, fk, pk); err != nil {
			return err
		}
		return r.Update(ctx, entity, fk.Name)

	case meta.HasOne:
		return r.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
			db := repo.DB()
			base := columnValue(entity, rel.BaseColumn)
			current, err := repo.RelatedPK(ctx, entity, rel)
			if err != nil {
				return err
			}
			if current != nil && !equalPK(current, pk) {
				if !rel.Nullable() {
					return ErrNotNullable
				}
				if _, err := db.NewUpdate().
					TableExpr("?", rel.TargetTable.SQLName).
					Set("? = NULL", rel.TargetColumn.SQLName).
					Where("? = ?", rel.TargetColumn.SQLName, base).
					Exec(ctx); err != nil {
					return err
				}
			}
			if pk == nil || equalPK(current, pk) {
				return nil
			}
			res, err := db.NewUpdate().
				TableExpr("?", rel.TargetTable.SQLName).
				Set("? = ?", rel.TargetColumn.SQLName, base).
				Where("? = ?", rel.TargetTable.PKs[0].SQLName, pk).
				Exec(ctx)
			if err != nil {
				return err
			}
			return requireAffected(res, 1, rel)
		})
	}
	return ErrUnsupported
}

// AddRelated links the objects with the given primary keys. Linking an
// object that is already linked is a no-op.
func (r *baseRepositoryImpl) AddRelated(ctx context.Context, entity interface{}, rel *meta.Relation, pks []interface{}) error {
	if !rel.Many() {
		return ErrUnsupported
	}
	if len(pks) == 0 {
		return nil
	}
	return r.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		tx := repo.(*baseRepositoryImpl)
		if err := tx.requireTargets(ctx, rel, pks); err != nil {
			return err
		}
		base := columnValue(entity, rel.BaseColumn)
		if rel.Kind == meta.HasMany {
			_, err := tx.db.NewUpdate().
				TableExpr("?", rel.TargetTable.SQLName).
				Set("? = ?", rel.TargetColumn.SQLName, base).
				Where("? IN (?)", rel.TargetTable.PKs[0].SQLName, bun.In(pks)).
				Exec(ctx)
			return err
		}
		for _, pk := range pks {
			if err := tx.link(ctx, rel, base, pk); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveRelated unlinks the objects with the given primary keys. Objects
// that are not linked are ignored.
func (r *baseRepositoryImpl) RemoveRelated(ctx context.Context, entity interface{}, rel *meta.Relation, pks []interface{}) error {
	if !rel.Many() {
		return ErrUnsupported
	}
	if rel.Kind == meta.HasMany && !rel.Nullable() {
		return ErrNotNullable
	}
	if len(pks) == 0 {
		return nil
	}
	base := columnValue(entity, rel.BaseColumn)
	if rel.Kind == meta.HasMany {
		_, err := r.db.NewUpdate().
			TableExpr("?", rel.TargetTable.SQLName).
			Set("? = NULL", rel.TargetColumn.SQLName).
			Where("? = ?", rel.TargetColumn.SQLName, base).
			Where("? IN (?)", rel.TargetTable.PKs[0].SQLName, bun.In(pks)).
			Exec(ctx)
		return err
	}
	_, err := r.db.NewDelete().
		TableExpr("?", rel.Through.SQLName).
		Where("? = ?", rel.ThroughBase.SQLName, base).
		Where("? IN (?)", rel.ThroughTarget.SQLName, bun.In(pks)).
		Exec(ctx)
	return err
}

// link inserts one join row, relying on the dialect to ignore duplicates
// where it can.
func (r *baseRepositoryImpl) link(ctx context.Context, rel *meta.Relation, base, pk interface{}) error {
	row := reflect.New(rel.Through.Type)
	if err := setColumn(row.Elem(), rel.ThroughBase, base); err != nil {
		return err
	}
	if err := setColumn(row.Elem(), rel.ThroughTarget, pk); err != nil {
		return err
	}

	insertQuery := r.db.NewInsert().Model(row.Interface())
	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		_, err := insertQuery.On("CONFLICT DO NOTHING").Exec(ctx)
		return err
	case features.Has(feature.InsertOnDuplicateKey):
		_, err := insertQuery.Ignore().Exec(ctx)
		return err
	default:
		exists, err := r.db.NewSelect().
			TableExpr("?", rel.Through.SQLName).
			Where("? = ?", rel.ThroughBase.SQLName, base).
			Where("? = ?", rel.ThroughTarget.SQLName, pk).
			Exists(ctx)
		if err != nil || exists {
			return err
		}
		_, err = insertQuery.Exec(ctx)
		return err
	}
}

// requireTargets fails with sql.ErrNoRows unless every pk exists in the
// relation's target table.
func (r *baseRepositoryImpl) requireTargets(ctx context.Context, rel *meta.Relation, pks []interface{}) error {
	unique := make([]interface{}, 0, len(pks))
	seen := make(map[interface{}]bool, len(pks))
	for _, pk := range pks {
		if !seen[pk] {
			seen[pk] = true
			unique = append(unique, pk)
		}
	}
	count, err := r.db.NewSelect().
		TableExpr("?", rel.TargetTable.SQLName).
		Where("? IN (?)", rel.TargetTable.PKs[0].SQLName, bun.In(unique)).
		Count(ctx)
	if err != nil {
		return err
	}
	if count != len(unique) {
		return fmt.Errorf("%w: %s references missing objects", sql.ErrNoRows, rel.Name)
	}
	return nil
}

func requireAffected(res sql.Result, expected int64, rel *meta.Relation) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < expected {
		return fmt.Errorf("%w: %s references a missing object", sql.ErrNoRows, rel.Name)
	}
	return nil
}

func columnValue(entity interface{}, col *schema.Field) interface{} {
	v := col.Value(reflect.ValueOf(entity).Elem())
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

func newColumnValue(col *schema.Field) reflect.Value {
	typ := col.StructField.Type
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return reflect.New(typ)
}

func setColumn(strct reflect.Value, col *schema.Field, value interface{}) error {
	dst := col.Value(strct)
	src := reflect.ValueOf(value)
	typ := dst.Type()
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if !src.Type().ConvertibleTo(typ) {
		return fmt.Errorf("cannot assign %T to %s", value, col.Name)
	}
	src = src.Convert(typ)
	if dst.Kind() == reflect.Ptr {
		p := reflect.New(typ)
		p.Elem().Set(src)
		src = p
	}
	dst.Set(src)
	return nil
}

func equalPK(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b) || fmt.Sprint(a) == fmt.Sprint(b)
}
