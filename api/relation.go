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

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tomoncle/bunrest/meta"
)

// related redirects to the object(s) rel points at: the detail URL for
// to-one relations, the list filtered by the reverse relation otherwise.
func (res *Resource) related(r *http.Request, rel *meta.Relation) (interface{}, error) {
	obj, err := res.object(r)
	if err != nil {
		return nil, err
	}
	target := res.target(rel)
	pk := res.model.PKValue(obj)

	if !rel.Many() {
		relatedPK, err := res.repo.RelatedPK(r.Context(), obj, rel)
		if err != nil {
			return nil, err
		}
		if relatedPK == nil {
			return nil, NotFound("No such object: %s%s/", res.DetailURL(pk), rel.Name)
		}
		return target.RedirectToID(r, relatedPK), nil
	}

	if reverse := res.reverse(rel); reverse != nil {
		return target.RedirectToFilter(r, map[string]interface{}{reverse.Name: pk})
	}
	if rel.Kind == meta.HasMany {
		fk := target.model.FieldOf(rel.TargetColumn)
		if fk != nil && target.CheckField(fk.Name) == nil {
			return target.RedirectToFilter(r, map[string]interface{}{fk.Name: pk})
		}
	}
	return nil, BadRequest("Relation '%s' can not be followed from %s", rel.Name, res.model)
}

// dispatchRelation serves POST /{id}/{relation}/{set|add|remove}/.
func (res *Resource) dispatchRelation(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	op := chi.URLParam(r, "op")
	if r.Method != http.MethodPost {
		return nil, BadRequest("Only POST request for relation methods: %s", op)
	}
	name := chi.URLParam(r, "relation")
	rel, ok := res.Relation(name)
	if !ok {
		return nil, BadRequest("No such relation: %s", name)
	}
	if !contains(rel.Methods(), op) {
		return nil, BadRequest("Method '%s' is not supported by relation '%s'", op, name)
	}
	if rel.Readonly {
		return nil, BadRequest("Relation '%s' is read only", name)
	}

	ctx := r.Context()
	obj, err := res.object(r)
	if err != nil {
		return nil, err
	}
	target := res.target(rel)
	arg, err := decodeJSON(r)
	if err != nil {
		return nil, err
	}

	if op == "set" {
		var pk interface{}
		if arg != nil {
			if pk, err = target.model.PK.Coerce(arg); err != nil {
				return nil, BadRequest("Arguments deserialization error: %v", err)
			}
		}
		if err := res.authorizeSet(ctx, obj, rel, target, pk); err != nil {
			return nil, err
		}
		return nil, res.repo.SetRelated(ctx, obj, rel, pk)
	}

	if arg == nil {
		return nil, BadRequest("Arguments deserialization error: a list of keys is expected")
	}
	pks, err := target.model.PK.CoerceList(arg)
	if err != nil {
		return nil, BadRequest("Arguments deserialization error: %v", err)
	}
	if err := res.authorizeMany(ctx, obj, rel, target, pks); err != nil {
		return nil, err
	}
	if op == "add" {
		return nil, res.repo.AddRelated(ctx, obj, rel, pks)
	}
	return nil, res.repo.RemoveRelated(ctx, obj, rel, pks)
}

// authorizeSet checks a to-one change. The owner of the foreign key is the
// object for belongs-to relations, the current and the new related objects
// for has-one relations.
func (res *Resource) authorizeSet(ctx context.Context, obj interface{}, rel *meta.Relation, target *Resource, pk interface{}) error {
	if rel.Original() {
		allowed, err := res.authorization.UpdateDetail(ctx, obj)
		return authorize(allowed, err, "update")
	}
	current, err := res.repo.RelatedPK(ctx, obj, rel)
	if err != nil {
		return err
	}
	for _, key := range []interface{}{current, pk} {
		if key == nil {
			continue
		}
		if err := target.authorizeUpdate(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// authorizeMany checks a to-many change: the object itself for many-to-many
// relations, every referenced object for has-many relations.
func (res *Resource) authorizeMany(ctx context.Context, obj interface{}, rel *meta.Relation, target *Resource, pks []interface{}) error {
	if rel.Original() {
		allowed, err := res.authorization.UpdateDetail(ctx, obj)
		return authorize(allowed, err, "update")
	}
	for _, pk := range pks {
		if err := target.authorizeUpdate(ctx, pk); err != nil {
			return err
		}
	}
	return nil
}

func (res *Resource) authorizeUpdate(ctx context.Context, pk interface{}) error {
	obj, err := res.Get(ctx, pk)
	if err != nil {
		return err
	}
	allowed, err := res.authorization.UpdateDetail(ctx, obj)
	return authorize(allowed, err, "update")
}
