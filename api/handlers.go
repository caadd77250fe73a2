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
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/filter"
	"github.com/tomoncle/bunrest/types"
)

func (res *Resource) dispatchList(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	method := strings.ToLower(r.Method)
	if !contains(res.listMethods, method) {
		return nil, MethodNotAllowed(method, res.listMethods...)
	}
	switch method {
	case "post":
		return res.create(r)
	default:
		return res.list(r)
	}
}

func (res *Resource) dispatchDetail(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	method := strings.ToLower(r.Method)
	if !contains(res.detailMethods, method) {
		return nil, MethodNotAllowed(method, res.detailMethods...)
	}
	switch method {
	case "put", "patch":
		return res.update(r, method == "put")
	case "delete":
		return res.delete(r)
	default:
		return res.detail(r)
	}
}

func (res *Resource) getSchema(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if r.Method != http.MethodGet {
		return nil, MethodNotAllowed(r.Method, "get")
	}
	return res.Schema(), nil
}

func (res *Resource) list(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	query := r.URL.Query()
	limit, offset, err := res.window(query)
	if err != nil {
		return nil, err
	}

	var where *types.QueryFilter
	if expression := query.Get("filter"); expression != "" {
		if where, err = filter.CompileJSON(res, expression); err != nil {
			return nil, err
		}
	}
	orders, err := filter.Order(res, query["order_by"])
	if err != nil {
		var filterErr *filter.Error
		if errors.As(err, &filterErr) {
			return nil, &Error{Kind: KindInvalidSort, Message: filterErr.Message, Err: err}
		}
		return nil, err
	}

	page, err := res.repo.Page(ctx, types.NewPageRequest(limit, offset, where, orders), res.ScopeList(ctx))
	if err != nil {
		return nil, err
	}
	objects := make([]interface{}, 0, len(page.Items))
	for _, obj := range page.Items {
		if res.listMode == config.ListModeIDs {
			objects = append(objects, res.model.PKValue(obj))
			continue
		}
		bundle, err := res.dehydrateObject(r, obj)
		if err != nil {
			return nil, err
		}
		objects = append(objects, bundle.Data)
	}
	return map[string]interface{}{
		"meta":    res.listMeta(r, limit, offset, page.Total),
		"objects": objects,
	}, nil
}

// window reads limit and offset. A zero limit lists everything unless a
// max_limit caps it.
func (res *Resource) window(query url.Values) (int, int, error) {
	limit, offset := res.defaultLimit, 0
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, BadRequest("Invalid limit '%s' provided. Please provide a positive integer.", s)
		}
		limit = n
	}
	if res.maxLimit > 0 && (limit == 0 || limit > res.maxLimit) {
		limit = res.maxLimit
	}
	if s := query.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, BadRequest("Invalid offset '%s' provided. Please provide a positive integer >= 0.", s)
		}
		offset = n
	}
	return limit, offset, nil
}

func (res *Resource) listMeta(r *http.Request, limit, offset, total int) map[string]interface{} {
	data := map[string]interface{}{
		"limit":       limit,
		"offset":      offset,
		"total_count": total,
		"next":        nil,
		"previous":    nil,
	}
	if limit > 0 && offset+limit < total {
		data["next"] = res.pageURL(r, limit, offset+limit)
	}
	if limit > 0 && offset > 0 {
		data["previous"] = res.pageURL(r, limit, max(offset-limit, 0))
	}
	return data
}

func (res *Resource) pageURL(r *http.Request, limit, offset int) string {
	params := r.URL.Query()
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return res.ListEndpoint() + "?" + params.Encode()
}

func (res *Resource) detail(r *http.Request) (interface{}, error) {
	obj, err := res.object(r)
	if err != nil {
		return nil, err
	}
	allowed, err := res.authorization.ReadDetail(r.Context(), obj)
	if err := authorize(allowed, err, "read"); err != nil {
		return nil, err
	}
	bundle, err := res.dehydrateObject(r, obj)
	if err != nil {
		return nil, err
	}
	return bundle.Data, nil
}

func (res *Resource) create(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	data, err := decodeObject(r)
	if err != nil {
		return nil, err
	}
	bundle := &Bundle{Request: r, Obj: res.model.New(), Data: data}
	if bundle, _, err = res.hydrateBundle(bundle); err != nil {
		return nil, err
	}
	allowed, err := res.authorization.CreateDetail(ctx, bundle.Obj)
	if err := authorize(allowed, err, "create"); err != nil {
		return nil, err
	}
	if err := res.repo.Create(ctx, bundle.Obj); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Location", res.DetailURL(res.model.PKValue(bundle.Obj)))
	resp := &Response{Status: http.StatusCreated, Header: header}
	if res.settings.AlwaysReturnData {
		out, err := res.dehydrateObject(r, bundle.Obj)
		if err != nil {
			return nil, err
		}
		resp.Data = out.Data
	}
	return resp, nil
}

// update writes the fields present in the body. PUT writes every writable
// column back, PATCH only the ones it received.
func (res *Resource) update(r *http.Request, full bool) (interface{}, error) {
	ctx := r.Context()
	obj, err := res.object(r)
	if err != nil {
		return nil, err
	}
	data, err := decodeObject(r)
	if err != nil {
		return nil, err
	}
	bundle, columns, err := res.hydrateBundle(&Bundle{Request: r, Obj: obj, Data: data})
	if err != nil {
		return nil, err
	}
	allowed, err := res.authorization.UpdateDetail(ctx, bundle.Obj)
	if err := authorize(allowed, err, "update"); err != nil {
		return nil, err
	}
	if full {
		columns = res.writableColumns()
	}
	if len(columns) > 0 {
		if err := res.repo.Update(ctx, bundle.Obj, columns...); err != nil {
			return nil, err
		}
	}
	if !res.settings.AlwaysReturnData {
		return nil, nil
	}
	fresh, err := res.Get(ctx, res.model.PKValue(bundle.Obj))
	if err != nil {
		return nil, err
	}
	out, err := res.dehydrateObject(r, fresh)
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusOK, Data: out.Data}, nil
}

func (res *Resource) delete(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	obj, err := res.object(r)
	if err != nil {
		return nil, err
	}
	allowed, err := res.authorization.DeleteDetail(ctx, obj)
	if err := authorize(allowed, err, "delete"); err != nil {
		return nil, err
	}
	return nil, res.repo.Delete(ctx, obj)
}

func (res *Resource) writableColumns() []string {
	columns := make([]string, 0, len(res.Fields))
	for _, f := range res.Fields {
		if !f.Readonly && !f.PrimaryKey {
			columns = append(columns, f.Name)
		}
	}
	return columns
}

// hydrateBundle copies the writable fields present in the bundle data onto
// its object, then runs the hydrate hook. It returns the names of the
// columns it set.
func (res *Resource) hydrateBundle(bundle *Bundle) (*Bundle, []string, error) {
	columns := make([]string, 0, len(bundle.Data))
	for _, f := range res.Fields {
		value, ok := bundle.Data[f.Name]
		if !ok || f.Readonly {
			continue
		}
		if value == nil && !f.Nullable {
			return nil, nil, BadRequest("Field '%s' can not be null", f.Name)
		}
		if err := res.model.Set(bundle.Obj, f, value); err != nil {
			return nil, nil, &Error{Kind: KindBadRequest, Message: "Invalid value for field '" + f.Name + "': " + err.Error(), Err: err}
		}
		columns = append(columns, f.Name)
	}
	if res.hydrate == nil {
		return bundle, columns, nil
	}
	hydrated, err := res.hydrate(res, bundle)
	if err != nil {
		return nil, nil, err
	}
	return hydrated, columns, nil
}

// dehydrateObject serializes the published fields of obj, then runs the
// dehydrate hook.
func (res *Resource) dehydrateObject(r *http.Request, obj interface{}) (*Bundle, error) {
	data := make(map[string]interface{}, len(res.Fields))
	for _, f := range res.Fields {
		data[f.Name] = res.model.Get(obj, f)
	}
	bundle := &Bundle{Request: r, Obj: obj, Data: data}
	if res.dehydrate == nil {
		return bundle, nil
	}
	return res.dehydrate(res, bundle)
}

func (res *Resource) classMethod(name string) resourceHandler {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		return res.classMethods[name](res, r)
	}
}

// dispatchMethod serves /{id}/{name}/: an instance method when one is
// configured under name, the related object(s) of a relation otherwise.
func (res *Resource) dispatchMethod(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	name := chi.URLParam(r, "name")
	if fn, ok := res.methods[name]; ok {
		obj, err := res.object(r)
		if err != nil {
			return nil, err
		}
		allowed, err := res.authorization.ReadDetail(r.Context(), obj)
		if err := authorize(allowed, err, "read"); err != nil {
			return nil, err
		}
		return fn(res, r, obj)
	}
	rel, ok := res.Relation(name)
	if !ok {
		return nil, BadRequest("No such method or relation: %s", name)
	}
	if r.Method != http.MethodGet {
		return nil, MethodNotAllowed(r.Method, "get")
	}
	return res.related(r, rel)
}
