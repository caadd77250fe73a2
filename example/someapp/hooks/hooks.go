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

// Package hooks holds the code the someapp settings refer to by name.
package hooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomoncle/bunrest/api"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/tomoncle/bunrest/meta"
	"github.com/uptrace/bun"
)

const (
	URLMethod           = "someapp.url"
	FindByTitleMethod   = "someapp.find_by_title"
	AuthorDisplayName   = "someapp.author_display_name"
	StripBlankTitle     = "someapp.strip_blank_title"
	DraftsAuthorization = "someapp.drafts"
)

// Register adds the someapp hooks to hooks.
func Register(hooks *api.Hooks) {
	hooks.RegisterMethod(URLMethod, objectURL)
	hooks.RegisterClassMethod(FindByTitleMethod, findByTitle)
	hooks.RegisterBundle(AuthorDisplayName, authorDisplayName)
	hooks.RegisterBundle(StripBlankTitle, stripBlankTitle)
	hooks.RegisterAuthorization(DraftsAuthorization, NewDraftsAuthorization)
}

func objectURL(res *api.Resource, _ *http.Request, obj interface{}) (interface{}, error) {
	return map[string]interface{}{"url": res.DetailURL(res.Model().PKValue(obj))}, nil
}

func findByTitle(res *api.Resource, r *http.Request) (interface{}, error) {
	title := r.URL.Query().Get("title")
	if title == "" {
		return nil, api.BadRequest("No title parameter")
	}
	return res.RedirectToFilter(r, map[string]interface{}{"title__iexact": title})
}

func authorDisplayName(_ *api.Resource, bundle *api.Bundle) (*api.Bundle, error) {
	author, ok := bundle.Obj.(*someapp.Author)
	if !ok {
		return nil, fmt.Errorf("author_display_name: unexpected object %T", bundle.Obj)
	}
	name := author.Name
	if author.BirthYear != nil {
		name = fmt.Sprintf("%s (%d)", author.Name, *author.BirthYear)
	}
	bundle.Data["display_name"] = name
	return bundle, nil
}

func stripBlankTitle(_ *api.Resource, bundle *api.Bundle) (*api.Bundle, error) {
	book, ok := bundle.Obj.(*someapp.Book)
	if !ok {
		return nil, fmt.Errorf("strip_blank_title: unexpected object %T", bundle.Obj)
	}
	if book.Title == "" {
		return nil, api.BadRequest("Book title must not be blank")
	}
	return bundle, nil
}

// draftsAuthorization hides draft objects from anonymous callers and lets
// only identified callers write.
type draftsAuthorization struct {
	api.Authenticated
	model  *meta.Model
	status *meta.Field
}

// NewDraftsAuthorization returns the drafts authorization of model. Models
// without a status field are only write protected.
func NewDraftsAuthorization(model *meta.Model) api.Authorization {
	a := &draftsAuthorization{model: model}
	if f, ok := model.Field("status"); ok {
		a.status = f
	}
	return a
}

func (a *draftsAuthorization) ReadList(ctx context.Context, q *bun.SelectQuery) (*bun.SelectQuery, error) {
	if a.status == nil || api.IdentityFrom(ctx) != nil {
		return q, nil
	}
	return q.Where("?TableAlias.? != ?", a.status.SQLName(), someapp.StatusDraft), nil
}

func (a *draftsAuthorization) ReadDetail(ctx context.Context, obj interface{}) (bool, error) {
	if a.status == nil || api.IdentityFrom(ctx) != nil {
		return true, nil
	}
	return a.model.Get(obj, a.status) != someapp.StatusDraft, nil
}
