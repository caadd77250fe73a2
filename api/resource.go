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
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/filter"
	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/repository"
	"github.com/uptrace/bun"
)

const defaultLimit = 20

var (
	defaultListMethods   = []string{"get", "post"}
	defaultDetailMethods = []string{"get", "put", "patch", "delete"}
	reservedNames        = map[string]bool{"schema": true}
)

// Resource publishes one model.
type Resource struct {
	Fields    []*meta.Field
	Relations []*meta.Relation

	model          *meta.Model
	api            *Api
	app            *ApplicationApi
	version        *VersionApi
	settings       *config.ModelSettings
	repo           repository.Repository
	authentication Authentication
	authorization  Authorization
	hydrate        BundleFunc
	dehydrate      BundleFunc
	methods        map[string]MethodFunc
	classMethods   map[string]ClassMethodFunc
	listMethods    []string
	detailMethods  []string
	defaultLimit   int
	maxLimit       int
	listMode       string
}

func newResource(app *ApplicationApi, model *meta.Model, settings *config.ModelSettings) (*Resource, error) {
	a := app.version.api
	res := &Resource{
		model:         model,
		api:           a,
		app:           app,
		version:       app.version,
		settings:      settings,
		repo:          repository.NewRepository(a.db, model),
		methods:       make(map[string]MethodFunc),
		classMethods:  make(map[string]ClassMethodFunc),
		listMethods:   defaultListMethods,
		detailMethods: defaultDetailMethods,
		defaultLimit:  defaultLimit,
		listMode:      config.ListModeIDs,
	}
	for _, f := range model.Fields {
		if !f.Hidden && !settings.ExcludesField(f.Name) {
			res.Fields = append(res.Fields, f)
		}
	}

	authentication, authorization := app.version.authNames(app.settings, settings)
	authnFactory, err := a.hooks.authentication(authentication)
	if err != nil {
		return nil, err
	}
	authzFactory, err := a.hooks.authorization(authorization)
	if err != nil {
		return nil, err
	}
	res.authentication, res.authorization = authnFactory(model), authzFactory(model)

	if settings.Hydrate != "" {
		if res.hydrate, err = a.hooks.bundle(settings.Hydrate); err != nil {
			return nil, err
		}
	}
	if settings.Dehydrate != "" {
		if res.dehydrate, err = a.hooks.bundle(settings.Dehydrate); err != nil {
			return nil, err
		}
	}
	for name, hook := range settings.Methods {
		if res.methods[name], err = a.hooks.method(hook); err != nil {
			return nil, err
		}
	}
	for name, hook := range settings.ClassMethods {
		if reservedNames[name] {
			return nil, configError("Class method name is reserved: %s", name)
		}
		if res.classMethods[name], err = a.hooks.classMethod(hook); err != nil {
			return nil, err
		}
	}

	if len(settings.ListAllowedMethods) > 0 {
		if res.listMethods, err = allowedMethods(settings.ListAllowedMethods, defaultListMethods); err != nil {
			return nil, err
		}
	}
	if len(settings.DetailAllowedMethods) > 0 {
		if res.detailMethods, err = allowedMethods(settings.DetailAllowedMethods, defaultDetailMethods); err != nil {
			return nil, err
		}
	}
	if settings.DefaultLimit != nil {
		res.defaultLimit = *settings.DefaultLimit
	}
	if settings.MaxLimit != nil {
		res.maxLimit = *settings.MaxLimit
	}
	if settings.ListMode != "" {
		res.listMode = settings.ListMode
	}
	return res, nil
}

func allowedMethods(configured, supported []string) ([]string, error) {
	methods := make([]string, 0, len(configured))
	for _, m := range configured {
		m = strings.ToLower(m)
		if !contains(supported, m) {
			return nil, configError("Unsupported method %s, expected one of %s", m, strings.Join(supported, ", "))
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// bindRelations publishes the relations whose target is published by the
// same version.
func (res *Resource) bindRelations() {
	res.Relations = res.Relations[:0]
	for _, rel := range res.model.Relations {
		if res.settings.ExcludesField(rel.Name) {
			continue
		}
		if _, ok := res.version.ResourceFor(rel.Target); !ok {
			continue
		}
		res.Relations = append(res.Relations, rel)
	}
}

// Relation returns a published relation.
func (res *Resource) Relation(name string) (*meta.Relation, bool) {
	for _, rel := range res.Relations {
		if rel.Name == name {
			return rel, true
		}
	}
	return nil, false
}

func (res *Resource) target(rel *meta.Relation) *Resource {
	target, _ := res.version.ResourceFor(rel.Target)
	return target
}

// reverse returns the published relation of rel's target walking rel
// backwards.
func (res *Resource) reverse(rel *meta.Relation) *meta.Relation {
	target := res.target(rel)
	for _, other := range target.Relations {
		if rel.IsReverseOf(other) {
			return other
		}
	}
	return nil
}

// Version returns the version the resource is published in.
func (res *Resource) Version() *VersionApi { return res.version }

// Repository returns the store of the resource's model.
func (res *Resource) Repository() repository.Repository { return res.repo }

// ScopeList applies the read authorization of the resource to q.
func (res *Resource) ScopeList(ctx context.Context) repository.QueryScope {
	return func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return res.authorization.ReadList(ctx, q)
	}
}

func (res *Resource) Model() *meta.Model { return res.model }

func (res *Resource) CheckField(name string) error {
	if res.settings.ExcludesField(name) {
		return filterError("Field '%s' is excluded", name)
	}
	if f, ok := res.model.Field(name); ok && f.Hidden {
		return filterError("Field '%s' is excluded", name)
	}
	return nil
}

func (res *Resource) Follow(rel *meta.Relation) (filter.Scope, error) {
	if target, ok := res.version.ResourceFor(rel.Target); ok {
		return target, nil
	}
	reg, ok := res.api.registry.Lookup(rel.Target)
	if !ok || reg.Through {
		return nil, filterError("Model '%s' is excluded", strings.ToLower(rel.Target.Name()))
	}
	if _, ok := res.version.App(reg.App); !ok {
		return nil, filterError("Application '%s' is excluded", reg.App)
	}
	return nil, filterError("Model '%s' is excluded", reg.Name)
}

func filterError(format string, args ...interface{}) error {
	return &filter.Error{Message: fmt.Sprintf(format, args...)}
}

func (res *Resource) ListEndpoint() string { return res.app.URL() + res.model.Name + "/" }

func (res *Resource) SchemaURL() string { return res.ListEndpoint() + "schema/" }

// DetailURL returns the URL of the object with primary key pk.
func (res *Resource) DetailURL(pk interface{}) string {
	return fmt.Sprintf("%s%v/", res.ListEndpoint(), pk)
}

func (res *Resource) detailPattern() string { return res.ListEndpoint() + "{id}/" }

// RedirectToID redirects to the detail URL of pk.
func (res *Resource) RedirectToID(r *http.Request, pk interface{}) *Redirect {
	return &Redirect{Location: withParams(r, res.DetailURL(pk), url.Values{})}
}

// RedirectToObject redirects to the detail URL of obj.
func (res *Resource) RedirectToObject(r *http.Request, obj interface{}) *Redirect {
	return res.RedirectToID(r, res.model.PKValue(obj))
}

// RedirectToFilter redirects to the list filtered by expression.
func (res *Resource) RedirectToFilter(r *http.Request, expression interface{}) (*Redirect, error) {
	data, err := json.Marshal(expression)
	if err != nil {
		return nil, err
	}
	return &Redirect{Location: withParams(r, res.ListEndpoint(), url.Values{"filter": {string(data)}})}, nil
}

// withParams appends params to base, keeping the format of r.
func withParams(r *http.Request, base string, params url.Values) string {
	if format := r.URL.Query().Get("format"); format != "" {
		params.Set("format", format)
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

func (res *Resource) routes(r chi.Router) {
	r.HandleFunc("/", res.handle("list", res.dispatchList))
	r.HandleFunc("/schema", res.handle("schema", res.getSchema))
	for _, name := range sortedKeys(res.classMethods) {
		r.HandleFunc("/"+name, res.handle("classmethod", res.classMethod(name)))
	}
	r.HandleFunc("/{id}", res.handle("detail", res.dispatchDetail))
	r.HandleFunc("/{id}/{name}", res.handle("method", res.dispatchMethod))
	r.HandleFunc("/{id}/{relation}/{op}", res.handle("relation", res.dispatchRelation))
}

type resourceHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

// handle authenticates the request, runs fn and records the outcome.
func (res *Resource) handle(operation string, fn resourceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			res.api.metrics.observe(res, operation, status, time.Since(start))
		}()

		var body []byte
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		result, err := res.run(ww, r, fn)
		if err != nil {
			res.api.writeError(ww, r, err, body)
			return
		}
		serve(ww, r, result)
	}
}

func (res *Resource) run(w http.ResponseWriter, r *http.Request, fn resourceHandler) (interface{}, error) {
	if err := checkFormat(r); err != nil {
		return nil, err
	}
	id, err := res.authentication.Authenticate(r)
	if err != nil {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			err = &Error{Kind: KindUnauthenticated, Message: "Authentication failed", Err: err}
		}
		return nil, err
	}
	return fn(w, r.WithContext(WithIdentity(r.Context(), id)))
}

// object loads the object addressed by the id URL parameter through the
// read authorization.
func (res *Resource) object(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	pk, err := res.model.ParsePK(id)
	if err != nil {
		return nil, NotFound("No such object: %s", res.DetailURL(id))
	}
	return res.Get(r.Context(), pk)
}

// Get loads the object with primary key pk through the read authorization.
func (res *Resource) Get(ctx context.Context, pk interface{}) (interface{}, error) {
	obj, err := res.repo.GetOne(ctx, pk, res.ScopeList(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindNotFound, Message: "No such object: " + res.DetailURL(pk), Err: err}
	}
	return obj, err
}

func authorize(allowed bool, err error, action string) error {
	if err != nil {
		return err
	}
	if !allowed {
		return Unauthorized("You are not allowed to %s this object", action)
	}
	return nil
}

func decodeJSON(r *http.Request) (interface{}, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: "Invalid JSON body", Err: err}
	}
	return value, nil
}

func decodeObject(r *http.Request) (map[string]interface{}, error) {
	value, err := decodeJSON(r)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return map[string]interface{}{}, nil
	}
	data, ok := value.(map[string]interface{})
	if !ok {
		return nil, BadRequest("A JSON object is expected")
	}
	return data, nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
