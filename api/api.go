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
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/meta"
	"github.com/tomoncle/bunrest/utils"
	"github.com/uptrace/bun"
)

const loggerName = "API"

// Api is the root of the resource tree: versions, applications, resources.
type Api struct {
	Versions []*VersionApi

	db       bun.IDB
	registry database.ModelRegistry
	settings *config.Settings
	hooks    *Hooks
	logger   *utils.Logger
	metrics  *Metrics
	basePath string
	versions map[string]*VersionApi
	models   map[reflect.Type]*meta.Model
}

type Option func(*Api)

// WithHooks sets the hook registry settings are resolved against.
func WithHooks(hooks *Hooks) Option {
	return func(a *Api) { a.hooks = hooks }
}

func WithLogger(logger *utils.Logger) Option {
	return func(a *Api) { a.logger = logger }
}

// WithMetrics records request metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(a *Api) { a.metrics = m }
}

// New builds the resource tree of every model in registry as settings
// describe it. The models must already be known to db, which running the
// migrations ensures. Unknown hook names and invalid settings fail with a
// configuration error.
func New(db bun.IDB, registry database.ModelRegistry, settings *config.Settings, opts ...Option) (*Api, error) {
	if settings == nil {
		settings = config.Default()
	}
	a := &Api{
		db:       db,
		registry: registry,
		settings: settings,
		hooks:    NewHooks(),
		logger:   utils.GetLogger(loggerName),
		basePath: "/" + strings.Trim(settings.BasePath, "/"),
		versions: make(map[string]*VersionApi),
		models:   make(map[reflect.Type]*meta.Model),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.basePath == "/" {
		a.basePath = ""
	}
	if settings.JWTSecret != "" {
		secret := []byte(settings.JWTSecret)
		a.hooks.RegisterAuthentication("jwt", constAuthentication(&JWTAuthentication{Secret: secret}))
		a.hooks.RegisterAuthentication("jwt_required", constAuthentication(&JWTAuthentication{Secret: secret, Required: true}))
	}

	for _, label := range registry.Apps() {
		for _, reg := range registry.Models(label) {
			model, err := meta.Inspect(db, reg)
			if err != nil {
				return nil, err
			}
			a.models[model.Type] = model
		}
	}
	for _, name := range settings.VersionNames() {
		v, err := newVersionApi(a, name, settings.Versions[name])
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", name, err)
		}
		a.Versions = append(a.Versions, v)
		a.versions[v.Name] = v
	}
	a.logger.Infof("api ready with %d version(s) under %q", len(a.Versions), a.basePath+"/")
	return a, nil
}

// Version returns the version named name.
func (a *Api) Version(name string) (*VersionApi, bool) {
	v, ok := a.versions[name]
	return v, ok
}

// URL returns the root URL of the API.
func (a *Api) URL() string { return a.basePath + "/" }

// Schema lists the versions.
func (a *Api) Schema() map[string]interface{} {
	data := make(map[string]interface{}, len(a.Versions))
	for _, v := range a.Versions {
		data[v.Name] = v.Schema(false)
	}
	return data
}

// Handler returns the HTTP handler serving the whole tree under the base
// path. Trailing slashes are optional.
func (a *Api) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(RequestID, AccessLog(a.logger), middleware.StripSlashes)
	if a.basePath == "" {
		a.routes(router)
	} else {
		router.Route(a.basePath, a.routes)
	}
	return router
}

func (a *Api) routes(r chi.Router) {
	r.Get("/", a.handle(func(*http.Request) (interface{}, error) {
		return a.Schema(), nil
	}))
	for _, v := range a.Versions {
		r.Route("/"+v.Name, v.routes)
	}
}

// handle adapts a schema view.
func (a *Api) handle(fn func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkFormat(r); err != nil {
			a.writeError(w, r, err, nil)
			return
		}
		result, err := fn(r)
		if err != nil {
			a.writeError(w, r, err, nil)
			return
		}
		serve(w, r, result)
	}
}

func checkFormat(r *http.Request) error {
	if format := r.URL.Query().Get("format"); format != "" && format != "json" {
		return BadRequest("Unsupported format: %s", format)
	}
	return nil
}

// VersionApi groups the applications published under one version prefix.
type VersionApi struct {
	Name        string
	VerboseName string
	Description string
	Apps        []*ApplicationApi

	api       *Api
	settings  *config.VersionSettings
	apps      map[string]*ApplicationApi
	resources map[reflect.Type]*Resource
}

func newVersionApi(a *Api, name string, settings *config.VersionSettings) (*VersionApi, error) {
	v := &VersionApi{
		Name:        settings.Name,
		VerboseName: settings.VerboseName,
		Description: settings.Description,
		api:         a,
		settings:    settings,
		apps:        make(map[string]*ApplicationApi),
		resources:   make(map[reflect.Type]*Resource),
	}
	if v.Name == "" {
		v.Name = name
	}
	for label := range settings.Apps {
		if _, ok := a.registry.App(label); !ok && len(a.registry.Models(label)) == 0 {
			a.logger.Warnf("version %s: settings for unknown application %s ignored", v.Name, label)
		}
	}
	for _, label := range a.registry.Apps() {
		if settings.ExcludesApp(label) {
			continue
		}
		app, err := newApplicationApi(v, label, settings.App(label))
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", label, err)
		}
		if len(app.Resources) == 0 {
			continue
		}
		v.Apps = append(v.Apps, app)
		v.apps[label] = app
		for _, res := range app.Resources {
			v.resources[res.model.Type] = res
		}
	}
	for _, res := range v.resources {
		res.bindRelations()
	}
	return v, nil
}

// App returns the application labelled label.
func (v *VersionApi) App(label string) (*ApplicationApi, bool) {
	app, ok := v.apps[label]
	return app, ok
}

// ResourceFor returns the resource publishing model type typ.
func (v *VersionApi) ResourceFor(typ reflect.Type) (*Resource, bool) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	res, ok := v.resources[typ]
	return res, ok
}

func (v *VersionApi) URL() string { return v.api.basePath + "/" + v.Name + "/" }

// Schema describes the version, with its applications when detailed.
func (v *VersionApi) Schema(detailed bool) map[string]interface{} {
	data := map[string]interface{}{
		"name":         v.Name,
		"verbose_name": v.VerboseName,
		"description":  v.Description,
		"url":          v.URL(),
	}
	if detailed {
		apps := make(map[string]interface{}, len(v.Apps))
		for _, app := range v.Apps {
			apps[app.Label] = app.Schema(false)
		}
		data["applications"] = apps
	}
	return data
}

func (v *VersionApi) routes(r chi.Router) {
	r.Get("/", v.api.handle(func(*http.Request) (interface{}, error) {
		return v.Schema(true), nil
	}))
	for _, app := range v.Apps {
		r.Route("/"+app.Label, app.routes)
	}
}

// authNames resolves the authentication and authorization names of a
// model: model, application, version, then the defaults.
func (v *VersionApi) authNames(app *config.AppSettings, model *config.ModelSettings) (string, string) {
	authentication, authorization := "anonymous", "readonly"
	for _, level := range []config.AuthSettings{v.settings.AuthSettings, app.AuthSettings, model.AuthSettings} {
		if level.Authentication != "" {
			authentication = level.Authentication
		}
		if level.Authorization != "" {
			authorization = level.Authorization
		}
	}
	return authentication, authorization
}

// ApplicationApi groups the resources of one application.
type ApplicationApi struct {
	Label       string
	VerboseName string
	Description string
	Version     string
	Resources   []*Resource

	version   *VersionApi
	settings  *config.AppSettings
	resources map[string]*Resource
}

func newApplicationApi(v *VersionApi, label string, settings *config.AppSettings) (*ApplicationApi, error) {
	appConfig, _ := v.api.registry.App(label)
	app := &ApplicationApi{
		Label:       label,
		VerboseName: firstNonEmpty(settings.VerboseName, appConfig.VerboseName, label),
		Description: firstNonEmpty(settings.Description, appConfig.Description),
		Version:     firstNonEmpty(settings.Version, appConfig.Version),
		version:     v,
		settings:    settings,
		resources:   make(map[string]*Resource),
	}
	for name := range settings.Models {
		if _, ok := v.api.registry.Model(label, name); !ok {
			v.api.logger.Warnf("version %s: settings for unknown model %s.%s ignored", v.Name, label, name)
		}
	}
	for _, reg := range v.api.registry.Models(label) {
		if settings.ExcludesModel(reg.Name) {
			continue
		}
		res, err := newResource(app, v.api.models[reg.Type()], settings.Model(reg.Name))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", reg.Name, err)
		}
		app.Resources = append(app.Resources, res)
		app.resources[reg.Name] = res
	}
	return app, nil
}

// Resource returns the resource of the model named name.
func (app *ApplicationApi) Resource(name string) (*Resource, bool) {
	res, ok := app.resources[name]
	return res, ok
}

func (app *ApplicationApi) URL() string { return app.version.URL() + app.Label + "/" }

// Schema describes the application. Detailed schemas embed the model
// schemas, short ones link to them.
func (app *ApplicationApi) Schema(detailed bool) map[string]interface{} {
	models := make(map[string]interface{}, len(app.Resources))
	for _, res := range app.Resources {
		if detailed {
			models[res.model.Name] = res.Schema()
		} else {
			models[res.model.Name] = map[string]interface{}{
				"list_endpoint": res.ListEndpoint(),
				"schema":        res.SchemaURL(),
			}
		}
	}
	return map[string]interface{}{
		"name":         app.Label,
		"verbose_name": app.VerboseName,
		"description":  app.Description,
		"version":      app.Version,
		"url":          app.URL(),
		"models":       models,
	}
}

func (app *ApplicationApi) routes(r chi.Router) {
	r.Get("/", app.version.api.handle(func(*http.Request) (interface{}, error) {
		return app.Schema(true), nil
	}))
	for _, res := range app.Resources {
		r.Route("/"+res.model.Name, res.routes)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
