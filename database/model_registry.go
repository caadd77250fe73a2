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

package database

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// SQLModel represents a database model used for table bootstrap.
// Instance should return a struct pointer compatible with Bun, and Priority
// controls ordering when creating tables (lower values first).
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// AppConfig describes an application, the unit models are grouped by in URLs.
type AppConfig struct {
	Label       string
	VerboseName string
	Description string
	Version     string
}

// Registration is a model registered under an application label.
type Registration struct {
	App               string
	Name              string
	VerboseName       string
	VerboseNamePlural string
	Description       string
	// Through marks join models of many-to-many relations. They get tables
	// and are registered with Bun but are never exposed by the API.
	Through bool

	instance interface{}
	priority int
}

// Instance returns the struct pointer used for table bootstrap.
func (r *Registration) Instance() interface{} { return r.instance }

// Priority returns the model's ordering value; lower values run earlier.
func (r *Registration) Priority() int { return r.priority }

// Type returns the struct type of the registered model.
func (r *Registration) Type() reflect.Type {
	return reflect.TypeOf(r.instance).Elem()
}

func (r *Registration) String() string { return r.App + "." + r.Name }

// ModelOption customizes a registration.
type ModelOption func(*Registration)

// WithName overrides the model name, which defaults to the lower-cased Go type name.
func WithName(name string) ModelOption {
	return func(r *Registration) { r.Name = name }
}

// WithPriority sets the table bootstrap order.
func WithPriority(priority int) ModelOption {
	return func(r *Registration) { r.priority = priority }
}

// WithVerboseName sets the human readable singular and plural names.
func WithVerboseName(singular, plural string) ModelOption {
	return func(r *Registration) {
		r.VerboseName = singular
		r.VerboseNamePlural = plural
	}
}

// WithDescription sets the model description published in its schema.
func WithDescription(description string) ModelOption {
	return func(r *Registration) { r.Description = description }
}

// AsThrough marks the model as a many-to-many join model.
func AsThrough() ModelOption {
	return func(r *Registration) { r.Through = true }
}

// ModelRegistry stores models per application and exposes them in a
// deterministic order.
type ModelRegistry interface {
	Register(app string, instance interface{}, opts ...ModelOption) (*Registration, error)
	RegisterApp(app AppConfig)
	App(label string) (AppConfig, bool)
	Apps() []string
	Models(app string) []*Registration
	Model(app, name string) (*Registration, bool)
	Lookup(typ reflect.Type) (*Registration, bool)
	All() []SQLModel
}

type modelRegistry struct {
	mutex  sync.RWMutex
	apps   map[string]AppConfig
	models []*Registration
	byType map[reflect.Type]*Registration
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() ModelRegistry {
	return &modelRegistry{
		apps:   make(map[string]AppConfig),
		byType: make(map[reflect.Type]*Registration),
	}
}

func (r *modelRegistry) Register(app string, instance interface{}, opts ...ModelOption) (*Registration, error) {
	if app == "" {
		return nil, fmt.Errorf("application label cannot be empty")
	}
	typ := reflect.TypeOf(instance)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a pointer to a struct, got %T", instance)
	}
	reg := &Registration{
		App:      app,
		Name:     strings.ToLower(typ.Elem().Name()),
		instance: instance,
	}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.VerboseName == "" {
		reg.VerboseName = reg.Name
	}
	if reg.VerboseNamePlural == "" {
		reg.VerboseNamePlural = reg.VerboseName + "s"
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if prev, ok := r.byType[typ.Elem()]; ok {
		return nil, fmt.Errorf("model %s already registered as %s", typ.Elem(), prev)
	}
	for _, m := range r.models {
		if m.App == reg.App && m.Name == reg.Name {
			return nil, fmt.Errorf("model name %s already registered", reg)
		}
	}
	if _, ok := r.apps[app]; !ok {
		r.apps[app] = AppConfig{Label: app, VerboseName: app}
	}
	r.models = append(r.models, reg)
	r.byType[typ.Elem()] = reg
	return reg, nil
}

func (r *modelRegistry) RegisterApp(app AppConfig) {
	if app.VerboseName == "" {
		app.VerboseName = app.Label
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.apps[app.Label] = app
}

func (r *modelRegistry) App(label string) (AppConfig, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	app, ok := r.apps[label]
	return app, ok
}

// Apps returns the sorted labels of applications with at least one exposed model.
func (r *modelRegistry) Apps() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, m := range r.models {
		if m.Through {
			continue
		}
		if _, ok := seen[m.App]; ok {
			continue
		}
		seen[m.App] = struct{}{}
		labels = append(labels, m.App)
	}
	sort.Strings(labels)
	return labels
}

func (r *modelRegistry) Models(app string) []*Registration {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]*Registration, 0)
	for _, m := range r.models {
		if m.App == app && !m.Through {
			result = append(result, m)
		}
	}
	sortRegistrations(result)
	return result
}

func (r *modelRegistry) Model(app, name string) (*Registration, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, m := range r.models {
		if m.App == app && m.Name == name {
			return m, true
		}
	}
	return nil, false
}

func (r *modelRegistry) Lookup(typ reflect.Type) (*Registration, bool) {
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	reg, ok := r.byType[typ]
	return reg, ok
}

// All returns every registration, join models included, sorted by priority.
func (r *modelRegistry) All() []SQLModel {
	r.mutex.RLock()
	regs := make([]*Registration, len(r.models))
	copy(regs, r.models)
	r.mutex.RUnlock()
	sortRegistrations(regs)
	result := make([]SQLModel, len(regs))
	for i, reg := range regs {
		result[i] = reg
	}
	return result
}

func sortRegistrations(regs []*Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].String() < regs[j].String()
	})
}

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() ModelRegistry {
	return defaultRegistry
}

// RegisterModel adds a model to the default registry.
func RegisterModel(app string, instance interface{}, opts ...ModelOption) (*Registration, error) {
	return defaultRegistry.Register(app, instance, opts...)
}

// RegisteredModelInstances returns the instances of the given models in the
// order Bun must see them: join models first, then the rest in order. Bun
// resolves m2m relations while a model is registered, so the join table has
// to be known by then.
func RegisteredModelInstances(models []SQLModel) []interface{} {
	instances := make([]interface{}, 0, len(models))
	for _, model := range models {
		if isThrough(model) {
			instances = append(instances, model.Instance())
		}
	}
	for _, model := range models {
		if !isThrough(model) {
			instances = append(instances, model.Instance())
		}
	}
	return instances
}

func isThrough(model SQLModel) bool {
	reg, ok := model.(*Registration)
	return ok && reg.Through
}

func typeOf(instance interface{}) reflect.Type {
	typ := reflect.TypeOf(instance)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}
