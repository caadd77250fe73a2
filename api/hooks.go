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
	"net/http"
	"sync"

	"github.com/tomoncle/bunrest/meta"
)

// Bundle carries an object and its serialized form through hydration and
// dehydration.
type Bundle struct {
	Request *http.Request
	Obj     interface{}
	Data    map[string]interface{}
}

type (
	// BundleFunc customizes hydration or dehydration of a bundle.
	BundleFunc func(res *Resource, bundle *Bundle) (*Bundle, error)
	// MethodFunc serves an instance method. The result is written as JSON
	// unless it is an http.Handler, which then serves the response itself.
	MethodFunc func(res *Resource, r *http.Request, obj interface{}) (interface{}, error)
	// ClassMethodFunc serves a class method; the result is handled like
	// the one of a MethodFunc.
	ClassMethodFunc func(res *Resource, r *http.Request) (interface{}, error)
)

// Hooks is a registry of named code settings can refer to.
type Hooks struct {
	mutex           sync.RWMutex
	bundles         map[string]BundleFunc
	methods         map[string]MethodFunc
	classMethods    map[string]ClassMethodFunc
	authentications map[string]AuthenticationFactory
	authorizations  map[string]AuthorizationFactory
}

// NewHooks returns a registry holding the built-in authentication and
// authorization hooks.
func NewHooks() *Hooks {
	h := &Hooks{
		bundles:         make(map[string]BundleFunc),
		methods:         make(map[string]MethodFunc),
		classMethods:    make(map[string]ClassMethodFunc),
		authentications: make(map[string]AuthenticationFactory),
		authorizations:  make(map[string]AuthorizationFactory),
	}
	h.RegisterAuthentication("anonymous", constAuthentication(Anonymous{}))
	h.RegisterAuthorization("readonly", constAuthorization(ReadOnly{}))
	h.RegisterAuthorization("allow_all", constAuthorization(AllowAll{}))
	h.RegisterAuthorization("authenticated", constAuthorization(Authenticated{}))
	return h
}

func (h *Hooks) RegisterBundle(name string, fn BundleFunc) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.bundles[name] = fn
}

func (h *Hooks) RegisterMethod(name string, fn MethodFunc) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.methods[name] = fn
}

func (h *Hooks) RegisterClassMethod(name string, fn ClassMethodFunc) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.classMethods[name] = fn
}

func (h *Hooks) RegisterAuthentication(name string, factory AuthenticationFactory) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.authentications[name] = factory
}

func (h *Hooks) RegisterAuthorization(name string, factory AuthorizationFactory) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.authorizations[name] = factory
}

func (h *Hooks) bundle(name string) (BundleFunc, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	fn, ok := h.bundles[name]
	if !ok {
		return nil, configError("Unknown bundle hook: %s", name)
	}
	return fn, nil
}

func (h *Hooks) method(name string) (MethodFunc, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	fn, ok := h.methods[name]
	if !ok {
		return nil, configError("Unknown method hook: %s", name)
	}
	return fn, nil
}

func (h *Hooks) classMethod(name string) (ClassMethodFunc, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	fn, ok := h.classMethods[name]
	if !ok {
		return nil, configError("Unknown class method hook: %s", name)
	}
	return fn, nil
}

func (h *Hooks) authentication(name string) (AuthenticationFactory, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	factory, ok := h.authentications[name]
	if !ok {
		return nil, configError("Unknown authentication: %s", name)
	}
	return factory, nil
}

func (h *Hooks) authorization(name string) (AuthorizationFactory, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	factory, ok := h.authorizations[name]
	if !ok {
		return nil, configError("Unknown authorization: %s", name)
	}
	return factory, nil
}

func constAuthentication(a Authentication) AuthenticationFactory {
	return func(*meta.Model) Authentication { return a }
}

func constAuthorization(a Authorization) AuthorizationFactory {
	return func(*meta.Model) Authorization { return a }
}
