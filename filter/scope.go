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

package filter

import (
	"reflect"
	"strings"

	"github.com/tomoncle/bunrest/meta"
)

// Scope is the view of a model a filter is compiled against. It decides
// which fields may be used and which relations may be traversed.
type Scope interface {
	Model() *meta.Model
	CheckField(name string) error
	Follow(rel *meta.Relation) (Scope, error)
}

// ModelScope is a Scope over a fixed set of models with dotted exclusion
// entries: "app", "app.model" or "app.model.field".
type ModelScope struct {
	model   *meta.Model
	models  map[reflect.Type]*meta.Model
	exclude map[string]bool
}

// NewModelScope returns a scope rooted at model that can traverse into
// any of models.
func NewModelScope(model *meta.Model, models []*meta.Model, exclude ...string) *ModelScope {
	s := &ModelScope{
		model:   model,
		models:  make(map[reflect.Type]*meta.Model, len(models)),
		exclude: make(map[string]bool, len(exclude)),
	}
	for _, m := range models {
		s.models[m.Type] = m
	}
	for _, e := range exclude {
		s.exclude[e] = true
	}
	return s
}

func (s *ModelScope) Model() *meta.Model { return s.model }

func (s *ModelScope) CheckField(name string) error {
	if s.exclude[s.model.String()+"."+name] {
		return errorf("Field '%s' is excluded", name)
	}
	return nil
}

func (s *ModelScope) Follow(rel *meta.Relation) (Scope, error) {
	target, ok := s.models[rel.Target]
	if !ok {
		return nil, errorf("Model '%s' is excluded", strings.ToLower(rel.Target.Name()))
	}
	if s.exclude[target.App] {
		return nil, errorf("Application '%s' is excluded", target.App)
	}
	if s.exclude[target.String()] {
		return nil, errorf("Model '%s' is excluded", target.Name)
	}
	return &ModelScope{model: target, models: s.models, exclude: s.exclude}, nil
}
