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

package config

import (
	"strings"

	"github.com/tomoncle/bunrest/types"
)

// AuthSettings names the authentication and authorization hooks to use at
// some level of the tree. Empty values fall through to the parent level.
type AuthSettings struct {
	Authentication string `yaml:"authentication"`
	Authorization  string `yaml:"authorization"`
}

// VersionSettings configures one API version.
type VersionSettings struct {
	Name         string                  `yaml:"name"`
	Description  string                  `yaml:"description"`
	VerboseName  string                  `yaml:"verbose_name"`
	Exclude      []string                `yaml:"exclude"`
	AuthSettings `yaml:",inline"`
	Apps         map[string]*AppSettings `yaml:"apps"`
}

// AppSettings configures one application inside a version.
type AppSettings struct {
	Description  string                    `yaml:"description"`
	VerboseName  string                    `yaml:"verbose_name"`
	Version      string                    `yaml:"version"`
	Exclude      []string                  `yaml:"exclude"`
	AuthSettings `yaml:",inline"`
	Models       map[string]*ModelSettings `yaml:"models"`
}

// ModelSettings configures one model resource.
type ModelSettings struct {
	Exclude              []string                     `yaml:"exclude"`
	Fields               map[string]*FieldSettings    `yaml:"fields"`
	Relations            map[string]*RelationSettings `yaml:"relations"`
	Hydrate              string                       `yaml:"hydrate"`
	Dehydrate            string                       `yaml:"dehydrate"`
	Methods              map[string]string            `yaml:"methods"`
	ClassMethods         map[string]string            `yaml:"classmethods"`
	AuthSettings         `yaml:",inline"`
	ListAllowedMethods   []string `yaml:"list_allowed_methods"`
	DetailAllowedMethods []string `yaml:"detail_allowed_methods"`
	DefaultLimit         *int     `yaml:"default_limit"`
	MaxLimit             *int     `yaml:"max_limit"`
	ListMode             string   `yaml:"list_mode"`
	AlwaysReturnData     bool     `yaml:"always_return_data"`
}

// FieldSettings overrides schema attributes of a field.
type FieldSettings struct {
	HelpText    string         `yaml:"help_text"`
	VerboseName string         `yaml:"verbose_name"`
	Choices     []types.Choice `yaml:"choices"`
}

// RelationSettings overrides schema attributes of a relation.
type RelationSettings struct {
	HelpText    string `yaml:"help_text"`
	VerboseName string `yaml:"verbose_name"`
}

const (
	ListModeIDs     = "ids"
	ListModeObjects = "objects"
)

// ExcludesApp reports whether the version hides an application.
func (v *VersionSettings) ExcludesApp(label string) bool {
	return contains(v.Exclude, label)
}

// App returns the settings of an application with the version-level
// "app.model[.field]" exclusions handed down to it.
func (v *VersionSettings) App(label string) *AppSettings {
	app := &AppSettings{}
	if found, ok := v.Apps[label]; ok && found != nil {
		*app = *found
	}
	app.Exclude = append(append([]string(nil), app.Exclude...), descend(v.Exclude, label)...)
	return app
}

// ExcludesModel reports whether the application hides a model.
func (a *AppSettings) ExcludesModel(name string) bool {
	return contains(a.Exclude, name)
}

// Model returns the settings of a model with the application-level
// "model.field" exclusions handed down to it.
func (a *AppSettings) Model(name string) *ModelSettings {
	model := &ModelSettings{}
	if found, ok := a.Models[name]; ok && found != nil {
		*model = *found
	}
	model.Exclude = append(append([]string(nil), model.Exclude...), descend(a.Exclude, name)...)
	return model
}

// ExcludesField reports whether the model hides a field or relation.
func (m *ModelSettings) ExcludesField(name string) bool {
	return contains(m.Exclude, name)
}

// Field returns the overrides of a field, never nil.
func (m *ModelSettings) Field(name string) *FieldSettings {
	if f, ok := m.Fields[name]; ok && f != nil {
		return f
	}
	return &FieldSettings{}
}

// Relation returns the overrides of a relation, never nil.
func (m *ModelSettings) Relation(name string) *RelationSettings {
	if r, ok := m.Relations[name]; ok && r != nil {
		return r
	}
	return &RelationSettings{}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// descend keeps the entries under prefix and strips it: "a.b.c" under "a"
// becomes "b.c".
func descend(list []string, prefix string) []string {
	result := make([]string, 0)
	for _, item := range list {
		if rest, ok := strings.CutPrefix(item, prefix+"."); ok && rest != "" {
			result = append(result, rest)
		}
	}
	return result
}
