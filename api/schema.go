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
	"github.com/tomoncle/bunrest/meta"
)

const noDefault = "No default provided."

var defaultHelpText = map[meta.FieldType]string{
	meta.TypeInteger:  "Integer data. Ex: 2673",
	meta.TypeFloat:    "Floating point numeric data. Ex: 26.73",
	meta.TypeBoolean:  "Boolean data. Ex: True",
	meta.TypeString:   "Unicode string data. Ex: \"Hello World\"",
	meta.TypeDateTime: "A date & time as a string. Ex: \"2010-11-10T03:07:43\"",
	meta.TypeDict:     "A dictionary of data. Ex: {'price': 26.73, 'name': 'Daniel'}",
	meta.TypeList:     "A list of data. Ex: ['abc', 26.73, 8]",
	meta.TypeBinary:   "Base64 encoded binary data.",
}

// Schema describes the resource: methods, fields, relations and URLs.
func (res *Resource) Schema() map[string]interface{} {
	fields := make(map[string]interface{}, len(res.Fields))
	for _, f := range res.Fields {
		fields[f.Name] = res.fieldSchema(f)
	}
	relations := make(map[string]interface{}, len(res.Relations))
	for _, rel := range res.Relations {
		relations[rel.Name] = res.relationSchema(rel)
	}
	return map[string]interface{}{
		"allowed_list_http_methods":   res.listMethods,
		"allowed_detail_http_methods": res.detailMethods,
		"default_format":              "application/json",
		"default_limit":               res.defaultLimit,
		"max_limit":                   res.maxLimit,
		"list_mode":                   res.listMode,
		"description":                 res.model.Description,
		"verbose_name":                res.model.VerboseName,
		"verbose_name_plural":         res.model.VerboseNamePlural,
		"fields":                      fields,
		"relations":                   relations,
		"methods":                     sortedKeys(res.methods),
		"classmethods":                sortedKeys(res.classMethods),
		"urls": map[string]interface{}{
			"list_endpoint": res.ListEndpoint(),
			"schema":        res.SchemaURL(),
			"details":       res.detailPattern(),
		},
	}
}

func (res *Resource) fieldSchema(f *meta.Field) map[string]interface{} {
	overrides := res.settings.Field(f.Name)
	def := f.Default
	if def == "" {
		def = noDefault
	}
	data := map[string]interface{}{
		"type":         f.Type,
		"nullable":     f.Nullable,
		"blank":        f.Blank,
		"unique":       f.Unique,
		"primary_key":  f.PrimaryKey,
		"readonly":     f.Readonly,
		"default":      def,
		"help_text":    firstNonEmpty(overrides.HelpText, f.HelpText, defaultHelpText[f.Type]),
		"verbose_name": firstNonEmpty(overrides.VerboseName, f.VerboseName),
	}
	choices := overrides.Choices
	if len(choices) == 0 {
		choices = f.Choices
	}
	if len(choices) > 0 {
		pairs := make([][]interface{}, 0, len(choices))
		for _, c := range choices {
			pairs = append(pairs, []interface{}{c.Value, c.Label})
		}
		data["choices"] = pairs
	}
	return data
}

func (res *Resource) relationSchema(rel *meta.Relation) map[string]interface{} {
	overrides := res.settings.Relation(rel.Name)
	target := res.target(rel)
	help := "A single related object, addressed by its primary key."
	if rel.Many() {
		help = "Many related objects, addressed by their primary keys."
	}
	base := res.detailPattern() + rel.Name + "/"
	urls := map[string]interface{}{"get": base}
	for _, method := range rel.Methods() {
		urls[method] = base + method + "/"
	}
	return map[string]interface{}{
		"name":         rel.Name,
		"blank":        rel.Nullable(),
		"nullable":     rel.Nullable(),
		"primary_key":  false,
		"readonly":     rel.Readonly,
		"unique":       rel.Unique(),
		"help_text":    firstNonEmpty(overrides.HelpText, rel.HelpText, help),
		"verbose_name": firstNonEmpty(overrides.VerboseName, rel.VerboseName),
		"many":         rel.Many(),
		"related":      target.ListEndpoint(),
		"original":     rel.Original(),
		"kind":         rel.Kind.String(),
		"urls":         urls,
	}
}
