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

package meta

import (
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/tomoncle/bunrest/types"
	"github.com/uptrace/bun/schema"
)

// FieldType is the type name published in schemas.
type FieldType string

const (
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeString   FieldType = "string"
	TypeDateTime FieldType = "datetime"
	TypeDict     FieldType = "dict"
	TypeList     FieldType = "list"
	TypeBinary   FieldType = "binary"
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	enumerableType = reflect.TypeOf((*types.Enumerable)(nil)).Elem()
	nullTypes      = map[reflect.Type]FieldType{
		reflect.TypeOf(sql.NullString{}):  TypeString,
		reflect.TypeOf(sql.NullInt64{}):   TypeInteger,
		reflect.TypeOf(sql.NullInt32{}):   TypeInteger,
		reflect.TypeOf(sql.NullInt16{}):   TypeInteger,
		reflect.TypeOf(sql.NullFloat64{}): TypeFloat,
		reflect.TypeOf(sql.NullBool{}):    TypeBoolean,
		reflect.TypeOf(sql.NullTime{}):    TypeDateTime,
	}
)

// Field is a column of a model as the API sees it.
type Field struct {
	Name        string
	GoName      string
	Type        FieldType
	Nullable    bool
	Blank       bool
	Unique      bool
	PrimaryKey  bool
	Readonly    bool
	Hidden      bool
	Default     string
	HelpText    string
	VerboseName string
	Choices     []types.Choice

	Column *schema.Field
	goType reflect.Type
}

func newField(f *schema.Field) *Field {
	goType := f.StructField.Type
	nullable := false
	for goType.Kind() == reflect.Ptr {
		goType = goType.Elem()
		nullable = true
	}
	switch goType.Kind() {
	case reflect.Map, reflect.Slice, reflect.Interface:
		nullable = true
	}
	if _, ok := nullTypes[goType]; ok {
		nullable = true
	}
	if f.NotNull || f.IsPK {
		nullable = false
	}

	apiTag := parseAPITag(f.StructField.Tag.Get("api"))
	field := &Field{
		Name:        f.Name,
		GoName:      f.GoName,
		Type:        apiType(goType),
		Nullable:    nullable,
		Blank:       !f.NotNull && !f.IsPK,
		Unique:      f.IsPK || f.Tag.HasOption("unique"),
		PrimaryKey:  f.IsPK,
		Readonly:    apiTag["readonly"] || (f.IsPK && f.AutoIncrement),
		Hidden:      apiTag["-"],
		Default:     f.SQLDefault,
		HelpText:    f.StructField.Tag.Get("help"),
		VerboseName: f.StructField.Tag.Get("verbose"),
		Column:      f,
		goType:      goType,
	}
	if field.VerboseName == "" {
		field.VerboseName = strings.ReplaceAll(f.Name, "_", " ")
	}
	if goType.Implements(enumerableType) {
		field.Choices = types.ChoicesOf(reflect.Zero(goType).Interface().(types.Enumerable))
	}
	return field
}

// GoType returns the field's Go type with pointers removed.
func (f *Field) GoType() reflect.Type { return f.goType }

// SQLName returns the quoted column name.
func (f *Field) SQLName() schema.Safe { return f.Column.SQLName }

func apiType(t reflect.Type) FieldType {
	if t == timeType {
		return TypeDateTime
	}
	if typ, ok := nullTypes[t]; ok {
		return typ
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBinary
		}
		return TypeList
	case reflect.Map, reflect.Struct:
		return TypeDict
	default:
		// strings, and fixed arrays such as uuid.UUID which travel as text
		return TypeString
	}
}

// parseAPITag parses `api:"readonly"` style comma separated flags.
func parseAPITag(tag string) map[string]bool {
	flags := make(map[string]bool)
	for _, part := range strings.Split(tag, ",") {
		if part = strings.TrimSpace(part); part != "" {
			flags[part] = true
		}
	}
	return flags
}
