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
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/tomoncle/bunrest/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Model describes a registered model: its table, fields and relations.
type Model struct {
	App               string
	Name              string
	VerboseName       string
	VerboseNamePlural string
	Description       string
	Type              reflect.Type
	Table             *schema.Table
	PK                *Field
	Fields            []*Field
	Relations         []*Relation

	fields    map[string]*Field
	relations map[string]*Relation
}

// Inspect builds the Model of a registration. The model (and the join
// models of its many-to-many relations) must already be known to db.
func Inspect(db bun.IDB, reg *database.Registration) (*Model, error) {
	table := db.Dialect().Tables().Get(reg.Type())
	if table == nil {
		return nil, fmt.Errorf("model %s has no table", reg)
	}
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("model %s: exactly one primary key column is supported, got %d", reg, len(table.PKs))
	}

	m := &Model{
		App:               reg.App,
		Name:              reg.Name,
		VerboseName:       reg.VerboseName,
		VerboseNamePlural: reg.VerboseNamePlural,
		Description:       reg.Description,
		Type:              table.Type,
		Table:             table,
		fields:            make(map[string]*Field),
		relations:         make(map[string]*Relation),
	}
	for _, f := range table.Fields {
		field := newField(f)
		if field.PrimaryKey {
			m.PK = field
		}
		m.Fields = append(m.Fields, field)
		m.fields[field.Name] = field
	}
	for goName, rel := range table.Relations {
		r, err := newRelation(goName, rel)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", reg, err)
		}
		if r == nil {
			continue
		}
		if _, ok := m.fields[r.Name]; ok {
			return nil, fmt.Errorf("model %s: relation %s clashes with a field name", reg, r.Name)
		}
		m.Relations = append(m.Relations, r)
		m.relations[r.Name] = r
	}
	sort.Slice(m.Relations, func(i, j int) bool { return m.Relations[i].Name < m.Relations[j].Name })
	return m, nil
}

func newRelation(goName string, rel *schema.Relation) (*Relation, error) {
	if rel.PolymorphicField != nil {
		return nil, nil
	}
	r := &Relation{
		Name:        jsonName(rel.Field.StructField),
		GoName:      goName,
		Target:      rel.JoinTable.Type,
		TargetTable: rel.JoinTable,
		HelpText:    rel.Field.StructField.Tag.Get("help"),
		VerboseName: rel.Field.StructField.Tag.Get("verbose"),
		Readonly:    parseAPITag(rel.Field.StructField.Tag.Get("api"))["readonly"],
	}
	if r.VerboseName == "" {
		r.VerboseName = strings.ReplaceAll(r.Name, "_", " ")
	}
	if len(rel.BasePKs) != 1 || len(rel.JoinPKs) != 1 {
		return nil, fmt.Errorf("relation %s: composite keys are not supported", goName)
	}
	r.BaseColumn, r.TargetColumn = rel.BasePKs[0], rel.JoinPKs[0]

	switch rel.Type {
	case schema.BelongsToRelation:
		r.Kind = BelongsTo
	case schema.HasOneRelation:
		r.Kind = HasOne
	case schema.HasManyRelation:
		r.Kind = HasMany
	case schema.ManyToManyRelation:
		r.Kind = ManyToMany
		if len(rel.M2MBasePKs) != 1 || len(rel.M2MJoinPKs) != 1 {
			return nil, fmt.Errorf("relation %s: composite keys are not supported", goName)
		}
		r.Through = rel.M2MTable
		r.ThroughBase, r.ThroughTarget = rel.M2MBasePKs[0], rel.M2MJoinPKs[0]
	default:
		return nil, fmt.Errorf("relation %s: unsupported relation type %d", goName, rel.Type)
	}
	return r, nil
}

func (m *Model) String() string { return m.App + "." + m.Name }

// Field returns the column field named name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Relation returns the relation named name.
func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// FieldOf returns the API field backed by the given bun column.
func (m *Model) FieldOf(column *schema.Field) *Field {
	return m.fields[column.Name]
}

// New allocates a zero object and returns a pointer to it.
func (m *Model) New() interface{} {
	return reflect.New(m.Type).Interface()
}

// NewSlice allocates an empty *[]*T for list queries.
func (m *Model) NewSlice() interface{} {
	return reflect.New(reflect.SliceOf(reflect.PointerTo(m.Type))).Interface()
}

// Items flattens a slice created by NewSlice.
func (m *Model) Items(slice interface{}) []interface{} {
	v := reflect.Indirect(reflect.ValueOf(slice))
	items := make([]interface{}, v.Len())
	for i := range items {
		items[i] = v.Index(i).Interface()
	}
	return items
}

// Get reads a field of obj with pointers dereferenced; nil reads as nil.
func (m *Model) Get(obj interface{}, f *Field) interface{} {
	v := f.Column.Value(reflect.ValueOf(obj).Elem())
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// Set coerces value and stores it in a field of obj.
func (m *Model) Set(obj interface{}, f *Field, value interface{}) error {
	dst := f.Column.Value(reflect.ValueOf(obj).Elem())
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v, err := f.Coerce(value)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if dst.Kind() == reflect.Ptr {
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(rv)
		rv = p
	}
	dst.Set(rv)
	return nil
}

// PKValue returns the primary key of obj.
func (m *Model) PKValue(obj interface{}) interface{} {
	return m.Get(obj, m.PK)
}

// ParsePK converts a URL identifier into a primary key value.
func (m *Model) ParsePK(id string) (interface{}, error) {
	return m.PK.Coerce(id)
}

func jsonName(sf reflect.StructField) string {
	name := strings.Split(sf.Tag.Get("json"), ",")[0]
	if name == "" || name == "-" {
		return underscore(sf.Name)
	}
	return name
}

func underscore(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || i+1 < len(runes) && unicode.IsLower(runes[i+1])) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
