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
	"reflect"

	"github.com/uptrace/bun/schema"
)

// RelationKind classifies a relation from the point of view of the model
// that declares it.
type RelationKind int

const (
	// BelongsTo is a forward foreign key stored on this model.
	BelongsTo RelationKind = iota + 1
	// HasOne is the reverse side of a unique foreign key.
	HasOne
	// HasMany is the reverse side of a foreign key.
	HasMany
	// ManyToMany goes through a join table.
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs-to"
	case HasOne:
		return "has-one"
	case HasMany:
		return "has-many"
	case ManyToMany:
		return "m2m"
	default:
		return "unknown"
	}
}

// Relation is a navigable link from one model to another.
//
// Column semantics depend on the kind:
//
//	BelongsTo:       BaseColumn is the FK here, TargetColumn the target PK
//	HasOne, HasMany: BaseColumn is the PK here, TargetColumn the FK on target
//	ManyToMany:      BaseColumn and TargetColumn are both PKs, ThroughBase and
//	                 ThroughTarget the join table columns pointing at them
type Relation struct {
	Name        string
	GoName      string
	Kind        RelationKind
	Target      reflect.Type
	HelpText    string
	VerboseName string
	Readonly    bool

	BaseColumn    *schema.Field
	TargetColumn  *schema.Field
	TargetTable   *schema.Table
	Through       *schema.Table
	ThroughBase   *schema.Field
	ThroughTarget *schema.Field
}

// Many reports whether the relation points at several objects.
func (r *Relation) Many() bool {
	return r.Kind == HasMany || r.Kind == ManyToMany
}

// Original reports whether the relation is declared by a column or join
// table owned by this side rather than by the target.
func (r *Relation) Original() bool {
	return r.Kind == BelongsTo || r.Kind == ManyToMany
}

// Methods lists the mutation endpoints of the relation.
func (r *Relation) Methods() []string {
	if r.Many() {
		return []string{"add", "remove"}
	}
	return []string{"set"}
}

// Nullable reports whether the relation may be left empty.
func (r *Relation) Nullable() bool {
	switch r.Kind {
	case BelongsTo:
		return !r.BaseColumn.NotNull
	case HasOne, HasMany:
		return !r.TargetColumn.NotNull
	default:
		return true
	}
}

// Unique reports whether a target can be linked to at most one object.
func (r *Relation) Unique() bool {
	switch r.Kind {
	case HasOne:
		return true
	case BelongsTo:
		return r.BaseColumn.Tag.HasOption("unique")
	default:
		return false
	}
}

// IsReverseOf reports whether r walks the same link as other in the
// opposite direction. other must be declared on r's target model.
func (r *Relation) IsReverseOf(other *Relation) bool {
	switch r.Kind {
	case BelongsTo:
		return (other.Kind == HasOne || other.Kind == HasMany) &&
			other.TargetColumn.Name == r.BaseColumn.Name
	case HasOne, HasMany:
		return other.Kind == BelongsTo && other.BaseColumn.Name == r.TargetColumn.Name
	case ManyToMany:
		return other.Kind == ManyToMany && other.Through == r.Through &&
			other.ThroughBase.Name == r.ThroughTarget.Name
	}
	return false
}
