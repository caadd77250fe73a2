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

package types

// QueryFilter describes a WHERE clause schema and its argument values.
// Schema uses bun placeholders, so Args may carry bun.Ident and bun.Safe
// values next to plain query arguments.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// IsEmpty reports whether the filter carries no predicate.
func (f *QueryFilter) IsEmpty() bool {
	return f == nil || f.Schema == ""
}

// PageRequest describes a limit/offset window, optional filter, and ordering.
// A zero limit means "no limit".
type PageRequest struct {
	limit  int
	offset int
	filter *QueryFilter
	orders []*QueryFilter
}

func (p *PageRequest) GetLimit() int {
	if p.limit < 0 {
		p.limit = 0
	}
	return p.limit
}

func (p *PageRequest) GetOffset() int {
	if p.offset < 0 {
		p.offset = 0
	}
	return p.offset
}

func (p *PageRequest) GetFilter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) GetOrders() []*QueryFilter {
	return p.orders
}

// NewPageRequest constructs a PageRequest with filter and order expressions.
func NewPageRequest(limit int, offset int, filter *QueryFilter, orders []*QueryFilter) *PageRequest {
	return &PageRequest{limit, offset, filter, orders}
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(limit int, offset int) *PageRequest {
	return NewPageRequest(limit, offset, nil, nil)
}

// Pagination holds a window of result items along with the total count.
type Pagination struct {
	Limit  int
	Offset int
	Total  int
	Items  []interface{}
}

// NewPagination constructs an empty pagination container.
func NewPagination(limit int, offset int) *Pagination {
	return &Pagination{limit, offset, 0, make([]interface{}, 0)}
}
