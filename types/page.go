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

import (
	"fmt"
	"strings"
)

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// IsEmpty reports whether the filter carries no condition.
func (f *QueryFilter) IsEmpty() bool {
	return f == nil || strings.TrimSpace(f.Schema) == ""
}

// Order is a single (field, direction) sort key.
type Order struct {
	Field     string
	Direction Direction
}

// Asc returns an ascending order on field.
func Asc(field string) Order { return Order{Field: field, Direction: ASC} }

// Desc returns a descending order on field.
func Desc(field string) Order { return Order{Field: field, Direction: DESC} }

func (o Order) String() string {
	return fmt.Sprintf("%s %s", o.Field, o.Direction.Name())
}

// Sort is an ordered list of sort keys; earlier keys take precedence.
type Sort []Order

// By builds a Sort from the given orders.
func By(orders ...Order) Sort { return Sort(orders) }

// IsUnsorted reports whether no sort key was requested.
func (s Sort) IsUnsorted() bool { return len(s) == 0 }

// Has reports whether field already appears in the sort.
func (s Sort) Has(field string) bool {
	for _, o := range s {
		if strings.EqualFold(o.Field, field) {
			return true
		}
	}
	return false
}

// PageRequest describes a 1-based page index, the page size and the sort order.
type PageRequest struct {
	page     int
	pageSize int
	sort     Sort
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetSort() Sort {
	return p.sort
}

// Next returns the request for the following page with the same size and sort.
func (p *PageRequest) Next() *PageRequest {
	return &PageRequest{p.GetPage() + 1, p.GetPageSize(), p.sort}
}

// NewPageRequest constructs a PageRequest with sort settings.
func NewPageRequest(page int, pageSize int, sort Sort) *PageRequest {
	return &PageRequest{page, pageSize, sort}
}

// NewDefaultPageRequest constructs an unsorted PageRequest.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil)
}

// Page holds one page of items and the metadata needed to walk the rest.
type Page[T any] struct {
	Page     int
	PageSize int
	Total    int
	Sort     Sort
	Items    []*T
}

// NewPage constructs an empty page for the request.
func NewPage[T any](req *PageRequest) *Page[T] {
	return &Page[T]{req.GetPage(), req.GetPageSize(), 0, req.GetSort(), make([]*T, 0)}
}

// TotalPages returns ceil(Total / PageSize).
func (p *Page[T]) TotalPages() int {
	if p.PageSize < 1 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

func (p *Page[T]) HasNext() bool {
	return p.Page < p.TotalPages()
}

func (p *Page[T]) IsFirst() bool {
	return p.Page <= 1
}

// Map converts the page items while keeping the page metadata.
func Map[T, V any](p *Page[T], fn func(*T) *V) *Page[V] {
	out := &Page[V]{p.Page, p.PageSize, p.Total, p.Sort, make([]*V, 0, len(p.Items))}
	for _, item := range p.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}
