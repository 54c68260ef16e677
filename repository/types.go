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

package repository

import (
	"context"

	"github.com/tomoncle/datajpa/projection"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines identity based persistence for one entity type.
type CrudRepository[T any, K comparable] interface {
	// Save inserts an entity without identity and updates one with identity.
	Save(ctx context.Context, entity *T) (*T, error)

	SaveAll(ctx context.Context, entities ...*T) ([]*T, error)

	// FindByID reports false when no row has the identity.
	FindByID(ctx context.Context, id K) (*T, bool, error)

	// GetByID is FindByID returning a NotFoundError when absent.
	GetByID(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, entity *T) error
}

// QueryRepository defines predicate based reads.
type QueryRepository[T any] interface {
	FindAll(ctx context.Context, where spec.Predicate, sort types.Sort) ([]*T, error)

	Count(ctx context.Context, where spec.Predicate) (int, error)

	Exists(ctx context.Context, where spec.Predicate) (bool, error)

	// FindByMethod runs a query derived from a method name such as
	// "findByUsernameAndAgeGreaterThan".
	FindByMethod(ctx context.Context, method string, args ...interface{}) ([]*T, error)

	CountByMethod(ctx context.Context, method string, args ...interface{}) (int, error)
}

// PageQueryRepository defines paging over a predicate.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, where spec.Predicate, page *types.PageRequest) (*types.Page[T], error)
}

// BulkRepository defines set based writes and pessimistic reads.
type BulkRepository[T any] interface {
	// BulkUpdate runs one UPDATE over the matching rows and returns the
	// affected count.
	BulkUpdate(ctx context.Context, where spec.Predicate, mutation spec.Mutation) (int, error)

	// Upsert inserts entities, updating fields on conflict with conflictKeys.
	Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error

	// FindLocked holds a write lock on the matching rows until the unit of
	// work ends.
	FindLocked(ctx context.Context, where spec.Predicate) ([]*T, error)
}

// ProjectionRepository reads reduced views.
type ProjectionRepository interface {
	Project(ctx context.Context, where spec.Predicate, view *projection.View) (types.JsonArray, error)
}

// Repository combines every repository contract and exposes Bun query
// builders bound to the current unit of work.
type Repository[T any, K comparable] interface {
	CrudRepository[T, K]
	QueryRepository[T]
	PageQueryRepository[T]
	BulkRepository[T]
	ProjectionRepository
	Dialect() schema.Dialect
	NewSelect(ctx context.Context) *bun.SelectQuery
	NewRaw(ctx context.Context, query string, args ...interface{}) *bun.RawQuery
	DB() *bun.DB

	viewQuery(ctx context.Context, where spec.Predicate, view *projection.View, byName bool) (*bun.SelectQuery, error)
}
