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

// Package datajpa exposes a generic service facade over the repository
// package, bound to the connection opened by database.InitDB.
package datajpa

import (
	"context"
	"sync"

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
)

// Service is a thin facade over a repository bound to the global connection.
type Service[T any, K comparable] interface {
	// Get returns a NotFoundError when no row has the identity.
	Get(ctx context.Context, id K) (*T, error)

	// Find reports false when no row has the identity.
	Find(ctx context.Context, id K) (*T, bool, error)

	All(ctx context.Context, sort types.Sort) ([]*T, error)

	List(ctx context.Context, where spec.Predicate, sort types.Sort) ([]*T, error)

	Page(ctx context.Context, where spec.Predicate, page *types.PageRequest) (*types.Page[T], error)

	// Save inserts or updates each entity in one unit of work.
	Save(ctx context.Context, entities ...*T) error

	SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error

	Delete(ctx context.Context, entity *T) error

	BulkUpdate(ctx context.Context, where spec.Predicate, mutation spec.Mutation) (int, error)

	// Transaction runs fn in one unit of work shared by every repository call
	// made with the context it receives.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	Repository() repository.Repository[T, K]
}

type baseServiceImpl[T any, K comparable] struct {
	opts []repository.Option
	repo repository.Repository[T, K]
	once sync.Once
}

// NewService returns a Service whose repository is created on first use from
// database.GetDB, so it may be built before InitDB runs.
func NewService[T any, K comparable](opts ...repository.Option) Service[T, K] {
	return &baseServiceImpl[T, K]{opts: opts}
}

func (s *baseServiceImpl[T, K]) Repository() repository.Repository[T, K] {
	s.once.Do(func() { s.repo = repository.NewRepository[T, K](database.GetDB(), s.opts...) })
	return s.repo
}

func (s *baseServiceImpl[T, K]) Get(ctx context.Context, id K) (*T, error) {
	return s.Repository().GetByID(ctx, id)
}

func (s *baseServiceImpl[T, K]) Find(ctx context.Context, id K) (*T, bool, error) {
	return s.Repository().FindByID(ctx, id)
}

func (s *baseServiceImpl[T, K]) All(ctx context.Context, sort types.Sort) ([]*T, error) {
	return s.Repository().FindAll(ctx, nil, sort)
}

func (s *baseServiceImpl[T, K]) List(ctx context.Context, where spec.Predicate, sort types.Sort) ([]*T, error) {
	return s.Repository().FindAll(ctx, where, sort)
}

func (s *baseServiceImpl[T, K]) Page(ctx context.Context, where spec.Predicate, page *types.PageRequest) (*types.Page[T], error) {
	return s.Repository().Page(ctx, where, page)
}

func (s *baseServiceImpl[T, K]) Save(ctx context.Context, entities ...*T) error {
	_, err := s.Repository().SaveAll(ctx, entities...)
	return err
}

func (s *baseServiceImpl[T, K]) SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	return s.Repository().Upsert(ctx, fields, conflictKeys, entities...)
}

func (s *baseServiceImpl[T, K]) Delete(ctx context.Context, entity *T) error {
	return s.Repository().Delete(ctx, entity)
}

func (s *baseServiceImpl[T, K]) BulkUpdate(ctx context.Context, where spec.Predicate, mutation spec.Mutation) (int, error) {
	return s.Repository().BulkUpdate(ctx, where, mutation)
}

func (s *baseServiceImpl[T, K]) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return repository.RunInTx(ctx, s.Repository().DB(), fn)
}
