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

	"github.com/tomoncle/datajpa/entity"
	"github.com/uptrace/bun"
)

type TeamRepository struct {
	Repository[entity.Team, int64]
}

func NewTeamRepository(db *bun.DB, opts ...Option) *TeamRepository {
	return &TeamRepository{NewRepository[entity.Team, int64](db, opts...)}
}

// FindByName returns teams named name, members not loaded.
func (r *TeamRepository) FindByName(ctx context.Context, name string) ([]*entity.Team, error) {
	return r.FindByMethod(ctx, "findByName", name)
}

type ItemRepository struct {
	Repository[entity.Item, int64]
}

func NewItemRepository(db *bun.DB, opts ...Option) *ItemRepository {
	return &ItemRepository{NewRepository[entity.Item, int64](db, opts...)}
}
