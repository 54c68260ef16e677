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
	"database/sql"
	"errors"

	"github.com/tomoncle/datajpa/projection"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

// Project selects only the columns the view reads and shapes each row,
// evaluating computed fields after the rows are loaded.
func (r *baseRepositoryImpl[T, K]) Project(ctx context.Context, where spec.Predicate, view *projection.View) (types.JsonArray, error) {
	q, err := r.viewQuery(ctx, where, view, false)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]interface{}, 0)
	if err := q.Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(r.name, "project "+view.Name(), 0, err)
	}
	return view.ShapeAll(rows), nil
}

// viewQuery builds the column list of view. With byName the columns are
// aliased by field name so they scan into a struct; otherwise by path.
func (r *baseRepositoryImpl[T, K]) viewQuery(ctx context.Context, where spec.Predicate, view *projection.View, byName bool) (*bun.SelectQuery, error) {
	if view == nil {
		return nil, types.NewValidationError(r.name, "projection view is nil")
	}
	filter, err := r.compile(where, spec.Qualified)
	if err != nil {
		return nil, err
	}

	type selected struct{ alias, path string }
	var columns []selected
	if byName {
		for _, f := range view.Fields() {
			columns = append(columns, selected{f.Name, f.Path})
		}
	} else {
		for _, p := range view.Paths() {
			columns = append(columns, selected{projection.Alias(p), p})
		}
	}

	q := r.idb(ctx).NewSelect().Model((*T)(nil))
	joined := map[string]bool{}
	for _, c := range columns {
		col, err := r.resolver.Resolve(c.path)
		if err != nil {
			return nil, err
		}
		if col.Join == nil {
			q = q.ColumnExpr("?TableAlias.? AS ?", bun.Ident(col.Name), bun.Ident(c.alias))
			continue
		}
		alias := "j_" + col.Join.Name
		if !joined[alias] {
			joined[alias] = true
			q = q.Join("LEFT JOIN ? AS ? ON ?.? = ?TableAlias.?",
				bun.Ident(col.Join.Table), bun.Ident(alias),
				bun.Ident(alias), bun.Ident(col.Join.Key), bun.Ident(col.Join.ForeignKey))
		}
		q = q.ColumnExpr("?.? AS ?", bun.Ident(alias), bun.Ident(col.Name), bun.Ident(c.alias))
	}
	q = applyFilter(q, filter)
	return q.OrderExpr("?TableAlias.? ASC", bun.Ident(r.resolver.pk())), nil
}

// ProjectInto scans a flat closed view into V, matching columns by field name.
func ProjectInto[V any, T any, K comparable](ctx context.Context, repo Repository[T, K], where spec.Predicate, view *projection.View) ([]V, error) {
	if view == nil {
		return nil, types.NewValidationError("view", "projection view is nil")
	}
	if !view.IsClosed() || !view.IsFlat() {
		return nil, types.NewValidationError(view.Name(), "only flat closed views scan into structs")
	}
	q, err := repo.viewQuery(ctx, where, view, true)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0)
	if err := q.Scan(ctx, &out); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
