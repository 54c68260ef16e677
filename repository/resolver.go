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
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// tableResolver resolves predicate fields against the bun table of a model
// and the join paths it declares through entity.Joiner.
type tableResolver struct {
	table *schema.Table
	joins map[string]*joinTarget
	// joinNames sorted longest first so "team_name" prefers the longest match.
	joinNames []string
}

type joinTarget struct {
	join  spec.Join
	table *schema.Table
}

var _ spec.Resolver = (*tableResolver)(nil)

func newTableResolver(db *bun.DB, model interface{}) *tableResolver {
	r := &tableResolver{
		table: db.Table(indirectType(model)),
		joins: map[string]*joinTarget{},
	}
	joiner, ok := model.(entity.Joiner)
	if !ok {
		return r
	}
	for name, jc := range joiner.JoinColumns() {
		target := db.Table(indirectType(jc.Target))
		r.joins[name] = &joinTarget{
			join: spec.Join{
				Name:       name,
				ForeignKey: jc.ForeignKey,
				Table:      target.Name,
				Key:        jc.Key,
			},
			table: target,
		}
		r.joinNames = append(r.joinNames, name)
	}
	sort.Slice(r.joinNames, func(i, j int) bool {
		return len(r.joinNames[i]) > len(r.joinNames[j])
	})
	return r
}

func indirectType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func (r *tableResolver) Resolve(field string) (spec.Column, error) {
	if field == "" {
		return spec.Column{}, types.NewValidationError(field, "empty field")
	}
	if head, rest, dotted := strings.Cut(field, "."); dotted {
		jt, ok := r.joins[head]
		if !ok {
			return spec.Column{}, types.NewValidationError(field, "unknown join %q on %s", head, r.table.Name)
		}
		if !jt.table.HasField(rest) {
			return spec.Column{}, types.NewValidationError(field, "unknown column %q on %s", rest, jt.table.Name)
		}
		join := jt.join
		return spec.Column{Name: rest, Join: &join}, nil
	}
	if r.table.HasField(field) {
		return spec.Column{Name: field}, nil
	}
	// Derived method names spell join paths in snake case: team_name.
	for _, name := range r.joinNames {
		if rest, ok := strings.CutPrefix(field, name+"_"); ok {
			return r.Resolve(name + "." + rest)
		}
	}
	return spec.Column{}, types.NewValidationError(field, "unknown column on %s", r.table.Name)
}

// pk returns the primary key column.
func (r *tableResolver) pk() string {
	if len(r.table.PKs) == 0 {
		return "id"
	}
	return r.table.PKs[0].Name
}

// orderBy resolves sort keys to base columns, appending the primary key as a
// tie-breaker so paging is stable.
func (r *tableResolver) orderBy(sort types.Sort) ([]*types.QueryFilter, error) {
	exprs := make([]*types.QueryFilter, 0, len(sort)+1)
	for _, o := range sort {
		col, err := r.Resolve(o.Field)
		if err != nil {
			return nil, err
		}
		if col.Join != nil {
			return nil, types.NewValidationError(o.Field, "sorting by a joined column is not supported")
		}
		if !o.Direction.IsValid() {
			return nil, types.NewValidationError(o.Field, "invalid sort direction")
		}
		exprs = append(exprs, types.NewQueryFilter("?TableAlias.? "+o.Direction.Name(), bun.Ident(col.Name)))
	}
	if !sort.Has(r.pk()) {
		exprs = append(exprs, types.NewQueryFilter("?TableAlias.? ASC", bun.Ident(r.pk())))
	}
	return exprs, nil
}
