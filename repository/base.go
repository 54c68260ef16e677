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
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any, K comparable] struct {
	db        *bun.DB
	opts      *options
	resolver  *tableResolver
	typ       reflect.Type
	name      string
	auditable bool
}

// NewRepository returns a generic repository backed by the provided Bun DB.
// *T must implement entity.Persistable[K].
func NewRepository[T any, K comparable](db *bun.DB, opts ...Option) Repository[T, K] {
	return newBaseRepository[T, K](db, opts...)
}

func newBaseRepository[T any, K comparable](db *bun.DB, opts ...Option) *baseRepositoryImpl[T, K] {
	model := (*T)(nil)
	typ := reflect.TypeOf(model).Elem()
	if _, ok := any(model).(entity.Persistable[K]); !ok {
		panic(fmt.Sprintf("repository: *%s does not implement entity.Persistable[%T]", typ.Name(), *new(K)))
	}
	_, auditable := any(model).(entity.Auditable)
	return &baseRepositoryImpl[T, K]{
		db:        db,
		opts:      newOptions(opts),
		resolver:  newTableResolver(db, model),
		typ:       typ,
		name:      typ.Name(),
		auditable: auditable,
	}
}

func (r *baseRepositoryImpl[T, K]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T, K]) DB() *bun.DB { return r.db }

func (r *baseRepositoryImpl[T, K]) NewSelect(ctx context.Context) *bun.SelectQuery {
	return r.idb(ctx).NewSelect().Model((*T)(nil))
}

func (r *baseRepositoryImpl[T, K]) NewRaw(ctx context.Context, query string, args ...interface{}) *bun.RawQuery {
	return r.idb(ctx).NewRaw(query, args...)
}

// idb returns the transaction of the active unit of work or the pool.
func (r *baseRepositoryImpl[T, K]) idb(ctx context.Context) bun.IDB {
	if u := unitOfWorkFrom(ctx); u != nil {
		return u.tx
	}
	return r.db
}

// write runs fn in the active unit of work or in a new short one.
func (r *baseRepositoryImpl[T, K]) write(ctx context.Context, fn func(ctx context.Context, u *unitOfWork) error) error {
	if u := unitOfWorkFrom(ctx); u != nil {
		return fn(ctx, u)
	}
	return RunInTxTimeout(ctx, r.db, r.opts.lockTimeout, func(ctx context.Context) error {
		return fn(ctx, unitOfWorkFrom(ctx))
	})
}

func (r *baseRepositoryImpl[T, K]) persistable(e *T) entity.Persistable[K] {
	return any(e).(entity.Persistable[K])
}

func (r *baseRepositoryImpl[T, K]) stamp(ctx context.Context, u *unitOfWork) audit.Stamp {
	return audit.Stamp{At: r.now(), By: u.auditor(ctx, r.opts.auditor)}
}

// now truncates to what the store can keep so saved and loaded values compare equal.
func (r *baseRepositoryImpl[T, K]) now() time.Time {
	t := r.opts.clock.Now().UTC()
	if r.db.Dialect().Name() == dialect.MySQL {
		return t.Truncate(time.Second)
	}
	return t.Truncate(time.Microsecond)
}

func (r *baseRepositoryImpl[T, K]) selectEntities(idb bun.IDB, model interface{}) *bun.SelectQuery {
	q := idb.NewSelect().Model(model)
	for _, rel := range r.opts.relations {
		q = q.Relation(rel)
	}
	return q
}

func (r *baseRepositoryImpl[T, K]) compile(where spec.Predicate, scope spec.Scope) (*types.QueryFilter, error) {
	return spec.Compile(where, r.resolver, scope)
}

func applyFilter(q *bun.SelectQuery, filter *types.QueryFilter) *bun.SelectQuery {
	if filter.IsEmpty() {
		return q
	}
	return q.Where(filter.Schema, filter.Args...)
}

func applyOrder(q *bun.SelectQuery, orders []*types.QueryFilter) *bun.SelectQuery {
	for _, o := range orders {
		q = q.OrderExpr(o.Schema, o.Args...)
	}
	return q
}

// managed swaps loaded rows for instances already cached by the unit of work,
// handing the cached instance the relations the query loaded.
func (r *baseRepositoryImpl[T, K]) managed(ctx context.Context, entities []*T) []*T {
	u := unitOfWorkFrom(ctx)
	if u == nil {
		return entities
	}
	for i, e := range entities {
		cached := u.merge(r.typ, r.persistable(e).GetID(), e).(*T)
		if cached != e {
			r.copyRelations(cached, e)
		}
		entities[i] = cached
	}
	return entities
}

func (r *baseRepositoryImpl[T, K]) copyRelations(dst, src *T) {
	if len(r.opts.relations) == 0 {
		return
	}
	dv, sv := reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem()
	for _, rel := range r.opts.relations {
		name, _, _ := strings.Cut(rel, ".")
		if f := dv.FieldByName(name); f.IsValid() && f.CanSet() {
			f.Set(sv.FieldByName(name))
		}
	}
}

func (r *baseRepositoryImpl[T, K]) Save(ctx context.Context, e *T) (*T, error) {
	if e == nil {
		return nil, types.NewValidationError(r.name, "cannot save a nil entity")
	}
	saved := snapshot([]*T{e})
	err := r.write(ctx, func(ctx context.Context, u *unitOfWork) error {
		return r.save(ctx, u, e)
	})
	if err != nil {
		restore([]*T{e}, saved)
		return nil, err
	}
	return e, nil
}

func (r *baseRepositoryImpl[T, K]) SaveAll(ctx context.Context, entities ...*T) ([]*T, error) {
	saved := snapshot(entities)
	err := r.write(ctx, func(ctx context.Context, u *unitOfWork) error {
		for _, e := range entities {
			if e == nil {
				return types.NewValidationError(r.name, "cannot save a nil entity")
			}
			if err := r.save(ctx, u, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		restore(entities, saved)
		return nil, err
	}
	return entities, nil
}

// snapshot copies entities so that a failed write can put back the identity
// and audit values it assigned before the statement ran.
func snapshot[T any](entities []*T) []T {
	out := make([]T, len(entities))
	for i, e := range entities {
		if e != nil {
			out[i] = *e
		}
	}
	return out
}

func restore[T any](entities []*T, saved []T) {
	for i, e := range entities {
		if e != nil {
			*e = saved[i]
		}
	}
}

func (r *baseRepositoryImpl[T, K]) save(ctx context.Context, u *unitOfWork, e *T) error {
	p := r.persistable(e)
	if p.IsNew() {
		if a, ok := any(e).(entity.Auditable); ok {
			a.PrePersist(r.stamp(ctx, u))
		}
		if _, err := u.tx.NewInsert().Model(e).Exec(ctx); err != nil {
			return translate(r.name, "insert", 0, err)
		}
		r.opts.logger.Debug("Entity inserted", "entity", r.name, "id", p.GetID())
	} else {
		q := u.tx.NewUpdate().Model(e).WherePK()
		if a, ok := any(e).(entity.Auditable); ok {
			a.PreUpdate(r.stamp(ctx, u))
			q = q.ExcludeColumn(a.ImmutableColumns()...)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return translate(r.name, "update", 0, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &types.NotFoundError{Entity: r.name, ID: p.GetID()}
		}
		r.opts.logger.Debug("Entity updated", "entity", r.name, "id", p.GetID())
	}
	u.put(r.typ, p.GetID(), e)
	return nil
}

func (r *baseRepositoryImpl[T, K]) FindByID(ctx context.Context, id K) (*T, bool, error) {
	u := unitOfWorkFrom(ctx)
	if u != nil {
		if cached, ok := u.get(r.typ, id); ok {
			return cached.(*T), true, nil
		}
	}
	e := new(T)
	err := r.selectEntities(r.idb(ctx), e).
		Where("?TableAlias.? = ?", bun.Ident(r.resolver.pk()), id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate(r.name, "find", 0, err)
	}
	if u != nil {
		u.put(r.typ, id, e)
	}
	return e, true, nil
}

func (r *baseRepositoryImpl[T, K]) GetByID(ctx context.Context, id K) (*T, error) {
	e, ok, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.NotFoundError{Entity: r.name, ID: id}
	}
	return e, nil
}

func (r *baseRepositoryImpl[T, K]) FindAll(ctx context.Context, where spec.Predicate, sort types.Sort) ([]*T, error) {
	return r.find(ctx, where, sort, 0, 0)
}

func (r *baseRepositoryImpl[T, K]) find(ctx context.Context, where spec.Predicate, sort types.Sort, offset, limit int) ([]*T, error) {
	filter, err := r.compile(where, spec.Qualified)
	if err != nil {
		return nil, err
	}
	orders, err := r.resolver.orderBy(sort)
	if err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	q := applyOrder(applyFilter(r.selectEntities(r.idb(ctx), &entities), filter), orders)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(r.name, "find", 0, err)
	}
	return r.managed(ctx, entities), nil
}

// findOne returns the single match; several matches are ErrNonUniqueResult.
func (r *baseRepositoryImpl[T, K]) findOne(ctx context.Context, where spec.Predicate) (*T, bool, error) {
	entities, err := r.find(ctx, where, nil, 0, 2)
	if err != nil {
		return nil, false, err
	}
	switch len(entities) {
	case 0:
		return nil, false, nil
	case 1:
		return entities[0], true, nil
	}
	return nil, false, fmt.Errorf("%s %s: %w", r.name, where, types.ErrNonUniqueResult)
}

func (r *baseRepositoryImpl[T, K]) Page(ctx context.Context, where spec.Predicate, page *types.PageRequest) (*types.Page[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(1, 0)
	}
	total, err := r.Count(ctx, where)
	if err != nil {
		return nil, err
	}
	result := types.NewPage[T](page)
	result.Total = total
	if total == 0 || page.GetOffset() >= total {
		return result, nil
	}
	items, err := r.find(ctx, where, page.GetSort(), page.GetOffset(), page.GetPageSize())
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

// Count never joins relations.
func (r *baseRepositoryImpl[T, K]) Count(ctx context.Context, where spec.Predicate) (int, error) {
	filter, err := r.compile(where, spec.Qualified)
	if err != nil {
		return 0, err
	}
	n, err := applyFilter(r.idb(ctx).NewSelect().Model((*T)(nil)), filter).Count(ctx)
	if err != nil {
		return 0, translate(r.name, "count", 0, err)
	}
	return n, nil
}

func (r *baseRepositoryImpl[T, K]) Exists(ctx context.Context, where spec.Predicate) (bool, error) {
	filter, err := r.compile(where, spec.Qualified)
	if err != nil {
		return false, err
	}
	ok, err := applyFilter(r.idb(ctx).NewSelect().Model((*T)(nil)), filter).Exists(ctx)
	if err != nil {
		return false, translate(r.name, "exists", 0, err)
	}
	return ok, nil
}

func (r *baseRepositoryImpl[T, K]) FindByMethod(ctx context.Context, method string, args ...interface{}) ([]*T, error) {
	d, err := spec.Derive(method, args...)
	if err != nil {
		return nil, err
	}
	if d.Subject != "find" {
		return nil, types.NewValidationError("method", "%q is a %s query", method, d.Subject)
	}
	return r.FindAll(ctx, d.Where, nil)
}

func (r *baseRepositoryImpl[T, K]) CountByMethod(ctx context.Context, method string, args ...interface{}) (int, error) {
	d, err := spec.Derive(method, args...)
	if err != nil {
		return 0, err
	}
	if d.Subject != "count" {
		return 0, types.NewValidationError("method", "%q is a %s query", method, d.Subject)
	}
	return r.Count(ctx, d.Where)
}

func (r *baseRepositoryImpl[T, K]) Delete(ctx context.Context, e *T) error {
	if e == nil {
		return types.NewValidationError(r.name, "cannot delete a nil entity")
	}
	p := r.persistable(e)
	return r.write(ctx, func(ctx context.Context, u *unitOfWork) error {
		res, err := u.tx.NewDelete().Model(e).WherePK().Exec(ctx)
		if err != nil {
			return translate(r.name, "delete", 0, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &types.NotFoundError{Entity: r.name, ID: p.GetID()}
		}
		u.evict(r.typ, p.GetID())
		r.opts.logger.Debug("Entity deleted", "entity", r.name, "id", p.GetID())
		return nil
	})
}

func (r *baseRepositoryImpl[T, K]) BulkUpdate(ctx context.Context, where spec.Predicate, mutation spec.Mutation) (int, error) {
	sets, err := spec.CompileMutation(mutation, r.resolver)
	if err != nil {
		return 0, err
	}
	filter, err := r.compile(where, spec.Unqualified)
	if err != nil {
		return 0, err
	}
	var affected int64
	err = r.write(ctx, func(ctx context.Context, u *unitOfWork) error {
		q := u.tx.NewUpdate().Model((*T)(nil))
		for _, s := range sets {
			q = q.Set(s.Schema, s.Args...)
		}
		for _, s := range r.modificationSets(ctx, u, mutation.Fields()) {
			q = q.Set(s.Schema, s.Args...)
		}
		if filter.IsEmpty() {
			q = q.Where("1 = 1")
		} else {
			q = q.Where(filter.Schema, filter.Args...)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return translate(r.name, "bulk update", 0, err)
		}
		affected, _ = res.RowsAffected()
		u.clear(r.typ)
		r.opts.logger.Debug("Bulk update executed", "entity", r.name, "where", where, "set", mutation, "rows", affected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// modificationSets refreshes the last-modified audit columns not already assigned.
func (r *baseRepositoryImpl[T, K]) modificationSets(ctx context.Context, u *unitOfWork, assigned []string) []*types.QueryFilter {
	if !r.auditable {
		return nil
	}
	values := any(new(T)).(entity.Auditable).ModificationValues(r.stamp(ctx, u))
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	sets := make([]*types.QueryFilter, 0, len(columns))
	for _, col := range columns {
		if containsFold(assigned, col) {
			continue
		}
		sets = append(sets, types.NewQueryFilter("? = ?", bun.Ident(col), values[col]))
	}
	return sets
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (r *baseRepositoryImpl[T, K]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	if len(fields) == 0 {
		return types.NewValidationError(r.name, "upsert fields cannot be empty")
	}
	if len(entities) == 0 {
		return nil
	}
	fields, err := r.baseColumns(fields)
	if err != nil {
		return err
	}
	conflictKeys, err = r.baseColumns(conflictKeys)
	if err != nil {
		return err
	}
	if len(conflictKeys) == 0 {
		conflictKeys = []string{r.resolver.pk()}
	}
	saved := snapshot(entities)
	err = r.write(ctx, func(ctx context.Context, u *unitOfWork) error {
		columns := append([]string(nil), fields...)
		if r.auditable {
			// Every row is stamped as created; the update list below leaves
			// the creation columns of existing rows untouched.
			stamp := r.stamp(ctx, u)
			for _, e := range entities {
				any(e).(entity.Auditable).PrePersist(stamp)
			}
			for col := range any(new(T)).(entity.Auditable).ModificationValues(stamp) {
				if !containsFold(columns, col) {
					columns = append(columns, col)
				}
			}
			sort.Strings(columns[len(fields):])
		}
		var err error
		switch {
		case r.db.HasFeature(feature.InsertOnConflict):
			_, err = onConflictUpsert(u.tx, columns, conflictKeys, entities).Exec(ctx)
		case r.db.HasFeature(feature.InsertOnDuplicateKey):
			_, err = onDuplicateKeyUpsert(u.tx, columns, entities).Exec(ctx)
		default:
			err = r.upsertFallback(ctx, u, entities)
		}
		if err != nil {
			return translate(r.name, "upsert", 0, err)
		}
		u.clear(r.typ)
		return nil
	})
	if err != nil {
		restore(entities, saved)
	}
	return err
}

// baseColumns resolves fields to column names of the entity table itself.
func (r *baseRepositoryImpl[T, K]) baseColumns(fields []string) ([]string, error) {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := r.resolver.Resolve(f)
		if err != nil {
			return nil, err
		}
		if col.Join != nil {
			return nil, types.NewValidationError(f, "cannot upsert a joined column")
		}
		out = append(out, col.Name)
	}
	return out, nil
}

func idents(columns []string) []bun.Ident {
	out := make([]bun.Ident, len(columns))
	for i, col := range columns {
		out[i] = bun.Ident(col)
	}
	return out
}

func onDuplicateKeyUpsert[T any](db bun.IDB, columns []string, entities []*T) *bun.InsertQuery {
	q := db.NewInsert().Model(&entities).On("DUPLICATE KEY UPDATE")
	for _, col := range idents(columns) {
		q = q.Set("? = VALUES(?)", col, col)
	}
	return q
}

func onConflictUpsert[T any](db bun.IDB, columns []string, conflictKeys []string, entities []*T) *bun.InsertQuery {
	q := db.NewInsert().Model(&entities).On("CONFLICT (?) DO UPDATE", bun.In(idents(conflictKeys)))
	for _, col := range idents(columns) {
		q = q.Set("? = EXCLUDED.?", col, col)
	}
	return q
}

// upsertFallback saves rows one by one for dialects without an upsert clause.
func (r *baseRepositoryImpl[T, K]) upsertFallback(ctx context.Context, u *unitOfWork, entities []*T) error {
	for _, e := range entities {
		if err := r.save(ctx, u, e); err != nil {
			return err
		}
	}
	return nil
}
