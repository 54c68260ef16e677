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

	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/projection"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

// MemberRepository is the member repository with its query methods.
type MemberRepository struct {
	*baseRepositoryImpl[entity.Member, int64]

	// withTeam loads the Team relation in the same query.
	withTeam *baseRepositoryImpl[entity.Member, int64]
}

var _ Repository[entity.Member, int64] = (*MemberRepository)(nil)

func NewMemberRepository(db *bun.DB, opts ...Option) *MemberRepository {
	fetch := append(append([]Option(nil), opts...), WithRelations("Team"))
	return &MemberRepository{
		baseRepositoryImpl: newBaseRepository[entity.Member, int64](db, opts...),
		withTeam:           newBaseRepository[entity.Member, int64](db, fetch...),
	}
}

func (r *MemberRepository) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return r.FindAll(ctx, spec.And(spec.Eq("username", username), spec.Gt("age", age)), nil)
}

func (r *MemberRepository) FindByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindAll(ctx, entity.Username(username), nil)
}

// FindUser matches both username and age exactly.
func (r *MemberRepository) FindUser(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return r.FindAll(ctx, spec.And(spec.Eq("username", username), spec.Eq("age", age)), nil)
}

func (r *MemberRepository) FindUsernameList(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := r.NewSelect(ctx).
		Column("username").
		OrderExpr("?TableAlias.? ASC", bun.Ident(r.resolver.pk())).
		Scan(ctx, &names)
	if err != nil {
		return nil, translate(r.name, "find usernames", 0, err)
	}
	return names, nil
}

// FindMemberDto returns members that have a team, with the team name.
func (r *MemberRepository) FindMemberDto(ctx context.Context) ([]entity.MemberDto, error) {
	dtos := make([]entity.MemberDto, 0)
	err := r.NewSelect(ctx).
		ColumnExpr("?TableAlias.id, ?TableAlias.username, t.name AS team_name").
		Join("JOIN teams AS t ON t.id = ?TableAlias.team_id").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &dtos)
	if err != nil {
		return nil, translate(r.name, "find member dto", 0, err)
	}
	return dtos, nil
}

func (r *MemberRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Member, error) {
	return r.FindAll(ctx, spec.In("username", names), nil)
}

func (r *MemberRepository) FindListByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindByUsername(ctx, username)
}

// FindMemberByUsername returns nil when nobody has the name and
// ErrNonUniqueResult when several members do.
func (r *MemberRepository) FindMemberByUsername(ctx context.Context, username string) (*entity.Member, error) {
	m, _, err := r.findOne(ctx, entity.Username(username))
	return m, err
}

func (r *MemberRepository) FindOptionalByUsername(ctx context.Context, username string) (*entity.Member, bool, error) {
	return r.findOne(ctx, entity.Username(username))
}

func (r *MemberRepository) FindByAge(ctx context.Context, age int, page *types.PageRequest) (*types.Page[entity.Member], error) {
	return r.Page(ctx, spec.Eq("age", age), page)
}

// BulkAgePlus adds one to the age of every member at least age years old.
func (r *MemberRepository) BulkAgePlus(ctx context.Context, age int) (int, error) {
	return r.BulkUpdate(ctx, spec.Ge("age", age), spec.Add("age", 1))
}

func (r *MemberRepository) FindMemberFetchJoin(ctx context.Context) ([]*entity.Member, error) {
	return r.withTeam.FindAll(ctx, nil, nil)
}

func (r *MemberRepository) FindMemberEntityGraph(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.withTeam.FindAll(ctx, entity.Username(username), nil)
}

func (r *MemberRepository) FindLockByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindLocked(ctx, entity.Username(username))
}

func (r *MemberRepository) FindProjectionsByUsername(ctx context.Context, username string, view *projection.View) (types.JsonArray, error) {
	return r.Project(ctx, entity.Username(username), view)
}

// FindByNativeQuery returns the first member with username, or nil.
func (r *MemberRepository) FindByNativeQuery(ctx context.Context, username string) (*entity.Member, error) {
	m := new(entity.Member)
	err := r.NewRaw(ctx, "SELECT * FROM members WHERE username = ? ORDER BY id LIMIT 1", username).Scan(ctx, m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(r.name, "native query", 0, err)
	}
	return m, nil
}

const (
	nativeProjectionQuery = `SELECT m.id, m.username, t.name AS team_name
FROM members AS m
LEFT JOIN teams AS t ON t.id = m.team_id
ORDER BY m.id
LIMIT ? OFFSET ?`
	nativeProjectionCount = `SELECT count(*) FROM members`
)

// FindByNativeProjection pages members with their team name using raw SQL
// and a separate raw count.
func (r *MemberRepository) FindByNativeProjection(ctx context.Context, page *types.PageRequest) (*types.Page[entity.MemberDto], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(1, 0)
	}
	var total int
	if err := r.NewRaw(ctx, nativeProjectionCount).Scan(ctx, &total); err != nil {
		return nil, translate(r.name, "native count", 0, err)
	}
	result := types.NewPage[entity.MemberDto](page)
	result.Total = total
	if total == 0 || page.GetOffset() >= total {
		return result, nil
	}
	dtos := make([]entity.MemberDto, 0, page.GetPageSize())
	err := r.NewRaw(ctx, nativeProjectionQuery, page.GetPageSize(), page.GetOffset()).Scan(ctx, &dtos)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(r.name, "native projection", 0, err)
	}
	for i := range dtos {
		result.Items = append(result.Items, &dtos[i])
	}
	return result, nil
}

func (r *MemberRepository) FindByDerived(ctx context.Context, method string, args ...interface{}) ([]*entity.Member, error) {
	return r.FindByMethod(ctx, method, args...)
}

func (r *MemberRepository) FindAllBySpec(ctx context.Context, where spec.Predicate) ([]*entity.Member, error) {
	return r.FindAll(ctx, where, nil)
}

// FindMemberCustom is a hand-written query outside the generated methods.
func (r *MemberRepository) FindMemberCustom(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.NewSelect(ctx).
		OrderExpr("?TableAlias.? ASC", bun.Ident(r.resolver.pk())).
		Scan(ctx, &members)
	if err != nil {
		return nil, translate(r.name, "find custom", 0, err)
	}
	return r.managed(ctx, members), nil
}
