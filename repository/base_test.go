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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
)

func TestSaveAndFindUserA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.members.Save(ctx, entity.NewMember("userA", 30, nil))
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	found, ok, err := f.members.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "userA", found.Username)
	assert.Equal(t, 30, found.Age)
	assert.Nil(t, found.TeamID)
	assert.True(t, found.CreatedAt.Equal(epoch.Truncate(time.Microsecond)))
	assert.True(t, found.LastModifiedAt.Equal(found.CreatedAt))
	assert.Equal(t, "tester", found.CreatedBy)
	assert.Equal(t, "tester", found.LastModifiedBy)

	older, err := f.members.FindByUsernameAndAgeGreaterThan(ctx, "userA", 20)
	require.NoError(t, err)
	assert.Len(t, older, 1)

	none, err := f.members.FindByUsernameAndAgeGreaterThan(ctx, "userA", 30)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateKeepsCreationAudit(t *testing.T) {
	f := newFixture(t, WithAuditor(audit.Default()))

	m, err := f.members.Save(audit.WithActor(context.Background(), "alice"), entity.NewMember("member1", 10, nil))
	require.NoError(t, err)
	created := m.CreatedAt

	f.clock.Advance(time.Hour)
	m.Age = 11
	m.CreatedAt = time.Time{}
	m.CreatedBy = "mallory"
	_, err = f.members.Save(audit.WithActor(context.Background(), "bob"), m)
	require.NoError(t, err)

	reloaded, err := f.members.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, reloaded.Age)
	assert.True(t, reloaded.CreatedAt.Equal(created))
	assert.Equal(t, "alice", reloaded.CreatedBy)
	assert.Equal(t, "bob", reloaded.LastModifiedBy)
	assert.True(t, reloaded.LastModifiedAt.Equal(created.Add(time.Hour)))
}

func TestSaveMissingRowIsNotFound(t *testing.T) {
	f := newFixture(t)
	ghost := &entity.Member{ID: 999, Username: "ghost"}

	_, err := f.members.Save(context.Background(), ghost)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(999), nf.ID)

	_, err = f.members.Save(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFindByIDAbsent(t *testing.T) {
	f := newFixture(t)
	m, ok, err := f.members.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, m)

	_, err = f.members.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.members.Save(ctx, entity.NewMember("member1", 10, nil))
	require.NoError(t, err)

	require.NoError(t, f.members.Delete(ctx, m))
	_, ok, err := f.members.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, f.members.Delete(ctx, m), ErrNotFound)
}

func TestPagesConcatenateToSortedSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, age := range []int{33, 10, 25, 25, 41, 18, 25, 60, 7, 33} {
		_, err := f.members.Save(ctx, entity.NewMember("m"+string(rune('a'+i)), age, nil))
		require.NoError(t, err)
	}

	sort := types.By(types.Desc("age"))
	all, err := f.members.FindAll(ctx, nil, sort)
	require.NoError(t, err)
	require.Len(t, all, 10)

	var walked []*entity.Member
	req := types.NewPageRequest(1, 3, sort)
	for {
		page, err := f.members.Page(ctx, nil, req)
		require.NoError(t, err)
		assert.Equal(t, 10, page.Total)
		assert.Equal(t, 4, page.TotalPages())
		walked = append(walked, page.Items...)
		if !page.HasNext() {
			break
		}
		req = req.Next()
	}
	assert.Equal(t, ids(all), ids(walked))

	past, err := f.members.Page(ctx, nil, types.NewPageRequest(5, 3, sort))
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.Equal(t, 10, past.Total)

	filtered, err := f.members.Page(ctx, spec.Eq("age", 25), types.NewDefaultPageRequest(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, filtered.Total)
	assert.Len(t, filtered.Items, 2)
}

func TestBulkUpdateClearsUnitOfWork(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()
	before, err := f.members.FindAll(ctx, nil, nil)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	err = RunInTx(ctx, f.db, func(ctx context.Context) error {
		m3, err := f.members.FindByUsername(ctx, "member3")
		require.NoError(t, err)
		require.Len(t, m3, 1)
		assert.Equal(t, 20, m3[0].Age)

		n, err := f.members.BulkAgePlus(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Zero(t, unitOfWorkFrom(ctx).size(f.members.typ))

		fresh, err := f.members.GetByID(ctx, m3[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 21, fresh.Age)
		assert.NotSame(t, m3[0], fresh)
		return nil
	})
	require.NoError(t, err)

	after, err := f.members.FindAll(ctx, nil, nil)
	require.NoError(t, err)
	ages := make([]int, 0, len(after))
	for i, m := range after {
		ages = append(ages, m.Age)
		if m.Age == before[i].Age {
			assert.True(t, m.LastModifiedAt.Equal(before[i].LastModifiedAt), m.Username)
		} else {
			assert.True(t, m.LastModifiedAt.After(before[i].LastModifiedAt), m.Username)
			assert.True(t, m.CreatedAt.Equal(before[i].CreatedAt), m.Username)
		}
	}
	assert.Equal(t, []int{10, 19, 21, 22, 41}, ages)
}

func TestBulkUpdateByJoinedField(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	n, err := f.members.BulkUpdate(ctx, entity.TeamName("teamA"), spec.Set("age", 99))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.members.BulkUpdate(ctx, nil, spec.Add("age", 1))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	count, err := f.members.Count(ctx, spec.Eq("age", 100))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = f.members.BulkUpdate(ctx, nil, spec.Set("nickname", "x"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSpecificationQueries(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	teamA, err := f.members.FindAllBySpec(ctx, entity.TeamName("teamA"))
	require.NoError(t, err)
	assert.Len(t, teamA, 2)

	everyone, err := f.members.FindAllBySpec(ctx, entity.TeamName(""))
	require.NoError(t, err)
	assert.Len(t, everyone, 5)

	both, err := f.members.FindAll(ctx, spec.And(entity.Username("member1"), entity.TeamName("teamA")), nil)
	require.NoError(t, err)
	assert.Len(t, both, 1)

	either, err := f.members.FindAll(ctx,
		spec.Or(spec.Lt("age", 15), spec.IsNull("team_id")),
		types.By(types.Asc("age")))
	require.NoError(t, err)
	require.Len(t, either, 2)
	assert.Equal(t, "member5", either[1].Username)

	in, err := f.members.FindByNames(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, in)

	exists, err := f.members.Exists(ctx, spec.Gt("age", 39))
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.members.FindAll(ctx, spec.Eq("nickname", "x"), nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.members.FindAll(ctx, nil, types.By(types.Asc("team.name")))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDerivedMethods(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	found, err := f.members.FindByDerived(ctx, "findByUsernameAndAgeGreaterThan", "member4", 20)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	byTeam, err := f.members.FindByMethod(ctx, "findByTeamName", "teamB")
	require.NoError(t, err)
	assert.Len(t, byTeam, 2)

	n, err := f.members.CountByMethod(ctx, "countByAgeGreaterThanEqual", 20)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = f.members.FindByMethod(ctx, "countByAge", 20)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.members.FindByMethod(ctx, "findByUsername")
	assert.ErrorIs(t, err, ErrValidation)

	teams, err := f.teams.FindByName(ctx, "teamA")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Empty(t, teams[0].Members)
}

func TestUnitOfWorkIdentityAndRollback(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var id int64
	err := RunInTx(ctx, f.db, func(ctx context.Context) error {
		list, err := f.members.FindByUsername(ctx, "member1")
		require.NoError(t, err)
		byID, err := f.members.GetByID(ctx, list[0].ID)
		require.NoError(t, err)
		assert.Same(t, list[0], byID)

		again, err := f.members.FindAll(ctx, entity.Username("member1"), nil)
		require.NoError(t, err)
		assert.Same(t, byID, again[0])

		m, err := f.members.Save(ctx, entity.NewMember("temp", 1, nil))
		require.NoError(t, err)
		id = m.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := f.members.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditorResolvedOncePerUnitOfWork(t *testing.T) {
	var calls int
	counting := audit.ProviderFunc(func(context.Context) (string, bool) {
		calls++
		return "actor-" + string(rune('0'+calls)), true
	})
	f := newFixture(t, WithAuditor(counting))
	ctx := context.Background()

	var saved []*entity.Member
	err := RunInTx(ctx, f.db, func(ctx context.Context) error {
		var err error
		saved, err = f.members.SaveAll(ctx, entity.NewMember("a", 1, nil), entity.NewMember("b", 2, nil))
		if err != nil {
			return err
		}
		_, err = f.members.BulkAgePlus(ctx, 0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "actor-1", saved[0].CreatedBy)
	assert.Equal(t, "actor-1", saved[1].CreatedBy)

	_, err = f.members.Save(ctx, entity.NewMember("c", 3, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.members.Save(ctx, entity.NewMember("member1", 10, nil))
	require.NoError(t, err)
	created := m.CreatedAt

	f.clock.Advance(time.Hour)
	err = f.members.Upsert(ctx, []string{"username", "age"}, nil,
		&entity.Member{ID: m.ID, Username: "renamed", Age: 50})
	require.NoError(t, err)

	got, err := f.members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Username)
	assert.Equal(t, 50, got.Age)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.LastModifiedAt.Equal(created.Add(time.Hour)))

	assert.ErrorIs(t, f.members.Upsert(ctx, nil, nil, got), ErrValidation)
	assert.ErrorIs(t, f.members.Upsert(ctx, []string{"team.name"}, nil, got), ErrValidation)
	assert.NoError(t, f.members.Upsert(ctx, []string{"age"}, nil))
}

func TestItemsAreTimeAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.items.Save(ctx, entity.NewItem("itemA"))
	require.NoError(t, err)

	got, err := f.items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "itemA", got.Name)
	assert.True(t, got.CreatedAt.Equal(epoch.Truncate(time.Microsecond)))
}

func TestFetchJoinFillsCachedMembers(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	err := RunInTx(ctx, f.db, func(ctx context.Context) error {
		plain, err := f.members.FindByUsername(ctx, "member1")
		require.NoError(t, err)
		require.Len(t, plain, 1)
		require.Nil(t, plain[0].Team)

		joined, err := f.members.FindMemberFetchJoin(ctx)
		require.NoError(t, err)
		require.Len(t, joined, 5)
		assert.Same(t, plain[0], joined[0])
		require.NotNil(t, joined[0].Team)
		assert.Equal(t, "teamA", joined[0].Team.Name)
		assert.Nil(t, joined[4].Team)
		return nil
	})
	require.NoError(t, err)
}

func TestSaveUnknownTeamIsForeignKeyViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := int64(999)
	m := &entity.Member{Username: "ghost", Age: 1, TeamID: &missing}

	_, err := f.members.Save(ctx, m)
	require.ErrorIs(t, err, ErrConstraintViolation)
	var cve *types.ConstraintViolationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, "Member", cve.Entity)
	assert.Equal(t, "foreign key", cve.Kind)

	assert.Zero(t, m.ID)
	assert.True(t, m.CreatedAt.IsZero())
	assert.True(t, m.LastModifiedAt.IsZero())
	assert.Empty(t, m.CreatedBy)
	assert.Empty(t, m.LastModifiedBy)

	n, err := f.members.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveAllFailureRestoresEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := int64(999)
	good := entity.NewMember("good", 1, nil)
	bad := &entity.Member{Username: "bad", Age: 2, TeamID: &missing}

	_, err := f.members.SaveAll(ctx, good, bad)
	require.ErrorIs(t, err, ErrConstraintViolation)
	assert.Zero(t, good.ID)
	assert.True(t, good.CreatedAt.IsZero())
	assert.Zero(t, bad.ID)

	n, err := f.members.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The restored entity is still new and saves cleanly.
	_, err = f.members.Save(ctx, good)
	require.NoError(t, err)
	assert.NotZero(t, good.ID)
}

func TestUpsertFailureRestoresEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := int64(999)
	m := &entity.Member{Username: "ghost", Age: 1, TeamID: &missing}

	err := f.members.Upsert(ctx, []string{"username", "team_id"}, nil, m)
	require.ErrorIs(t, err, ErrConstraintViolation)
	assert.True(t, m.CreatedAt.IsZero())
	assert.Empty(t, m.CreatedBy)
}

func TestDeletingTeamDetachesMembers(t *testing.T) {
	f := newFixture(t)
	teamA, _ := f.seedTutorial(t)
	ctx := context.Background()

	require.NoError(t, f.teams.Delete(ctx, teamA))

	list, err := f.members.FindByUsername(ctx, "member1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].TeamID)
}

func TestUpsertStatementsQuoteColumns(t *testing.T) {
	f := newFixture(t)
	rows := []*entity.Member{{ID: 1, Username: "member1", Age: 10}}

	mysql := bun.NewDB(f.db.DB, mysqldialect.New())
	q := onDuplicateKeyUpsert(mysql, []string{"username", "age"}, rows).String()
	assert.Contains(t, q, "ON DUPLICATE KEY UPDATE `username` = VALUES(`username`), `age` = VALUES(`age`)")

	pg := bun.NewDB(f.db.DB, pgdialect.New())
	q = onConflictUpsert(pg, []string{`odd"name`}, []string{"id"}, rows).String()
	assert.Contains(t, q, `ON CONFLICT ("id") DO UPDATE SET "odd""name" = EXCLUDED."odd""name"`)
}
