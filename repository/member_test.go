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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/types"
)

func TestMemberQueries(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	names, err := f.members.FindUsernameList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member1", "member2", "member3", "member4", "member5"}, names)

	dtos, err := f.members.FindMemberDto(ctx)
	require.NoError(t, err)
	require.Len(t, dtos, 4)
	assert.Equal(t, "member1", dtos[0].Username)
	assert.Equal(t, "teamA", dtos[0].TeamName)
	assert.Equal(t, "teamB", dtos[3].TeamName)

	byNames, err := f.members.FindByNames(ctx, []string{"member2", "member4", "nobody"})
	require.NoError(t, err)
	assert.Len(t, byNames, 2)

	users, err := f.members.FindUser(ctx, "member3", 20)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	list, err := f.members.FindListByUsername(ctx, "member9")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	custom, err := f.members.FindMemberCustom(ctx)
	require.NoError(t, err)
	assert.Len(t, custom, 5)

	derived, err := f.members.FindByDerived(ctx, "findByAgeLessThanEqualOrTeamIdIsNull", 10)
	require.NoError(t, err)
	assert.Len(t, derived, 2)
}

func TestSingleResultQueries(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	m, err := f.members.FindMemberByUsername(ctx, "member2")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 19, m.Age)

	m, err = f.members.FindMemberByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, ok, err := f.members.FindOptionalByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.members.Save(ctx, entity.NewMember("member2", 50, nil))
	require.NoError(t, err)
	_, err = f.members.FindMemberByUsername(ctx, "member2")
	assert.ErrorIs(t, err, ErrNonUniqueResult)
	_, _, err = f.members.FindOptionalByUsername(ctx, "member2")
	assert.ErrorIs(t, err, ErrNonUniqueResult)
}

func TestFindByAgePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"member1", "member2", "member3", "member4", "member5"} {
		_, err := f.members.Save(ctx, entity.NewMember(name, 10, nil))
		require.NoError(t, err)
	}
	_, err := f.members.Save(ctx, entity.NewMember("member6", 11, nil))
	require.NoError(t, err)

	page, err := f.members.FindByAge(ctx, 10, types.NewPageRequest(1, 3, types.By(types.Desc("username"))))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())
	require.Len(t, page.Items, 3)
	assert.Equal(t, "member5", page.Items[0].Username)
	assert.Equal(t, "member3", page.Items[2].Username)

	usernames := types.Map(page, func(m *entity.Member) *string { return &m.Username })
	assert.Equal(t, "member4", *usernames.Items[1])
	assert.Equal(t, page.Total, usernames.Total)
}

func TestFetchJoinLoadsTeam(t *testing.T) {
	f := newFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	members, err := f.members.FindMemberFetchJoin(ctx)
	require.NoError(t, err)
	require.Len(t, members, 5)
	require.NotNil(t, members[0].Team)
	assert.Equal(t, "teamA", members[0].Team.Name)
	require.NotNil(t, members[2].Team)
	assert.Equal(t, "teamB", members[2].Team.Name)
	assert.Nil(t, members[4].Team)

	graph, err := f.members.FindMemberEntityGraph(ctx, "member4")
	require.NoError(t, err)
	require.Len(t, graph, 1)
	require.NotNil(t, graph[0].Team)
	assert.Equal(t, "teamB", graph[0].Team.Name)

	plain, err := f.members.FindByUsername(ctx, "member4")
	require.NoError(t, err)
	require.Len(t, plain, 1)
	assert.Nil(t, plain[0].Team)
	require.NotNil(t, plain[0].TeamID)
}

func TestNativeQueries(t *testing.T) {
	f := newFixture(t)
	teamA, _ := f.seedTutorial(t)
	ctx := context.Background()

	m, err := f.members.FindByNativeQuery(ctx, "member2")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 19, m.Age)
	require.NotNil(t, m.TeamID)
	assert.Equal(t, teamA.ID, *m.TeamID)

	m, err = f.members.FindByNativeQuery(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, m)

	page, err := f.members.FindByNativeProjection(ctx, types.NewDefaultPageRequest(3, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "member5", page.Items[0].Username)
	assert.Empty(t, page.Items[0].TeamName)

	first, err := f.members.FindByNativeProjection(ctx, nil)
	require.NoError(t, err)
	require.Len(t, first.Items, 5)
	assert.Equal(t, "teamA", first.Items[1].TeamName)
}

func TestTeamAndItemRepositories(t *testing.T) {
	f := newFixture(t)
	teamA, teamB := f.seedTutorial(t)
	ctx := context.Background()

	found, err := f.teams.FindByName(ctx, "teamB")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, teamB.ID, found[0].ID)

	n, err := f.teams.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, f.teams.Delete(ctx, teamA))
	n, err = f.teams.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.items.SaveAll(ctx, entity.NewItem("itemA"), entity.NewItem("itemB"))
	require.NoError(t, err)
	items, err := f.items.FindByMethod(ctx, "findByNameLike", "item%")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
